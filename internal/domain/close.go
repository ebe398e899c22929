package domain

// CloseReason tells a frontend why the backend ended its command stream.
// The remote side must always be able to distinguish a deliberate close from
// a transport failure.
type CloseReason string

const (
	// CloseGraceful: the stream ended cleanly at either side's request.
	CloseGraceful CloseReason = "graceful"

	// CloseSuperseded: a newer subscription for the same frontend id
	// replaced this stream.
	CloseSuperseded CloseReason = "superseded"

	// CloseEvicted: the backend evicted the connection for missed
	// heartbeats.
	CloseEvicted CloseReason = "evicted"

	// CloseError: the stream died from a transport failure.
	CloseError CloseReason = "error"
)

// ParseCloseReason maps a wire string back to a CloseReason; anything
// unrecognized is treated as a transport error.
func ParseCloseReason(s string) CloseReason {
	switch CloseReason(s) {
	case CloseGraceful, CloseSuperseded, CloseEvicted:
		return CloseReason(s)
	}
	return CloseError
}
