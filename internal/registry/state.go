package registry

import (
	"fmt"
	"strings"
)

// State is the lifecycle position of one frontend connection. Removal is
// terminal and represented by the entry's absence from the registry.
type State int

const (
	// StateRegistered: the id is known (first heartbeat or subscription
	// seen) but no outbound stream is bound yet.
	StateRegistered State = iota

	// StateActive: an outbound stream is bound and the connection is
	// within its heartbeat timeout.
	StateActive

	// StateStale: last_seen exceeded the heartbeat timeout; eviction is
	// pending after one grace period unless a heartbeat or report arrives
	// first.
	StateStale
)

// MarshalJSON emits the lowercase state name used by snapshots and the
// status endpoint.
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

func (s *State) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "registered":
		*s = StateRegistered
	case "active":
		*s = StateActive
	case "stale":
		*s = StateStale
	default:
		return fmt.Errorf("unknown connection state %s", data)
	}
	return nil
}

func (s State) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateActive:
		return "active"
	case StateStale:
		return "stale"
	}
	return "invalid"
}
