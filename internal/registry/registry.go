// Package registry is the single source of truth for which frontends are
// connected. All mutation happens under one coarse mutex: entry counts are
// one per frontend process, so contention is not a concern, and the coarse
// guard makes the bind-versus-evict race decidable.
package registry

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"relayhub/internal/domain"
)

// Sender is the outbound half of one bound command stream. The registry owns
// at most one per frontend id; closing it terminates the remote subscription
// with the given reason.
type Sender interface {
	TrySend(cmd domain.BotCommand) error
	Close(reason domain.CloseReason)
}

type entry struct {
	id       string
	platform domain.Platform
	state    State
	lastSeen time.Time
	sender   Sender // nil until a stream is bound
}

// EntryInfo is a point-in-time copy of one connection's registry state.
type EntryInfo struct {
	ID       string          `json:"id"`
	Platform domain.Platform `json:"platform"`
	State    State           `json:"state"`
	LastSeen time.Time       `json:"last_seen"`
	Bound    bool            `json:"bound"`
}

// Registry maps frontend id to connection state.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	logger  *slog.Logger

	now func() time.Time // swappable for tests
}

func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries: make(map[string]*entry),
		logger:  logger,
		now:     time.Now,
	}
}

// RegisterOrTouch creates an entry for id if absent, otherwise refreshes its
// last_seen. Idempotent. A known platform upgrades an entry that was
// implicitly registered with PlatformUnknown.
func (r *Registry) RegisterOrTouch(id string, platform domain.Platform) EntryInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		e = &entry{id: id, platform: platform, state: StateRegistered, lastSeen: r.now()}
		r.entries[id] = e
		r.logger.Info("frontend registered", "frontend_id", id, "platform", platform)
		return e.info()
	}
	e.lastSeen = r.now()
	if e.platform == domain.PlatformUnknown && platform != domain.PlatformUnknown {
		e.platform = platform
	}
	r.resurrectLocked(e)
	return e.info()
}

// BindStream installs sender as the connection's outbound stream, creating
// the entry if needed, and returns the superseded sender (nil if none). The
// caller must close the returned sender with CloseSuperseded; the registry
// never closes streams itself.
func (r *Registry) BindStream(id string, platform domain.Platform, sender Sender) Sender {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		e = &entry{id: id, platform: platform}
		r.entries[id] = e
	} else if platform != domain.PlatformUnknown {
		e.platform = platform
	}
	prev := e.sender
	e.sender = sender
	e.state = StateActive
	e.lastSeen = r.now()
	if prev != nil {
		r.logger.Info("stream superseded", "frontend_id", id)
	} else {
		r.logger.Info("stream bound", "frontend_id", id, "platform", e.platform)
	}
	return prev
}

// Touch refreshes last_seen for a known id and cancels a pending eviction
// (Stale goes back to Active). Unknown ids are a silent no-op: touch never
// registers, registration is explicit.
func (r *Registry) Touch(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.lastSeen = r.now()
	r.resurrectLocked(e)
	return true
}

// resurrectLocked undoes a Stale mark after fresh activity. Valid until the
// moment eviction actually deletes the entry.
func (r *Registry) resurrectLocked(e *entry) {
	if e.state != StateStale {
		return
	}
	if e.sender != nil {
		e.state = StateActive
	} else {
		e.state = StateRegistered
	}
	r.logger.Debug("stale connection resurrected", "frontend_id", e.id)
}

// Sender returns the bound outbound sender for id, if any.
func (r *Registry) Sender(id string) (Sender, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.sender == nil {
		return nil, false
	}
	return e.sender, true
}

// Evict removes the entry unconditionally and returns its sender for the
// caller to close. Idempotent: a second eviction of the same id reports
// false.
func (r *Registry) Evict(id string) (Sender, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	delete(r.entries, id)
	r.logger.Info("frontend evicted", "frontend_id", id, "state", e.state.String())
	return e.sender, true
}

// Remove deletes the entry only while sender is still its bound stream. Used
// by a stream pump cleaning up after itself: if the binding was superseded or
// the entry already evicted, the pump must not destroy state it no longer
// owns.
func (r *Registry) Remove(id string, sender Sender) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.sender != sender {
		return false
	}
	delete(r.entries, id)
	r.logger.Info("frontend disconnected", "frontend_id", id)
	return true
}

// MarkStale transitions the entry to Stale if its last_seen is at or before
// cutoff. The check runs under the registry lock so a concurrent heartbeat
// either wins (fresh last_seen, no transition) or loses cleanly.
func (r *Registry) MarkStale(id string, cutoff time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.state == StateStale || e.lastSeen.After(cutoff) {
		return false
	}
	e.state = StateStale
	r.logger.Warn("frontend went stale", "frontend_id", id, "last_seen", e.lastSeen)
	return true
}

// EvictExpired removes the entry only if it is still Stale with last_seen
// at or before cutoff, returning the sender to close. A heartbeat that
// slipped in after the Stale mark keeps the entry alive.
func (r *Registry) EvictExpired(id string, cutoff time.Time) (Sender, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.state != StateStale || e.lastSeen.After(cutoff) {
		return nil, false
	}
	delete(r.entries, id)
	r.logger.Warn("stale frontend evicted", "frontend_id", id, "last_seen", e.lastSeen)
	return e.sender, true
}

// Snapshot returns a consistent point-in-time view of all entries, sorted by
// id.
func (r *Registry) Snapshot() []EntryInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]EntryInfo, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// SetClock overrides the time source. Test hook.
func (r *Registry) SetClock(now func() time.Time) { r.now = now }

func (e *entry) info() EntryInfo {
	return EntryInfo{
		ID:       e.id,
		Platform: e.platform,
		State:    e.state,
		LastSeen: e.lastSeen,
		Bound:    e.sender != nil,
	}
}
