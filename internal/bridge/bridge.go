// Package bridge hands vehicle state from the network goroutine to
// consumers.
//
// In push mode every status frame is applied to the published snapshot as
// it arrives and subscribers are notified on the network goroutine. In
// pull mode frames are applied, in arrival order, to a staged state that
// only becomes visible when a consumer calls Poll. Both modes apply every
// event, so a terminal AutoPark completion can never be skipped; pull
// mode merely coalesces what subscribers and readers observe.
package bridge

import (
	"fmt"
	"sync"

	"vehicle-remote/internal/logger"
	"vehicle-remote/internal/protocol"
	"vehicle-remote/internal/state"
	"vehicle-remote/internal/types"
)

type Mode string

const (
	ModePush Mode = "push"
	ModePull Mode = "pull"
)

// ParseMode validates a configured mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePush, ModePull:
		return Mode(s), nil
	case "":
		return ModePush, nil
	}
	return "", fmt.Errorf("unknown bridge mode %q", s)
}

// Handler receives a copy of the published snapshot. Handlers run on
// whichever goroutine published the snapshot and must not call Poll.
type Handler func(types.VehicleState)

type Stats struct {
	FramesReceived uint64 `json:"frames_received"`
	FramesIgnored  uint64 `json:"frames_ignored"`
	EventsApplied  uint64 `json:"events_applied"`
	Pending        uint64 `json:"pending"`
}

type Bridge struct {
	mode   Mode
	logger *logger.Logger

	mu        sync.Mutex
	published types.VehicleState
	staged    types.VehicleState
	closed    bool
	stats     Stats

	subsMu  sync.Mutex
	subs    map[uint64]Handler
	nextSub uint64

	// notifyMu serialises notifications so handlers observe increasing
	// sequence numbers.
	notifyMu     sync.Mutex
	lastNotified uint64
}

func New(mode Mode, l *logger.Logger) *Bridge {
	s := types.NewVehicleState()
	return &Bridge{
		mode:      mode,
		logger:    l,
		published: s,
		staged:    s,
		subs:      make(map[uint64]Handler),
	}
}

func (b *Bridge) Mode() Mode {
	return b.mode
}

// HandleStatus is the network client's status callback.
func (b *Bridge) HandleStatus(raw []byte) {
	ev, ok := protocol.Decode(raw)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.stats.FramesReceived++
	if !ok {
		b.stats.FramesIgnored++
		b.mu.Unlock()
		b.logger.Debugf("Ignoring status frame % X: %s", raw, protocol.DecodeReason(raw))
		return
	}
	snapshot, publish := b.applyLocked(ev)
	b.mu.Unlock()

	if publish {
		b.notify(snapshot)
	}
}

// ApplyLocal applies an event produced by the session itself. Local events
// are always published immediately, together with anything staged.
func (b *Bridge) ApplyLocal(ev types.StatusEvent) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.applyLocked(ev)
	snapshot := b.promoteLocked()
	b.mu.Unlock()

	b.notify(snapshot)
}

func (b *Bridge) applyLocked(ev types.StatusEvent) (types.VehicleState, bool) {
	b.stats.EventsApplied++
	if b.mode == ModePull {
		b.staged = state.Apply(b.staged, ev)
		b.stats.Pending++
		return b.staged, false
	}
	b.published = state.Apply(b.published, ev)
	b.staged = b.published
	return b.published, true
}

func (b *Bridge) promoteLocked() types.VehicleState {
	b.published = b.staged
	b.stats.Pending = 0
	return b.published
}

// Poll publishes everything received since the previous call and returns
// the resulting snapshot. In push mode it is equivalent to Snapshot.
func (b *Bridge) Poll() (types.VehicleState, uint64) {
	b.mu.Lock()
	if b.mode == ModePush || b.stats.Pending == 0 {
		s := b.published
		b.mu.Unlock()
		return s, s.LastUpdateSeq
	}
	s := b.promoteLocked()
	b.mu.Unlock()

	b.notify(s)
	return s, s.LastUpdateSeq
}

// Snapshot returns the published state without draining staged updates.
func (b *Bridge) Snapshot() (types.VehicleState, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published, b.published.LastUpdateSeq
}

// Subscribe registers h and returns a function that removes it.
func (b *Bridge) Subscribe(h Handler) (unsubscribe func()) {
	b.subsMu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = h
	b.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.subsMu.Lock()
			delete(b.subs, id)
			b.subsMu.Unlock()
		})
	}
}

func (b *Bridge) notify(s types.VehicleState) {
	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()

	if s.LastUpdateSeq <= b.lastNotified {
		return
	}
	b.lastNotified = s.LastUpdateSeq

	b.subsMu.Lock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, h := range b.subs {
		handlers = append(handlers, h)
	}
	b.subsMu.Unlock()

	for _, h := range handlers {
		h(s)
	}
}

// Close stops intake. Frames and local events arriving afterwards are
// dropped; staged updates can still be drained with Poll.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.logger.Debugf("Bridge intake closed after %d frames", b.stats.FramesReceived)
}

func (b *Bridge) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Bridge) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}
