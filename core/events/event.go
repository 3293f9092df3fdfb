package events

import (
	"sync"

	"github.com/monalisastar/elr-protocol-mainnet/core/types"
)

// Event represents a structured state change emitted by a committed call.
type Event interface {
	EventType() string
}

// Projector is implemented by events that can render themselves as the
// generic attribute map consumed by indexers.
type Projector interface {
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Recorder keeps an append-only, bounded in-memory log of emitted events.
type Recorder struct {
	mu     sync.RWMutex
	limit  int
	events []Event
	total  uint64
}

// NewRecorder returns a recorder retaining at most limit events. A non-positive
// limit retains everything.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(e Event) {
	if e == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	r.total++
	if r.limit > 0 && len(r.events) > r.limit {
		r.events = append([]Event(nil), r.events[len(r.events)-r.limit:]...)
	}
}

// Events returns a copy of the retained events in emission order.
func (r *Recorder) Events() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Event(nil), r.events...)
}

// Total reports how many events were ever emitted.
func (r *Recorder) Total() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}

// OfType filters the retained events by type.
func (r *Recorder) OfType(eventType string) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Event
	for _, e := range r.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Fanout forwards every event to each wrapped emitter in order.
type Fanout []Emitter

// Emit implements the Emitter interface.
func (f Fanout) Emit(e Event) {
	for _, emitter := range f {
		if emitter != nil {
			emitter.Emit(e)
		}
	}
}

// Project renders e through its Projector implementation, falling back to a
// bare type-only payload.
func Project(e Event) *types.Event {
	if p, ok := e.(Projector); ok {
		return p.Event()
	}
	return &types.Event{Type: e.EventType(), Attributes: map[string]string{}}
}
