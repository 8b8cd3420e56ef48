// Package eventstest records published events for assertions.
package eventstest

import (
	"context"
	"sync"

	"github.com/frahmantamala/care-payments/internal/core/events"
)

type Recorder struct {
	mu     sync.Mutex
	events []events.Event
	Err    error
}

func New() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.Err
}

func (r *Recorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types lists the published event types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, len(r.events))
	for i, e := range r.events {
		types[i] = e.EventType()
	}
	return types
}

// Last returns the most recent event of the given type, or nil.
func (r *Recorder) Last(eventType string) events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].EventType() == eventType {
			return r.events[i]
		}
	}
	return nil
}
