// Package events dispatches host notifications to the tip engine.
//
// Listeners are keyed by the concrete event type and run in registration
// order. Dispatch handles one event at a time: a listener never observes a
// half-processed earlier event.
package events

import (
	"context"
	"errors"
	"reflect"
	"sync"
)

// Event is implemented by every payload type below.
type Event interface {
	eventName() string
}

// Activated is sent once when the host starts the engine. Doc is empty when
// no document is focused.
type Activated struct {
	Doc  string
	Text string
}

// TextChanged carries the full text of an edited document.
type TextChanged struct {
	Doc  string
	Text string
}

// FocusChanged reports the document the user is now looking at.
type FocusChanged struct {
	Doc  string
	Text string
}

// ConfigChanged reports that tiplens settings may have changed.
type ConfigChanged struct{}

// TipDismissed is the "Mark as Learned" action.
type TipDismissed struct {
	ID string
}

// DocumentClosed reports that the host no longer tracks a document.
type DocumentClosed struct {
	Doc string
}

func (Activated) eventName() string      { return "activated" }
func (TextChanged) eventName() string    { return "textChanged" }
func (FocusChanged) eventName() string   { return "focusChanged" }
func (ConfigChanged) eventName() string  { return "configChanged" }
func (TipDismissed) eventName() string   { return "tipDismissed" }
func (DocumentClosed) eventName() string { return "documentClosed" }

// Name returns a short label for logs.
func Name(ev Event) string {
	if ev == nil {
		return ""
	}
	return ev.eventName()
}

type listener func(ctx context.Context, ev Event) error

// Dispatcher routes events to listeners.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners map[reflect.Type][]listener
	// dispatchMu serializes Dispatch calls.
	dispatchMu sync.Mutex
}

// NewDispatcher returns a dispatcher without listeners.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{listeners: make(map[reflect.Type][]listener)}
}

// Subscribe registers fn for events of type E.
func Subscribe[E Event](d *Dispatcher, fn func(ctx context.Context, ev E) error) {
	key := reflect.TypeFor[E]()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[key] = append(d.listeners[key], func(ctx context.Context, ev Event) error {
		return fn(ctx, ev.(E))
	})
}

// Dispatch delivers ev to its listeners in order. Every listener runs even
// if an earlier one fails; the errors are joined. Listeners must not call
// Dispatch themselves.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	if ev == nil {
		return nil
	}
	d.mu.RLock()
	ls := d.listeners[reflect.TypeOf(ev)]
	d.mu.RUnlock()

	d.dispatchMu.Lock()
	defer d.dispatchMu.Unlock()
	var errs []error
	for _, l := range ls {
		if err := l(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
