package event

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
)

// Handler reacts to a dispatched event.
type Handler func(ctx context.Context, e Event) error

type listener struct {
	id      uint64
	pattern string
	handler Handler
}

// Dispatcher fans events out to registered listeners.
// It is safe for concurrent use.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners []listener
	nextID    uint64
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Listen registers handler for events whose kind matches pattern.
// It returns a function that removes the listener.
func (d *Dispatcher) Listen(pattern string, handler Handler) (unsubscribe func()) {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.listeners = append(d.listeners, listener{id: id, pattern: pattern, handler: handler})
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, l := range d.listeners {
			if l.id == id {
				d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
				return
			}
		}
	}
}

// Dispatch delivers e to every matching listener, in registration order.
// All listeners run even if some fail; their errors are joined.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) error {
	d.mu.RLock()
	matched := make([]listener, 0, len(d.listeners))
	for _, l := range d.listeners {
		ok, err := filepath.Match(l.pattern, e.Kind())
		if err != nil || !ok {
			continue
		}
		matched = append(matched, l)
	}
	d.mu.RUnlock()

	var errs []error
	for _, l := range matched {
		if err := safeCall(ctx, l.handler, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of registered listeners.
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners)
}

func safeCall(ctx context.Context, h Handler, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event listener panic on %s: %v", e.Kind(), r)
		}
	}()
	return h(ctx, e)
}
