// Package events carries documentation events from the ledger linker to the
// occurrence state machine.
package events

import (
	"context"
	"errors"
	"sync"

	"obligations/internal/core"
)

// Publisher emits documentation events.
type Publisher interface {
	Publish(ctx context.Context, ev core.DocumentationEvent) error
}

// Handler consumes one documentation event.
type Handler func(ctx context.Context, ev core.DocumentationEvent) error

// Dispatcher delivers events synchronously to in-process subscribers.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

func (d *Dispatcher) Subscribe(h Handler) {
	d.mu.Lock()
	d.handlers = append(d.handlers, h)
	d.mu.Unlock()
}

// Publish runs every subscriber and joins their errors.
func (d *Dispatcher) Publish(ctx context.Context, ev core.DocumentationEvent) error {
	d.mu.RLock()
	handlers := append([]Handler(nil), d.handlers...)
	d.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Fanout publishes to several publishers, e.g. the local dispatcher and a broker.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev core.DocumentationEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, core.DocumentationEvent) error { return nil }
