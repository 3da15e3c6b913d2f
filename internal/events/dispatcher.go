package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher fans session events out to subscribers.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

// inMemoryDispatcher runs handlers synchronously on the publishing goroutine,
// in subscription order.
type inMemoryDispatcher struct {
	mu       sync.RWMutex
	handlers map[EventType][]EventHandler
}

// NewInMemoryDispatcher creates a dispatcher instance.
func NewInMemoryDispatcher() Dispatcher {
	return &inMemoryDispatcher{handlers: make(map[EventType][]EventHandler)}
}

// Publish runs every handler for event.Type. Failing or panicking handlers
// do not stop the rest; their errors are joined.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	subscribed := d.handlers[event.Type]
	d.mu.RUnlock()

	var errs []error
	for _, handler := range subscribed {
		if err := invoke(ctx, handler, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func invoke(ctx context.Context, handler EventHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s handler panicked: %v", event.Type, r)
		}
	}()
	return handler(ctx, event)
}

// Subscribe registers handler for eventType.
func (d *inMemoryDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	// copy on write so Publish can iterate a snapshot without holding the lock
	next := make([]EventHandler, len(d.handlers[eventType]), len(d.handlers[eventType])+1)
	copy(next, d.handlers[eventType])
	d.handlers[eventType] = append(next, handler)
}

// SubscribeAll registers handler for every session event type.
func SubscribeAll(d Dispatcher, handler EventHandler) {
	for _, t := range SessionEventTypes() {
		d.Subscribe(t, handler)
	}
}
