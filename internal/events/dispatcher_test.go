package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcher_PublishesToSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var got []EventType
	d.Subscribe(EventSessionCleared, func(_ context.Context, e Event) error {
		got = append(got, e.Type)
		return errors.New("boom")
	})
	d.Subscribe(EventSessionCleared, func(_ context.Context, e Event) error {
		got = append(got, e.Type)
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventSessionCleared})
	assert.EqualError(t, err, "boom")
	assert.Equal(t, []EventType{EventSessionCleared, EventSessionCleared}, got)

	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventLoginFailed}))
}

func TestSubscribeAll(t *testing.T) {
	d := NewInMemoryDispatcher()
	count := 0
	SubscribeAll(d, func(context.Context, Event) error {
		count++
		return nil
	})

	for _, et := range SessionEventTypes() {
		_ = d.Publish(context.Background(), Event{Type: et})
	}
	assert.Equal(t, len(SessionEventTypes()), count)
}

func TestDispatcher_JoinsErrorsAndSurvivesPanics(t *testing.T) {
	d := NewInMemoryDispatcher()
	reached := false
	d.Subscribe(EventRefreshFailed, func(context.Context, Event) error { panic("nil map") })
	d.Subscribe(EventRefreshFailed, func(context.Context, Event) error { return errors.New("second") })
	d.Subscribe(EventRefreshFailed, func(context.Context, Event) error {
		reached = true
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventRefreshFailed})

	assert.True(t, reached)
	assert.ErrorContains(t, err, "handler panicked: nil map")
	assert.ErrorContains(t, err, "second")
}
