package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

type testEvent struct {
	BaseEvent
}

func (testEvent) EventName() string { return "test.event" }

func TestPublishSyncRunsHandlersInOrder(t *testing.T) {
	bus := NewInMemoryBus(nil)
	var order []int
	bus.Subscribe("test.event", HandlerFunc(func(context.Context, Event) error {
		order = append(order, 1)
		return nil
	}))
	bus.Subscribe("test.event", HandlerFunc(func(context.Context, Event) error {
		order = append(order, 2)
		return nil
	}))

	if err := bus.PublishSync(context.Background(), testEvent{BaseEvent: NewBaseEvent()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected handlers in registration order, got %v", order)
	}
}

func TestPublishSyncJoinsErrorsAndRecoversPanics(t *testing.T) {
	bus := NewInMemoryBus(nil)
	sentinel := errors.New("boom")
	bus.Subscribe("test.event", HandlerFunc(func(context.Context, Event) error { return sentinel }))
	bus.Subscribe("test.event", HandlerFunc(func(context.Context, Event) error { panic("bad handler") }))

	err := bus.PublishSync(context.Background(), testEvent{})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected joined error to contain sentinel, got %v", err)
	}
}

func TestPublishIsAsynchronous(t *testing.T) {
	bus := NewInMemoryBus(nil)
	var calls atomic.Int32
	for i := 0; i < 3; i++ {
		bus.Subscribe("test.event", HandlerFunc(func(context.Context, Event) error {
			calls.Add(1)
			return nil
		}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	bus.Publish(ctx, testEvent{})
	cancel()
	bus.Wait()

	if calls.Load() != 3 {
		t.Fatalf("expected 3 handler calls, got %d", calls.Load())
	}
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	bus := NewInMemoryBus(nil)
	bus.Publish(context.Background(), testEvent{})
	bus.Wait()
}
