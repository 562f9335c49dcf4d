// Package events holds the in-process publish/subscribe primitives shared by
// the lead router and the index synchronizer.
package events

import (
	"context"
	"time"
)

// Event is anything published on a Bus. Subscribers are keyed by EventName.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent carries the publish timestamp. Embed it in concrete events.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent stamps an event with the current UTC time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now().UTC()}
}

type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc lets a plain function subscribe to a Bus.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error { return f(ctx, event) }

// Bus fans events out to subscribers. Publish runs handlers in the background
// and only logs their failures; PublishSync runs them inline and joins errors.
type Bus interface {
	Publish(ctx context.Context, event Event)
	PublishSync(ctx context.Context, event Event) error
	Subscribe(eventName string, handler Handler)
}
