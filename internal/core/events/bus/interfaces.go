package bus

import (
	"context"
	"time"
)

// EventBus is a thread-safe, in-process pub/sub bus. Persistence adapters
// publish one event per committed write, typed by the entity type name; the
// change listener subscribes once per entity type.
//
// Key characteristics:
// - Type-based fan-out: handlers subscribe by Event.Type() string.
// - Synchronous delivery: Publish calls handler callbacks in the caller goroutine.
// - Error aggregation: multiple handler errors are joined and returned from Publish.
//
// Handlers should be quick or offload heavy work to avoid blocking publishers.
type EventBus interface {
	// Publish delivers the event synchronously to all active subscribers of
	// event.Type(). If one or more handlers return an error, a joined error
	// is returned.
	Publish(ctx context.Context, event Event) error
	// PublishAsync publishes in a separate goroutine and returns a channel that
	// receives the joined error (or nil) when delivery completes.
	PublishAsync(ctx context.Context, event Event) <-chan error
	// Subscribe registers a handler for a specific event type.
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels the given Subscription. It is safe to call with nil.
	Unsubscribe(Subscription) error
	// Handlers reports how many active handlers listen to eventType.
	Handlers(eventType string) int
}

// Event is an immutable message transported by the EventBus.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
}

type (
	// EventHandler is invoked per delivered event.
	EventHandler func(ctx context.Context, event Event) error
)

// Subscription represents a registered handler bound to an event type.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	// Cancel de-registers the handler from the bus. Multiple calls are safe.
	Cancel() error
}
