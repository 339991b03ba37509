package shared

import "context"

// EventHandler reacts to published domain events
type EventHandler interface {
	// Handle processes a single event. Errors are logged by the bus and
	// never fail the operation that produced the event.
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes returns the event types this handler wants.
	// An empty slice subscribes the handler to every event.
	EventTypes() []string
}

// EventSubscriber manages handler registrations
type EventSubscriber interface {
	// Subscribe registers a handler. With no explicit event types the
	// handler's own EventTypes decide what it receives.
	Subscribe(handler EventHandler, eventTypes ...string)
	// Unsubscribe removes a handler from every event type
	Unsubscribe(handler EventHandler)
}

// EventBus combines publishing and subscription with a lifecycle
type EventBus interface {
	EventPublisher
	EventSubscriber
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
