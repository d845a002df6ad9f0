// Package eventbus carries definition lifecycle events (draft saved, published) from the
// authoring sessions to whoever wants to react to a new definition version.
package eventbus

import (
	"context"

	"github.com/dukex/stageflow/pkg/events"
)

// Event is a definition lifecycle event such as events.DefinitionPublished.
type Event interface {
	GetType() events.EventType
}

// EventPublisher sends lifecycle events. The key is the definition's group id, so every
// version of one group lands on the same partition and keeps its order.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber routes received events to one handler per event type.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives a pointer to the decoded event, *events.DefinitionDraftSaved or
// *events.DefinitionPublished. Returning an error nacks the message for redelivery.
type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
