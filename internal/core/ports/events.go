package ports

import (
	"context"
	"time"
)

// Event names published by the core.
const (
	EventSongIngested       = "song.ingested"
	EventSongDeleted        = "song.deleted"
	EventArrangementCreated = "arrangement.created"
	EventArrangementUpdated = "arrangement.updated"
	EventArrangementDeleted = "arrangement.deleted"
)

// Event is a fire-and-forget notification about a state change.
type Event struct {
	Type       string    `json:"type"`
	OwnerID    string    `json:"ownerId"`
	EntityID   string    `json:"entityId"`
	OccurredAt time.Time `json:"occurredAt"`
}

// EventPublisher delivers events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
}

// EventDispatcher queues events for asynchronous publishing. It must never
// block the caller.
type EventDispatcher interface {
	Dispatch(e Event)
}
