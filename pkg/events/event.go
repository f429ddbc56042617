package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is the contract for everything published on the lifecycle bus.
type Event interface {
	// EventType returns the unique code for this event (e.g., "SESSION_STARTED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the concrete carrier behind the lifecycle constructors.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Session lifecycle event codes.
const (
	TypeSessionStarted   = "SESSION_STARTED"
	TypeSessionCompleted = "SESSION_COMPLETED"
	TypeSessionFailed    = "SESSION_FAILED"
	TypeSessionDeleted   = "SESSION_DELETED"
)

func SessionStarted(id uuid.UUID, topic string) Event {
	return BaseEvent{
		Type: TypeSessionStarted,
		Data: map[string]interface{}{
			"session_id": id.String(),
			"topic":      topic,
		},
		OccurredAt: time.Now(),
	}
}

func SessionCompleted(id uuid.UUID) Event {
	return BaseEvent{
		Type: TypeSessionCompleted,
		Data: map[string]interface{}{
			"session_id": id.String(),
		},
		OccurredAt: time.Now(),
	}
}

func SessionFailed(id uuid.UUID, stage, detail string) Event {
	return BaseEvent{
		Type: TypeSessionFailed,
		Data: map[string]interface{}{
			"session_id": id.String(),
			"stage":      stage,
			"detail":     detail,
		},
		OccurredAt: time.Now(),
	}
}

func SessionDeleted(id uuid.UUID) Event {
	return BaseEvent{
		Type: TypeSessionDeleted,
		Data: map[string]interface{}{
			"session_id": id.String(),
		},
		OccurredAt: time.Now(),
	}
}
