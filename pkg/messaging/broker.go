package messaging

import (
	"context"
	"time"
)

// Publisher defines the interface for publishing messages
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Close() error
}

// Event describes a change to a stored entity.
type Event struct {
	Type       string      `json:"type"`
	Entity     string      `json:"entity"`
	EntityID   int64       `json:"entity_id"`
	Payload    interface{} `json:"payload,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// NewEvent builds an event named "<entity>.<action>".
func NewEvent(entity, action string, id int64, payload interface{}) Event {
	return Event{
		Type:       entity + "." + action,
		Entity:     entity,
		EntityID:   id,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

// Noop discards every message. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, interface{}) error { return nil }
func (Noop) Close() error                                       { return nil }
