package events

import "time"

// Event is the contract for lifecycle events published on the bus.
type Event interface {
	// EventType returns the unique code for this event (e.g., "refine.converged").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the map-backed implementation behind the refinery event
// constructors. Consumers should treat the payload as read-only.
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
