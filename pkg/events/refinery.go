package events

import "time"

// Refinement lifecycle event types, used as NATS subject suffixes.
const (
	TypeSessionCreated  = "session.created"
	TypeSessionExpired  = "session.expired"
	TypeRefineConverged = "refine.converged"
)

func NewSessionCreated(sessionID string) BaseEvent {
	return BaseEvent{
		Type: TypeSessionCreated,
		Data: map[string]interface{}{
			"session_id": sessionID,
		},
		OccurredAt: time.Now(),
	}
}

func NewSessionExpired(sessionID string, idleFor time.Duration) BaseEvent {
	return BaseEvent{
		Type: TypeSessionExpired,
		Data: map[string]interface{}{
			"session_id":   sessionID,
			"idle_seconds": int64(idleFor.Seconds()),
		},
		OccurredAt: time.Now(),
	}
}

func NewRefineConverged(sessionID, companionKind, reason string, loops int, similarity float64) BaseEvent {
	return BaseEvent{
		Type: TypeRefineConverged,
		Data: map[string]interface{}{
			"session_id":     sessionID,
			"companion_kind": companionKind,
			"reason":         reason,
			"loops":          loops,
			"similarity":     similarity,
		},
		OccurredAt: time.Now(),
	}
}
