package models

import "time"

type EventType string

const (
	EventSaved      EventType = "saved"
	EventDispatched EventType = "dispatched"
	EventCallback   EventType = "worker_callback"
	EventStatus     EventType = "status_changed"
)

// GenerationEvent is one entry in the per-CV audit trail (Mongo). The trail
// is append-only; nothing in the request path depends on it.
type GenerationEvent struct {
	EventID   string         `bson:"event_id" json:"event_id"`
	CVID      string         `bson:"cv_id" json:"cv_id"`
	UserID    string         `bson:"user_id" json:"user_id"`
	Type      EventType      `bson:"type" json:"type"`
	Status    CVStatus       `bson:"status,omitempty" json:"status,omitempty"`
	Detail    string         `bson:"detail,omitempty" json:"detail,omitempty"`
	Payload   map[string]any `bson:"payload,omitempty" json:"payload,omitempty"`
	CreatedAt time.Time      `bson:"created_at" json:"created_at"`
}
