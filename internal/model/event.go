package model

import (
	"time"

	"github.com/google/uuid"
)

type GuaranteeEventType string

const (
	EventStateChanged    GuaranteeEventType = "state_changed"
	EventReviewRequested GuaranteeEventType = "review_requested"
	EventDeleted         GuaranteeEventType = "deleted"
)

type GuaranteeEvent struct {
	ID          uuid.UUID          `json:"id"`
	Type        GuaranteeEventType `json:"event_type"`
	GuaranteeID uuid.UUID          `json:"guarantee_id"`
	Name        string             `json:"name"`
	FromState   GuaranteeState     `json:"from_state,omitempty"`
	ToState     GuaranteeState     `json:"to_state,omitempty"`
	Additional  map[string]any     `json:"additional,omitempty"`
	OccurredAt  time.Time          `json:"occurred_at"`
}
