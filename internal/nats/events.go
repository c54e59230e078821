package nats

import (
	"time"

	"github.com/google/uuid"
)

// StreamEvents holds every event fxgate publishes.
const StreamEvents = "FXGATE_EVENTS"

const (
	SubjectEvents     = "fxgate.events.>"
	SubjectUsageEvent = "fxgate.events.usage"
)

// UsageEvent is published for every metered call that was charged.
type UsageEvent struct {
	ID               uuid.UUID `json:"id"`
	UserID           int64     `json:"user_id"`
	Username         string    `json:"username"`
	Endpoint         string    `json:"endpoint"`
	CreditsRemaining int       `json:"credits_remaining"`
	OccurredAt       time.Time `json:"occurred_at"`
}
