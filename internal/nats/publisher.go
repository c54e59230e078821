package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/fxgate/fxgate/internal/metering"
)

// publishTimeout bounds how long a charged request waits for the stream ack.
const publishTimeout = 2 * time.Second

// jetStreamPublisher is the part of jetstream.JetStream the Publisher uses.
type jetStreamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher publishes usage events to JetStream. It implements
// metering.UsageRecorder.
type Publisher struct {
	js jetStreamPublisher
}

func NewPublisher(js jetStreamPublisher) *Publisher {
	return &Publisher{js: js}
}

// RecordUsage publishes u on fxgate.events.usage. The event ID doubles as
// the JetStream message ID so retries are deduplicated.
func (p *Publisher) RecordUsage(ctx context.Context, u metering.Usage) error {
	event := UsageEvent{
		ID:               uuid.New(),
		UserID:           u.UserID,
		Username:         u.Username,
		Endpoint:         u.Endpoint,
		CreditsRemaining: u.CreditsRemaining,
		OccurredAt:       u.At,
	}
	return p.PublishUsageEvent(ctx, event)
}

func (p *Publisher) PublishUsageEvent(ctx context.Context, event UsageEvent) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return p.publish(ctx, SubjectUsageEvent, event, jetstream.WithMsgID(event.ID.String()))
}

func (p *Publisher) publish(ctx context.Context, subject string, data any, opts ...jetstream.PublishOpt) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	_, err = p.js.Publish(ctx, subject, payload, opts...)
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}
