package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/layer-3/gatekeeper/ports"
)

const (
	// TopicVerified receives an event for every successful verification
	TopicVerified = "gatekeeper.member.verified"

	// TopicRevoked receives an event for every revoked membership
	TopicRevoked = "gatekeeper.member.revoked"
)

// MemberEvent represents a membership change
type MemberEvent struct {
	UserID     int64     `json:"user_id"`
	Wallet     string    `json:"wallet"`
	OccurredAt time.Time `json:"occurred_at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	nowF      func() time.Time
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		nowF:      time.Now,
	}
}

var _ ports.EventPublisher = (*WatermillPublisher)(nil)

// PublishVerified publishes a verified event
func (p *WatermillPublisher) PublishVerified(ctx context.Context, userID int64, wallet string) error {
	return p.publish(ctx, TopicVerified, userID, wallet)
}

// PublishRevoked publishes a revoked event
func (p *WatermillPublisher) PublishRevoked(ctx context.Context, userID int64, wallet string) error {
	return p.publish(ctx, TopicRevoked, userID, wallet)
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, userID int64, wallet string) error {
	event := MemberEvent{
		UserID:     userID,
		Wallet:     wallet,
		OccurredAt: p.nowF().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Close closes the underlying publisher
func (p *WatermillPublisher) Close() error {
	return p.publisher.Close()
}
