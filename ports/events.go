package ports

import "context"

// EventPublisher publishes membership events to other instances
type EventPublisher interface {
	PublishVerified(ctx context.Context, userID int64, wallet string) error
	PublishRevoked(ctx context.Context, userID int64, wallet string) error
}
