package ports

import (
	"context"
	"time"
)

// Messenger delivers chat messages
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// AccessIssuer creates access grants to the private group
type AccessIssuer interface {
	// CreateSingleUseInvite returns an invite link usable once and valid for ttl
	CreateSingleUseInvite(ctx context.Context, groupID int64, ttl time.Duration) (string, error)
}

// AccessRevoker removes a user from the private group without blacklisting them
type AccessRevoker interface {
	Revoke(ctx context.Context, groupID, userID int64) error
}
