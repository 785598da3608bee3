package ports

import (
	"context"

	"github.com/layer-3/gatekeeper/core"
)

// Registry is the durable store of verified memberships
type Registry interface {
	// Upsert stores wallet as the verified wallet of userID, replacing any previous one
	Upsert(ctx context.Context, userID int64, wallet string) error

	// Page returns up to limit records starting at offset, in a stable order
	Page(ctx context.Context, limit, offset int) ([]core.MembershipRecord, error)
}
