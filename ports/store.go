package ports

import (
	"context"

	"github.com/layer-3/gatekeeper/core"
)

// ChallengeStore holds at most one outstanding challenge per user.
// Lifecycle: Issue on start, SetPendingWallet after the wallet step, Clear on every terminal transition.
type ChallengeStore interface {
	// Issue generates a fresh nonce for userID, replacing any previous challenge and pending wallet
	Issue(ctx context.Context, userID int64) (*core.Challenge, error)

	// Get returns the live challenge for userID, or nil if there is none
	Get(ctx context.Context, userID int64) (*core.Challenge, error)

	// SetPendingWallet records the claimed wallet. Returns core.ErrChallengeMissing without a live challenge.
	SetPendingWallet(ctx context.Context, userID int64, address string) error

	// Clear removes the challenge and pending wallet
	Clear(ctx context.Context, userID int64) error
}
