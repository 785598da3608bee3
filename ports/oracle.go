package ports

import "context"

// Oracle answers balance and signature questions about wallets
type Oracle interface {
	// CheckBalance reports whether wallet holds at least the configured minimum.
	// Fails with core.ErrOracleFailure when the backend cannot be reached.
	CheckBalance(ctx context.Context, wallet string) (bool, error)

	// VerifySignature reports whether signature over message recovers to address.
	// Any internal failure is reported as false.
	VerifySignature(ctx context.Context, address, signature, message string) bool
}
