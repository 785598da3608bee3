package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/layer-3/gatekeeper/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_IssueOverwrites(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	first, err := s.Issue(ctx, 42)
	require.NoError(t, err)
	require.NoError(t, s.SetPendingWallet(ctx, 42, "0xabc"))

	second, err := s.Issue(ctx, 42)
	require.NoError(t, err)
	assert.NotEqual(t, first.Nonce, second.Nonce)
	assert.Len(t, second.Nonce, 64)

	got, err := s.Get(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.Nonce, got.Nonce)
	assert.Empty(t, got.Wallet, "reissue must drop the pending wallet")
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore(0)

	got, err := s.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_SetPendingWallet(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	err := s.SetPendingWallet(ctx, 42, "0xabc")
	assert.ErrorIs(t, err, core.ErrChallengeMissing)

	_, err = s.Issue(ctx, 42)
	require.NoError(t, err)
	require.NoError(t, s.SetPendingWallet(ctx, 42, "0xabc"))

	got, err := s.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", got.Wallet)
	assert.Equal(t, core.StateAwaitingSignature, got.State())
}

func TestMemoryStore_Clear(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	_, err := s.Issue(ctx, 42)
	require.NoError(t, err)
	_, err = s.Issue(ctx, 43)
	require.NoError(t, err)

	require.NoError(t, s.Clear(ctx, 42))

	got, err := s.Get(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, got)

	other, err := s.Get(ctx, 43)
	require.NoError(t, err)
	assert.NotNil(t, other)
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore(5 * time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.nowF = func() time.Time { return now }
	ctx := context.Background()

	issued, err := s.Issue(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, now.Add(5*time.Minute), issued.ExpiresAt)

	now = now.Add(5 * time.Minute)

	got, err := s.Get(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 0, s.Len())

	_, err = s.Issue(ctx, 42)
	require.NoError(t, err)
	now = now.Add(10 * time.Minute)
	assert.ErrorIs(t, s.SetPendingWallet(ctx, 42, "0xabc"), core.ErrChallengeMissing)
}

func TestMemoryStore_ConcurrentUsers(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := int64(0); i < 50; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := s.Issue(ctx, userID)
			assert.NoError(t, err)
			assert.NoError(t, s.SetPendingWallet(ctx, userID, "0xabc"))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())
}
