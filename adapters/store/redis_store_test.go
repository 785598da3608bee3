package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/layer-3/gatekeeper/core"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, ttl), mr
}

func TestRedisStore_Lifecycle(t *testing.T) {
	s, _ := newTestRedisStore(t, 0)
	ctx := context.Background()

	got, err := s.Get(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, s.SetPendingWallet(ctx, 42, "0xabc"), core.ErrChallengeMissing)

	issued, err := s.Issue(ctx, 42)
	require.NoError(t, err)

	got, err = s.Get(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, issued.Nonce, got.Nonce)
	assert.Equal(t, core.StateAwaitingWallet, got.State())
	assert.True(t, got.ExpiresAt.IsZero())

	require.NoError(t, s.SetPendingWallet(ctx, 42, "0xabc"))
	got, err = s.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", got.Wallet)

	require.NoError(t, s.Clear(ctx, 42))
	got, err = s.Get(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_IssueOverwrites(t *testing.T) {
	s, _ := newTestRedisStore(t, 0)
	ctx := context.Background()

	first, err := s.Issue(ctx, 42)
	require.NoError(t, err)
	require.NoError(t, s.SetPendingWallet(ctx, 42, "0xabc"))

	second, err := s.Issue(ctx, 42)
	require.NoError(t, err)
	assert.NotEqual(t, first.Nonce, second.Nonce)

	got, err := s.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, second.Nonce, got.Nonce)
	assert.Empty(t, got.Wallet)
}

func TestRedisStore_Expiry(t *testing.T) {
	s, mr := newTestRedisStore(t, time.Minute)
	ctx := context.Background()

	_, err := s.Issue(ctx, 42)
	require.NoError(t, err)

	got, err := s.Get(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.ExpiresAt.IsZero())

	mr.FastForward(2 * time.Minute)

	got, err = s.Get(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, s.SetPendingWallet(ctx, 42, "0xabc"), core.ErrChallengeMissing)
}
