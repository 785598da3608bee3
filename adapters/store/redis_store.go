package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"
	"github.com/redis/go-redis/v9"
)

// setWalletScript sets the wallet field only while the challenge hash exists
var setWalletScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("HSET", KEYS[1], "wallet", ARGV[1])
return 1
`)

// RedisStore is a Redis implementation of the ChallengeStore interface.
// Each challenge is a hash expiring with the challenge TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a new Redis challenge store. A zero ttl disables expiry.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "gatekeeper:challenge:",
		ttl:    ttl,
	}
}

var _ ports.ChallengeStore = (*RedisStore)(nil)

func (s *RedisStore) key(userID int64) string {
	return s.prefix + strconv.FormatInt(userID, 10)
}

// Issue replaces any challenge of userID with a new one
func (s *RedisStore) Issue(ctx context.Context, userID int64) (*core.Challenge, error) {
	nonce, err := newNonce()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	challenge := &core.Challenge{
		UserID:   userID,
		Nonce:    nonce,
		IssuedAt: now,
	}
	if s.ttl > 0 {
		challenge.ExpiresAt = now.Add(s.ttl)
	}

	key := s.key(userID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "nonce", nonce, "issued_at", now.UnixMilli())
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}

	return challenge, nil
}

// Get returns the live challenge of userID
func (s *RedisStore) Get(ctx context.Context, userID int64) (*core.Challenge, error) {
	key := s.key(userID)

	var (
		fields *redis.MapStringStringCmd
		ttl    *redis.DurationCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		fields = pipe.HGetAll(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}

	values := fields.Val()
	nonce, ok := values["nonce"]
	if !ok {
		return nil, nil
	}

	challenge := &core.Challenge{
		UserID: userID,
		Nonce:  nonce,
		Wallet: values["wallet"],
	}
	if ms, err := strconv.ParseInt(values["issued_at"], 10, 64); err == nil {
		challenge.IssuedAt = time.UnixMilli(ms)
	}
	if remaining := ttl.Val(); remaining > 0 {
		challenge.ExpiresAt = time.Now().Add(remaining)
	}

	return challenge, nil
}

// SetPendingWallet attaches the claimed wallet to the live challenge
func (s *RedisStore) SetPendingWallet(ctx context.Context, userID int64, address string) error {
	set, err := setWalletScript.Run(ctx, s.client, []string{s.key(userID)}, address).Int()
	if err != nil {
		return fmt.Errorf("failed to store pending wallet: %w", err)
	}
	if set == 0 {
		return core.ErrChallengeMissing
	}
	return nil
}

// Clear removes the challenge and pending wallet of userID
func (s *RedisStore) Clear(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("failed to clear challenge: %w", err)
	}
	return nil
}
