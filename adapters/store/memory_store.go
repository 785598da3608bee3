package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"
)

// MemoryStore is an in-memory implementation of the ChallengeStore interface.
// Its content is lost on restart; users then start the flow again.
type MemoryStore struct {
	challenges map[int64]core.Challenge
	ttl        time.Duration
	nowF       func() time.Time
	mu         sync.RWMutex
}

// NewMemoryStore creates a new in-memory challenge store. A zero ttl disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		challenges: make(map[int64]core.Challenge),
		ttl:        ttl,
		nowF:       time.Now,
	}
}

var _ ports.ChallengeStore = (*MemoryStore)(nil)

// Issue replaces any challenge of userID with a new one
func (s *MemoryStore) Issue(ctx context.Context, userID int64) (*core.Challenge, error) {
	nonce, err := newNonce()
	if err != nil {
		return nil, err
	}

	now := s.nowF()
	challenge := core.Challenge{
		UserID:   userID,
		Nonce:    nonce,
		IssuedAt: now,
	}
	if s.ttl > 0 {
		challenge.ExpiresAt = now.Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[userID] = challenge

	return &challenge, nil
}

// Get returns the live challenge of userID
func (s *MemoryStore) Get(ctx context.Context, userID int64) (*core.Challenge, error) {
	s.mu.RLock()
	challenge, ok := s.challenges[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if s.expired(challenge) {
		s.mu.Lock()
		// Only delete if nobody reissued in between
		if current, ok := s.challenges[userID]; ok && current.Nonce == challenge.Nonce {
			delete(s.challenges, userID)
		}
		s.mu.Unlock()
		return nil, nil
	}

	return &challenge, nil
}

// SetPendingWallet attaches the claimed wallet to the live challenge
func (s *MemoryStore) SetPendingWallet(ctx context.Context, userID int64, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[userID]
	if !ok || s.expired(challenge) {
		delete(s.challenges, userID)
		return core.ErrChallengeMissing
	}

	challenge.Wallet = address
	s.challenges[userID] = challenge
	return nil
}

// Clear removes the challenge and pending wallet of userID
func (s *MemoryStore) Clear(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.challenges, userID)
	return nil
}

// Len returns the number of stored challenges, expired ones included
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.challenges)
}

func (s *MemoryStore) expired(c core.Challenge) bool {
	return !c.ExpiresAt.IsZero() && !c.ExpiresAt.After(s.nowF())
}
