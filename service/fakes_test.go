package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/layer-3/gatekeeper/core"
)

var errBoom = errors.New("boom")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testWallet(n int) string {
	return fmt.Sprintf("0x%064x", n)
}

// sign produces the only signature fakeOracle accepts for wallet over message
func sign(wallet, message string) string {
	return "sig:" + wallet + ":" + message
}

type fakeOracle struct {
	mu         sync.Mutex
	sufficient map[string]bool
	balanceErr map[string]error
	block      map[string]chan struct{}
	checks     map[string]int
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{
		sufficient: make(map[string]bool),
		balanceErr: make(map[string]error),
		block:      make(map[string]chan struct{}),
		checks:     make(map[string]int),
	}
}

func (o *fakeOracle) CheckBalance(ctx context.Context, wallet string) (bool, error) {
	o.mu.Lock()
	o.checks[wallet]++
	ok, err := o.sufficient[wallet], o.balanceErr[wallet]
	o.mu.Unlock()
	return ok, err
}

func (o *fakeOracle) VerifySignature(ctx context.Context, address, signature, message string) bool {
	o.mu.Lock()
	wait := o.block[address]
	o.mu.Unlock()
	if wait != nil {
		<-wait
	}
	return signature == sign(address, message)
}

func (o *fakeOracle) checkCount(wallet string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.checks[wallet]
}

type fakeRegistry struct {
	mu        sync.Mutex
	records   map[int64]core.MembershipRecord
	upserts   int
	upsertErr error
	pageErrAt map[int]error
	offsets   []int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		records:   make(map[int64]core.MembershipRecord),
		pageErrAt: make(map[int]error),
	}
}

func (r *fakeRegistry) Upsert(ctx context.Context, userID int64, wallet string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.upserts++
	r.records[userID] = core.MembershipRecord{UserID: userID, Wallet: wallet, JoinedAt: time.Now()}
	return nil
}

func (r *fakeRegistry) Page(ctx context.Context, limit, offset int) ([]core.MembershipRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offsets = append(r.offsets, offset)
	if err := r.pageErrAt[offset]; err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var page []core.MembershipRecord
	for i := offset; i < len(ids) && i < offset+limit; i++ {
		page = append(page, r.records[ids[i]])
	}
	return page, nil
}

func (r *fakeRegistry) get(userID int64) (core.MembershipRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[userID]
	return rec, ok
}

func (r *fakeRegistry) pageOffsets() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.offsets...)
}

type fakeIssuer struct {
	mu    sync.Mutex
	ttls  []time.Duration
	group []int64
	err   error
}

func (i *fakeIssuer) CreateSingleUseInvite(ctx context.Context, groupID int64, ttl time.Duration) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return "", i.err
	}
	i.ttls = append(i.ttls, ttl)
	i.group = append(i.group, groupID)
	return fmt.Sprintf("https://t.me/+invite%d", len(i.ttls)), nil
}

func (i *fakeIssuer) count() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.ttls)
}

type fakeRevoker struct {
	mu      sync.Mutex
	revoked []int64
	fail    map[int64]error
}

func (r *fakeRevoker) Revoke(ctx context.Context, groupID, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail[userID]; err != nil {
		return err
	}
	r.revoked = append(r.revoked, userID)
	return nil
}

func (r *fakeRevoker) revokedIDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := append([]int64(nil), r.revoked...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type fakeMessenger struct {
	mu       sync.Mutex
	messages map[int64][]string
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{messages: make(map[int64][]string)}
}

func (m *fakeMessenger) SendMessage(ctx context.Context, chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[chatID] = append(m.messages[chatID], text)
	return nil
}

func (m *fakeMessenger) last(chatID int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[chatID]
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

func (m *fakeMessenger) count(chatID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages[chatID])
}

type fakeEvents struct {
	mu       sync.Mutex
	verified []int64
	revoked  []int64
}

func (e *fakeEvents) PublishVerified(ctx context.Context, userID int64, wallet string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.verified = append(e.verified, userID)
	return nil
}

func (e *fakeEvents) PublishRevoked(ctx context.Context, userID int64, wallet string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.revoked = append(e.revoked, userID)
	return nil
}

type fakeLinks struct{}

func (fakeLinks) UserToToken(userID int64) (string, error) {
	return fmt.Sprintf("token-%d", userID), nil
}

func (fakeLinks) TokenToUser(token string) (int64, error) {
	var userID int64
	if _, err := fmt.Sscanf(token, "token-%d", &userID); err != nil {
		return 0, core.ErrInvalidToken
	}
	return userID, nil
}

// nonceFrom extracts the challenge from the signature prompt
func nonceFrom(prompt string) string {
	parts := strings.Split(prompt, "\n\n")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
