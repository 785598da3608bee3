package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"
)

// DefaultInviteTTL is how long a single-use invite stays valid
const DefaultInviteTTL = 24 * time.Hour

// VerificationConfig holds the group and policy settings of the verification flow
type VerificationConfig struct {
	GroupID        int64
	InviteTTL      time.Duration
	RequiredAmount string // human readable minimum holding, e.g. "1 STRK"
	LinkBaseURL    string // frontend page for the verify-via-link flow; empty disables it
}

// VerificationService drives users through challenge, wallet and signature steps.
// Steps of the same user are serialized; different users never wait on each other.
type VerificationService struct {
	challenges ports.ChallengeStore
	oracle     ports.Oracle
	registry   ports.Registry
	issuer     ports.AccessIssuer
	messenger  ports.Messenger
	events     ports.EventPublisher
	links      ports.LinkTokenizer

	cfg    VerificationConfig
	locks  *keyedMutex
	nowF   func() time.Time
	logger *slog.Logger
}

// Option configures optional collaborators of the VerificationService
type Option func(*VerificationService)

// WithEvents publishes a verified event after every successful verification
func WithEvents(events ports.EventPublisher) Option {
	return func(s *VerificationService) { s.events = events }
}

// WithLinks enables the verify-via-link flow
func WithLinks(links ports.LinkTokenizer) Option {
	return func(s *VerificationService) { s.links = links }
}

// NewVerificationService creates a new verification service
func NewVerificationService(
	challenges ports.ChallengeStore,
	oracle ports.Oracle,
	registry ports.Registry,
	issuer ports.AccessIssuer,
	messenger ports.Messenger,
	cfg VerificationConfig,
	logger *slog.Logger,
	opts ...Option,
) *VerificationService {
	if cfg.InviteTTL <= 0 {
		cfg.InviteTTL = DefaultInviteTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &VerificationService{
		challenges: challenges,
		oracle:     oracle,
		registry:   registry,
		issuer:     issuer,
		messenger:  messenger,
		cfg:        cfg,
		locks:      newKeyedMutex(),
		nowF:       time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the flow state of userID
func (s *VerificationService) State(ctx context.Context, userID int64) (core.UserState, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	challenge, err := s.challenges.Get(ctx, userID)
	if err != nil {
		return core.StateIdle, err
	}
	return challenge.State(), nil
}

// HandleStart greets the user
func (s *VerificationService) HandleStart(ctx context.Context, userID, chatID int64) {
	s.send(ctx, userID, chatID, msgWelcome)
}

// HandleJoin issues a new challenge, superseding any previous one, and asks for the wallet
func (s *VerificationService) HandleJoin(ctx context.Context, userID, chatID int64) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	if _, err := s.challenges.Issue(ctx, userID); err != nil {
		s.logger.Error("failed to issue challenge", "user_id", userID, "error", err)
		s.send(ctx, userID, chatID, msgRetryLater)
		return
	}

	s.send(ctx, userID, chatID, msgJoin)
}

// HandleLink issues a new challenge and replies with a link to the frontend signing page
func (s *VerificationService) HandleLink(ctx context.Context, userID, chatID int64) {
	if s.links == nil || s.cfg.LinkBaseURL == "" {
		s.send(ctx, userID, chatID, msgLinkUnavailable)
		return
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	link, err := s.verifyLink(ctx, userID)
	if err != nil {
		s.logger.Error("failed to create verify link", "user_id", userID, "error", err)
		s.clear(ctx, userID)
		s.send(ctx, userID, chatID, msgRetryLater)
		return
	}

	s.send(ctx, userID, chatID, msgVerifyLink(link))
}

func (s *VerificationService) verifyLink(ctx context.Context, userID int64) (string, error) {
	if _, err := s.challenges.Issue(ctx, userID); err != nil {
		return "", err
	}
	token, err := s.links.UserToToken(userID)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(s.cfg.LinkBaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid link base url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// HandleMessage routes free text to the step the user is waiting on.
// Text from idle users is ignored.
func (s *VerificationService) HandleMessage(ctx context.Context, userID, chatID int64, text string) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	challenge, err := s.challenges.Get(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load challenge", "user_id", userID, "error", err)
		s.clear(ctx, userID)
		s.send(ctx, userID, chatID, msgRetryLater)
		return
	}

	switch challenge.State() {
	case core.StateAwaitingWallet:
		s.submitWallet(ctx, challenge, chatID, text)
	case core.StateAwaitingSignature:
		sub := core.SignatureSubmission{UserID: userID, ChatID: chatID, Signature: text}
		result, err := s.submitSignature(ctx, challenge, sub)
		if err != nil {
			s.send(ctx, userID, chatID, s.userMessage(err))
			return
		}
		s.send(ctx, userID, chatID, msgVerified(result.InviteLink, s.cfg.InviteTTL))
	}
}

func (s *VerificationService) submitWallet(ctx context.Context, challenge *core.Challenge, chatID int64, text string) {
	userID := challenge.UserID

	wallet, err := core.NormalizeAddress(text)
	if err != nil {
		s.send(ctx, userID, chatID, msgInvalidAddress)
		return
	}

	if err := s.challenges.SetPendingWallet(ctx, userID, wallet); err != nil {
		s.logger.Error("failed to store pending wallet", "user_id", userID, "error", err)
		s.clear(ctx, userID)
		s.send(ctx, userID, chatID, s.userMessage(err))
		return
	}

	if err := s.messenger.SendMessage(ctx, chatID, msgSignPrompt(challenge.Nonce)); err != nil {
		// The user never saw the nonce, so the flow cannot continue
		s.logger.Error("failed to send signature prompt", "user_id", userID, "error", err)
		s.clear(ctx, userID)
	}
}

// SubmitSignature runs the signature step for a transport-agnostic submission.
// A non-empty sub.Wallet replaces the pending wallet, as in the verify-via-link flow.
func (s *VerificationService) SubmitSignature(ctx context.Context, sub core.SignatureSubmission) (core.VerifyResult, error) {
	unlock := s.locks.Lock(sub.UserID)
	defer unlock()

	challenge, err := s.challenges.Get(ctx, sub.UserID)
	if err != nil {
		s.clear(ctx, sub.UserID)
		return core.VerifyResult{}, fmt.Errorf("load challenge: %w", err)
	}
	if challenge == nil {
		return core.VerifyResult{}, core.ErrChallengeMissing
	}

	if sub.Wallet != "" {
		wallet, err := core.NormalizeAddress(sub.Wallet)
		if err != nil {
			return core.VerifyResult{}, err
		}
		if err := s.challenges.SetPendingWallet(ctx, sub.UserID, wallet); err != nil {
			s.clear(ctx, sub.UserID)
			return core.VerifyResult{}, err
		}
		challenge.Wallet = wallet
	}

	return s.submitSignature(ctx, challenge, sub)
}

// submitSignature is the terminal step. The caller holds the user's lock.
// The challenge is cleared on every path except malformed input.
func (s *VerificationService) submitSignature(ctx context.Context, challenge *core.Challenge, sub core.SignatureSubmission) (core.VerifyResult, error) {
	userID := challenge.UserID
	signature := strings.TrimSpace(sub.Signature)
	if signature == "" {
		return core.VerifyResult{}, fmt.Errorf("empty signature: %w", core.ErrInvalidInput)
	}

	defer s.clear(ctx, userID)

	if challenge.Nonce == "" || challenge.Wallet == "" {
		return core.VerifyResult{}, core.ErrChallengeMissing
	}
	wallet := challenge.Wallet

	if !s.oracle.VerifySignature(ctx, wallet, signature, challenge.Nonce) {
		s.logger.Info("signature rejected", "user_id", userID, "wallet", wallet)
		return core.VerifyResult{}, core.ErrInvalidSignature
	}

	ok, err := s.oracle.CheckBalance(ctx, wallet)
	if err != nil {
		s.logger.Error("balance check failed", "user_id", userID, "wallet", wallet, "error", err)
		return core.VerifyResult{}, wrapAs(err, core.ErrOracleFailure)
	}
	if !ok {
		s.logger.Info("insufficient balance", "user_id", userID, "wallet", wallet)
		return core.VerifyResult{}, core.ErrInsufficientBalance
	}

	if err := s.registry.Upsert(ctx, userID, wallet); err != nil {
		s.logger.Error("failed to save membership", "user_id", userID, "wallet", wallet, "error", err)
		return core.VerifyResult{}, wrapAs(err, core.ErrRegistryFailure)
	}

	link, err := s.issuer.CreateSingleUseInvite(ctx, s.cfg.GroupID, s.cfg.InviteTTL)
	if err != nil {
		s.logger.Error("failed to create invite link", "user_id", userID, "wallet", wallet, "error", err)
		return core.VerifyResult{}, wrapAs(err, core.ErrIssuanceFailure)
	}

	s.logger.Info("membership verified", "user_id", userID, "wallet", wallet)

	if s.events != nil {
		if err := s.events.PublishVerified(ctx, userID, wallet); err != nil {
			s.logger.Warn("failed to publish verified event", "user_id", userID, "error", err)
		}
	}

	return core.VerifyResult{
		UserID:     userID,
		Wallet:     wallet,
		InviteLink: link,
		ExpiresAt:  s.nowF().Add(s.cfg.InviteTTL),
	}, nil
}

// VerifyLink is the HTTP variant of the signature step. The invite is returned to
// the caller and also sent to the user's private chat.
func (s *VerificationService) VerifyLink(ctx context.Context, sub core.SignatureSubmission) (core.VerifyResult, error) {
	if sub.Wallet == "" {
		return core.VerifyResult{}, fmt.Errorf("wallet is required: %w", core.ErrInvalidInput)
	}

	result, err := s.SubmitSignature(ctx, sub)
	if err != nil {
		return result, err
	}

	chatID := sub.ChatID
	if chatID == 0 {
		chatID = sub.UserID
	}
	if err := s.messenger.SendMessage(ctx, chatID, msgVerified(result.InviteLink, s.cfg.InviteTTL)); err != nil {
		s.logger.Warn("failed to deliver invite to chat", "user_id", sub.UserID, "error", err)
	}

	return result, nil
}

// Challenge returns the live challenge nonce of userID, issuing one if there is none
func (s *VerificationService) Challenge(ctx context.Context, userID int64) (string, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	challenge, err := s.challenges.Get(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load challenge: %w", err)
	}
	if challenge == nil {
		if challenge, err = s.challenges.Issue(ctx, userID); err != nil {
			return "", fmt.Errorf("issue challenge: %w", err)
		}
	}

	return challenge.Nonce, nil
}

// ResolveLink validates a link token and returns its user with the live challenge
func (s *VerificationService) ResolveLink(ctx context.Context, token string) (int64, string, error) {
	if s.links == nil {
		return 0, "", core.ErrInvalidToken
	}

	userID, err := s.links.TokenToUser(token)
	if err != nil {
		return 0, "", err
	}

	nonce, err := s.Challenge(ctx, userID)
	if err != nil {
		return 0, "", err
	}
	return userID, nonce, nil
}

func (s *VerificationService) userMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidSignature):
		return msgInvalidSignature
	case errors.Is(err, core.ErrInsufficientBalance):
		return msgShortfall(s.cfg.RequiredAmount)
	case errors.Is(err, core.ErrIssuanceFailure):
		return msgIssuanceFailed
	case errors.Is(err, core.ErrChallengeMissing):
		return msgRestart
	case errors.Is(err, core.ErrInvalidAddress):
		return msgInvalidAddress
	default:
		return msgRetryLater
	}
}

func (s *VerificationService) clear(ctx context.Context, userID int64) {
	if err := s.challenges.Clear(context.WithoutCancel(ctx), userID); err != nil {
		s.logger.Error("failed to clear challenge", "user_id", userID, "error", err)
	}
}

func (s *VerificationService) send(ctx context.Context, userID, chatID int64, text string) {
	if err := s.messenger.SendMessage(ctx, chatID, text); err != nil {
		s.logger.Error("failed to send message", "user_id", userID, "chat_id", chatID, "error", err)
	}
}

// wrapAs tags err with kind unless it already carries it
func wrapAs(err, kind error) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
