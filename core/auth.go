package core

import (
	"fmt"
	"strings"
	"time"
)

// AddressLength is the length of a wallet address including the 0x prefix.
const AddressLength = 66

// UserState is the position of a user in the verification flow
type UserState int

const (
	StateIdle UserState = iota
	StateAwaitingWallet
	StateAwaitingSignature
)

func (s UserState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAwaitingWallet:
		return "AWAITING_WALLET"
	case StateAwaitingSignature:
		return "AWAITING_SIGNATURE"
	default:
		return fmt.Sprintf("UserState(%d)", int(s))
	}
}

// Challenge represents an outstanding verification challenge
type Challenge struct {
	UserID    int64     // Chat user the challenge belongs to
	Nonce     string    // Hex encoded random nonce to be signed
	Wallet    string    // Claimed wallet address, empty until submitted
	IssuedAt  time.Time // When the challenge was created
	ExpiresAt time.Time // Zero when the challenge does not expire
}

// State derives the flow state from the challenge. A nil challenge is IDLE.
func (c *Challenge) State() UserState {
	switch {
	case c == nil:
		return StateIdle
	case c.Wallet == "":
		return StateAwaitingWallet
	default:
		return StateAwaitingSignature
	}
}

// MembershipRecord links a verified user to the wallet that passed signature verification
type MembershipRecord struct {
	UserID   int64
	Wallet   string
	JoinedAt time.Time
}

// SignatureSubmission is the transport-agnostic input of the signature step.
// Wallet is empty for the chat flow, where the pending wallet is used instead.
type SignatureSubmission struct {
	UserID    int64
	ChatID    int64
	Wallet    string
	Signature string
}

// VerifyResult is returned after a successful verification
type VerifyResult struct {
	UserID     int64
	Wallet     string
	InviteLink string
	ExpiresAt  time.Time
}

// NormalizeAddress trims and lowercases a wallet address and checks its syntax:
// a 0x prefix followed by 64 hex digits.
func NormalizeAddress(raw string) (string, error) {
	addr := strings.ToLower(strings.TrimSpace(raw))
	if len(addr) != AddressLength || !strings.HasPrefix(addr, "0x") {
		return "", ErrInvalidAddress
	}
	for _, r := range addr[2:] {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return "", ErrInvalidAddress
		}
	}
	return addr, nil
}
