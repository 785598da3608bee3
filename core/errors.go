package core

import "errors"

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidAddress      = errors.New("invalid wallet address")
	ErrChallengeMissing    = errors.New("no active challenge")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrInsufficientBalance = errors.New("insufficient token balance")
	ErrOracleFailure       = errors.New("oracle unavailable")
	ErrRegistryFailure     = errors.New("registry operation failed")
	ErrIssuanceFailure     = errors.New("access grant issuance failed")
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token has expired")
)
