package store

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const nonceBytes = 32

func newNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}
