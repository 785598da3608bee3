package core

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Balance is an unsigned 256-bit token amount in the token's smallest unit.
// Token contracts return it as two 128-bit limbs combined as low + high·2^128.
type Balance struct {
	v uint256.Int
}

// BalanceFromLimbs combines two 128-bit limbs into a Balance.
func BalanceFromLimbs(low, high *uint256.Int) (Balance, error) {
	if low.BitLen() > 128 || high.BitLen() > 128 {
		return Balance{}, fmt.Errorf("limb exceeds 128 bits: %w", ErrInvalidInput)
	}
	var b Balance
	b.v.Lsh(high, 128)
	b.v.Add(&b.v, low)
	return b, nil
}

// BalanceFromWord decodes a 32-byte big-endian word whose first half is the high limb.
func BalanceFromWord(word []byte) (Balance, error) {
	if len(word) != 32 {
		return Balance{}, fmt.Errorf("balance word must be 32 bytes, got %d: %w", len(word), ErrInvalidInput)
	}
	high := new(uint256.Int).SetBytes(word[:16])
	low := new(uint256.Int).SetBytes(word[16:])
	return BalanceFromLimbs(low, high)
}

// ParseBalance parses a base-10 amount in the smallest unit.
func ParseBalance(s string) (Balance, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Balance{}, fmt.Errorf("parse balance %q: %w", s, err)
	}
	return Balance{v: *v}, nil
}

// NewBalance returns a Balance holding n.
func NewBalance(n uint64) Balance {
	return Balance{v: *uint256.NewInt(n)}
}

// Cmp compares b and o and returns -1, 0 or +1.
func (b Balance) Cmp(o Balance) int {
	return b.v.Cmp(&o.v)
}

// AtLeast reports whether b >= min.
func (b Balance) AtLeast(min Balance) bool {
	return b.Cmp(min) >= 0
}

// String returns the amount in base 10.
func (b Balance) String() string {
	return b.v.Dec()
}

// Tokens formats the amount in whole tokens for a token with the given decimals.
func (b Balance) Tokens(decimals int32) string {
	return decimal.NewFromBigInt(b.v.ToBig(), -decimals).String()
}
