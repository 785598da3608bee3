package core

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalanceFromLimbs(t *testing.T) {
	t.Run("low only", func(t *testing.T) {
		b, err := BalanceFromLimbs(uint256.NewInt(42), uint256.NewInt(0))
		require.NoError(t, err)
		assert.Equal(t, "42", b.String())
	})

	t.Run("high limb shifts by 128 bits", func(t *testing.T) {
		b, err := BalanceFromLimbs(uint256.NewInt(1), uint256.NewInt(1))
		require.NoError(t, err)
		// 2^128 + 1
		assert.Equal(t, "340282366920938463463374607431768211457", b.String())
	})

	t.Run("oversized limb", func(t *testing.T) {
		low := new(uint256.Int).Lsh(uint256.NewInt(1), 128)
		_, err := BalanceFromLimbs(low, uint256.NewInt(0))
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestBalanceFromWord(t *testing.T) {
	word := make([]byte, 32)
	word[15] = 1 // high = 1
	word[31] = 2 // low = 2
	b, err := BalanceFromWord(word)
	require.NoError(t, err)
	assert.Equal(t, "340282366920938463463374607431768211458", b.String())

	_, err = BalanceFromWord(word[:31])
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBalanceComparison(t *testing.T) {
	min, err := ParseBalance("1000000000000000000")
	require.NoError(t, err)

	enough, err := ParseBalance("2000000000000000000")
	require.NoError(t, err)
	short, err := ParseBalance("500000000000000000")
	require.NoError(t, err)

	assert.True(t, enough.AtLeast(min))
	assert.True(t, min.AtLeast(min))
	assert.False(t, short.AtLeast(min))
	assert.Equal(t, -1, short.Cmp(min))
}

func TestParseBalanceRejectsGarbage(t *testing.T) {
	_, err := ParseBalance("1e18")
	assert.Error(t, err)
	_, err = ParseBalance("-5")
	assert.Error(t, err)
}

func TestBalanceTokens(t *testing.T) {
	b, err := ParseBalance("1500000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "1.5", b.Tokens(18))
	assert.Equal(t, "1", NewBalance(1_000_000).Tokens(6))
}
