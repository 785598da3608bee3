// Package oracle answers balance and signature questions against an EVM chain.
//
// Wallet addresses are 32-byte words. An EVM account is the word holding the
// 20-byte address left-padded with zeros, the same layout the ABI uses.
package oracle

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"
)

const balanceOfABI = `[{
	"inputs": [{"name": "account", "type": "address"}],
	"name": "balanceOf",
	"outputs": [{"name": "balance", "type": "uint256"}],
	"stateMutability": "view",
	"type": "function"
}]`

// ContractCaller performs read-only contract calls. *ethclient.Client implements it.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// EVMOracle implements the Oracle interface on top of an ERC-20 token contract
type EVMOracle struct {
	caller     ContractCaller
	token      common.Address
	minBalance core.Balance
	tokenABI   abi.ABI
	logger     *slog.Logger
}

var _ ports.Oracle = (*EVMOracle)(nil)

// NewEVMOracle creates an oracle checking balances of token against minBalance
func NewEVMOracle(caller ContractCaller, token common.Address, minBalance core.Balance, logger *slog.Logger) (*EVMOracle, error) {
	parsed, err := abi.JSON(strings.NewReader(balanceOfABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token abi: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &EVMOracle{
		caller:     caller,
		token:      token,
		minBalance: minBalance,
		tokenABI:   parsed,
		logger:     logger,
	}, nil
}

// MinBalance returns the configured threshold
func (o *EVMOracle) MinBalance() core.Balance {
	return o.minBalance
}

// Balance reads the token balance of wallet at the latest block
func (o *EVMOracle) Balance(ctx context.Context, wallet string) (core.Balance, error) {
	account, err := walletAccount(wallet)
	if err != nil {
		return core.Balance{}, err
	}

	data, err := o.tokenABI.Pack("balanceOf", account)
	if err != nil {
		return core.Balance{}, fmt.Errorf("failed to pack balanceOf: %w", err)
	}

	out, err := o.caller.CallContract(ctx, ethereum.CallMsg{To: &o.token, Data: data}, nil)
	if err != nil {
		return core.Balance{}, fmt.Errorf("balanceOf %s: %w: %w", wallet, core.ErrOracleFailure, err)
	}

	balance, err := core.BalanceFromWord(out)
	if err != nil {
		return core.Balance{}, fmt.Errorf("balanceOf %s: %w: %w", wallet, core.ErrOracleFailure, err)
	}

	return balance, nil
}

// CheckBalance reports whether wallet holds at least the minimum balance
func (o *EVMOracle) CheckBalance(ctx context.Context, wallet string) (bool, error) {
	balance, err := o.Balance(ctx, wallet)
	if err != nil {
		return false, err
	}
	return balance.AtLeast(o.minBalance), nil
}

// VerifySignature checks a personal_sign signature of message against address.
// Failures of any kind report false.
func (o *EVMOracle) VerifySignature(ctx context.Context, address, signature, message string) bool {
	expected, err := walletAccount(address)
	if err != nil {
		return false
	}

	sigHex := strings.TrimSpace(signature)
	if !strings.HasPrefix(sigHex, "0x") && !strings.HasPrefix(sigHex, "0X") {
		sigHex = "0x" + sigHex
	}
	sig, err := hexutil.Decode(sigHex)
	if err != nil || len(sig) != crypto.SignatureLength {
		return false
	}

	// Wallets produce v as 27/28, SigToPub wants 0/1
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		o.logger.Debug("signature recovery failed", "wallet", address, "error", err)
		return false
	}

	return crypto.PubkeyToAddress(*pub) == expected
}

// walletAccount maps a 32-byte wallet word to an EVM account
func walletAccount(wallet string) (common.Address, error) {
	normalized, err := core.NormalizeAddress(wallet)
	if err != nil {
		return common.Address{}, err
	}

	word, err := hex.DecodeString(normalized[2:])
	if err != nil {
		return common.Address{}, core.ErrInvalidAddress
	}
	if !bytes.Equal(word[:12], make([]byte, 12)) {
		return common.Address{}, fmt.Errorf("wallet is not an EVM account: %w", core.ErrInvalidAddress)
	}

	return common.BytesToAddress(word[12:]), nil
}

// WalletFromAccount renders an EVM account as a 32-byte wallet address
func WalletFromAccount(account common.Address) string {
	return "0x" + strings.Repeat("0", 24) + hex.EncodeToString(account.Bytes())
}
