// Package config loads and validates gatekeeper configuration from the environment and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/layer-3/gatekeeper/core"
	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// TelegramBotToken authenticates the bot against the Bot API.
	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	// TelegramGroupID is the private group access is granted to.
	TelegramGroupID int64 `mapstructure:"TELEGRAM_GROUP_ID"`

	// HTTPAddr is the address of the verify-via-link API.
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// FrontendURL is the origin allowed by CORS.
	FrontendURL string `mapstructure:"FRONTEND_URL"`
	// LinkPath is appended to FrontendURL to build verify links.
	LinkPath string `mapstructure:"LINK_PATH"`
	// LinkSigningKey is a PEM EC P-256 key for link tokens; empty generates one per process.
	LinkSigningKey string `mapstructure:"LINK_SIGNING_KEY"`
	LinkTTL        string `mapstructure:"LINK_TTL"`

	// DatabaseURL is a SQLite path or a postgres:// DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisURL enables the Redis challenge store and Redis Streams events when set.
	RedisURL string `mapstructure:"REDIS_URL"`

	EthRPCURL     string `mapstructure:"ETH_RPC_URL"`
	TokenAddress  string `mapstructure:"TOKEN_ADDRESS"`
	TokenSymbol   string `mapstructure:"TOKEN_SYMBOL"`
	TokenDecimals int32  `mapstructure:"TOKEN_DECIMALS"`
	// MinBalance is the required holding in the token's smallest unit, base 10.
	MinBalance string `mapstructure:"MIN_BALANCE"`

	InviteTTL    string `mapstructure:"INVITE_TTL"`
	ChallengeTTL string `mapstructure:"CHALLENGE_TTL"`

	ScanInterval    string `mapstructure:"SCAN_INTERVAL"`
	ScanBatchSize   int    `mapstructure:"SCAN_BATCH_SIZE"`
	ScanMaxBatches  int    `mapstructure:"SCAN_MAX_BATCHES"`
	ScanParallelism int    `mapstructure:"SCAN_PARALLELISM"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("TELEGRAM_GROUP_ID", 0)
	v.SetDefault("HTTP_ADDR", ":3000")
	v.SetDefault("FRONTEND_URL", "")
	v.SetDefault("LINK_PATH", "/verify")
	v.SetDefault("LINK_SIGNING_KEY", "")
	v.SetDefault("LINK_TTL", "30m")
	v.SetDefault("DATABASE_URL", "gatekeeper.db")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("ETH_RPC_URL", "http://127.0.0.1:8545")
	v.SetDefault("TOKEN_ADDRESS", "")
	v.SetDefault("TOKEN_SYMBOL", "tokens")
	v.SetDefault("TOKEN_DECIMALS", 18)
	v.SetDefault("MIN_BALANCE", "1000000000000000000")
	v.SetDefault("INVITE_TTL", "24h")
	v.SetDefault("CHALLENGE_TTL", "30m")
	v.SetDefault("SCAN_INTERVAL", "24h")
	v.SetDefault("SCAN_BATCH_SIZE", 50)
	v.SetDefault("SCAN_MAX_BATCHES", 1000)
	v.SetDefault("SCAN_PARALLELISM", 8)
	v.SetDefault("LOG_LEVEL", "info")
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.TelegramBotToken == "" {
		return errors.New("config: TELEGRAM_BOT_TOKEN must be set")
	}
	if c.TelegramGroupID == 0 {
		return errors.New("config: TELEGRAM_GROUP_ID must be set")
	}
	if !isHexAddress(c.TokenAddress) {
		return errors.New("config: TOKEN_ADDRESS must be a 0x-prefixed 20-byte hex address")
	}
	if _, err := c.MinBalanceValue(); err != nil {
		return fmt.Errorf("config: MIN_BALANCE: %w", err)
	}
	if c.TokenDecimals < 0 || c.TokenDecimals > 77 {
		return errors.New("config: TOKEN_DECIMALS must be between 0 and 77")
	}
	if c.ScanBatchSize <= 0 {
		return errors.New("config: SCAN_BATCH_SIZE must be positive")
	}
	if c.ScanMaxBatches <= 0 {
		return errors.New("config: SCAN_MAX_BATCHES must be positive")
	}
	if c.ScanParallelism <= 0 {
		return errors.New("config: SCAN_PARALLELISM must be positive")
	}
	return nil
}

// MinBalanceValue parses MinBalance.
func (c *Config) MinBalanceValue() (core.Balance, error) {
	return core.ParseBalance(strings.TrimSpace(c.MinBalance))
}

// RequiredAmount renders the minimum holding for users, e.g. "1 STRK".
func (c *Config) RequiredAmount() string {
	amount, err := c.MinBalanceValue()
	if err != nil {
		return c.MinBalance
	}
	return amount.Tokens(c.TokenDecimals) + " " + c.TokenSymbol
}

// LinkBaseURL is the frontend verify page, or empty when no frontend is configured.
func (c *Config) LinkBaseURL() string {
	if c.FrontendURL == "" {
		return ""
	}
	return strings.TrimRight(c.FrontendURL, "/") + c.LinkPath
}

// InviteDuration parses InviteTTL. Returns 24h if unset or invalid.
func (c *Config) InviteDuration() time.Duration {
	return parseDuration(c.InviteTTL, 24*time.Hour)
}

// ChallengeDuration parses ChallengeTTL. "0" disables challenge expiry; returns 30m if invalid.
func (c *Config) ChallengeDuration() time.Duration {
	if strings.TrimSpace(c.ChallengeTTL) == "0" {
		return 0
	}
	return parseDuration(c.ChallengeTTL, 30*time.Minute)
}

// LinkDuration parses LinkTTL. Returns 30m if unset or invalid.
func (c *Config) LinkDuration() time.Duration {
	return parseDuration(c.LinkTTL, 30*time.Minute)
}

// ScanDuration parses ScanInterval. Returns 24h if unset or invalid.
func (c *Config) ScanDuration() time.Duration {
	return parseDuration(c.ScanInterval, 24*time.Hour)
}

// SlogLevel maps LogLevel to a slog level; unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func isHexAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, r := range strings.ToLower(s[2:]) {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}
