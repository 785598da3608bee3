package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/redis/go-redis/v9"

	"github.com/layer-3/gatekeeper/adapters/events"
	"github.com/layer-3/gatekeeper/adapters/oracle"
	"github.com/layer-3/gatekeeper/adapters/registry"
	"github.com/layer-3/gatekeeper/adapters/store"
	"github.com/layer-3/gatekeeper/adapters/tokenizer"
	"github.com/layer-3/gatekeeper/internal/config"
	"github.com/layer-3/gatekeeper/ports"
	"github.com/layer-3/gatekeeper/service"
	"github.com/layer-3/gatekeeper/transport/telegram"
)

var defaultLogger = slog.New(slog.NewJSONHandler(os.Stderr, nil))

func logger() *slog.Logger {
	return defaultLogger
}

// app holds the wired components shared by the commands
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	registry   *registry.SQLRegistry
	challenges ports.ChallengeStore
	oracle     *oracle.EVMOracle
	bot        *telegram.Bot
	events     *events.WatermillPublisher
	links      *tokenizer.JWTTokenizer

	closers []func() error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	defaultLogger = log
	a := &app{cfg: cfg, logger: log}

	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	cfg := a.cfg

	reg, err := registry.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	a.registry = reg
	a.closers = append(a.closers, reg.Close)

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		a.closers = append(a.closers, redisClient.Close)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.challenges = store.NewRedisStore(redisClient, cfg.ChallengeDuration())
	} else {
		a.logger.Warn("REDIS_URL not set, pending challenges are kept in memory")
		a.challenges = store.NewMemoryStore(cfg.ChallengeDuration())
	}

	publisher, err := events.NewPublisher(redisClient, watermill.NewSlogLogger(a.logger))
	if err != nil {
		return err
	}
	a.events = events.NewWatermillPublisher(publisher)
	a.closers = append(a.closers, a.events.Close)

	eth, err := ethclient.DialContext(ctx, cfg.EthRPCURL)
	if err != nil {
		return fmt.Errorf("failed to dial ethereum rpc: %w", err)
	}
	a.closers = append(a.closers, func() error { eth.Close(); return nil })

	minBalance, err := cfg.MinBalanceValue()
	if err != nil {
		return err
	}
	a.oracle, err = oracle.NewEVMOracle(eth, common.HexToAddress(cfg.TokenAddress), minBalance, a.logger)
	if err != nil {
		return err
	}

	a.bot, err = telegram.NewBot(cfg.TelegramBotToken, a.logger)
	if err != nil {
		return err
	}

	key, err := tokenizer.LoadSigningKey(cfg.LinkSigningKey)
	if err != nil {
		return err
	}
	a.links = tokenizer.NewJWTTokenizer(key, cfg.LinkDuration())

	return nil
}

func (a *app) verification() *service.VerificationService {
	return service.NewVerificationService(
		a.challenges,
		a.oracle,
		a.registry,
		a.bot,
		a.bot,
		service.VerificationConfig{
			GroupID:        a.cfg.TelegramGroupID,
			InviteTTL:      a.cfg.InviteDuration(),
			RequiredAmount: a.cfg.RequiredAmount(),
			LinkBaseURL:    a.cfg.LinkBaseURL(),
		},
		a.logger,
		service.WithEvents(a.events),
		service.WithLinks(a.links),
	)
}

func (a *app) revocation() *service.RevocationEngine {
	return service.NewRevocationEngine(
		a.registry,
		a.oracle,
		a.bot,
		a.bot,
		a.events,
		a.cfg.TelegramGroupID,
		a.cfg.ScanParallelism,
		a.logger,
	)
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
