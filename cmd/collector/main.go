package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/payex-bridge/internal/config"
	"github.com/noah-isme/payex-bridge/internal/gateway"
	"github.com/noah-isme/payex-bridge/internal/lock"
	"github.com/noah-isme/payex-bridge/internal/obs"
	"github.com/noah-isme/payex-bridge/internal/order"
	"github.com/noah-isme/payex-bridge/internal/payex"
)

// collectLockKey serialises collector runs across replicas so a renewal is
// never charged twice in one cycle.
const collectLockKey = "payex:collector:run"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "collector").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "payex"), nil)

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	// Reference adapter; deployments wire the host platform's order API here.
	store := order.NewMemoryStore()

	payexClient := payex.NewClient(payex.Credentials{
		Email:     cfg.PayexEmail,
		SecretKey: cfg.PayexSecret,
		Sandbox:   cfg.Testmode,
	}, logger)
	payexClient.HTTPClient = &http.Client{Timeout: cfg.RemoteTimeout}

	locker := lock.Locker{R: redisClient, RetryBackoff: cfg.LockRetryBackoff}
	svc := &gateway.Service{
		Store:    store,
		Client:   payexClient,
		Verifier: gateway.Verifier{Secret: cfg.PayexSecret},
		Finalizer: gateway.Finalizer{
			Store:   store,
			Locker:  locker,
			LockTTL: cfg.LockTTL,
			Logger:  logger,
		},
		URLs: payex.RedirectURLs{
			Accept:   cfg.AcceptURL,
			Reject:   cfg.RejectURL,
			Callback: cfg.CallbackURL,
		},
		MandateMaxAmountFloor: cfg.MandateMaxAmountFloor,
		Logger:                logger,
	}

	runner := gateway.Collector{
		Renewals: store,
		Service:  svc,
		Locker:   locker,
		LockTTL:  cfg.LockTTL,
		LockKey:  collectLockKey,
		Interval: cfg.CollectorInterval,
		Logger:   logger,
	}

	logger.Info().Dur("interval", cfg.CollectorInterval).Msg("collector starting")
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("collector stopped with error")
	} else {
		logger.Info().Msg("collector shutdown complete")
	}
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
