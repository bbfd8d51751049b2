package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-partyshop/internal/app"
	"github.com/noah-isme/backend-partyshop/internal/config"
	"github.com/noah-isme/backend-partyshop/internal/jobs"
	"github.com/noah-isme/backend-partyshop/internal/lock"
	"github.com/noah-isme/backend-partyshop/internal/obs"
	"github.com/noah-isme/backend-partyshop/internal/repo"
	"github.com/noah-isme/backend-partyshop/internal/voucher"
)

const serviceName = "partyshop-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("worker exited")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer := app.InitTracing(ctx, cfg, serviceName, logger)
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error().Err(err).Msg("shutdown tracer")
		}
	}()

	pool, err := app.OpenPostgres(ctx, cfg, serviceName)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer pool.Close()

	redisClient, err := app.OpenRedis(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	asynqOpt, err := app.AsynqRedis(cfg)
	if err != nil {
		return fmt.Errorf("configure task queue: %w", err)
	}

	voucherSvc := &voucher.Service{
		Store:   repo.Vouchers{DB: pool},
		Locker:  lock.Locker{R: redisClient, RetryBackoff: 50 * time.Millisecond},
		LockTTL: 10 * time.Second,
		Logger:  logger,
	}

	srv := asynq.NewServer(asynqOpt, asynq.Config{
		Concurrency:     cfg.WorkerConcurrency,
		Queues:          map[string]int{cfg.SettleQueue: 1},
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          asynqLogger{logger: logger},
	})
	if err := srv.Start(jobs.NewMux(jobs.SettleHandler{Settler: voucherSvc, Logger: logger})); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Str("queue", cfg.SettleQueue).Msg("worker started")

	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
	return nil
}
