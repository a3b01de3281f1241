package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	_ "github.com/joho/godotenv/autoload"

	"github.com/rentflow/rentflow/internal/app"
	"github.com/rentflow/rentflow/internal/audit"
	"github.com/rentflow/rentflow/internal/changefeed"
	"github.com/rentflow/rentflow/internal/observability"
	"github.com/rentflow/rentflow/internal/platform/cache"
	"github.com/rentflow/rentflow/internal/platform/db"
	"github.com/rentflow/rentflow/internal/rental"
	"github.com/rentflow/rentflow/internal/shared"
	"github.com/rentflow/rentflow/internal/sweeper"
	"github.com/rentflow/rentflow/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, ApplicationName: "rentflow-worker"})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	service := rental.NewService(rental.NewRepository(pool), cfg.Policy(), logger)
	service.SetCache(rental.NewCache(redisClient, cfg.CacheTTL))
	service.SetPublisher(changefeed.NewRedisFeed(redisClient, logger))
	service.SetNotes(audit.NewNotes(cfg.NotesLocale))

	metrics := observability.NewMetrics()
	sweepJob := jobs.NewSweepExpiredJob(sweeper.New(service, logger), logger, metrics.Jobs())
	cleanupJob := jobs.NewIdempotencyCleanupJob(shared.NewIdempotencyStore(pool), logger, metrics.Jobs())

	sweepCron, err := jobs.SweepBackstop(cfg.SweepCron)
	if err != nil {
		logger.Error("build sweep schedule", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupCron, err := jobs.IdempotencyCleanupSchedule()
	if err != nil {
		logger.Error("build cleanup schedule", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSweepExpired, Handler: sweepJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{sweepCron, cleanupCron},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetricsAddr != "" {
		metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer metricsServer.Close()
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
