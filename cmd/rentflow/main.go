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
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/rentflow/rentflow/internal/app"
	"github.com/rentflow/rentflow/internal/audit"
	audithttp "github.com/rentflow/rentflow/internal/audit/http"
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
		slog.Default().Info("test mode detected, skipping server startup")
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

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, ApplicationName: "rentflow-api"})
	if err != nil {
		return err
	}
	defer pool.Close()

	metrics := observability.NewMetrics()

	service := rental.NewService(rental.NewRepository(pool), cfg.Policy(), logger)
	service.SetIdempotency(shared.NewIdempotencyStore(pool))
	service.SetOutcomeRecorder(metrics)
	service.SetNotes(audit.NewNotes(cfg.NotesLocale))
	ordersHandler := rental.NewHandler(logger, service)

	var jobHandler *jobs.Handler
	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		// orders stay writable; reads skip the cache and nothing is pushed
		logger.Warn("redis unavailable, running without cache, change feed and sweep trigger", slog.Any("error", err))
	} else {
		defer closeRedis(redisClient, logger)
		service.SetCache(rental.NewCache(redisClient, cfg.CacheTTL))
		service.SetPublisher(changefeed.NewRedisFeed(redisClient, logger))

		redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
		jobClient, err := jobs.NewClient(redisOpt)
		if err != nil {
			return err
		}
		defer jobClient.Close()
		trigger := sweeper.NewTrigger(sweeper.NewGate(redisClient, cfg.SweepGateWindow), jobClient, logger)
		ordersHandler.SetSweepTrigger(trigger)

		inspector := asynq.NewInspector(redisOpt)
		defer inspector.Close()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	timelineHandler := audithttp.NewHandler(logger, audit.NewService(audit.NewRepository(pool)))

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		OrdersHandler:   ordersHandler,
		TimelineHandler: timelineHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
		Ready:           db.Ready(pool),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func closeRedis(client *redis.Client, logger *slog.Logger) {
	if err := client.Close(); err != nil {
		logger.Warn("redis close", slog.Any("error", err))
	}
}
