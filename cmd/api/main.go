package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/campushub/notifyhub/internal/actor"
	"github.com/campushub/notifyhub/internal/config"
	"github.com/campushub/notifyhub/internal/handler"
	"github.com/campushub/notifyhub/internal/infra/postgresql"
	"github.com/campushub/notifyhub/internal/infra/postgresql/migrations"
	infraredis "github.com/campushub/notifyhub/internal/infra/redis"
	"github.com/campushub/notifyhub/internal/observability"
	"github.com/campushub/notifyhub/internal/outbound"
	"github.com/campushub/notifyhub/internal/provider"
	"github.com/campushub/notifyhub/internal/queue"
	"github.com/campushub/notifyhub/internal/registry"
	"github.com/campushub/notifyhub/internal/scheduler"
	"github.com/campushub/notifyhub/internal/store"
	"github.com/campushub/notifyhub/internal/transport"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("notifyhub terminated", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}
	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer rdb.Close()

	broker, err := outbound.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	defer broker.Close()

	notifications, err := store.NewNotificationStore(db)
	if err != nil {
		return err
	}
	preferences, err := store.NewPreferenceStore(db)
	if err != nil {
		return err
	}

	limiter, err := infraredis.NewRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		return err
	}
	snapshots, err := infraredis.NewSnapshotStore(rdb)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()

	hub, err := actor.New(
		registry.New(),
		queue.New(cfg.QueueMaxPerUser, cfg.QueueMaxAge()),
		notifications,
		preferences,
		outbound.NewRabbitMQPublisher(broker),
		snapshots,
		cfg.IdleThreshold(),
		logger,
	)
	if err != nil {
		return err
	}
	hub.SetMetrics(metrics)

	// Recover persisted state before accepting any connection or dispatch.
	if err := hub.Restore(ctx); err != nil {
		logger.Warn("state recovery failed, starting cold", zap.Error(err))
	}

	cycles, err := scheduler.New(hub, scheduler.Intervals{
		Promotion:  cfg.PromotionInterval(),
		Drain:      cfg.DrainInterval(),
		Eviction:   cfg.EvictionInterval(),
		Checkpoint: cfg.CheckpointInterval(),
	}, logger)
	if err != nil {
		return err
	}
	cycles.SetMetrics(metrics)

	emailProvider, err := provider.NewEmailProvider(cfg.EmailWebhookURL)
	if err != nil {
		return err
	}
	smsProvider, err := provider.NewSMSProvider(cfg.SMSWebhookURL)
	if err != nil {
		return err
	}

	worker, err := outbound.NewWorker(
		outbound.NewRabbitMQConsumer(broker, cfg.OutboundWorkers, logger),
		map[provider.Kind]provider.Provider{
			provider.KindEmail: emailProvider,
			provider.KindSMS:   smsProvider,
		},
		limiter,
		cfg.OutboundWorkers,
		logger,
	)
	if err != nil {
		return err
	}
	worker.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	handler.RegisterHealthRoutes(app, sqlDB, rdb, broker.Alive)
	if err := handler.RegisterNotificationRoutes(app, hub, notifications, limiter, logger); err != nil {
		return err
	}
	if err := handler.RegisterPreferenceRoutes(app, preferences, limiter, logger); err != nil {
		return err
	}
	handler.RegisterSocketRoutes(app, hub, logger)

	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return cycles.Start(groupCtx) })
	g.Go(func() error { return worker.Start(groupCtx) })
	g.Go(func() error {
		logger.Info("notifyhub api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})
	g.Go(func() error {
		<-groupCtx.Done()
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	err = g.Wait()

	// Final checkpoint so a clean restart resumes where this run stopped.
	checkpointCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if checkpointErr := hub.Checkpoint(checkpointCtx); checkpointErr != nil {
		logger.Error("final checkpoint failed", zap.Error(checkpointErr))
	}

	if err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("notifyhub stopped")
	return nil
}
