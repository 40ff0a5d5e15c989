package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kursadbilgin/campaign-engine/internal/config"
	"github.com/kursadbilgin/campaign-engine/internal/credentials"
	"github.com/kursadbilgin/campaign-engine/internal/handler"
	"github.com/kursadbilgin/campaign-engine/internal/infra/postgresql"
	"github.com/kursadbilgin/campaign-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/campaign-engine/internal/infra/redis"
	"github.com/kursadbilgin/campaign-engine/internal/observability"
	"github.com/kursadbilgin/campaign-engine/internal/queue"
	"github.com/kursadbilgin/campaign-engine/internal/repository"
	"github.com/kursadbilgin/campaign-engine/internal/sender"
	"github.com/kursadbilgin/campaign-engine/internal/service"
	"github.com/kursadbilgin/campaign-engine/internal/transport"
)

const (
	consumerPrefetch = 8
	shutdownTimeout  = 10 * time.Second
)

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

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	rateLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.SendRatePerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	mq, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer mq.Close()

	publisher := queue.NewRabbitMQPublisher(mq)
	consumer := queue.NewRabbitMQConsumer(mq, consumerPrefetch, logger)

	gateway, err := sender.NewHTTPGateway(cfg.EmailGatewayURL, cfg.SMSGatewayURL)
	if err != nil {
		logger.Fatal("gateway initialization failed", zap.Error(err))
	}

	encryptor, err := credentials.NewEncryptor(cfg.CredentialKeyHex)
	if err != nil {
		logger.Fatal("credential encryptor initialization failed", zap.Error(err))
	}

	tenantRepo := repository.NewGormTenantRepo(db)
	campaignRepo := repository.NewGormCampaignRepo(db)
	contactRepo := repository.NewGormContactRepo(db)
	creditRepo := repository.NewGormCreditRepo(db)
	messageRepo := repository.NewGormMessageRepo(db)
	auditRepo := repository.NewGormAuditRepo(db)
	outboxRepo := repository.NewGormOutboxRepo(db)
	credentialRepo := repository.NewGormCredentialRepo(db)

	credentialStore, err := credentials.NewStore(credentialRepo, encryptor)
	if err != nil {
		logger.Fatal("credential store initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	dispatchService := service.NewDispatchService(
		campaignRepo,
		contactRepo,
		creditRepo,
		messageRepo,
		tenantRepo,
		credentialStore,
		gateway,
		gateway,
		rateLimiter,
		cfg.SendConcurrency,
		logger,
		metrics,
	)
	subscriptionService := service.NewSubscriptionService(tenantRepo, logger, metrics)
	creditService := service.NewCreditService(tenantRepo, creditRepo, logger)

	outboxWorker, err := service.NewOutboxWorker(
		outboxRepo,
		publisher,
		time.Duration(cfg.OutboxIntervalSec)*time.Second,
		logger,
		metrics,
	)
	if err != nil {
		logger.Fatal("outbox worker initialization failed", zap.Error(err))
	}

	notifier, err := service.NewNotifierService(outboxRepo, consumer, gateway, logger)
	if err != nil {
		logger.Fatal("notifier initialization failed", zap.Error(err))
	}

	watchdog, err := service.NewWatchdog(
		campaignRepo,
		auditRepo,
		time.Duration(cfg.WatchdogIntervalSec)*time.Second,
		time.Duration(cfg.StuckAfterMinutes)*time.Minute,
		logger,
		metrics,
	)
	if err != nil {
		logger.Fatal("watchdog initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.RegisterCampaignRoutes(app, dispatchService); err != nil {
		logger.Fatal("failed to register campaign routes", zap.Error(err))
	}
	if err := handler.RegisterTenantRoutes(app, subscriptionService, creditService, credentialStore); err != nil {
		logger.Fatal("failed to register tenant routes", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("campaign-engine api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	g.Go(func() error {
		return outboxWorker.Start(groupCtx)
	})

	g.Go(func() error {
		return notifier.Start(groupCtx)
	})

	g.Go(func() error {
		return watchdog.Start(groupCtx)
	})

	g.Go(func() error {
		return runSweepLoop(groupCtx, subscriptionService, time.Duration(cfg.SweepIntervalMinutes)*time.Minute, logger)
	})

	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		logger.Error("shutdown with error", zap.Error(err))
	}
}

func runSweepLoop(ctx context.Context, subscriptions *service.SubscriptionService, interval time.Duration, logger *zap.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := subscriptions.Sweep(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Error("scheduled sweep failed", zap.Error(err))
			}
		}
	}
}
