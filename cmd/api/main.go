package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/bank-crm/internal/api/http"
	"github.com/spec-kit/bank-crm/internal/api/http/handlers"
	"github.com/spec-kit/bank-crm/internal/config"
	"github.com/spec-kit/bank-crm/internal/dbconn"
	"github.com/spec-kit/bank-crm/internal/events"
	"github.com/spec-kit/bank-crm/internal/observability"
	"github.com/spec-kit/bank-crm/internal/persistence"
	"github.com/spec-kit/bank-crm/internal/repository"
	"github.com/spec-kit/bank-crm/internal/service"
	"github.com/spec-kit/bank-crm/internal/store"
	"github.com/spec-kit/bank-crm/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing := observability.SetupTracing(ctx, cfg.Tracing, cfg.App.Name, cfg.App.Version, logger)

	connector, err := store.NewConnector(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build store connector", zap.Error(err))
	}
	manager := dbconn.NewManager(connector, cfg.Store, logger)

	// The API starts even when the store is down; requests reconnect lazily.
	if err := manager.Connect(ctx); err != nil {
		logger.Warn("initial store connection failed", zap.String("driver", manager.Driver()), zap.Error(err))
	}

	redis := persistence.NewRedis(cfg.Redis, logger)

	customerRepo := repository.NewCustomerRepository(manager, logger)
	ticketRepo := repository.NewTicketRepository(manager, logger)
	statsRepo := repository.NewStatsRepository(manager, logger)

	dispatcher := events.NewInMemoryDispatcher()
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)

	var publisher *events.RedisPublisher
	var redisProbe handlers.Pinger
	if redis.Enabled() {
		publisher = events.NewRedisPublisher(redis.Client, cfg.Redis.EventStream, cfg.Redis.StreamMaxLen, logger)
		redisProbe = redis
	}
	worker.StartNotificationWorker(dispatcher, notificationService, publisher)

	customerService := service.NewCustomerService(customerRepo, logger)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   ticketRepo,
		CustomerRepo: customerRepo,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})

	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:           logger,
		Metrics:          metrics,
		Timeout:          cfg.App.RequestTimeout(),
		CORSAllowOrigins: cfg.App.CORSAllowOrigins,
		Tracing:          observability.TracingEnabled(cfg.Tracing),
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(handlers.HealthDependencies{
			ServiceName: cfg.App.Name,
			Version:     cfg.App.Version,
			Stats:       statsRepo,
			Store:       manager,
			Redis:       redisProbe,
			Metrics:     metrics,
		}),
		Customers: handlers.NewCustomersHandler(customerService),
		Tickets:   handlers.NewTicketsHandler(ticketService),
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("store", manager.Driver()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	manager.Disconnect(shutdownCtx)
	redis.Close()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
