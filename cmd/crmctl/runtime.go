package main

import (
	"context"
	"encoding/json"
	"io"

	"go.uber.org/zap"

	"github.com/spec-kit/bank-crm/internal/config"
	"github.com/spec-kit/bank-crm/internal/dbconn"
	"github.com/spec-kit/bank-crm/internal/events"
	"github.com/spec-kit/bank-crm/internal/observability"
	"github.com/spec-kit/bank-crm/internal/persistence"
	"github.com/spec-kit/bank-crm/internal/repository"
	"github.com/spec-kit/bank-crm/internal/service"
	"github.com/spec-kit/bank-crm/internal/store"
)

// runtime is the service graph a command works against.
type runtime struct {
	stats     repository.StatsRepository
	customers *service.CustomerService
	tickets   *service.TicketService
	close     func()
}

type opener func(ctx context.Context) (*runtime, error)

func openRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, err
	}
	connector, err := store.NewConnector(cfg, logger)
	if err != nil {
		return nil, err
	}
	manager := dbconn.NewManager(connector, cfg.Store, logger)

	redis := persistence.NewRedis(cfg.Redis, logger)
	dispatcher := events.NewInMemoryDispatcher()
	if redis.Enabled() {
		events.NewRedisPublisher(redis.Client, cfg.Redis.EventStream, cfg.Redis.StreamMaxLen, logger).Register(dispatcher)
	}

	rt := newRuntime(manager, dispatcher, logger)
	rt.close = func() {
		manager.Disconnect(context.Background())
		redis.Close()
		_ = logger.Sync()
	}
	return rt, nil
}

func newRuntime(conn repository.Connection, dispatcher events.Dispatcher, logger *zap.Logger) *runtime {
	customerRepo := repository.NewCustomerRepository(conn, logger)
	return &runtime{
		stats:     repository.NewStatsRepository(conn, logger),
		customers: service.NewCustomerService(customerRepo, logger),
		tickets: service.NewTicketService(service.TicketDependencies{
			TicketRepo:   repository.NewTicketRepository(conn, logger),
			CustomerRepo: customerRepo,
			Dispatcher:   dispatcher,
			Logger:       logger,
		}),
		close: func() {},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
