package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/bank-crm/internal/domain"
	"github.com/spec-kit/bank-crm/internal/store"
)

// StatsRepository reports collection counts for health checks.
type StatsRepository interface {
	GetDatabaseStats(ctx context.Context) domain.DatabaseStats
}

type statsRepository struct {
	conn   Connection
	logger *zap.Logger
}

// NewStatsRepository instantiates repository.
func NewStatsRepository(conn Connection, logger *zap.Logger) StatsRepository {
	return &statsRepository{conn: conn, logger: logger}
}

// GetDatabaseStats never fails: faults yield zero counts with connection_status "error".
func (r *statsRepository) GetDatabaseStats(ctx context.Context) domain.DatabaseStats {
	ctx, span := startSpan(ctx, "StatsRepository.GetDatabaseStats")
	var customers, tickets int64
	err := r.count(ctx, &customers, &tickets)
	endSpan(span, err)

	if err != nil {
		r.logger.Error("error getting database stats", zap.Error(err))
		return domain.DatabaseStats{
			ConnectionStatus: domain.ConnectionError,
			Error:            fmt.Sprintf("document store %s failure", store.KindOf(err)),
		}
	}

	ns := r.conn.Namespace()
	status := domain.ConnectionDisconnected
	if r.conn.IsConnected() {
		status = domain.ConnectionHealthy
	}
	return domain.DatabaseStats{
		TotalCustomers:   customers,
		TotalTickets:     tickets,
		ConnectionStatus: status,
		Bucket:           ns.Bucket,
		Scope:            ns.Scope,
		Collections: map[string]string{
			"customers": ns.Customers,
			"tickets":   ns.Tickets,
		},
	}
}

func (r *statsRepository) count(ctx context.Context, customers, tickets *int64) error {
	session, err := r.conn.EnsureConnection(ctx)
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := session.Count(gctx, store.Customers)
		*customers = n
		return err
	})
	g.Go(func() error {
		n, err := session.Count(gctx, store.Tickets)
		*tickets = n
		return err
	})
	return g.Wait()
}
