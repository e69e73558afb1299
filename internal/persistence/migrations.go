package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DocumentTables names the schema and tables backing the document collections.
type DocumentTables struct {
	Schema    string
	Customers string
	Tickets   string
}

// RunMigrations creates the schema and JSONB document tables if they are missing.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, tables DocumentTables, logger *zap.Logger) error {
	if pool == nil {
		logger.Warn("no postgres pool available; skipping migrations")
		return nil
	}

	statements := migrationStatements(tables)
	for i, stmt := range statements {
		logger.Info("applying migration", zap.Int("step", i+1))
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration step %d: %w", i+1, err)
		}
	}

	logger.Info("migrations applied", zap.Int("count", len(statements)))
	return nil
}

func migrationStatements(tables DocumentTables) []string {
	schema := pgx.Identifier{tables.Schema}.Sanitize()
	customers := pgx.Identifier{tables.Schema, tables.Customers}.Sanitize()
	tickets := pgx.Identifier{tables.Schema, tables.Tickets}.Sanitize()
	phoneIdx := pgx.Identifier{tables.Customers + "_phone_idx"}.Sanitize()
	ticketIdx := pgx.Identifier{tables.Tickets + "_phone_created_idx"}.Sanitize()

	return []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            id TEXT PRIMARY KEY,
            doc JSONB NOT NULL,
            revision BIGINT NOT NULL DEFAULT 1
        )`, customers),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            id TEXT PRIMARY KEY,
            doc JSONB NOT NULL,
            revision BIGINT NOT NULL DEFAULT 1
        )`, tickets),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s ((doc #>> '{personal_info,phone_number}'))`, phoneIdx, customers),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s ((doc ->> 'phone_number'), (doc ->> 'created_at') DESC)`, ticketIdx, tickets),
	}
}
