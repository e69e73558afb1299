package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/spec-kit/bank-crm/internal/config"
	"github.com/spec-kit/bank-crm/internal/persistence"
)

// PostgresConnector stores documents as JSONB rows. The scope is the schema and
// each collection is a table of (id, doc, revision).
type PostgresConnector struct {
	store    config.StoreConfig
	pool     config.PostgresConfig
	logger   *zap.Logger
	migrated atomic.Bool
}

// NewPostgresConnector builds a connector from store and pool configuration.
func NewPostgresConnector(store config.StoreConfig, pool config.PostgresConfig, logger *zap.Logger) *PostgresConnector {
	return &PostgresConnector{store: store, pool: pool, logger: logger}
}

func (c *PostgresConnector) Name() string { return config.DriverPostgres }

func (c *PostgresConnector) Namespace() Namespace {
	return namespaceFromConfig(c.store)
}

// Tables returns the physical table layout.
func (c *PostgresConnector) Tables() persistence.DocumentTables {
	ns := c.Namespace()
	return persistence.DocumentTables{Schema: ns.Scope, Customers: ns.Customers, Tickets: ns.Tickets}
}

func (c *PostgresConnector) Connect(ctx context.Context) (Session, error) {
	pg, err := persistence.NewPostgres(ctx, c.store, c.pool, c.logger)
	if err != nil {
		return nil, classifyPostgres("connect", err, KindConnection)
	}
	if c.pool.RunMigrations && !c.migrated.Load() {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), c.Tables(), c.logger); err != nil {
			pg.Close()
			return nil, classifyPostgres("migrate", err, KindQuery)
		}
		c.migrated.Store(true)
	}
	ns := c.Namespace()
	return &postgresSession{
		pg: pg,
		tables: map[Collection]string{
			Customers: pgx.Identifier{ns.Scope, ns.Customers}.Sanitize(),
			Tickets:   pgx.Identifier{ns.Scope, ns.Tickets}.Sanitize(),
		},
	}, nil
}

type postgresSession struct {
	pg     *persistence.Postgres
	tables map[Collection]string
}

func (s *postgresSession) Ping(ctx context.Context) error {
	if err := s.pg.Ping(ctx); err != nil {
		return classifyPostgres("ping", err, KindConnection)
	}
	return nil
}

func (s *postgresSession) Get(ctx context.Context, c Collection, key string) (*Document, error) {
	query := fmt.Sprintf(`SELECT doc, revision FROM %s WHERE id = $1`, s.tables[c])
	doc := &Document{Key: key}
	if err := s.pg.Pool.QueryRow(ctx, query, key).Scan(&doc.Body, &doc.Revision); err != nil {
		return nil, classifyPostgres("get", err, KindQuery)
	}
	return doc, nil
}

func (s *postgresSession) Find(ctx context.Context, q Query) ([]Document, error) {
	query, args := buildFindSQL(s.tables[q.Collection], q)
	rows, err := s.pg.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classifyPostgres("find", err, KindQuery)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.Key, &doc.Body, &doc.Revision); err != nil {
			return nil, classifyPostgres("find", err, KindQuery)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPostgres("find", err, KindQuery)
	}
	return docs, nil
}

func (s *postgresSession) Count(ctx context.Context, c Collection) (int64, error) {
	var n int64
	if err := s.pg.Pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.tables[c])).Scan(&n); err != nil {
		return 0, classifyPostgres("count", err, KindQuery)
	}
	return n, nil
}

func (s *postgresSession) Insert(ctx context.Context, c Collection, key string, body map[string]any) (*Document, error) {
	query := fmt.Sprintf(`INSERT INTO %s (id, doc, revision) VALUES ($1, $2, 1)`, s.tables[c])
	if _, err := s.pg.Pool.Exec(ctx, query, key, body); err != nil {
		return nil, classifyPostgres("insert", err, KindQuery)
	}
	return &Document{Key: key, Body: body, Revision: 1}, nil
}

func (s *postgresSession) Replace(ctx context.Context, c Collection, key string, body map[string]any, revision int64) (*Document, error) {
	query := fmt.Sprintf(`
        UPDATE %s SET doc = $2, revision = revision + 1
        WHERE id = $1 AND revision = $3
        RETURNING revision`, s.tables[c])
	var next int64
	err := s.pg.Pool.QueryRow(ctx, query, key, body, revision).Scan(&next)
	if err == nil {
		return &Document{Key: key, Body: body, Revision: next}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, classifyPostgres("replace", err, KindQuery)
	}

	var exists bool
	check := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, s.tables[c])
	if err := s.pg.Pool.QueryRow(ctx, check, key).Scan(&exists); err != nil {
		return nil, classifyPostgres("replace", err, KindQuery)
	}
	if !exists {
		return nil, NewError("replace", KindNotFound, fmt.Errorf("%s/%s", c, key))
	}
	return nil, NewError("replace", KindConflict, fmt.Errorf("revision %d is stale", revision))
}

func (s *postgresSession) Close(context.Context) error {
	s.pg.Close()
	return nil
}

func buildFindSQL(table string, q Query) (string, []any) {
	clauses := []string{"TRUE"}
	args := []any{}

	for _, f := range q.Filters {
		args = append(args, strings.Split(f.Field, "."), fmt.Sprint(f.Value))
		clauses = append(clauses, fmt.Sprintf("doc #>> $%d = $%d", len(args)-1, len(args)))
	}

	query := fmt.Sprintf(`SELECT id, doc, revision FROM %s WHERE %s`, table, strings.Join(clauses, " AND "))

	if q.SortField != "" {
		args = append(args, strings.Split(q.SortField, "."))
		direction := "ASC"
		if q.SortDesc {
			direction = "DESC"
		}
		query += fmt.Sprintf(" ORDER BY doc #>> $%d %s", len(args), direction)
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return query, args
}

func classifyPostgres(op string, err error, fallback ErrorKind) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewError(op, KindNotFound, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return NewError(op, KindConflict, err)
		case pgErr.Code == "28P01" || pgErr.Code == "28000":
			return NewError(op, KindAuth, err)
		case pgErr.Code == "57014":
			return NewError(op, KindTimeout, err)
		case strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P"):
			return NewError(op, KindConnection, err)
		}
		return NewError(op, KindQuery, err)
	}
	if kind, ok := classifyContext(err); ok {
		return NewError(op, kind, err)
	}
	var connErr *pgconn.ConnectError
	switch {
	case pgconn.Timeout(err):
		return NewError(op, KindTimeout, err)
	case errors.As(err, &connErr):
		return NewError(op, KindConnection, err)
	}
	return NewError(op, fallback, err)
}
