package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"finsheet/internal/config"
	"finsheet/pkg/contracts/domain"
)

// ErrNotConfigured is returned when no database connection settings are present
var ErrNotConfigured = errors.New("database not configured")

const createTableSQL = `
CREATE TABLE IF NOT EXISTS stock_data (
	"timestamp"  TIMESTAMP,
	period_start TIMESTAMP NOT NULL,
	period_end   TIMESTAMP NOT NULL,
	period_code  TEXT NOT NULL,
	fiscal_type  TEXT NOT NULL,
	metric_name  TEXT NOT NULL,
	metric_value DOUBLE PRECISION NOT NULL,
	symbol       TEXT NOT NULL,
	created_at   TIMESTAMP DEFAULT now(),
	updated_at   TIMESTAMP DEFAULT now(),
	CONSTRAINT uq_symbol_timeseries_metric UNIQUE (symbol, "timestamp", metric_name, period_code)
)`

const upsertSQL = `
INSERT INTO stock_data ("timestamp", period_start, period_end, period_code, fiscal_type, metric_name, metric_value, symbol)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT ON CONSTRAINT uq_symbol_timeseries_metric DO UPDATE SET
	period_start = EXCLUDED.period_start,
	period_end   = EXCLUDED.period_end,
	fiscal_type  = EXCLUDED.fiscal_type,
	metric_value = EXCLUDED.metric_value,
	updated_at   = now()`

const listSQL = `
SELECT "timestamp", period_start, period_end, period_code, fiscal_type, metric_name, metric_value, symbol
FROM stock_data
WHERE symbol = $1
ORDER BY "timestamp", metric_name, period_code`

// PostgresStore persists events in the stock_data table
type PostgresStore struct {
	pool      *pgxpool.Pool
	batchSize int
	logger    *slog.Logger
}

// NewPostgresStore connects a pool using the database settings and verifies it with a ping
func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*PostgresStore, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	s := &PostgresStore{
		pool:      pool,
		batchSize: cfg.BatchSize,
		logger:    logger.With(slog.String("component", "postgres_store")),
	}
	if s.batchSize <= 0 {
		s.batchSize = config.DefaultUpsertBatchSize
	}

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := s.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}

	s.logger.InfoContext(ctx, "Database connected",
		slog.String("host", poolCfg.ConnConfig.Host),
		slog.String("database", poolCfg.ConnConfig.Database),
		slog.Int("max_conns", int(poolCfg.MaxConns)))
	return s, nil
}

// EnsureSchema creates the stock_data table and its unique constraint if absent
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create stock_data table: %w", err)
	}
	s.logger.InfoContext(ctx, "Schema ready", slog.String("table", "stock_data"))
	return nil
}

// UpsertEvents implements EventStore. All events are written in one
// transaction, queued in batches of the configured size.
func (s *PostgresStore) UpsertEvents(ctx context.Context, events []domain.LongEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	start := time.Now()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin upsert transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	written := 0
	for lo := 0; lo < len(events); lo += s.batchSize {
		hi := lo + s.batchSize
		if hi > len(events) {
			hi = len(events)
		}
		n, err := s.sendBatch(ctx, tx, events[lo:hi])
		written += n
		if err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit upsert transaction: %w", err)
	}

	s.logger.DebugContext(ctx, "Events upserted",
		slog.Int("events", written),
		slog.Duration("duration", time.Since(start)))
	return written, nil
}

func (s *PostgresStore) sendBatch(ctx context.Context, tx pgx.Tx, events []domain.LongEvent) (int, error) {
	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(upsertSQL,
			e.Timestamp.UTC(), e.PeriodStart.UTC(), e.PeriodEnd.UTC(),
			string(e.PeriodCode), string(e.FiscalType),
			e.MetricName, e.MetricValue, e.Symbol)
	}

	results := tx.SendBatch(ctx, batch)
	for i := range events {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return i, fmt.Errorf("upsert %s %s %s: %w", events[i].Symbol, events[i].MetricName, events[i].Timestamp.Format("2006-01-02"), err)
		}
	}
	if err := results.Close(); err != nil {
		return len(events), fmt.Errorf("close upsert batch: %w", err)
	}
	return len(events), nil
}

// ListEvents implements EventStore
func (s *PostgresStore) ListEvents(ctx context.Context, symbol string) ([]domain.LongEvent, error) {
	rows, err := s.pool.Query(ctx, listSQL, symbol)
	if err != nil {
		return nil, fmt.Errorf("query events for %s: %w", symbol, err)
	}

	events, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.LongEvent])
	if err != nil {
		return nil, fmt.Errorf("scan events for %s: %w", symbol, err)
	}
	return events, nil
}

// Ping implements EventStore
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Close implements EventStore
func (s *PostgresStore) Close() {
	s.pool.Close()
}
