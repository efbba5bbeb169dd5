// Package store is the Postgres persistence layer: idempotent schema
// lifecycle, retrying writes, and explicit row mapping per entity.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/leadscout/leadscout/internal/config"
)

// DB is the subset of pgxpool.Pool the store uses. pgxmock satisfies it in
// tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store wraps every operation in retry-on-transient with per-tier delays:
// short for schema init, long for steady-state writes (the database may be
// serving a rate-limited tier).
type Store struct {
	db         DB
	logger     *zap.Logger
	initDelay  time.Duration
	writeDelay time.Duration
}

// New connects a pgx pool and wraps it in a Store. Lifecycle is owned by the
// caller; there is no lazily-built singleton.
func New(ctx context.Context, cfg config.DBConfig, pcfg config.PipelineConfig, logger *zap.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewWithDB(pool, pcfg, logger), nil
}

// NewWithDB builds a Store over an existing connection (pgxmock in tests).
func NewWithDB(db DB, pcfg config.PipelineConfig, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	initDelay := time.Duration(pcfg.StoreRetryInitDelayMs) * time.Millisecond
	if initDelay <= 0 {
		initDelay = 250 * time.Millisecond
	}
	writeDelay := time.Duration(pcfg.StoreRetryWriteDelaySec) * time.Second
	if writeDelay <= 0 {
		writeDelay = time.Minute
	}
	return &Store{
		db:         db,
		logger:     logger,
		initDelay:  initDelay,
		writeDelay: writeDelay,
	}
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s != nil && s.db != nil {
		s.db.Close()
	}
}
