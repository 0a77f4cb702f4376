// Package coredb reads pool statistics and voters from the PostgreSQL
// database of a stellar-core node.
package coredb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Stellar-Pool/stellar-pool-service/distributor/pkg/account"
)

const defaultMaxConns = 4

type Config struct {
	Logger     *slog.Logger
	ConnString string
	// Pool is the inflation destination whose voters are read.
	Pool     account.Account
	MaxConns int32
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.ConnString == "" {
		return errors.New("connection string is required")
	}
	if cfg.Pool.IsZero() {
		return errors.New("pool account is required")
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = defaultMaxConns
	}
	return nil
}

// DB answers each query on its own connection from a pool. Use Snapshot for
// a consistent view across queries.
type DB struct {
	log  *slog.Logger
	cfg  Config
	pool *pgxpool.Pool
	queries
}

func New(ctx context.Context, cfg Config) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse core database config: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create core database pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping core database: %w", err)
	}

	cc := poolConfig.ConnConfig
	cfg.Logger.Info("coredb: connected", "host", cc.Host, "port", cc.Port, "database", cc.Database, "user", cc.User)

	return &DB{
		log:     cfg.Logger,
		cfg:     cfg,
		pool:    pool,
		queries: queries{db: pool, pool: cfg.Pool},
	}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Snapshot is a read-only repeatable-read transaction. Every query made
// through it sees the ledger state of the moment it was opened.
type Snapshot struct {
	log *slog.Logger
	tx  pgx.Tx
	queries
}

func (db *DB) Snapshot(ctx context.Context) (*Snapshot, error) {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	return &Snapshot{log: db.log, tx: tx, queries: queries{db: tx, pool: db.cfg.Pool}}, nil
}

// Close ends the snapshot transaction.
func (s *Snapshot) Close(ctx context.Context) {
	if err := s.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		s.log.Warn("coredb: failed to close snapshot", "error", err)
	}
}
