package pooltesting

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// PostgresConfig holds the PostgreSQL test container configuration.
type PostgresConfig struct {
	Database       string
	Username       string
	Password       string
	ContainerImage string
}

func (cfg *PostgresConfig) Validate() error {
	if cfg.Database == "" {
		cfg.Database = "test"
	}
	if cfg.Username == "" {
		cfg.Username = "test"
	}
	if cfg.Password == "" {
		cfg.Password = "test"
	}
	if cfg.ContainerImage == "" {
		cfg.ContainerImage = "postgres:16-alpine"
	}
	return nil
}

// Postgres is a PostgreSQL test container shared by the tests of one package.
type Postgres struct {
	log       *slog.Logger
	cfg       *PostgresConfig
	connStr   string
	container *tcpostgres.PostgresContainer
}

// ConnStr returns the connection string of the container's default database.
func (db *Postgres) ConnStr() string {
	return db.connStr
}

// Close terminates the container.
func (db *Postgres) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := testcontainers.TerminateContainer(db.container, testcontainers.StopContext(ctx)); err != nil {
		db.log.Error("failed to terminate PostgreSQL container", "error", err)
	}
}

// NewPostgres starts a PostgreSQL container, retrying transient start failures.
func NewPostgres(ctx context.Context, log *slog.Logger, cfg *PostgresConfig) (*Postgres, error) {
	if cfg == nil {
		cfg = &PostgresConfig{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate postgres config: %w", err)
	}

	var container *tcpostgres.PostgresContainer
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		var err error
		container, err = tcpostgres.Run(ctx,
			cfg.ContainerImage,
			tcpostgres.WithDatabase(cfg.Database),
			tcpostgres.WithUsername(cfg.Username),
			tcpostgres.WithPassword(cfg.Password),
			tcpostgres.BasicWaitStrategies(),
			tcpostgres.WithSQLDriver("pgx"),
		)
		if err == nil {
			break
		}
		lastErr = err
		container = nil
		if !isRetryableContainerStartErr(err) || attempt == 3 {
			break
		}
		time.Sleep(time.Duration(attempt) * 750 * time.Millisecond)
	}
	if container == nil {
		return nil, fmt.Errorf("failed to start PostgreSQL container after retries: %w", lastErr)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = testcontainers.TerminateContainer(container, testcontainers.StopContext(ctx))
		return nil, fmt.Errorf("failed to get PostgreSQL connection string: %w", err)
	}

	return &Postgres{
		log:       log,
		cfg:       cfg,
		connStr:   connStr,
		container: container,
	}, nil
}

// NewDatabase creates an empty database for a single test and returns its
// connection string. The database is dropped when the test ends.
func NewDatabase(t *testing.T, db *Postgres) string {
	t.Helper()
	ctx := t.Context()

	name := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	admin, err := pgx.Connect(ctx, db.connStr)
	require.NoError(t, err, "failed to connect to admin database")
	_, err = admin.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize())
	require.NoError(t, err, "failed to create test database")
	require.NoError(t, admin.Close(ctx))

	u, err := url.Parse(db.connStr)
	require.NoError(t, err)
	u.Path = "/" + name
	connStr := u.String()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		conn, err := pgx.Connect(ctx, db.connStr)
		if err != nil {
			db.log.Error("failed to connect for test database cleanup", "error", err)
			return
		}
		defer conn.Close(ctx)
		if _, err := conn.Exec(ctx, "DROP DATABASE IF EXISTS "+pgx.Identifier{name}.Sanitize()+" WITH (FORCE)"); err != nil {
			db.log.Error("failed to drop test database", "database", name, "error", err)
		}
	})

	return connStr
}

// NewPool opens a pgx pool on connStr that is closed when the test ends.
func NewPool(t *testing.T, connStr string) *pgxpool.Pool {
	t.Helper()

	pool, err := pgxpool.New(t.Context(), connStr)
	require.NoError(t, err, "failed to create pool")
	t.Cleanup(pool.Close)
	return pool
}

func isRetryableContainerStartErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "wait until ready") ||
		strings.Contains(s, "mapped port") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "context deadline exceeded") ||
		strings.Contains(s, "/containers/") && strings.Contains(s, "json")
}
