package postgres

import (
	"context"
	"embed"
	"fmt"

	"github.com/GuiaBolso/darwin"
	"github.com/diegoclair/sqlmigrator"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	applicationName = "roster-notify"
	// One run writes a handful of rows from a single goroutine
	maxConns = 2
)

// DB stores roster logs in PostgreSQL and runs the dashboard reports
type DB struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewDB connects to connString and checks the server is reachable
func NewDB(ctx context.Context, connString string, logger *zap.Logger) (*DB, error) {
	cfg, err := poolConfig(connString)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Debug("Connected to postgres",
		zap.String("host", cfg.ConnConfig.Host),
		zap.String("database", cfg.ConnConfig.Database))

	return &DB{pool: pool, logger: logger}, nil
}

// poolConfig parses connString and tags the sessions with the application name
// unless the connection string already sets one
func poolConfig(connString string) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}

	if cfg.ConnConfig.RuntimeParams["application_name"] == "" {
		cfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	cfg.MaxConns = maxConns

	return cfg, nil
}

func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

// RunMigrations applies the embedded script_logs migrations with the same migrator as
// the sqlite sink. Applied versions are tracked by darwin in its own table.
func (db *DB) RunMigrations(ctx context.Context) error {
	conn := stdlib.OpenDBFromPool(db.pool)
	defer conn.Close()

	migrator := sqlmigrator.New(conn, darwin.PostgresDialect{})
	if err := migrator.Migrate(migrationsFS, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	db.logger.Info("Postgres schema up to date")
	return nil
}
