package commands

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/roster-notify/internal/config"
	"github.com/jakechorley/roster-notify/pkg/db"
	"github.com/jakechorley/roster-notify/pkg/postgres"
	"github.com/jakechorley/roster-notify/pkg/sqlite"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Env     string
	Cfg     *config.Config
	Secrets *config.Secrets
	Logger  *zap.Logger
	Ctx     context.Context
}

// sqlStore is a database-backed sink that can also list and migrate its rows
type sqlStore interface {
	db.RosterLogStore
	db.ScriptLogReader
	db.Migrator
}

// OpenStore opens the configured sink wrapped in persist retries. The log-only
// sink is used when the driver is none.
func (a *AppContext) OpenStore() (db.RosterLogStore, error) {
	var store db.RosterLogStore
	if a.Cfg.Database.Driver == config.DriverNone {
		a.Logger.Info("No database configured, recording rows to the log only")
		store = db.NewLogStore(a.Logger)
	} else {
		sql, err := a.openSQLStore()
		if err != nil {
			return nil, err
		}
		store = sql
	}

	return db.NewRetryingStore(store, a.Cfg.Database.PersistAttempts, a.Cfg.Database.PersistRetryDelay, a.Logger), nil
}

// OpenRunStore is OpenStore for the run command. A dry run never touches the database,
// so it gets the log-only sink without connecting or creating a sqlite file.
func (a *AppContext) OpenRunStore(dryRun bool) (db.RosterLogStore, error) {
	if dryRun {
		return db.NewLogStore(a.Logger), nil
	}
	return a.OpenStore()
}

func (a *AppContext) openSQLStore() (sqlStore, error) {
	switch a.Cfg.Database.Driver {
	case config.DriverPostgres:
		return a.openPostgres()
	case config.DriverSQLite:
		a.Logger.Debug("Opening sqlite database", zap.String("path", a.Cfg.Database.SQLitePath))
		store, err := sqlite.NewDB(a.Cfg.Database.SQLitePath)
		if err != nil {
			return nil, err
		}
		// The file is created on first use, so keep its schema current
		if err := store.RunMigrations(a.Ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("database driver %q does not store rows", a.Cfg.Database.Driver)
	}
}

func (a *AppContext) openPostgres() (*postgres.DB, error) {
	if a.Secrets.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set for the postgres driver")
	}
	return postgres.NewDB(a.Ctx, a.Secrets.DatabaseURL, a.Logger)
}
