package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrJamesThe3rd/expenso/internal/config"
	"github.com/MrJamesThe3rd/expenso/internal/connectivity"
	"github.com/MrJamesThe3rd/expenso/internal/database"
	"github.com/MrJamesThe3rd/expenso/internal/remote"
	"github.com/MrJamesThe3rd/expenso/internal/remote/sheetsapi"
	"github.com/MrJamesThe3rd/expenso/internal/session"
	"github.com/MrJamesThe3rd/expenso/internal/storage"
	"github.com/MrJamesThe3rd/expenso/internal/storage/memory"
	"github.com/MrJamesThe3rd/expenso/internal/storage/postgres"
	"github.com/MrJamesThe3rd/expenso/internal/storage/sqlite"
	"github.com/MrJamesThe3rd/expenso/internal/syncengine"
)

// App holds the process wide dependencies shared by every user session.
type App struct {
	Store    *storage.Store
	Net      *connectivity.Monitor
	Sessions *session.Manager

	db *sql.DB
}

type Options struct {
	// Remote overrides the adapter built from the config.
	Remote remote.Adapter
	// Backend overrides the backend selected by the config.
	Backend storage.Backend
	// Offline skips reachability probing. Sync cycles are skipped until
	// SetOnline is called on Net.
	Offline bool
}

// Open wires storage, connectivity and the remote adapter. Call Close when
// done.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{}

	backend := opts.Backend
	if backend == nil {
		var err error

		backend, a.db, err = openBackend(cfg)
		if err != nil {
			return nil, err
		}
	}

	a.Store = storage.New(backend, logger)

	var prober connectivity.Prober
	if !opts.Offline {
		prober = connectivity.NewHTTPProber(cfg.Connectivity.ProbeURL, cfg.Connectivity.Timeout)
	}

	a.Net = connectivity.New(prober, connectivity.Config{
		PollInterval: cfg.Connectivity.PollInterval,
		Logger:       logger,
	})

	if prober != nil {
		a.Net.Start(ctx)
	}

	adapter := opts.Remote
	if adapter == nil {
		adapter = sheetsapi.New(cfg.Remote.BaseURL, cfg.Remote.Token, cfg.Remote.Timeout, logger)
	}

	a.Sessions = session.NewManager(session.Config{
		Store:  a.Store,
		Remote: adapter,
		Net:    a.Net,
		Sync:   SyncConfig(cfg),
		Logger: logger,
	})

	logger.Info("app opened", "storage", cfg.Storage.Driver, "online", a.Net.IsOnline())

	return a, nil
}

func SyncConfig(cfg *config.Config) syncengine.Config {
	return syncengine.Config{
		Interval:        cfg.Sync.Interval,
		EnqueueDebounce: cfg.Sync.EnqueueDebounce,
		ConnectDebounce: cfg.Sync.ConnectDebounce,
		RetryBase:       cfg.Sync.RetryBase,
		MaxRetries:      cfg.Sync.MaxRetries,
		QueueDelay:      cfg.Sync.QueueDelay,
		PendingDelay:    cfg.Sync.PendingDelay,
		Retention:       cfg.Sync.Retention,
	}
}

func openBackend(cfg *config.Config) (storage.Backend, *sql.DB, error) {
	switch cfg.Storage.Driver {
	case "memory":
		return memory.New(), nil, nil
	case "sqlite":
		db, err := database.NewSQLite(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}

		if err := database.Migrate(db, database.SQLite); err != nil {
			db.Close()
			return nil, nil, err
		}

		return sqlite.New(db), db, nil
	case "postgres":
		db, err := database.New(cfg.ConnectionString())
		if err != nil {
			return nil, nil, err
		}

		if err := database.Migrate(db, database.Postgres); err != nil {
			db.Close()
			return nil, nil, err
		}

		return postgres.New(db), db, nil
	}

	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// Close stops every session, then connectivity polling, then closes the
// database.
func (a *App) Close() error {
	a.Sessions.Close()
	a.Net.Stop()

	if a.db == nil {
		return nil
	}

	if err := a.db.Close(); err != nil {
		return errors.Join(errors.New("closing database"), err)
	}

	return nil
}
