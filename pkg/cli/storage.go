package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mchmarny/credscore/pkg/config"
	"github.com/mchmarny/credscore/pkg/data"
	"github.com/mchmarny/credscore/pkg/store"
)

// openHistory opens the snapshot history of the configured backend. SQL
// handles are closed by the root After hook.
func (a *appConfig) openHistory(ctx context.Context) (data.History, error) {
	s := a.Config.Storage

	switch s.Backend {
	case config.BackendFile:
		return data.NewFileHistory(s.HistoryDir)

	case config.BackendSQLite:
		if err := data.Init(s.DB); err != nil {
			return nil, fmt.Errorf("initializing database: %w", err)
		}
		db, err := data.GetDB(s.DB)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		a.db = db
		return data.NewSQLHistory(db, data.DriverSQLite), nil

	case config.BackendPostgres:
		dsn, err := a.postgresDSN()
		if err != nil {
			return nil, err
		}
		db, err := data.OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		a.db = db
		return data.NewSQLHistory(db, data.DriverPostgres), nil

	default:
		return nil, fmt.Errorf("unsupported storage backend %q", s.Backend)
	}
}

// postgresDSN prefers the config (or CREDSCORE_DSN) value and falls back to
// the secret saved with the auth command.
func (a *appConfig) postgresDSN() (string, error) {
	if dsn := a.Config.Storage.DSN; dsn != "" {
		return dsn, nil
	}
	dsn, err := getDSN(a.ConfigDir)
	if err != nil {
		return "", fmt.Errorf("postgres DSN not configured, run `%s auth --dsn`: %w", appName, err)
	}
	return dsn, nil
}

// openStore opens the history and loads the current state.
func (a *appConfig) openStore(ctx context.Context) (*store.Store, error) {
	h, err := a.openHistory(ctx)
	if err != nil {
		return nil, err
	}

	s, err := store.New(h, store.WithSeed(a.Config.Storage.Seed))
	if err != nil {
		return nil, err
	}

	if err := s.Load(ctx); err != nil {
		var cfgErr *store.ConfigurationError
		if errors.As(err, &cfgErr) {
			slog.Error("nothing to start from, provide a seed file with --seed", "tried", cfgErr.Tried)
		}
		return nil, err
	}

	return s, nil
}
