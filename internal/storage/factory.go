package storage

import (
	"context"
	"fmt"

	"github.com/yourname/sleepcoach/internal"
	"github.com/yourname/sleepcoach/internal/config"
)

// New opens the backend selected by cfg.StorageBackend.
func New(ctx context.Context, cfg *config.Config, logger internal.Logger) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.StorageBackend {
	case config.BackendSQLite:
		store, err = NewSQLiteStorage(cfg.SQLitePath, logger)
	case config.BackendPostgres:
		store, err = NewPostgresStorage(ctx, cfg.PostgresDSN, logger)
	case config.BackendFile:
		store, err = NewFileStorage(cfg.DataDir, logger)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.StorageBackend)
	}
	if err != nil {
		return nil, err
	}
	logger.Infof("storage: using %s backend", cfg.StorageBackend)
	return store, nil
}
