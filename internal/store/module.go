// Package store selects and wires the job persistence backend.
package store

import (
	"context"

	"go.uber.org/fx"

	"castforge/internal/config"
	"castforge/internal/job"
	"castforge/internal/store/memory"
	"castforge/internal/store/sqlite"
	"castforge/internal/support/logger"
)

// NewBackend builds the persistence backend from configuration: a SQLite
// file when a database path is set, otherwise an in-memory map.
func NewBackend(lc fx.Lifecycle, cfg *config.Config) (job.Persistence, error) {
	var backend job.Persistence
	if cfg.Database.Path == "" {
		logger.Warnf("No database path configured; job state will not survive restarts.")
		backend = memory.New()
	} else {
		b, err := sqlite.New(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		backend = b
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return backend.Close()
		},
	})
	return backend, nil
}

// NewStore builds the authoritative job store and recovers persisted job
// metadata on startup.
func NewStore(lc fx.Lifecycle, backend job.Persistence) *job.Store {
	s := job.NewStore(backend)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_, err := s.Recover(ctx)
			return err
		},
	})
	return s
}

// Module is an Fx module that provides the job store and its backend.
var Module = fx.Options(
	fx.Provide(NewBackend),
	fx.Provide(NewStore),
)
