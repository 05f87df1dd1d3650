package storage

import (
	"context"

	"go.uber.org/fx"

	"castforge/internal/config"
	"castforge/internal/support/exception"
)

// NewConnection builds the configured storage connection.
func NewConnection(lc fx.Lifecycle, cfg *config.Config) (Connection, error) {
	settings, err := DecodeSettings(cfg.Storage)
	if err != nil {
		return nil, err
	}
	var conn Connection
	switch settings.Type {
	case "local":
		conn, err = NewLocal(settings.BaseDir)
	case "gcs":
		conn, err = NewGCS(context.Background())
	default:
		return nil, exception.Newf(moduleName, "unknown storage type %q", settings.Type)
	}
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return conn.Close()
		},
	})
	return conn, nil
}

// NewBucket resolves the logical bucket name artifacts are written under.
func NewBucket(cfg *config.Config) (Bucket, error) {
	settings, err := DecodeSettings(cfg.Storage)
	if err != nil {
		return "", err
	}
	if settings.Type == "gcs" && settings.Bucket == "" {
		return "", exception.Newf(moduleName, "gcs storage requires a bucket name")
	}
	if settings.Bucket == "" {
		return Bucket("artifacts"), nil
	}
	return Bucket(settings.Bucket), nil
}

// Bucket is the artifact bucket (or local subdirectory) name.
type Bucket string

// Module is an Fx module that provides the artifact storage connection.
var Module = fx.Options(
	fx.Provide(NewConnection),
	fx.Provide(NewBucket),
)
