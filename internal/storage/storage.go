// Package storage abstracts where artifact files live. The orchestrator
// writes transcripts and archives through a Connection, backed by the
// local file system or a GCS bucket.
package storage

import (
	"context"
	"io"

	"github.com/mitchellh/mapstructure"

	"castforge/internal/support/exception"
)

const moduleName = "storage"

// Connection represents one storage backend.
type Connection interface {
	// Upload writes data to the given bucket and object name.
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download reads the object. The returned ReadCloser must be closed by
	// the caller.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects calls fn for each object name under the prefix.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error
	// DeleteObject removes one object.
	DeleteObject(ctx context.Context, bucket, objectName string) error
	// Close releases backend resources.
	Close() error
	// Type returns the adapter type identifier.
	Type() string
}

// Settings is the decoded per-backend configuration block.
type Settings struct {
	Type    string `mapstructure:"type"`
	BaseDir string `mapstructure:"base_dir"`
	Bucket  string `mapstructure:"bucket"`
}

// DecodeSettings decodes the free-form storage configuration map into
// typed settings.
func DecodeSettings(raw map[string]interface{}) (Settings, error) {
	var s Settings
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &s,
		ErrorUnused: false,
	})
	if err != nil {
		return Settings{}, exception.New(moduleName, "failed to build storage config decoder", err, false)
	}
	if err := decoder.Decode(raw); err != nil {
		return Settings{}, exception.New(moduleName, "invalid storage configuration", err, false)
	}
	if s.Type == "" {
		s.Type = "local"
	}
	if s.Type == "local" && s.BaseDir == "" {
		s.BaseDir = "output"
	}
	return s, nil
}
