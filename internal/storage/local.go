package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"castforge/internal/support/exception"
	"castforge/internal/support/logger"
)

// localConnection implements Connection over the local file system. The
// bucket is treated as a directory under the configured base dir.
type localConnection struct {
	baseDir string
}

// NewLocal creates a local file system connection, creating the base
// directory if needed.
func NewLocal(baseDir string) (Connection, error) {
	if baseDir == "" {
		return nil, exception.Newf(moduleName, "local storage requires a base directory")
	}
	info, err := os.Stat(baseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, exception.New(moduleName,
				fmt.Sprintf("failed to stat base directory %s", baseDir), err, false)
		}
		if err := os.MkdirAll(baseDir, 0o755); err != nil {
			return nil, exception.New(moduleName,
				fmt.Sprintf("failed to create base directory %s", baseDir), err, false)
		}
	} else if !info.IsDir() {
		return nil, exception.Newf(moduleName, "base path %s is not a directory", baseDir)
	}
	return &localConnection{baseDir: baseDir}, nil
}

var _ Connection = (*localConnection)(nil)

// resolvePath joins and validates the target path, rejecting traversal
// outside the base directory.
func (c *localConnection) resolvePath(bucket, objectName string) (string, error) {
	full := filepath.Join(c.baseDir, bucket, filepath.FromSlash(objectName))
	abs, err := filepath.Abs(full)
	if err != nil {
		return "", err
	}
	base, err := filepath.Abs(c.baseDir)
	if err != nil {
		return "", err
	}
	if abs != base && !strings.HasPrefix(abs, base+string(os.PathSeparator)) {
		return "", exception.Newf(moduleName, "object path %q escapes the storage root", objectName)
	}
	return abs, nil
}

func (c *localConnection) Upload(_ context.Context, bucket, objectName string, data io.Reader, _ string) error {
	full, err := c.resolvePath(bucket, objectName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return exception.New(moduleName,
			fmt.Sprintf("failed to create directory for %s", full), err, false)
	}
	f, err := os.Create(full)
	if err != nil {
		return exception.New(moduleName,
			fmt.Sprintf("failed to create file %s", full), err, false)
	}
	defer f.Close()
	if _, err := io.Copy(f, data); err != nil {
		return exception.New(moduleName,
			fmt.Sprintf("failed to write %s", full), err, false)
	}
	logger.Debugf("Wrote object %s/%s to local storage.", bucket, objectName)
	return nil
}

func (c *localConnection) Download(_ context.Context, bucket, objectName string) (io.ReadCloser, error) {
	full, err := c.resolvePath(bucket, objectName)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, exception.New(moduleName,
				fmt.Sprintf("object %s/%s not found", bucket, objectName), exception.ErrNotFound, false)
		}
		return nil, exception.New(moduleName,
			fmt.Sprintf("failed to open %s", full), err, false)
	}
	return f, nil
}

func (c *localConnection) ListObjects(_ context.Context, bucket, prefix string, fn func(objectName string) error) error {
	root, err := c.resolvePath(bucket, "")
	if err != nil {
		return err
	}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return fs.SkipAll
			}
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		name := filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			return nil
		}
		return fn(name)
	})
	if err != nil {
		return exception.New(moduleName,
			fmt.Sprintf("failed to list objects under %s/%s", bucket, prefix), err, false)
	}
	return nil
}

func (c *localConnection) DeleteObject(_ context.Context, bucket, objectName string) error {
	full, err := c.resolvePath(bucket, objectName)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return exception.New(moduleName,
			fmt.Sprintf("failed to delete %s", full), err, false)
	}
	return nil
}

func (c *localConnection) Close() error { return nil }

func (c *localConnection) Type() string { return "local" }
