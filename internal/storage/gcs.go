package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"castforge/internal/support/exception"
	"castforge/internal/support/logger"
)

// gcsConnection implements Connection over a Google Cloud Storage client.
// Credentials come from the ambient application-default chain.
type gcsConnection struct {
	client *gcs.Client
}

// NewGCS creates a GCS-backed connection.
func NewGCS(ctx context.Context) (Connection, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, exception.New(moduleName, "failed to create GCS client", err, false)
	}
	logger.Infof("GCS storage connection established.")
	return &gcsConnection{client: client}, nil
}

var _ Connection = (*gcsConnection)(nil)

func (c *gcsConnection) Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error {
	w := c.client.Bucket(bucket).Object(objectName).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, data); err != nil {
		w.Close()
		return exception.New(moduleName,
			fmt.Sprintf("failed to upload gs://%s/%s", bucket, objectName), err, false)
	}
	if err := w.Close(); err != nil {
		return exception.New(moduleName,
			fmt.Sprintf("failed to finalize gs://%s/%s", bucket, objectName), err, false)
	}
	return nil
}

func (c *gcsConnection) Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error) {
	r, err := c.client.Bucket(bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, exception.New(moduleName,
				fmt.Sprintf("object gs://%s/%s not found", bucket, objectName), exception.ErrNotFound, false)
		}
		return nil, exception.New(moduleName,
			fmt.Sprintf("failed to read gs://%s/%s", bucket, objectName), err, false)
	}
	return r, nil
}

func (c *gcsConnection) ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error {
	it := c.client.Bucket(bucket).Objects(ctx, &gcs.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return exception.New(moduleName,
				fmt.Sprintf("failed to list gs://%s/%s", bucket, prefix), err, false)
		}
		if err := fn(attrs.Name); err != nil {
			return err
		}
	}
}

func (c *gcsConnection) DeleteObject(ctx context.Context, bucket, objectName string) error {
	err := c.client.Bucket(bucket).Object(objectName).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return exception.New(moduleName,
			fmt.Sprintf("failed to delete gs://%s/%s", bucket, objectName), err, false)
	}
	return nil
}

func (c *gcsConnection) Close() error { return c.client.Close() }

func (c *gcsConnection) Type() string { return "gcs" }
