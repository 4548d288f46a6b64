// Package blobstore stores report artifacts and uploaded import files,
// either in a GCS bucket or in a local directory.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
)

// ErrNotFound is returned when a key has no object.
var ErrNotFound = errors.New("blob not found")

// Store is the object storage the services write to.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// GCS keeps objects in a Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
	logger *slog.Logger
}

// NewGCS wraps an existing client.
func NewGCS(client *storage.Client, bucket string, logger *slog.Logger) *GCS {
	return &GCS{client: client, bucket: bucket, logger: logger.With("component", "gcs_store")}
}

// Put uploads r under key and returns its gs:// URI.
func (g *GCS) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	wc := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := io.Copy(wc, r); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("failed to upload object to GCS: %w", err)
	}
	// Close finalizes the upload.
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}
	g.logger.InfoContext(ctx, "Object uploaded to GCS", "bucket", g.bucket, "key", key)
	return fmt.Sprintf("gs://%s/%s", g.bucket, key), nil
}

// Open returns a reader for key.
func (g *GCS) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	key = strings.TrimPrefix(key, fmt.Sprintf("gs://%s/", g.bucket))
	rc, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open GCS object %s: %w", key, err)
	}
	return rc, nil
}

// Delete removes key. A missing object is not an error.
func (g *GCS) Delete(ctx context.Context, key string) error {
	key = strings.TrimPrefix(key, fmt.Sprintf("gs://%s/", g.bucket))
	err := g.client.Bucket(g.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete GCS object %s: %w", key, err)
	}
	return nil
}

// Local keeps objects as files under a root directory.
type Local struct {
	root string
}

// NewLocal creates the root directory if needed.
func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory %s: %w", root, err)
	}
	return &Local{root: root}, nil
}

func (l *Local) path(key string) (string, error) {
	clean := filepath.Clean("/" + strings.TrimPrefix(key, "file://"))
	p := filepath.Join(l.root, clean)
	if !strings.HasPrefix(p, filepath.Clean(l.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid blob key '%s'", key)
	}
	return p, nil
}

// Put writes r to a temp file and renames it into place.
func (l *Local) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	p, err := l.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("failed to create blob directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to move blob into place: %w", err)
	}
	return key, nil
}

// Open returns a reader for key.
func (l *Local) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := l.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open blob %s: %w", key, err)
	}
	return f, nil
}

// Delete removes key. A missing file is not an error.
func (l *Local) Delete(ctx context.Context, key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}
	return nil
}

// Open picks a GCS bucket when bucket is set and a local directory
// otherwise. The returned func releases the underlying client.
func Open(ctx context.Context, bucket, localDir string, logger *slog.Logger) (Store, func(), error) {
	if bucket != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create GCS client: %w", err)
		}
		logger.Info("GCS client initialized.", "bucket", bucket)
		return NewGCS(client, bucket, logger), func() { client.Close() }, nil
	}

	local, err := NewLocal(localDir)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Using local blob storage.", "dir", localDir)
	return local, func() {}, nil
}
