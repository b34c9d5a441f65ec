// Package gcs provides a blob store for export files backed by Google Cloud
// Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
)

// Config captures the bucket export files are written to.
type Config struct {
	Bucket string
	// CacheControl is set on every uploaded sheet. Empty leaves the GCS
	// default.
	CacheControl string
}

// BlobStore writes export sheets to a GCS bucket.
type BlobStore struct {
	client *storage.Client
	cfg    Config
}

// New creates a GCS-backed blob store. The caller owns client.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	cfg.Bucket = strings.TrimSpace(cfg.Bucket)
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{client: client, cfg: cfg}, nil
}

// URI returns the gs:// address of name in the configured bucket.
func (s *BlobStore) URI(name string) string {
	return "gs://" + path.Join(s.cfg.Bucket, objectName(name))
}

// PutObject uploads r as name in a single request and returns its URI.
// Sheets are served as attachments named after the last path element.
func (s *BlobStore) PutObject(ctx context.Context, name string, contentType string, r io.Reader) (string, error) {
	name = objectName(name)
	if name == "" {
		return "", fmt.Errorf("object name is required")
	}
	w := s.client.Bucket(s.cfg.Bucket).Object(name).NewWriter(ctx)
	w.ChunkSize = 0
	w.ContentType = contentType
	w.ContentDisposition = fmt.Sprintf("attachment; filename=%q", path.Base(name))
	if s.cfg.CacheControl != "" {
		w.CacheControl = s.cfg.CacheControl
	}

	if _, err := io.Copy(w, r); err != nil {
		// Close aborts the upload; its error adds nothing to the copy failure.
		_ = w.Close() //nolint:errcheck // upload already failed
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", name, err)
	}
	return s.URI(name), nil
}

func objectName(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "/")
}
