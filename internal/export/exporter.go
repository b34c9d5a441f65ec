package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
)

// Object names written for every run.
const (
	QuotesObject = "quotes.csv"
	TagsObject   = "tags.csv"
	csvType      = "text/csv; charset=utf-8"
)

// BlobStore persists artifacts and returns their URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Exporter writes the quotes and tags sheets of a run.
type Exporter struct {
	blobs  BlobStore
	prefix string
	logger *zap.Logger
}

// NewExporter returns an Exporter writing under prefix. A nil blobs store
// yields a disabled exporter.
func NewExporter(blobs BlobStore, prefix string, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{blobs: blobs, prefix: strings.Trim(prefix, "/"), logger: logger}
}

// Enabled reports whether a blob store is configured.
func (e *Exporter) Enabled() bool {
	return e != nil && e.blobs != nil
}

// ObjectPath returns the blob path of name for runID.
func (e *Exporter) ObjectPath(runID, name string) string {
	return path.Join(e.prefix, runID, name)
}

// Export writes {prefix}/{runID}/quotes.csv and tags.csv and returns their
// URIs. A disabled exporter does nothing.
func (e *Exporter) Export(ctx context.Context, runID string, result crawler.CrawlResult) ([]string, error) {
	if !e.Enabled() {
		return nil, nil
	}
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	sheets := []struct {
		name  string
		sheet Sheet
	}{
		{QuotesObject, QuotesSheet(result)},
		{TagsObject, TagsSheet(result)},
	}
	uris := make([]string, 0, len(sheets))
	for _, sheet := range sheets {
		body, err := sheet.sheet.CSV()
		if err != nil {
			return uris, fmt.Errorf("encode %s: %w", sheet.name, err)
		}
		uri, err := e.blobs.PutObject(ctx, e.ObjectPath(runID, sheet.name), csvType, bytes.NewReader(body))
		if err != nil {
			return uris, fmt.Errorf("export %s: %w", sheet.name, err)
		}
		e.logger.Info("sheet exported", zap.String("run_id", runID), zap.String("uri", uri))
		uris = append(uris, uri)
	}
	return uris, nil
}
