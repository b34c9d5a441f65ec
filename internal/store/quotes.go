package store

import (
	"context"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
)

// Table names used in reports and metrics.
const (
	TableAuthors   = "authors"
	TableQuotes    = "quotes"
	TableTags      = "tags"
	TableQuoteTags = "quote_tags"
)

// TableCounts tallies rows for one table.
type TableCounts struct {
	// Inserted counts rows that did not exist before.
	Inserted int `json:"inserted"`
	// Existing counts rows already present. Author rows counted here were
	// refreshed in place.
	Existing int `json:"existing"`
	// Failed counts rows that raised a row-scoped error.
	Failed int `json:"failed"`
}

// PersistReport summarizes one Persist call.
type PersistReport struct {
	Authors   TableCounts `json:"authors"`
	Quotes    TableCounts `json:"quotes"`
	Tags      TableCounts `json:"tags"`
	QuoteTags TableCounts `json:"quote_tags"`
	RowErrors []RowError  `json:"row_errors,omitempty"`
}

// Counts returns the tally for table, or the zero value for unknown names.
func (r PersistReport) Counts(table string) TableCounts {
	switch table {
	case TableAuthors:
		return r.Authors
	case TableQuotes:
		return r.Quotes
	case TableTags:
		return r.Tags
	case TableQuoteTags:
		return r.QuoteTags
	default:
		return TableCounts{}
	}
}

// Persister writes a crawl result to durable storage.
type Persister interface {
	// Persist writes authors, quotes, tags and their links in one
	// transaction. Row-scoped failures are reported in PersistReport and do
	// not abort the batch; anything else returns *StorageConnectionError.
	Persist(ctx context.Context, result crawler.CrawlResult) (PersistReport, error)
}

// QuoteView is one stored quote joined with its author and tags.
type QuoteView struct {
	ID                 int64    `json:"id"`
	Text               string   `json:"text"`
	AuthorName         string   `json:"author_name"`
	AuthorSurname      string   `json:"author_surname"`
	AuthorURL          string   `json:"author_url"`
	AuthorBornDate     string   `json:"author_born_date"`
	AuthorBornLocation string   `json:"author_born_location"`
	Tags               []string `json:"tags"`
}

// StoredTag is a tag row with its storage-assigned id.
type StoredTag struct {
	ID     int64  `json:"id"`
	Text   string `json:"text"`
	Quotes int    `json:"quotes"`
}

// QuoteReader is the read-only model behind the dashboard.
type QuoteReader interface {
	// ListQuotes returns stored quotes ordered by id.
	ListQuotes(ctx context.Context, limit, offset int) ([]QuoteView, error)
	// ListTags returns stored tags ordered by text.
	ListTags(ctx context.Context) ([]StoredTag, error)
	// Ping checks that storage is reachable.
	Ping(ctx context.Context) error
}
