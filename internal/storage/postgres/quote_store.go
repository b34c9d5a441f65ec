package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
	"github.com/JakeFAU/quotes-crawler/internal/store"
)

const (
	savepointSQL         = `SAVEPOINT persist_row`
	releaseSavepointSQL  = `RELEASE SAVEPOINT persist_row`
	rollbackSavepointSQL = `ROLLBACK TO SAVEPOINT persist_row`

	upsertAuthorSQL = `
INSERT INTO authors (
	author_name,
	author_surname,
	author_url,
	author_born_date,
	author_born_location,
	author_description
) VALUES ($1, $2, $3, $4, $5, TRIM($6))
ON CONFLICT (author_name, author_surname) DO UPDATE SET
	author_url = EXCLUDED.author_url,
	author_born_date = EXCLUDED.author_born_date,
	author_born_location = EXCLUDED.author_born_location,
	author_description = EXCLUDED.author_description
RETURNING author_id, (xmax = 0) AS inserted`

	insertQuoteSQL = `
WITH ins AS (
	INSERT INTO quotes (quote_text, author_id)
	VALUES ($1, $2)
	ON CONFLICT (quote_text) DO NOTHING
	RETURNING quote_id
)
SELECT quote_id, true FROM ins
UNION ALL
SELECT quote_id, false FROM quotes WHERE quote_text = $1
LIMIT 1`

	insertTagSQL = `
WITH ins AS (
	INSERT INTO tags (tag_text)
	VALUES ($1)
	ON CONFLICT (tag_text) DO NOTHING
	RETURNING tag_id
)
SELECT tag_id, true FROM ins
UNION ALL
SELECT tag_id, false FROM tags WHERE tag_text = $1
LIMIT 1`

	insertQuoteTagSQL = `
INSERT INTO quote_tags (quote_id, tag_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING`
)

type authorKey struct {
	name    string
	surname string
}

// QuoteStore persists crawl results and serves the dashboard read model.
type QuoteStore struct {
	pool   Pool
	logger *zap.Logger
}

// NewQuoteStore wraps an existing pool.
func NewQuoteStore(pool Pool, logger *zap.Logger) (*QuoteStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuoteStore{pool: pool, logger: logger}, nil
}

// EnsureSchema creates missing tables on the store's pool.
func (s *QuoteStore) EnsureSchema(ctx context.Context) error {
	return EnsureSchema(ctx, s.pool)
}

// persistTx carries the state of one Persist call.
type persistTx struct {
	store  *QuoteStore
	tx     pgx.Tx
	report store.PersistReport
}

// Persist writes result in a single transaction. Each row runs inside its own
// savepoint; a server-side error on one row is rolled back to that savepoint,
// recorded and skipped. Any other failure rolls back everything.
func (s *QuoteStore) Persist(ctx context.Context, result crawler.CrawlResult) (store.PersistReport, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return store.PersistReport{}, &store.StorageConnectionError{Op: "begin", Err: err}
	}
	p := &persistTx{store: s, tx: tx}

	if err := p.run(ctx, result); err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			s.logger.Error("rollback failed", zap.Error(rbErr))
		}
		return store.PersistReport{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return store.PersistReport{}, &store.StorageConnectionError{Op: "commit", Err: err}
	}
	return p.report, nil
}

func (p *persistTx) run(ctx context.Context, result crawler.CrawlResult) error {
	authorIDs, err := p.authors(ctx, result.Quotes)
	if err != nil {
		return &store.StorageConnectionError{Op: "persist authors", Err: err}
	}
	quoteIDs, err := p.quotes(ctx, result.Quotes, authorIDs)
	if err != nil {
		return &store.StorageConnectionError{Op: "persist quotes", Err: err}
	}
	tagIDs, err := p.tags(ctx, result.TagEntries())
	if err != nil {
		return &store.StorageConnectionError{Op: "persist tags", Err: err}
	}
	if err := p.links(ctx, result.Quotes, quoteIDs, tagIDs); err != nil {
		return &store.StorageConnectionError{Op: "persist quote tags", Err: err}
	}
	return nil
}

func (p *persistTx) authors(ctx context.Context, quotes []crawler.QuoteRecord) (map[authorKey]int64, error) {
	ids := make(map[authorKey]int64)
	seen := make(map[authorKey]bool)
	for _, q := range quotes {
		key := authorKey{name: q.AuthorName, surname: q.AuthorSurname}
		if seen[key] {
			continue
		}
		seen[key] = true

		var (
			id       int64
			inserted bool
		)
		ok, err := p.row(ctx, store.TableAuthors, joinName(key), &p.report.Authors, func() error {
			return p.tx.QueryRow(ctx, upsertAuthorSQL,
				q.AuthorName,
				q.AuthorSurname,
				q.AuthorURL,
				q.AuthorBornDate,
				q.AuthorBornLocation,
				q.AuthorDescription,
			).Scan(&id, &inserted)
		})
		if err != nil {
			return nil, err
		}
		if ok {
			ids[key] = id
			countRow(&p.report.Authors, inserted)
		}
	}
	return ids, nil
}

func (p *persistTx) quotes(
	ctx context.Context,
	quotes []crawler.QuoteRecord,
	authorIDs map[authorKey]int64,
) ([]int64, error) {
	ids := make([]int64, len(quotes))
	for i, q := range quotes {
		var authorID any
		if id, ok := authorIDs[authorKey{name: q.AuthorName, surname: q.AuthorSurname}]; ok {
			authorID = id
		}

		var (
			id       int64
			inserted bool
		)
		ok, err := p.row(ctx, store.TableQuotes, q.Text, &p.report.Quotes, func() error {
			return p.tx.QueryRow(ctx, insertQuoteSQL, q.Text, authorID).Scan(&id, &inserted)
		})
		if err != nil {
			return nil, err
		}
		if ok {
			ids[i] = id
			countRow(&p.report.Quotes, inserted)
		}
	}
	return ids, nil
}

func (p *persistTx) tags(ctx context.Context, entries []crawler.TagEntry) (map[string]int64, error) {
	ids := make(map[string]int64, len(entries))
	for _, entry := range entries {
		var (
			id       int64
			inserted bool
		)
		ok, err := p.row(ctx, store.TableTags, entry.Text, &p.report.Tags, func() error {
			return p.tx.QueryRow(ctx, insertTagSQL, entry.Text).Scan(&id, &inserted)
		})
		if err != nil {
			return nil, err
		}
		if ok {
			ids[entry.Text] = id
			countRow(&p.report.Tags, inserted)
		}
	}
	return ids, nil
}

func (p *persistTx) links(
	ctx context.Context,
	quotes []crawler.QuoteRecord,
	quoteIDs []int64,
	tagIDs map[string]int64,
) error {
	for i, q := range quotes {
		quoteID := quoteIDs[i]
		if quoteID == 0 {
			continue
		}
		for _, label := range q.Tags {
			tagID, ok := tagIDs[label]
			if !ok {
				continue
			}
			var inserted bool
			key := fmt.Sprintf("%d/%d", quoteID, tagID)
			ok, err := p.row(ctx, store.TableQuoteTags, key, &p.report.QuoteTags, func() error {
				tag, err := p.tx.Exec(ctx, insertQuoteTagSQL, quoteID, tagID)
				inserted = tag.RowsAffected() > 0
				return err
			})
			if err != nil {
				return err
			}
			if ok {
				countRow(&p.report.QuoteTags, inserted)
			}
		}
	}
	return nil
}

// row runs fn inside the row savepoint and reports whether it succeeded. A
// row-scoped failure is recorded in the report and counted in counts; the
// returned error is always fatal for the transaction.
func (p *persistTx) row(ctx context.Context, table, key string, counts *store.TableCounts, fn func() error) (bool, error) {
	if _, err := p.tx.Exec(ctx, savepointSQL); err != nil {
		return false, fmt.Errorf("savepoint: %w", err)
	}
	err := fn()
	if err == nil {
		if _, err := p.tx.Exec(ctx, releaseSavepointSQL); err != nil {
			return false, fmt.Errorf("release savepoint: %w", err)
		}
		return true, nil
	}
	if !isRowScoped(err) {
		return false, err
	}
	if _, rbErr := p.tx.Exec(ctx, rollbackSavepointSQL); rbErr != nil {
		return false, fmt.Errorf("rollback to savepoint: %w", rbErr)
	}
	counts.Failed++
	p.report.RowErrors = append(p.report.RowErrors, store.RowError{Table: table, Key: key, Err: err})
	p.store.logger.Warn("row write failed",
		zap.String("table", table),
		zap.String("key", key),
		zap.Error(err),
	)
	return false, nil
}

func isRowScoped(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) || errors.Is(err, pgx.ErrNoRows)
}

func countRow(counts *store.TableCounts, inserted bool) {
	if inserted {
		counts.Inserted++
		return
	}
	counts.Existing++
}

func joinName(key authorKey) string {
	if key.surname == "" {
		return key.name
	}
	return key.name + " " + key.surname
}
