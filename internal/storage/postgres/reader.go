package postgres

import (
	"context"
	"fmt"

	"github.com/JakeFAU/quotes-crawler/internal/store"
)

const (
	listQuotesSQL = `
SELECT
	q.quote_id,
	q.quote_text,
	COALESCE(a.author_name, ''),
	COALESCE(a.author_surname, ''),
	COALESCE(a.author_url, ''),
	COALESCE(a.author_born_date, ''),
	COALESCE(a.author_born_location, ''),
	COALESCE(array_agg(t.tag_text ORDER BY t.tag_id) FILTER (WHERE t.tag_id IS NOT NULL), '{}')
FROM quotes q
LEFT JOIN authors a ON a.author_id = q.author_id
LEFT JOIN quote_tags qt ON qt.quote_id = q.quote_id
LEFT JOIN tags t ON t.tag_id = qt.tag_id
GROUP BY q.quote_id, a.author_id
ORDER BY q.quote_id
LIMIT $1 OFFSET $2`

	listTagsSQL = `
SELECT t.tag_id, t.tag_text, COUNT(qt.quote_id)
FROM tags t
LEFT JOIN quote_tags qt ON qt.tag_id = t.tag_id
GROUP BY t.tag_id
ORDER BY t.tag_text`

	listDatabasesSQL = `SELECT datname FROM pg_database WHERE datistemplate = false ORDER BY datname`
)

// ListQuotes returns stored quotes joined with author and tags, by quote id.
func (s *QuoteStore) ListQuotes(ctx context.Context, limit, offset int) ([]store.QuoteView, error) {
	rows, err := s.pool.Query(ctx, listQuotesSQL, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list quotes: %w", err)
	}
	defer rows.Close()

	quotes := []store.QuoteView{}
	for rows.Next() {
		var q store.QuoteView
		err := rows.Scan(
			&q.ID,
			&q.Text,
			&q.AuthorName,
			&q.AuthorSurname,
			&q.AuthorURL,
			&q.AuthorBornDate,
			&q.AuthorBornLocation,
			&q.Tags,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quote row: %w", err)
		}
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate quote rows: %w", err)
	}
	return quotes, nil
}

// ListTags returns stored tags with the number of linked quotes.
func (s *QuoteStore) ListTags(ctx context.Context) ([]store.StoredTag, error) {
	rows, err := s.pool.Query(ctx, listTagsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	tags := []store.StoredTag{}
	for rows.Next() {
		var (
			tag   store.StoredTag
			count int64
		)
		if err := rows.Scan(&tag.ID, &tag.Text, &count); err != nil {
			return nil, fmt.Errorf("failed to scan tag row: %w", err)
		}
		tag.Quotes = int(count)
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tag rows: %w", err)
	}
	return tags, nil
}

// Ping checks database connectivity.
func (s *QuoteStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// ListDatabases returns the names of the non-template databases on the
// server.
func (s *QuoteStore) ListDatabases(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, listDatabasesSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan database name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate database names: %w", err)
	}
	return names, nil
}
