package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
	"github.com/JakeFAU/quotes-crawler/internal/store"
)

type authorKey struct {
	name    string
	surname string
}

type authorRow struct {
	id     int64
	key    authorKey
	detail crawler.QuoteRecord
}

type quoteRow struct {
	id       int64
	text     string
	authorID int64
}

type link struct {
	quoteID int64
	tagID   int64
}

// QuoteStore is an in-memory store.Persister and store.QuoteReader.
type QuoteStore struct {
	mu      sync.RWMutex
	authors map[authorKey]*authorRow
	quotes  map[string]*quoteRow
	tags    map[string]int64
	links   map[link]bool
	nextID  int64
}

// NewQuoteStore returns an empty store.
func NewQuoteStore() *QuoteStore {
	return &QuoteStore{
		authors: make(map[authorKey]*authorRow),
		quotes:  make(map[string]*quoteRow),
		tags:    make(map[string]int64),
		links:   make(map[link]bool),
	}
}

func (s *QuoteStore) id() int64 {
	s.nextID++
	return s.nextID
}

// Persist applies result with the same conflict rules as Postgres: authors
// refresh on conflict, quotes, tags and links are insert-if-absent.
func (s *QuoteStore) Persist(ctx context.Context, result crawler.CrawlResult) (store.PersistReport, error) {
	if err := ctx.Err(); err != nil {
		return store.PersistReport{}, &store.StorageConnectionError{Op: "begin", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var report store.PersistReport
	seen := make(map[authorKey]bool)
	for _, q := range result.Quotes {
		key := authorKey{name: q.AuthorName, surname: q.AuthorSurname}
		if seen[key] {
			continue
		}
		seen[key] = true
		q.AuthorDescription = strings.TrimSpace(q.AuthorDescription)
		if row, ok := s.authors[key]; ok {
			row.detail = q
			report.Authors.Existing++
			continue
		}
		s.authors[key] = &authorRow{id: s.id(), key: key, detail: q}
		report.Authors.Inserted++
	}

	quoteIDs := make([]int64, len(result.Quotes))
	for i, q := range result.Quotes {
		if row, ok := s.quotes[q.Text]; ok {
			quoteIDs[i] = row.id
			report.Quotes.Existing++
			continue
		}
		row := &quoteRow{id: s.id(), text: q.Text}
		if a, ok := s.authors[authorKey{name: q.AuthorName, surname: q.AuthorSurname}]; ok {
			row.authorID = a.id
		}
		s.quotes[q.Text] = row
		quoteIDs[i] = row.id
		report.Quotes.Inserted++
	}

	for _, entry := range result.TagEntries() {
		if _, ok := s.tags[entry.Text]; ok {
			report.Tags.Existing++
			continue
		}
		s.tags[entry.Text] = s.id()
		report.Tags.Inserted++
	}

	for i, q := range result.Quotes {
		for _, label := range q.Tags {
			tagID, ok := s.tags[label]
			if !ok {
				continue
			}
			l := link{quoteID: quoteIDs[i], tagID: tagID}
			if s.links[l] {
				report.QuoteTags.Existing++
				continue
			}
			s.links[l] = true
			report.QuoteTags.Inserted++
		}
	}
	return report, nil
}

// ListQuotes returns quotes ordered by id.
func (s *QuoteStore) ListQuotes(_ context.Context, limit, offset int) ([]store.QuoteView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]*quoteRow, 0, len(s.quotes))
	for _, row := range s.quotes {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].id < rows[j].id })
	rows = page(rows, limit, offset)

	byID := make(map[int64]*authorRow, len(s.authors))
	for _, a := range s.authors {
		byID[a.id] = a
	}
	tagText := make(map[int64]string, len(s.tags))
	for text, id := range s.tags {
		tagText[id] = text
	}

	out := make([]store.QuoteView, 0, len(rows))
	for _, row := range rows {
		view := store.QuoteView{ID: row.id, Text: row.text, Tags: s.tagsOf(row.id, tagText)}
		if a, ok := byID[row.authorID]; ok {
			view.AuthorName = a.key.name
			view.AuthorSurname = a.key.surname
			view.AuthorURL = a.detail.AuthorURL
			view.AuthorBornDate = a.detail.AuthorBornDate
			view.AuthorBornLocation = a.detail.AuthorBornLocation
		}
		out = append(out, view)
	}
	return out, nil
}

func (s *QuoteStore) tagsOf(quoteID int64, tagText map[int64]string) []string {
	var ids []int64
	for l := range s.links {
		if l.quoteID == quoteID {
			ids = append(ids, l.tagID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	tags := make([]string, 0, len(ids))
	for _, id := range ids {
		tags = append(tags, tagText[id])
	}
	return tags
}

// ListTags returns tags ordered by text with their quote counts.
func (s *QuoteStore) ListTags(_ context.Context) ([]store.StoredTag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[int64]int)
	for l := range s.links {
		counts[l.tagID]++
	}
	out := make([]store.StoredTag, 0, len(s.tags))
	for text, id := range s.tags {
		out = append(out, store.StoredTag{ID: id, Text: text, Quotes: counts[id]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Text < out[j].Text })
	return out, nil
}

// Ping always succeeds.
func (s *QuoteStore) Ping(context.Context) error {
	return nil
}

// Author returns the stored author detail for name and surname.
func (s *QuoteStore) Author(name, surname string) (crawler.QuoteRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.authors[authorKey{name: name, surname: surname}]
	if !ok {
		return crawler.QuoteRecord{}, false
	}
	return a.detail, true
}

// Counts reports the number of authors, quotes, tags and links stored.
func (s *QuoteStore) Counts() (authors, quotes, tags, links int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.authors), len(s.quotes), len(s.tags), len(s.links)
}

func page[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return rows[:0]
	}
	if offset > 0 {
		rows = rows[offset:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
