package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
	"github.com/JakeFAU/quotes-crawler/internal/store"
)

func sampleResult() crawler.CrawlResult {
	return crawler.CrawlResult{
		Quotes: []crawler.QuoteRecord{
			{Text: "Q1", AuthorName: "Ann", AuthorSurname: "Lee", AuthorURL: "u/ann", AuthorDescription: " Bio ", TagIDs: []int{1, 2}, Tags: []string{"life", "love"}},
			{Text: "Q2", AuthorName: "Bob", AuthorURL: "u/bob", TagIDs: []int{2, 3}, Tags: []string{"love", "hope"}},
		},
		Tags: map[string]int{"life": 1, "love": 2, "hope": 3},
	}
}

func TestPersistIsIdempotent(t *testing.T) {
	t.Parallel()

	s := NewQuoteStore()
	first, err := s.Persist(context.Background(), sampleResult())
	require.NoError(t, err)
	require.Equal(t, store.TableCounts{Inserted: 2}, first.Authors)
	require.Equal(t, store.TableCounts{Inserted: 2}, first.Quotes)
	require.Equal(t, store.TableCounts{Inserted: 3}, first.Tags)
	require.Equal(t, store.TableCounts{Inserted: 4}, first.QuoteTags)

	second, err := s.Persist(context.Background(), sampleResult())
	require.NoError(t, err)
	require.Equal(t, store.TableCounts{Existing: 2}, second.Authors)
	require.Equal(t, store.TableCounts{Existing: 2}, second.Quotes)
	require.Equal(t, store.TableCounts{Existing: 3}, second.Tags)
	require.Equal(t, store.TableCounts{Existing: 4}, second.QuoteTags)

	authors, quotes, tags, links := s.Counts()
	require.Equal(t, []int{2, 2, 3, 4}, []int{authors, quotes, tags, links})
}

func TestPersistRefreshesAuthor(t *testing.T) {
	t.Parallel()

	s := NewQuoteStore()
	_, err := s.Persist(context.Background(), sampleResult())
	require.NoError(t, err)

	updated := sampleResult()
	updated.Quotes[0].AuthorBornLocation = "Lyon"
	_, err = s.Persist(context.Background(), updated)
	require.NoError(t, err)

	ann, ok := s.Author("Ann", "Lee")
	require.True(t, ok)
	require.Equal(t, "Lyon", ann.AuthorBornLocation)
	require.Equal(t, "Bio", ann.AuthorDescription)
}

func TestPersistCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewQuoteStore().Persist(ctx, sampleResult())
	var storageErr *store.StorageConnectionError
	require.ErrorAs(t, err, &storageErr)
}

func TestListQuotesAndTags(t *testing.T) {
	t.Parallel()

	s := NewQuoteStore()
	_, err := s.Persist(context.Background(), sampleResult())
	require.NoError(t, err)

	quotes, err := s.ListQuotes(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	require.Equal(t, "Q1", quotes[0].Text)
	require.Equal(t, "Ann", quotes[0].AuthorName)
	require.Equal(t, []string{"life", "love"}, quotes[0].Tags)
	require.Equal(t, []string{"love", "hope"}, quotes[1].Tags)

	paged, err := s.ListQuotes(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Len(t, paged, 1)
	require.Equal(t, "Q2", paged[0].Text)

	empty, err := s.ListQuotes(context.Background(), 10, 5)
	require.NoError(t, err)
	require.Empty(t, empty)

	tags, err := s.ListTags(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"hope", "life", "love"}, []string{tags[0].Text, tags[1].Text, tags[2].Text})
	require.Equal(t, 2, tags[2].Quotes)
	require.NoError(t, s.Ping(context.Background()))
}

func TestRunStoreLifecycle(t *testing.T) {
	t.Parallel()

	s := NewRunStore()
	ctx := context.Background()
	t0 := time.Unix(1700000000, 0).UTC()
	require.NoError(t, s.StartRun(ctx, "a", t0))
	require.NoError(t, s.StartRun(ctx, "b", t0.Add(time.Hour)))

	finished := t0.Add(time.Minute)
	require.NoError(t, s.CompleteRun(ctx, store.Run{ID: "a", Status: store.RunSuccess, FinishedAt: &finished, Quotes: 3}))
	require.ErrorIs(t, s.CompleteRun(ctx, store.Run{ID: "zzz"}), store.ErrNotFound)

	run, err := s.GetRun(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, t0, run.StartedAt)
	require.Equal(t, store.RunSuccess, run.Status)

	_, err = s.GetRun(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	runs, err := s.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "b", runs[0].ID)
}
