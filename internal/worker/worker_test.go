package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
	"github.com/JakeFAU/quotes-crawler/internal/export"
	pubmemory "github.com/JakeFAU/quotes-crawler/internal/publisher/memory"
	"github.com/JakeFAU/quotes-crawler/internal/storage/memory"
	"github.com/JakeFAU/quotes-crawler/internal/store"
)

type fakeCrawler struct {
	result  crawler.CrawlResult
	err     error
	started chan struct{}
	release chan struct{}
	mu      sync.Mutex
	calls   int
	baseURL string
}

func (f *fakeCrawler) Crawl(ctx context.Context, baseURL string) (crawler.CrawlResult, error) {
	f.mu.Lock()
	f.calls++
	f.baseURL = baseURL
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return f.result, ctx.Err()
		}
	}
	return f.result, f.err
}

type failingPersister struct{ err error }

func (p failingPersister) Persist(context.Context, crawler.CrawlResult) (store.PersistReport, error) {
	return store.PersistReport{}, p.err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func sequentialIDs() IDGenerator {
	var mu sync.Mutex
	n := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("run-%d", n), nil
	}
}

func sampleResult() crawler.CrawlResult {
	return crawler.CrawlResult{
		Quotes: []crawler.QuoteRecord{
			{Text: "Q1", AuthorName: "Ann", AuthorSurname: "Lee", TagIDs: []int{1, 2}, Tags: []string{"life", "love"}},
			{Text: "Q2", AuthorName: "Bob", TagIDs: []int{2}, Tags: []string{"love"}},
		},
		Tags:  map[string]int{"life": 1, "love": 2},
		Pages: 1,
	}
}

type harness struct {
	crawler *fakeCrawler
	quotes  *memory.QuoteStore
	runs    *memory.RunStore
	blobs   *memory.BlobStore
	pub     *pubmemory.Publisher
	worker  *Worker
}

func newHarness(fc *fakeCrawler, persister store.Persister) *harness {
	h := &harness{
		crawler: fc,
		quotes:  memory.NewQuoteStore(),
		runs:    memory.NewRunStore(),
		blobs:   memory.NewBlobStore(),
		pub:     pubmemory.New(),
	}
	if persister == nil {
		persister = h.quotes
	}
	h.worker = New(
		fc,
		persister,
		h.runs,
		export.NewExporter(h.blobs, "exports", nil),
		h.pub,
		Config{BaseURL: "https://quotes.example/", Topic: "runs"},
		zap.NewNop(),
		WithClock(&fakeClock{now: time.Unix(1700000000, 0).UTC()}),
		WithIDGenerator(sequentialIDs()),
	)
	return h
}

func TestRunOnceSuccess(t *testing.T) {
	t.Parallel()
	h := newHarness(&fakeCrawler{result: sampleResult()}, nil)

	run, err := h.worker.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, "run-1", run.ID)
	require.Equal(t, store.RunSuccess, run.Status)
	require.Equal(t, 2, run.Quotes)
	require.Equal(t, 2, run.Tags)
	require.Equal(t, 1, run.Pages)
	require.NotNil(t, run.FinishedAt)
	require.Equal(t, "https://quotes.example/", h.crawler.baseURL)

	stored, err := h.runs.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.Equal(t, store.RunSuccess, stored.Status)

	_, quotes, tags, links := h.quotes.Counts()
	require.Equal(t, 2, quotes)
	require.Equal(t, 2, tags)
	require.Equal(t, 3, links)

	require.Equal(t, []string{"exports/run-1/quotes.csv", "exports/run-1/tags.csv"}, h.blobs.Paths())

	msgs := h.pub.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "runs", msgs[0].Topic)
	var notice map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Data, &notice))
	require.Equal(t, "run-1", notice["run_id"])
	require.Equal(t, "success", notice["status"])
	require.InDelta(t, 2, notice["quotes"], 0)
	require.False(t, h.worker.Running())
}

func TestRunOncePersistFailure(t *testing.T) {
	t.Parallel()
	connErr := &store.StorageConnectionError{Op: "begin", Err: errors.New("refused")}
	h := newHarness(&fakeCrawler{result: sampleResult()}, failingPersister{err: connErr})

	run, err := h.worker.RunOnce(context.Background())
	require.Error(t, err)
	var storageErr *store.StorageConnectionError
	require.ErrorAs(t, err, &storageErr)
	require.Equal(t, store.RunError, run.Status)
	require.NotNil(t, run.Error)

	stored, err := h.runs.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	require.Equal(t, store.RunError, stored.Status)
	require.Empty(t, h.blobs.Paths())

	msgs := h.pub.Messages()
	require.Len(t, msgs, 1)
	require.Contains(t, string(msgs[0].Data), `"status":"error"`)
}

func TestRunOnceCrawlCanceled(t *testing.T) {
	t.Parallel()
	h := newHarness(&fakeCrawler{result: sampleResult(), err: context.Canceled}, nil)

	run, err := h.worker.RunOnce(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, store.RunError, run.Status)
	_, quotes, _, _ := h.quotes.Counts()
	require.Zero(t, quotes)
}

func TestRunOnceNoticeFailureDoesNotFailRun(t *testing.T) {
	t.Parallel()
	h := newHarness(&fakeCrawler{result: sampleResult()}, nil)
	h.pub.FailWith(errors.New("broker down"))

	run, err := h.worker.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, store.RunSuccess, run.Status)
}

func TestRunRefusesOverlap(t *testing.T) {
	t.Parallel()
	fc := &fakeCrawler{result: sampleResult(), started: make(chan struct{}, 1), release: make(chan struct{})}
	h := newHarness(fc, nil)

	id, err := h.worker.RunAsync(context.Background())
	require.NoError(t, err)
	require.Equal(t, "run-1", id)
	<-fc.started
	require.True(t, h.worker.Running())

	_, err = h.worker.RunOnce(context.Background())
	require.ErrorIs(t, err, ErrRunInProgress)
	_, err = h.worker.RunAsync(context.Background())
	require.ErrorIs(t, err, ErrRunInProgress)

	close(fc.release)
	require.Eventually(t, func() bool { return !h.worker.Running() }, 2*time.Second, 5*time.Millisecond)

	stored, err := h.runs.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.Equal(t, store.RunSuccess, stored.Status)

	fc.started = nil
	run, err := h.worker.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, "run-2", run.ID)
}

func TestRunIDGeneratorFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(&fakeCrawler{result: sampleResult()}, nil)
	h.worker.newID = func() (string, error) { return "", errors.New("entropy exhausted") }

	_, err := h.worker.RunOnce(context.Background())
	require.ErrorContains(t, err, "allocate run id")
	require.False(t, h.worker.Running())

	_, err = h.worker.RunAsync(context.Background())
	require.Error(t, err)
	require.False(t, h.worker.Running())
}

func TestDefaultIDIsUUIDv7(t *testing.T) {
	t.Parallel()

	id, err := newUUIDv7()
	require.NoError(t, err)
	require.Len(t, id, 36)
	require.Equal(t, byte('7'), id[14])
}

func TestRunOnceRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	connErr := &store.StorageConnectionError{Op: "begin", Err: errors.New("refused")}
	h := newHarness(&fakeCrawler{result: sampleResult()}, failingPersister{err: connErr})
	_, err := h.worker.RunOnce(context.Background())
	require.Error(t, err)

	var span sdktrace.ReadOnlySpan
	for _, s := range recorder.Ended() {
		if s.Name() == "crawl.run" {
			span = s
		}
	}
	require.NotNil(t, span)
	require.Equal(t, codes.Error, span.Status().Code)
	attrs := map[string]string{}
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	require.Equal(t, "run-1", attrs["run_id"])
	require.Equal(t, "error", attrs["status"])
}
