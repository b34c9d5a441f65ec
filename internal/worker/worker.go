// Package worker executes one crawl run end to end: crawl, persist, export
// and notify, with run bookkeeping and metrics.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
	"github.com/JakeFAU/quotes-crawler/internal/metrics"
	"github.com/JakeFAU/quotes-crawler/internal/store"
)

// ErrRunInProgress is returned when a run is requested while another one is
// still executing.
var ErrRunInProgress = errors.New("crawl run already in progress")

var tracer = otel.Tracer("github.com/JakeFAU/quotes-crawler/internal/worker")

// Crawler produces one crawl result.
type Crawler interface {
	Crawl(ctx context.Context, baseURL string) (crawler.CrawlResult, error)
}

// Exporter writes run artifacts.
type Exporter interface {
	Export(ctx context.Context, runID string, result crawler.CrawlResult) ([]string, error)
}

// Publisher emits run notices.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator allocates run ids.
type IDGenerator func() (string, error)

// Config controls Worker behavior.
type Config struct {
	BaseURL string
	// Topic is passed to the publisher with every notice.
	Topic string
}

// Notice is the payload published after each run.
type Notice struct {
	RunID      string          `json:"run_id"`
	Status     store.RunStatus `json:"status"`
	Pages      int             `json:"pages"`
	Quotes     int             `json:"quotes"`
	Tags       int             `json:"tags"`
	RowErrors  int             `json:"row_errors"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Worker runs crawls one at a time.
type Worker struct {
	crawler   Crawler
	persister store.Persister
	runs      store.RunRepository
	exporter  Exporter
	publisher Publisher
	clock     Clock
	newID     IDGenerator
	cfg       Config
	logger    *zap.Logger
	running   atomic.Bool
}

// Option customizes a Worker.
type Option func(*Worker)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(w *Worker) { w.clock = c }
}

// WithIDGenerator replaces the UUIDv7 run id generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(w *Worker) { w.newID = gen }
}

// New constructs a Worker. exporter and publisher may be nil.
func New(
	c Crawler,
	persister store.Persister,
	runs store.RunRepository,
	exporter Exporter,
	publisher Publisher,
	cfg Config,
	logger *zap.Logger,
	opts ...Option,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Worker{
		crawler:   c,
		persister: persister,
		runs:      runs,
		exporter:  exporter,
		publisher: publisher,
		clock:     systemClock{},
		newID:     newUUIDv7,
		cfg:       cfg,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Running reports whether a run is executing.
func (w *Worker) Running() bool {
	return w.running.Load()
}

// RunOnce executes a run and blocks until it finishes.
func (w *Worker) RunOnce(ctx context.Context) (store.Run, error) {
	if !w.running.CompareAndSwap(false, true) {
		return store.Run{}, ErrRunInProgress
	}
	defer w.running.Store(false)

	id, err := w.newID()
	if err != nil {
		return store.Run{}, fmt.Errorf("allocate run id: %w", err)
	}
	return w.execute(ctx, id)
}

// RunAsync starts a run in the background and returns its id. ctx bounds the
// run, so callers pass a context that outlives any triggering request.
func (w *Worker) RunAsync(ctx context.Context) (string, error) {
	if !w.running.CompareAndSwap(false, true) {
		return "", ErrRunInProgress
	}
	id, err := w.newID()
	if err != nil {
		w.running.Store(false)
		return "", fmt.Errorf("allocate run id: %w", err)
	}
	go func() {
		defer w.running.Store(false)
		if _, err := w.execute(ctx, id); err != nil {
			w.logger.Error("background run failed", zap.String("run_id", id), zap.Error(err))
		}
	}()
	return id, nil
}

func (w *Worker) execute(ctx context.Context, id string) (store.Run, error) {
	ctx, span := tracer.Start(ctx, "crawl.run", trace.WithAttributes(attribute.String("run_id", id)))
	defer span.End()

	run, err := w.process(ctx, id)
	span.SetAttributes(
		attribute.String("status", string(run.Status)),
		attribute.Int("pages", run.Pages),
		attribute.Int("quotes", run.Quotes),
		attribute.Int("row_errors", run.RowErrors),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return run, err
}

func (w *Worker) process(ctx context.Context, id string) (store.Run, error) {
	logger := w.logger.With(zap.String("run_id", id))
	started := w.clock.Now()
	run := store.Run{ID: id, StartedAt: started, Status: store.RunRunning}

	if err := w.runs.StartRun(ctx, id, started); err != nil {
		err = fmt.Errorf("record run start: %w", err)
		w.finish(ctx, logger, &run, err)
		return run, err
	}
	logger.Info("crawl run started", zap.String("base_url", w.cfg.BaseURL))

	result, err := w.crawler.Crawl(ctx, w.cfg.BaseURL)
	run.Pages = result.Pages
	run.Quotes = len(result.Quotes)
	run.Tags = len(result.Tags)
	if err != nil {
		err = fmt.Errorf("crawl: %w", err)
		w.finish(ctx, logger, &run, err)
		return run, err
	}

	report, err := w.persister.Persist(ctx, result)
	if err != nil {
		err = fmt.Errorf("persist: %w", err)
		w.finish(ctx, logger, &run, err)
		return run, err
	}
	run.RowErrors = len(report.RowErrors)
	observeReport(report)
	logger.Info("crawl result persisted",
		zap.Int("quotes_inserted", report.Quotes.Inserted),
		zap.Int("tags_inserted", report.Tags.Inserted),
		zap.Int("row_errors", run.RowErrors),
	)

	if w.exporter != nil {
		if _, err := w.exporter.Export(ctx, id, result); err != nil {
			logger.Warn("export failed", zap.Error(err))
		}
	}

	w.finish(ctx, logger, &run, nil)
	return run, nil
}

// finish stamps the final status, stores it, records metrics and publishes
// the notice. Bookkeeping uses a context detached from cancellation so a
// canceled run is still recorded.
func (w *Worker) finish(ctx context.Context, logger *zap.Logger, run *store.Run, runErr error) {
	finished := w.clock.Now()
	run.FinishedAt = &finished
	run.Status = store.RunSuccess
	if runErr != nil {
		run.Status = store.RunError
		msg := runErr.Error()
		run.Error = &msg
	}
	detached := context.WithoutCancel(ctx)

	if err := w.runs.CompleteRun(detached, *run); err != nil {
		logger.Error("record run completion failed", zap.Error(err))
	}
	metrics.ObserveRun(string(run.Status), finished.Sub(run.StartedAt), finished)

	if runErr != nil {
		logger.Error("crawl run failed", zap.Error(runErr))
	} else {
		logger.Info("crawl run finished",
			zap.Int("pages", run.Pages),
			zap.Int("quotes", run.Quotes),
			zap.Int("tags", run.Tags),
			zap.Duration("duration", finished.Sub(run.StartedAt)),
		)
	}

	if w.publisher == nil {
		return
	}
	notice := Notice{
		RunID:      run.ID,
		Status:     run.Status,
		Pages:      run.Pages,
		Quotes:     run.Quotes,
		Tags:       run.Tags,
		RowErrors:  run.RowErrors,
		FinishedAt: finished,
	}
	if _, err := w.publisher.Publish(detached, w.cfg.Topic, notice); err != nil {
		logger.Warn("publish run notice failed", zap.Error(err))
	}
}

func observeReport(report store.PersistReport) {
	for _, table := range []string{store.TableAuthors, store.TableQuotes, store.TableTags, store.TableQuoteTags} {
		counts := report.Counts(table)
		metrics.ObserveRows(table, metrics.RowInserted, counts.Inserted)
		metrics.ObserveRows(table, metrics.RowExisting, counts.Existing)
		metrics.ObserveRows(table, metrics.RowFailed, counts.Failed)
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

func newUUIDv7() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}
