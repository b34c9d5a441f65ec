// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"

	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/quotes-crawler/internal/api"
	"github.com/JakeFAU/quotes-crawler/internal/config"
	"github.com/JakeFAU/quotes-crawler/internal/crawler"
	"github.com/JakeFAU/quotes-crawler/internal/export"
	collyfetcher "github.com/JakeFAU/quotes-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/quotes-crawler/internal/metrics"
	"github.com/JakeFAU/quotes-crawler/internal/parser"
	gcppublisher "github.com/JakeFAU/quotes-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/quotes-crawler/internal/storage/gcs"
	"github.com/JakeFAU/quotes-crawler/internal/storage/local"
	"github.com/JakeFAU/quotes-crawler/internal/storage/memory"
	"github.com/JakeFAU/quotes-crawler/internal/storage/postgres"
	"github.com/JakeFAU/quotes-crawler/internal/store"
	"github.com/JakeFAU/quotes-crawler/internal/telemetry"
	"github.com/JakeFAU/quotes-crawler/internal/worker"
)

// ErrNoDatabaseServer is returned by Databases when the store is not backed
// by a database server.
var ErrNoDatabaseServer = errors.New("database listing requires the postgres driver")

type databaseLister interface {
	ListDatabases(ctx context.Context) ([]string, error)
}

// App holds all the shared, long-lived services for the application.
// It is built once at startup and handed to the command that runs.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	worker    *worker.Worker
	reader    store.QuoteReader
	runs      store.RunRepository
	blobs     export.BlobStore
	databases databaseLister
	closers   []func() error
}

// New builds every service named by cfg. It fails fast when a backing
// service cannot be reached, releasing whatever was already opened.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	logger.Info("initializing application services",
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("export_sink", cfg.Export.Sink),
		zap.Bool("pubsub_enabled", cfg.PubSub.Enabled()),
	)

	tp, err := telemetry.InitTracerProvider(ctx, telemetry.Config{ServiceName: telemetry.ServiceName})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.closers = append(a.closers, func() error {
		return tp.Shutdown(context.WithoutCancel(ctx))
	})

	persister, err := a.initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.initBlobs(ctx); err != nil {
		return nil, err
	}

	var exporter worker.Exporter
	if a.blobs != nil {
		exporter = export.NewExporter(a.blobs, cfg.Export.Prefix, logger.Named("export"))
	}

	var publisher worker.Publisher
	if cfg.PubSub.Enabled() {
		pub, err := gcppublisher.Dial(ctx, cfg.PubSub.ProjectID, cfg.PubSub.Topic)
		if err != nil {
			return nil, fmt.Errorf("init pubsub publisher: %w", err)
		}
		a.closers = append(a.closers, pub.Close)
		publisher = pub
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})
	c := crawler.New(
		fetcher,
		parser.NewListingParser(),
		parser.NewAuthorPageParser(),
		crawler.NewTagRegistry(),
		crawler.Config{
			AuthorConcurrency: cfg.Crawler.AuthorConcurrency,
			AuthorCacheSize:   cfg.Crawler.AuthorCacheSize,
			MaxPages:          cfg.Crawler.MaxPages,
		},
		logger.Named("crawler"),
	)
	a.worker = worker.New(
		c,
		persister,
		a.runs,
		exporter,
		publisher,
		worker.Config{BaseURL: cfg.Crawler.BaseURL, Topic: cfg.PubSub.Topic},
		logger.Named("worker"),
	)

	logger.Info("application services initialized")
	return a, nil
}

func (a *App) initStore(ctx context.Context) (store.Persister, error) {
	switch a.cfg.Database.Driver {
	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, postgres.Config{
			DSN:             a.cfg.Database.DSN,
			MaxConns:        a.cfg.Database.MaxConns,
			MinConns:        a.cfg.Database.MinConns,
			MaxConnLifetime: a.cfg.Database.MaxConnLifetime(),
		})
		if err != nil {
			return nil, fmt.Errorf("init database: %w", err)
		}
		a.closers = append(a.closers, func() error {
			pool.Close()
			return nil
		})
		quotes, err := postgres.NewQuoteStore(pool, a.logger.Named("postgres"))
		if err != nil {
			return nil, fmt.Errorf("init quote store: %w", err)
		}
		if a.cfg.Database.EnsureSchema {
			if err := quotes.EnsureSchema(ctx); err != nil {
				return nil, fmt.Errorf("ensure schema: %w", err)
			}
		}
		runs, err := postgres.NewRunStore(pool)
		if err != nil {
			return nil, fmt.Errorf("init run store: %w", err)
		}
		a.reader, a.runs, a.databases = quotes, runs, quotes
		return quotes, nil
	case config.DriverMemory:
		a.logger.Info("using in-memory store, rows are lost on exit")
		quotes := memory.NewQuoteStore()
		a.reader, a.runs = quotes, memory.NewRunStore()
		return quotes, nil
	default:
		return nil, fmt.Errorf("unknown database driver: %s", a.cfg.Database.Driver)
	}
}

func (a *App) initBlobs(ctx context.Context) error {
	switch a.cfg.Export.Sink {
	case config.SinkNone, "":
		return nil
	case config.SinkMemory:
		a.blobs = memory.NewBlobStore()
		return nil
	case config.SinkLocal:
		blobs, err := local.New(local.Config{BaseDir: a.cfg.Export.LocalDir})
		if err != nil {
			return fmt.Errorf("init local export sink: %w", err)
		}
		a.blobs = blobs
		return nil
	case config.SinkGCS:
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		blobs, err := gcs.New(client, gcs.Config{
			Bucket:       a.cfg.Export.GCSBucket,
			CacheControl: a.cfg.Export.GCSCacheControl,
		})
		if err != nil {
			return fmt.Errorf("init gcs export sink: %w", err)
		}
		a.blobs = blobs
		return nil
	default:
		return fmt.Errorf("unknown export sink: %s", a.cfg.Export.Sink)
	}
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Worker returns the crawl run executor.
func (a *App) Worker() *worker.Worker {
	return a.worker
}

// Reader exposes stored quotes and tags.
func (a *App) Reader() store.QuoteReader {
	return a.reader
}

// Runs exposes crawl run bookkeeping.
func (a *App) Runs() store.RunRepository {
	return a.runs
}

// Blobs returns the export sink, or nil when exports are disabled.
func (a *App) Blobs() export.BlobStore {
	return a.blobs
}

// Server builds the dashboard API. runCtx bounds runs triggered over HTTP.
func (a *App) Server(runCtx context.Context) *api.Server {
	return api.NewServer(runCtx, a.reader, a.runs, a.worker, a.logger.Named("api"))
}

// Databases lists the databases on the configured Postgres server.
func (a *App) Databases(ctx context.Context) ([]string, error) {
	if a.databases == nil {
		return nil, ErrNoDatabaseServer
	}
	names, err := a.databases.ListDatabases(ctx)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	return names, nil
}

// OnClose registers fn to run during Close, before the services created
// ahead of it are released.
func (a *App) OnClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases backing services in reverse order of creation and flushes
// the logger.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.logger.Sync() //nolint:errcheck // stderr sync fails on some terminals
}
