// Package app builds and holds the long-lived services shared by the crawl and
// rank commands.
package app

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkrank/internal/api"
	"github.com/JakeFAU/linkrank/internal/clock/system"
	"github.com/JakeFAU/linkrank/internal/config"
	"github.com/JakeFAU/linkrank/internal/crawler"
	collyfetcher "github.com/JakeFAU/linkrank/internal/fetcher/colly"
	"github.com/JakeFAU/linkrank/internal/id/uuid"
	"github.com/JakeFAU/linkrank/internal/identity"
	"github.com/JakeFAU/linkrank/internal/progress"
	progresssinks "github.com/JakeFAU/linkrank/internal/progress/sinks"
	memorypublisher "github.com/JakeFAU/linkrank/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/linkrank/internal/publisher/pubsub"
	gcsstorage "github.com/JakeFAU/linkrank/internal/storage/gcs"
	localstorage "github.com/JakeFAU/linkrank/internal/storage/local"
	memorystorage "github.com/JakeFAU/linkrank/internal/storage/memory"
	pgstore "github.com/JakeFAU/linkrank/internal/storage/postgres"
)

// RunStore persists finished rank runs.
type RunStore interface {
	SaveRun(ctx context.Context, run pgstore.Run) error
	LatestRun(ctx context.Context) (pgstore.Run, error)
}

// Option overrides a dependency Build would otherwise construct from config.
type Option func(*App)

// WithDocumentStore replaces the configured document store.
func WithDocumentStore(store crawler.DocumentStore) Option {
	return func(a *App) { a.docs = store }
}

// WithFetcher replaces the colly fetcher.
func WithFetcher(f crawler.Fetcher) Option {
	return func(a *App) { a.fetcher = f }
}

// WithChooser replaces the random User-Agent pool.
func WithChooser(c identity.Chooser) Option {
	return func(a *App) { a.chooser = c }
}

// WithClock replaces the system clock.
func WithClock(c crawler.Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithRunStore replaces the Postgres run store.
func WithRunStore(s RunStore) Option {
	return func(a *App) { a.runStore = s }
}

// WithPublisher replaces the rank notice publisher.
func WithPublisher(p crawler.Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// WithRegisterer sets where progress collectors are registered.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(a *App) { a.registerer = reg }
}

// App contains the application's dependencies.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	docs       crawler.DocumentStore
	fetcher    crawler.Fetcher
	chooser    identity.Chooser
	clock      crawler.Clock
	ids        crawler.IDGenerator
	runStore   RunStore
	publisher  crawler.Publisher
	registerer prometheus.Registerer

	progressHub *progress.Hub
	tally       *progresssinks.TallySink
	gcsClient   *storage.Client
	closers     []func() error

	apiServer  *api.Server
	stopServer context.CancelFunc
	serverDone chan error
}

// Build creates the application's dependencies from cfg. Options take
// precedence over the matching config sections.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{
		cfg:    cfg,
		logger: logger,
		clock:  system.New(),
		ids:    uuid.New(),
	}
	for _, opt := range opts {
		opt(app)
	}
	app.logger.Info("building application dependencies",
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Int("concurrency", cfg.Crawler.Concurrency),
	)

	steps := []func(context.Context) error{
		app.setupStorage,
		app.setupFetcher,
		app.setupDatabase,
		app.setupPublisher,
		app.setupProgress,
		app.setupServer,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			_ = app.closeInfrastructure(ctx)
			return nil, err
		}
	}
	if app.apiServer != nil {
		app.apiServer.SetReady(true)
	}
	return app, nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Documents returns the document store shared by crawl and rank.
func (a *App) Documents() crawler.DocumentStore {
	return a.docs
}

// Tally returns the in-memory run tally served by the status API.
func (a *App) Tally() *progresssinks.TallySink {
	return a.tally
}

// Emitter returns the progress emitter.
func (a *App) Emitter() progress.Emitter {
	if a.progressHub == nil {
		return progress.Nop{}
	}
	return a.progressHub
}

func (a *App) setupStorage(ctx context.Context) error {
	if a.docs != nil {
		return nil
	}
	var err error
	switch a.cfg.Storage.Backend {
	case config.BackendGCS:
		a.logger.Info("using GCS storage backend", zap.String("bucket", a.cfg.Storage.GCSBucket))
		a.gcsClient, err = storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("gcs client init failed: %w", err)
		}
		a.docs, err = gcsstorage.New(a.gcsClient, gcsstorage.Config{
			Bucket: a.cfg.Storage.GCSBucket,
			Prefix: a.cfg.Storage.Prefix,
		})
		if err != nil {
			return fmt.Errorf("gcs document store init failed: %w", err)
		}
	case config.BackendMemory:
		a.logger.Info("using in-memory storage backend")
		a.docs = memorystorage.NewDocumentStore()
	default:
		a.logger.Info("using local storage backend", zap.String("dir", a.cfg.Storage.Dir))
		a.docs, err = localstorage.New(localstorage.Config{
			BaseDir: a.cfg.Storage.Dir,
			Prefix:  a.cfg.Storage.Prefix,
		})
		if err != nil {
			return fmt.Errorf("local document store init failed: %w", err)
		}
	}
	return nil
}

func (a *App) setupFetcher(context.Context) error {
	if a.chooser == nil {
		a.chooser = identity.NewPool(a.cfg.Crawler.UserAgents)
	}
	if a.fetcher != nil {
		return nil
	}
	a.fetcher = collyfetcher.New(collyfetcher.Config{
		Timeout:      a.cfg.Crawler.Timeout,
		MaxBodyBytes: a.cfg.Crawler.MaxBodyBytes,
	})
	a.logger.Debug("colly fetcher ready",
		zap.Duration("timeout", a.cfg.Crawler.Timeout),
		zap.Int("max_body_bytes", a.cfg.Crawler.MaxBodyBytes),
	)
	return nil
}

func (a *App) setupDatabase(ctx context.Context) error {
	if a.runStore != nil {
		return nil
	}
	if a.cfg.DB.DSN == "" {
		a.logger.Info("no DSN specified, rank runs will not be persisted")
		return nil
	}
	store, err := pgstore.New(ctx, pgstore.Config{
		DSN:         a.cfg.DB.DSN,
		TablePrefix: a.cfg.DB.TablePrefix,
		MaxConns:    a.cfg.DB.MaxConns,
	})
	if err != nil {
		return fmt.Errorf("run store init failed: %w", err)
	}
	a.closers = append(a.closers, func() error { store.Close(); return nil })
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("run store schema: %w", err)
	}
	a.runStore = store
	a.logger.Info("run store initialized", zap.String("table_prefix", a.cfg.DB.TablePrefix))
	return nil
}

func (a *App) setupPublisher(ctx context.Context) error {
	if a.publisher != nil {
		return nil
	}
	if a.cfg.PubSub.ProjectID == "" || a.cfg.PubSub.Topic == "" {
		a.logger.Info("no Pub/Sub topic configured, rank notices stay in memory")
		a.publisher = memorypublisher.New()
		return nil
	}
	pub, err := gcppublisher.Dial(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.Topic, a.logger)
	if err != nil {
		return err
	}
	a.publisher = pub
	a.closers = append(a.closers, pub.Close)
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.Topic),
	)
	return nil
}

func (a *App) setupProgress(ctx context.Context) error {
	a.tally = progresssinks.NewTallySink()
	sinkList := []progress.Sink{
		a.tally,
		progresssinks.NewLogSink(a.logger.Named("progress_log")),
	}
	promSink, err := progresssinks.NewPrometheusSink(a.registerer)
	if err != nil {
		a.logger.Warn("progress metrics disabled", zap.Error(err))
	} else {
		sinkList = append(sinkList, promSink)
	}
	hubCfg := progress.Config{
		BufferSize:   a.cfg.Progress.BufferSize,
		MaxBatchWait: a.cfg.Progress.MaxBatchWait,
		BaseContext:  context.WithoutCancel(ctx),
		Logger:       a.logger,
		Now:          a.clock.Now,
	}
	a.progressHub = progress.NewHub(hubCfg, sinkList...)
	a.logger.Debug("progress hub initialized",
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
		zap.Int("sinks", len(sinkList)),
	)
	return nil
}

func (a *App) setupServer(ctx context.Context) error {
	if a.cfg.Server.Addr == "" {
		return nil
	}
	var runs api.RunSource
	if a.runStore != nil {
		runs = a.runStore
	}
	a.apiServer = api.NewServer(a.tally, runs, a.logger)
	serveCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.stopServer = cancel
	a.serverDone = make(chan error, 1)
	go func() {
		a.serverDone <- a.apiServer.Serve(serveCtx, a.cfg.Server.Addr)
	}()
	return nil
}

// Close gracefully shuts down the application. Pending progress events are
// flushed before the publisher and storage clients close.
func (a *App) Close(ctx context.Context) error {
	err := a.closeInfrastructure(ctx)
	if syncErr := a.logger.Sync(); syncErr != nil {
		a.logger.Debug("logger sync failed", zap.Error(syncErr))
	}
	return err
}

func (a *App) closeInfrastructure(ctx context.Context) error {
	var errs []error
	if a.stopServer != nil {
		a.stopServer()
		select {
		case err := <-a.serverDone:
			if err != nil {
				errs = append(errs, fmt.Errorf("status server: %w", err))
			}
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("status server shutdown: %w", ctx.Err()))
		}
		a.stopServer = nil
	}
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
			errs = append(errs, err)
		}
		a.progressHub = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
			errs = append(errs, err)
		}
		a.gcsClient = nil
	}
	return errors.Join(errs...)
}
