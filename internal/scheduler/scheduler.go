// Package scheduler plans a crawl from the seed list and drives the worker
// pool over the documents that are not yet stored.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkrank/internal/crawler"
	"github.com/JakeFAU/linkrank/internal/dispatcher"
	"github.com/JakeFAU/linkrank/internal/identity"
	"github.com/JakeFAU/linkrank/internal/policy/ratelimit"
	"github.com/JakeFAU/linkrank/internal/progress"
	"github.com/JakeFAU/linkrank/internal/queue/memory"
	"github.com/JakeFAU/linkrank/internal/seed"
	"github.com/JakeFAU/linkrank/internal/worker"
)

const (
	defaultConcurrency    = 50
	defaultRequestSpacing = 100 * time.Millisecond
)

// Config controls the size and pacing of the worker pool.
type Config struct {
	Concurrency int `mapstructure:"concurrency"`
	// RequestSpacing is the minimum gap between two requests of one worker.
	RequestSpacing time.Duration `mapstructure:"request_spacing"`
}

// Report summarizes a crawl run.
type Report struct {
	RunID     string            `json:"run_id"`
	Seeds     int               `json:"seeds"`
	Skipped   int               `json:"skipped"`
	Enqueued  int               `json:"enqueued"`
	Fetched   int               `json:"fetched"`
	Failed    int               `json:"failed"`
	Abandoned int               `json:"abandoned"`
	Bytes     int64             `json:"bytes"`
	Failures  []crawler.Failure `json:"failures,omitempty"`
	Duration  time.Duration     `json:"duration"`
}

// Scheduler turns the seed list into work for the pool.
type Scheduler struct {
	store   crawler.DocumentStore
	fetcher crawler.Fetcher
	chooser identity.Chooser
	emitter progress.Emitter
	clock   crawler.Clock
	ids     crawler.IDGenerator
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Scheduler. Zero config values take the defaults (50
// workers, 100ms spacing); a negative spacing disables pacing.
func New(
	store crawler.DocumentStore,
	fetcher crawler.Fetcher,
	chooser identity.Chooser,
	emitter progress.Emitter,
	clock crawler.Clock,
	ids crawler.IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.RequestSpacing == 0 {
		cfg.RequestSpacing = defaultRequestSpacing
	}
	if chooser == nil {
		chooser = identity.NewPool(nil)
	}
	if emitter == nil {
		emitter = progress.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		store:   store,
		fetcher: fetcher,
		chooser: chooser,
		emitter: emitter,
		clock:   clock,
		ids:     ids,
		cfg:     cfg,
		logger:  logger.Named("scheduler"),
	}
}

// Plan returns the entries whose document is absent, in seed order. A store
// lookup error is logged and the entry is planned anyway.
func (s *Scheduler) Plan(ctx context.Context, entries []seed.Entry) ([]crawler.WorkItem, error) {
	plan := make([]crawler.WorkItem, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("plan canceled: %w", err)
		}
		exists, err := s.store.Exists(ctx, entry.ID)
		if err != nil {
			s.logger.Warn("document lookup failed, scheduling fetch",
				zap.Int("doc_id", entry.ID),
				zap.String("url", entry.URL),
				zap.Error(err),
			)
		}
		if exists && err == nil {
			continue
		}
		plan = append(plan, crawler.WorkItem{ID: entry.ID, URL: entry.URL})
	}
	return plan, nil
}

// Run fetches every planned document with a fixed pool of workers and blocks
// until they have all finished. Per-item failures land in the report; the only
// error is the run context ending early.
func (s *Scheduler) Run(ctx context.Context, entries []seed.Entry) (Report, error) {
	start := s.now()
	runID, err := s.newRunID()
	if err != nil {
		return Report{}, err
	}
	report := Report{RunID: progress.Event{RunID: runID}.RunUUID().String(), Seeds: len(entries)}
	s.emit(progress.Event{RunID: runID, Stage: progress.StageRunStart, DocID: -1})

	plan, err := s.Plan(ctx, entries)
	if err != nil {
		return report, err
	}
	report.Enqueued = len(plan)
	report.Skipped = len(entries) - len(plan)
	s.logger.Info("crawl planned",
		zap.String("run_id", report.RunID),
		zap.Int("seeds", report.Seeds),
		zap.Int("skipped", report.Skipped),
		zap.Int("enqueued", report.Enqueued),
	)

	if len(plan) > 0 {
		queue := memory.NewQueue(len(plan))
		for _, item := range plan {
			if err := queue.Enqueue(ctx, item); err != nil {
				queue.Close()
				return report, fmt.Errorf("enqueue %d: %w", item.ID, err)
			}
		}
		queue.Close()

		res := s.dispatcher(queue, runID, len(plan)).Run(ctx)
		report.Fetched = res.Fetched
		report.Failed = res.Failed
		report.Bytes = res.Bytes
		report.Failures = res.Failures
	}
	report.Abandoned = report.Enqueued - report.Fetched - report.Failed
	report.Duration = s.now().Sub(start)

	s.emit(progress.Event{RunID: runID, Stage: progress.StageRunDone, DocID: -1, Dur: report.Duration})
	s.logger.Info("crawl finished",
		zap.String("run_id", report.RunID),
		zap.Int("fetched", report.Fetched),
		zap.Int("failed", report.Failed),
		zap.Int("abandoned", report.Abandoned),
		zap.Int64("bytes", report.Bytes),
		zap.Duration("dur", report.Duration),
	)
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("crawl canceled: %w", err)
	}
	return report, nil
}

func (s *Scheduler) dispatcher(queue crawler.Queue, runID [16]byte, planned int) *dispatcher.Dispatcher {
	n := min(s.cfg.Concurrency, planned)
	workers := make([]*worker.Worker, 0, n)
	for i := range n {
		workers = append(workers, worker.New(
			queue,
			s.fetcher,
			s.store,
			s.chooser,
			ratelimit.New(ratelimit.Config{Spacing: max(s.cfg.RequestSpacing, 0)}),
			s.emitter,
			s.clock,
			worker.Config{ID: i, RunID: runID},
			s.logger.Named("worker"),
		))
	}
	return dispatcher.NewFromWorkers(workers)
}

func (s *Scheduler) newRunID() ([16]byte, error) {
	if s.ids == nil {
		return progress.UUIDToBytes(uuid.New()), nil
	}
	raw, err := s.ids.NewID()
	if err != nil {
		return [16]byte{}, fmt.Errorf("new run id: %w", err)
	}
	return progress.ParseRunID(raw)
}

func (s *Scheduler) emit(evt progress.Event) {
	evt.TS = s.now()
	s.emitter.Emit(evt)
}

func (s *Scheduler) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}
