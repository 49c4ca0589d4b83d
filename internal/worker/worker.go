// Package worker implements the fetch loop run by each member of the pool.
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkrank/internal/crawler"
	"github.com/JakeFAU/linkrank/internal/identity"
	"github.com/JakeFAU/linkrank/internal/metrics"
	"github.com/JakeFAU/linkrank/internal/progress"
)

// Limiter spaces the requests of one worker.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Config controls Worker behavior.
type Config struct {
	// ID labels the worker in logs.
	ID int
	// RunID tags every progress event emitted by the worker.
	RunID [16]byte
}

// Result summarizes what one worker did during a run.
type Result struct {
	Fetched  int
	Failed   int
	Bytes    int64
	Failures []crawler.Failure
}

// Worker drains the shared queue, fetching and storing one document per item.
type Worker struct {
	queue    crawler.Queue
	fetcher  crawler.Fetcher
	store    crawler.DocumentStore
	identity identity.Chooser
	limiter  Limiter
	emitter  progress.Emitter
	clock    crawler.Clock
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Worker. A nil chooser falls back to the default pool; nil
// limiter, emitter and logger disable spacing, progress and logging.
func New(
	queue crawler.Queue,
	fetcher crawler.Fetcher,
	store crawler.DocumentStore,
	chooser identity.Chooser,
	limiter Limiter,
	emitter progress.Emitter,
	clock crawler.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if chooser == nil {
		chooser = identity.NewPool(nil)
	}
	if emitter == nil {
		emitter = progress.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:    queue,
		fetcher:  fetcher,
		store:    store,
		identity: chooser,
		limiter:  limiter,
		emitter:  emitter,
		clock:    clock,
		cfg:      cfg,
		logger:   logger.With(zap.Int("worker_id", cfg.ID)),
	}
}

// Run consumes queue items until the queue is closed and drained, the
// context ends, or Dequeue fails. Items that fail are recorded and skipped.
func (w *Worker) Run(ctx context.Context) Result {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	var res Result
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, crawler.ErrQueueClosed) || ctx.Err() != nil {
				w.logger.Debug("worker exiting",
					zap.Int("fetched", res.Fetched),
					zap.Int("failed", res.Failed),
				)
				return res
			}
			w.logger.Error("queue dequeue failed, worker stopping",
				zap.Error(err),
				zap.Int("fetched", res.Fetched),
				zap.Int("failed", res.Failed),
			)
			return res
		}

		n, err := w.processItem(ctx, item)
		switch {
		case err == nil:
			res.Fetched++
			res.Bytes += n
		case ctx.Err() != nil:
			// Canceled mid-flight: the item is abandoned, not failed.
			w.logger.Debug("item abandoned", zap.Int("doc_id", item.ID), zap.String("url", item.URL))
			return res
		default:
			res.Failed++
			res.Failures = append(res.Failures, crawler.Failure{ID: item.ID, URL: item.URL, Cause: err.Error()})
			w.logger.Warn("fetch failed",
				zap.Int("doc_id", item.ID),
				zap.String("url", item.URL),
				zap.Error(err),
			)
			w.emit(progress.Event{
				Stage: progress.StageFetchError,
				DocID: item.ID,
				URL:   item.URL,
				Note:  err.Error(),
			})
		}
	}
}

func (w *Worker) processItem(ctx context.Context, item crawler.WorkItem) (int64, error) {
	w.emit(progress.Event{Stage: progress.StageFetchStart, DocID: item.ID, URL: item.URL})

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}

	headers := http.Header{}
	headers.Set("User-Agent", w.identity.Choose())
	resp, err := w.fetcher.Fetch(ctx, crawler.FetchRequest{
		ID:      item.ID,
		URL:     item.URL,
		Headers: headers,
	})
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}

	uri, err := w.store.Put(ctx, item.ID, bytes.NewReader(resp.Body))
	if err != nil {
		return 0, fmt.Errorf("store document: %w", err)
	}

	size := int64(len(resp.Body))
	w.logger.Debug("document stored",
		zap.Int("doc_id", item.ID),
		zap.String("url", item.URL),
		zap.String("uri", uri),
		zap.Int64("bytes", size),
		zap.Duration("dur", resp.Duration),
	)
	w.emit(progress.Event{
		Stage:       progress.StageFetchDone,
		DocID:       item.ID,
		URL:         item.URL,
		Bytes:       size,
		StatusClass: progress.ClassifyStatus(resp.StatusCode),
		Dur:         resp.Duration,
	})
	return size, nil
}

func (w *Worker) emit(evt progress.Event) {
	evt.RunID = w.cfg.RunID
	if w.clock != nil {
		evt.TS = w.clock.Now()
	}
	w.emitter.Emit(evt)
}
