// Package dispatcher runs the fixed worker set over the shared queue.
package dispatcher

import (
	"context"
	"sort"
	"sync"

	"github.com/JakeFAU/linkrank/internal/worker"
)

// Runner is one member of the pool.
type Runner interface {
	Run(ctx context.Context) worker.Result
}

// Dispatcher fans out queue work to a fixed pool of workers. The pool size is
// the concurrency bound; no goroutines are started per item.
type Dispatcher struct {
	workers []Runner
}

// New creates a Dispatcher over the given workers.
func New(workers ...Runner) *Dispatcher {
	return &Dispatcher{workers: workers}
}

// NewFromWorkers adapts a worker slice.
func NewFromWorkers(workers []*worker.Worker) *Dispatcher {
	runners := make([]Runner, 0, len(workers))
	for _, w := range workers {
		runners = append(runners, w)
	}
	return New(runners...)
}

// Size reports how many workers the dispatcher runs.
func (d *Dispatcher) Size() int {
	return len(d.workers)
}

// Run starts every worker and blocks until all of them have returned, then
// merges their results. Failures are ordered by document id.
func (d *Dispatcher) Run(ctx context.Context) worker.Result {
	results := make([]worker.Result, len(d.workers))
	var wg sync.WaitGroup
	for i, w := range d.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = w.Run(ctx)
		}()
	}
	wg.Wait()

	var total worker.Result
	for _, res := range results {
		total.Fetched += res.Fetched
		total.Failed += res.Failed
		total.Bytes += res.Bytes
		total.Failures = append(total.Failures, res.Failures...)
	}
	sort.Slice(total.Failures, func(i, j int) bool {
		return total.Failures[i].ID < total.Failures[j].ID
	})
	return total
}
