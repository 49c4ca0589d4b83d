// Package memory provides the in-process crawl work queue.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/linkrank/internal/crawler"
)

// ErrClosed is returned by Dequeue once the queue is closed and drained, and by
// Enqueue after Close.
var ErrClosed = crawler.ErrQueueClosed

// Queue is a bounded in-memory queue with context-aware operations. Each item
// is delivered to exactly one consumer.
type Queue struct {
	ch      chan crawler.WorkItem
	closeMu sync.RWMutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		ch: make(chan crawler.WorkItem, capacity),
	}
}

// Enqueue pushes an item into the queue or returns if the context ends.
// Close waits for a blocked Enqueue, so producers should size the queue to
// the work they intend to push.
func (q *Queue) Enqueue(ctx context.Context, item crawler.WorkItem) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- item:
		return nil
	}
}

// Dequeue pops the next item, respecting context cancellation. Items still
// buffered after Close are delivered before ErrClosed is returned.
func (q *Queue) Dequeue(ctx context.Context) (crawler.WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return crawler.WorkItem{}, fmt.Errorf("dequeue canceled: %w", err)
	}
	select {
	case <-ctx.Done():
		return crawler.WorkItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item, ok := <-q.ch:
		if !ok {
			return crawler.WorkItem{}, ErrClosed
		}
		return item, nil
	}
}

// Len reports the number of buffered items.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close closes the queue for writes. It is safe to call more than once.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
