package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/linkrank/internal/crawler"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	result := make(chan crawler.WorkItem, 1)
	errCh := make(chan error, 1)

	go func() {
		item, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- item
	}()

	time.Sleep(10 * time.Millisecond) // allow goroutine to start
	if err := q.Enqueue(context.Background(), crawler.WorkItem{ID: 1, URL: "https://a.example"}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		if got.ID != 1 {
			t.Fatalf("expected item 1, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return item")
	}
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	qDequeue := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := qDequeue.Dequeue(ctx); err == nil ||
		err.Error() != "dequeue canceled: context canceled" {
		t.Fatalf("expected dequeue cancel error, got %v", err)
	}

	qEnqueue := NewQueue(1)
	if err := qEnqueue.Enqueue(context.Background(), crawler.WorkItem{ID: 0}); err != nil {
		t.Fatalf("failed to prime enqueue queue: %v", err)
	}
	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	if err := qEnqueue.Enqueue(ctx, crawler.WorkItem{}); err == nil ||
		err.Error() != "enqueue canceled: context canceled" {
		t.Fatalf("expected enqueue cancel error, got %v", err)
	}
}

func TestQueueDrainsBufferedItemsAfterClose(t *testing.T) {
	t.Parallel()

	q := NewQueue(3)
	for i := range 3 {
		require.NoError(t, q.Enqueue(context.Background(), crawler.WorkItem{ID: i}))
	}
	q.Close()
	require.ErrorIs(t, q.Enqueue(context.Background(), crawler.WorkItem{ID: 9}), ErrClosed)

	for i := range 3 {
		item, err := q.Dequeue(context.Background())
		require.NoError(t, err)
		require.Equal(t, i, item.ID)
	}
	_, err := q.Dequeue(context.Background())
	require.ErrorIs(t, err, ErrClosed)
	// Closing twice should be safe.
	q.Close()
}

func TestQueueDeliversEachItemOnce(t *testing.T) {
	t.Parallel()

	const items = 200
	q := NewQueue(items)
	for i := range items {
		require.NoError(t, q.Enqueue(context.Background(), crawler.WorkItem{ID: i}))
	}
	q.Close()

	var (
		mu   sync.Mutex
		seen = make(map[int]int)
		wg   sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				item, err := q.Dequeue(context.Background())
				if err != nil {
					return
				}
				mu.Lock()
				seen[item.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, items)
	for id, count := range seen {
		require.Equal(t, 1, count, "item %d", id)
	}
}
