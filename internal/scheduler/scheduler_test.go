package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/linkrank/internal/crawler"
	"github.com/JakeFAU/linkrank/internal/id/uuid"
	"github.com/JakeFAU/linkrank/internal/seed"
	memstore "github.com/JakeFAU/linkrank/internal/storage/memory"
)

const noSpacing = -1

func TestPlanSkipsStoredDocuments(t *testing.T) {
	t.Parallel()

	store := memstore.NewDocumentStore()
	_, err := store.Put(context.Background(), 1, strings.NewReader("stored"))
	require.NoError(t, err)

	s := New(store, &fakeFetcher{}, nil, nil, nil, nil, Config{}, nil)
	plan, err := s.Plan(context.Background(), entries(3))
	require.NoError(t, err)
	assert.Equal(t, []crawler.WorkItem{
		{ID: 0, URL: "https://site.test/0"},
		{ID: 2, URL: "https://site.test/2"},
	}, plan)
}

func TestPlanTreatsLookupErrorsAsAbsent(t *testing.T) {
	t.Parallel()

	store := &flakyStore{DocumentStore: memstore.NewDocumentStore(), failID: 0}
	_, err := store.Put(context.Background(), 0, strings.NewReader("stored"))
	require.NoError(t, err)

	s := New(store, &fakeFetcher{}, nil, nil, nil, nil, Config{}, nil)
	plan, err := s.Plan(context.Background(), entries(1))
	require.NoError(t, err)
	require.Len(t, plan, 1)
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	store := memstore.NewDocumentStore()
	fetcher := &fakeFetcher{}
	s := New(store, fetcher, nil, nil, nil, uuid.New(), Config{Concurrency: 3, RequestSpacing: noSpacing}, nil)
	list := entries(5)

	first, err := s.Run(context.Background(), list)
	require.NoError(t, err)
	assert.Equal(t, 5, first.Enqueued)
	assert.Equal(t, 5, first.Fetched)
	assert.Equal(t, int32(5), fetcher.calls.Load())
	assert.NotEmpty(t, first.RunID)

	second, err := s.Run(context.Background(), list)
	require.NoError(t, err)
	assert.Equal(t, 5, second.Skipped)
	assert.Zero(t, second.Enqueued)
	assert.Zero(t, second.Fetched)
	assert.Equal(t, int32(5), fetcher.calls.Load(), "no new requests on resume")
	assert.NotEqual(t, first.RunID, second.RunID)

	for i := range 5 {
		body, err := store.Get(context.Background(), i)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("<html>%d</html>", i), string(body))
	}
}

func TestRunFailureDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	store := memstore.NewDocumentStore()
	fetcher := &fakeFetcher{fail: map[string]bool{"https://site.test/1": true}}
	s := New(store, fetcher, nil, nil, nil, nil, Config{Concurrency: 2, RequestSpacing: noSpacing}, nil)

	report, err := s.Run(context.Background(), entries(4))
	require.NoError(t, err)
	assert.Equal(t, 4, report.Seeds)
	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 1, report.Failed)
	assert.Zero(t, report.Abandoned)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 1, report.Failures[0].ID)

	ok, err := store.Exists(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, store.Len())
}

func TestRunBoundsConcurrency(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{delay: 10 * time.Millisecond}
	s := New(memstore.NewDocumentStore(), fetcher, nil, nil, nil, nil,
		Config{Concurrency: 3, RequestSpacing: noSpacing}, nil)

	report, err := s.Run(context.Background(), entries(20))
	require.NoError(t, err)
	assert.Equal(t, 20, report.Fetched)
	assert.LessOrEqual(t, fetcher.maxInFlight.Load(), int32(3))
	assert.Positive(t, fetcher.maxInFlight.Load())
}

func TestRunCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(memstore.NewDocumentStore(), &fakeFetcher{}, nil, nil, nil, nil, Config{}, nil)
	_, err := s.Run(ctx, entries(3))
	require.ErrorIs(t, err, context.Canceled)
}

func entries(n int) []seed.Entry {
	out := make([]seed.Entry, n)
	for i := range n {
		out[i] = seed.Entry{ID: i, URL: fmt.Sprintf("https://site.test/%d", i)}
	}
	return out
}

type fakeFetcher struct {
	fail        map[string]bool
	delay       time.Duration
	calls       atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	mu          sync.Mutex
}

func (f *fakeFetcher) Fetch(ctx context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	f.calls.Add(1)
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	f.mu.Lock()
	if cur > f.maxInFlight.Load() {
		f.maxInFlight.Store(cur)
	}
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return crawler.FetchResponse{}, ctx.Err()
		}
	}
	if f.fail[req.URL] {
		return crawler.FetchResponse{}, errors.New("connection reset")
	}
	return crawler.FetchResponse{
		URL:        req.URL,
		StatusCode: http.StatusOK,
		Body:       []byte(fmt.Sprintf("<html>%d</html>", req.ID)),
	}, nil
}

type flakyStore struct {
	*memstore.DocumentStore
	failID int
}

func (s *flakyStore) Exists(ctx context.Context, id int) (bool, error) {
	if id == s.failID {
		return true, errors.New("backend unavailable")
	}
	return s.DocumentStore.Exists(ctx, id)
}

