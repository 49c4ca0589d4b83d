package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/linkrank/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := progress.UUIDToBytes(uuid.New())
	now := time.Now()
	batch := []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageRunStart, DocID: -1},
		{
			RunID:       runID,
			TS:          now.Add(time.Second),
			Stage:       progress.StageFetchDone,
			DocID:       0,
			URL:         "https://example.com",
			Bytes:       1024,
			StatusClass: progress.Status2xx,
			Dur:         200 * time.Millisecond,
		},
		{
			RunID:       runID,
			TS:          now.Add(2 * time.Second),
			Stage:       progress.StageFetchError,
			DocID:       1,
			URL:         "https://example.org",
			StatusClass: progress.Status4xx,
			Note:        "unexpected status: 404",
		},
		{RunID: runID, TS: now.Add(3 * time.Second), Stage: progress.StageRunDone, DocID: -1, Dur: 3 * time.Second},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("crawl")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.fetches.WithLabelValues("success", "2xx")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.fetches.WithLabelValues("error", "4xx")))
	require.InDelta(t, 1024.0, testutil.ToFloat64(sink.fetchBytes), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(sink.fetchDuration, "linkrank_fetch_duration_seconds"))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
