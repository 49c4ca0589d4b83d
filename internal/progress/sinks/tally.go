package sinks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/linkrank/internal/progress"
)

// RunTally is the running summary of one crawl or rank run.
type RunTally struct {
	RunID      string    `json:"run_id"`
	Stage      string    `json:"stage"`
	StartedAt  time.Time `json:"started_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Started    int64     `json:"started"`
	Fetched    int64     `json:"fetched"`
	Failed     int64     `json:"failed"`
	Bytes      int64     `json:"bytes"`
	Done       bool      `json:"done"`
	LastError  string    `json:"last_error,omitempty"`
	RankResult string    `json:"rank_result,omitempty"`
}

// TallySink keeps per-run counters in memory for the status endpoint.
type TallySink struct {
	mu   sync.RWMutex
	runs map[[16]byte]*RunTally
}

// NewTallySink returns an empty TallySink.
func NewTallySink() *TallySink {
	return &TallySink{runs: make(map[[16]byte]*RunTally)}
}

// Consume folds the batch into the per-run counters.
func (s *TallySink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		run := s.runs[evt.RunID]
		if run == nil {
			run = &RunTally{RunID: evt.RunUUID().String(), StartedAt: evt.TS}
			s.runs[evt.RunID] = run
		}
		if evt.TS.After(run.UpdatedAt) {
			run.UpdatedAt = evt.TS
		}
		run.Stage = string(evt.Stage)
		switch evt.Stage {
		case progress.StageRunStart:
			run.StartedAt = evt.TS
		case progress.StageFetchStart:
			run.Started++
		case progress.StageFetchDone:
			run.Fetched++
			run.Bytes += evt.Bytes
		case progress.StageFetchError:
			run.Failed++
			run.LastError = evt.Note
		case progress.StageRunDone:
			run.Done = true
		case progress.StageRankDone:
			run.Done = true
			run.RankResult = evt.Note
		}
	}
	return nil
}

// Snapshot returns a copy of every run, oldest first.
func (s *TallySink) Snapshot() []RunTally {
	s.mu.RLock()
	out := make([]RunTally, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, *run)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].RunID < out[j].RunID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Close implements the Sink interface; it performs no action.
func (s *TallySink) Close(context.Context) error {
	return nil
}
