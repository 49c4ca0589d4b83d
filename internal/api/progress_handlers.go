package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkrank/internal/progress/sinks"
	"github.com/JakeFAU/linkrank/internal/storage/postgres"
)

const (
	defaultRunLimit = 50
	maxRunLimit     = 500
	rankTimeout     = 3 * time.Second
)

// ProgressSource exposes the in-memory run tallies.
type ProgressSource interface {
	Snapshot() []sinks.RunTally
}

// RunSource reads persisted rank runs.
type RunSource interface {
	LatestRun(ctx context.Context) (postgres.Run, error)
}

// ProgressHandler exposes read-only run progress endpoints.
type ProgressHandler struct {
	source ProgressSource
	logger *zap.Logger
}

// NewProgressHandler wires the tally source and logger.
func NewProgressHandler(source ProgressSource, logger *zap.Logger) *ProgressHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressHandler{source: source, logger: logger}
}

// ListRuns handles GET /v1/runs?done=&limit=&offset=. Runs come back in start
// order; done filters on completion.
func (h *ProgressHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		writeError(w, http.StatusServiceUnavailable, "progress tracking unavailable")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultRunLimit, maxRunLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var done *bool
	if raw := strings.TrimSpace(r.URL.Query().Get("done")); raw != "" {
		val, parseErr := strconv.ParseBool(raw)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid done")
			return
		}
		done = &val
	}

	runs := h.source.Snapshot()
	filtered := make([]sinks.RunTally, 0, len(runs))
	for _, run := range runs {
		if done != nil && run.Done != *done {
			continue
		}
		filtered = append(filtered, run)
	}
	if offset > len(filtered) {
		offset = len(filtered)
	}
	end := min(offset+limit, len(filtered))
	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  filtered[offset:end],
		"total": len(filtered),
	})
}

// GetRun handles GET /v1/runs/{run_id}.
func (h *ProgressHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		writeError(w, http.StatusServiceUnavailable, "progress tracking unavailable")
		return
	}
	runID, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, run := range h.source.Snapshot() {
		if run.RunID == runID.String() {
			writeJSON(w, http.StatusOK, map[string]any{"run": run})
			return
		}
	}
	writeError(w, http.StatusNotFound, "run not found")
}

// RankHandler serves persisted rank runs.
type RankHandler struct {
	runs    RunSource
	timeout time.Duration
	logger  *zap.Logger
}

// NewRankHandler wires the run source and logger.
func NewRankHandler(runs RunSource, logger *zap.Logger) *RankHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RankHandler{runs: runs, timeout: rankTimeout, logger: logger}
}

// Latest handles GET /v1/ranks/latest. It returns 404 before the first run is
// persisted and 503 when no database is configured.
func (h *RankHandler) Latest(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run store unavailable")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	run, err := h.runs.LatestRun(ctx)
	if err != nil {
		if errors.Is(err, postgres.ErrNoRuns) {
			writeError(w, http.StatusNotFound, "no rank runs recorded")
			return
		}
		h.logger.Error("latest rank run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load rank run")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": toRankDTO(run)})
}

func parseRunID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "run_id")
	if raw == "" {
		return uuid.UUID{}, errors.New("run_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, errors.New("invalid run_id")
	}
	return id, nil
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		limit = min(val, maxLimit)
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

type rankDTO struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Nodes       int       `json:"nodes"`
	Edges       int       `json:"edges"`
	Alpha       float64   `json:"alpha"`
	Epsilon     float64   `json:"epsilon"`
	Iterations  int       `json:"iterations"`
	Termination string    `json:"termination"`
	Delta       float64   `json:"delta"`
}

func toRankDTO(run postgres.Run) rankDTO {
	return rankDTO{
		RunID:       run.RunID,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
		Nodes:       run.Nodes,
		Edges:       run.Edges,
		Alpha:       run.Alpha,
		Epsilon:     run.Epsilon,
		Iterations:  run.Iterations,
		Termination: run.Termination,
		Delta:       run.Delta,
	}
}
