// Package postgres persists rank runs and their scores in Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoRuns is returned by LatestRun when nothing has been saved yet.
var ErrNoRuns = errors.New("no rank runs recorded")

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTablePrefix = "linkrank"

// Config controls the Postgres connection pool used for rank runs.
type Config struct {
	DSN             string        `mapstructure:"dsn"`
	TablePrefix     string        `mapstructure:"table_prefix"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// Score is one ranked document.
type Score struct {
	DocID int
	URL   string
	Score float64
	// Position is the 1-based place in the report.
	Position int
}

// Run is a finished rank run.
type Run struct {
	RunID       string
	StartedAt   time.Time
	FinishedAt  time.Time
	Nodes       int
	Edges       int
	Alpha       float64
	Epsilon     float64
	Iterations  int
	Termination string
	Delta       float64
	Scores      []Score
}

type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// RunStore writes rank runs into two tables: <prefix>_runs and <prefix>_scores.
type RunStore struct {
	pool        pool
	runsTable   string
	scoresTable string
}

// New creates a Postgres-backed RunStore using the provided config.
func New(ctx context.Context, cfg Config) (*RunStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewWithPool(p, cfg.TablePrefix)
	if err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, prefix string) (*RunStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if prefix == "" {
		prefix = defaultTablePrefix
	}
	if !validTableName.MatchString(prefix) {
		return nil, fmt.Errorf("invalid table prefix %q", prefix)
	}
	return &RunStore{
		pool:        p,
		runsTable:   prefix + "_runs",
		scoresTable: prefix + "_scores",
	}, nil
}

// Close releases the underlying pool resources.
func (s *RunStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the tables if they do not exist yet.
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	runs := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id      TEXT PRIMARY KEY,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	nodes       INTEGER NOT NULL,
	edges       INTEGER NOT NULL,
	alpha       DOUBLE PRECISION NOT NULL,
	epsilon     DOUBLE PRECISION NOT NULL,
	iterations  INTEGER NOT NULL,
	termination TEXT NOT NULL,
	delta       DOUBLE PRECISION NOT NULL
)`, s.runsTable)
	if _, err := s.pool.Exec(ctx, runs); err != nil {
		return fmt.Errorf("create %s: %w", s.runsTable, err)
	}
	scores := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id   TEXT NOT NULL REFERENCES %s (run_id) ON DELETE CASCADE,
	doc_id   INTEGER NOT NULL,
	url      TEXT NOT NULL,
	score    DOUBLE PRECISION NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (run_id, doc_id)
)`, s.scoresTable, s.runsTable)
	if _, err := s.pool.Exec(ctx, scores); err != nil {
		return fmt.Errorf("create %s: %w", s.scoresTable, err)
	}
	return nil
}

// SaveRun inserts the run row and bulk-copies its scores in one transaction.
func (s *RunStore) SaveRun(ctx context.Context, run Run) (err error) {
	if run.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	insert := fmt.Sprintf(`
INSERT INTO %s (
	run_id, started_at, finished_at, nodes, edges, alpha, epsilon, iterations, termination, delta
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`, s.runsTable)
	if _, err = tx.Exec(ctx, insert,
		run.RunID,
		run.StartedAt,
		run.FinishedAt,
		run.Nodes,
		run.Edges,
		run.Alpha,
		run.Epsilon,
		run.Iterations,
		run.Termination,
		run.Delta,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	rows := make([][]any, 0, len(run.Scores))
	for _, sc := range run.Scores {
		rows = append(rows, []any{run.RunID, sc.DocID, sc.URL, sc.Score, sc.Position})
	}
	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{s.scoresTable},
		[]string{"run_id", "doc_id", "url", "score", "position"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy scores: %w", err)
	}
	if copied != int64(len(rows)) {
		return fmt.Errorf("copy scores: wrote %d of %d rows", copied, len(rows))
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LatestRun returns the most recently finished run without its scores.
func (s *RunStore) LatestRun(ctx context.Context) (Run, error) {
	query := fmt.Sprintf(`
SELECT run_id, started_at, finished_at, nodes, edges, alpha, epsilon, iterations, termination, delta
FROM %s
ORDER BY finished_at DESC
LIMIT 1`, s.runsTable)
	var run Run
	err := s.pool.QueryRow(ctx, query).Scan(
		&run.RunID,
		&run.StartedAt,
		&run.FinishedAt,
		&run.Nodes,
		&run.Edges,
		&run.Alpha,
		&run.Epsilon,
		&run.Iterations,
		&run.Termination,
		&run.Delta,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Run{}, ErrNoRuns
		}
		return Run{}, fmt.Errorf("latest run: %w", err)
	}
	return run, nil
}
