package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

var runColumns = []string{
	"run_id", "started_at", "finished_at", "nodes", "edges",
	"alpha", "epsilon", "iterations", "termination", "delta",
}

func sampleRun() Run {
	started := time.Unix(1_700_000_000, 0).UTC()
	return Run{
		RunID:       "0190c0de-0000-7000-8000-000000000001",
		StartedAt:   started,
		FinishedAt:  started.Add(2 * time.Second),
		Nodes:       4,
		Edges:       4,
		Alpha:       0.1,
		Epsilon:     1e-6,
		Iterations:  12,
		Termination: "converged",
		Delta:       5e-7,
		Scores: []Score{
			{DocID: 1, URL: "https://b", Score: 0.51, Position: 1},
			{DocID: 2, URL: "https://c", Score: 0.2, Position: 2},
		},
	}
}

func TestNewWithPoolValidatesPrefix(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(nil, "")
	require.Error(t, err)
	_, err = NewWithPool(mock, "bad-prefix;")
	require.Error(t, err)

	s, err := NewWithPool(mock, "")
	require.NoError(t, err)
	require.Equal(t, "linkrank_runs", s.runsTable)
	require.Equal(t, "linkrank_scores", s.scoresTable)
}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewWithPool(mock, "ranks")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS ranks_runs").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS ranks_scores").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRunCommits(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewWithPool(mock, "")
	require.NoError(t, err)
	run := sampleRun()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO linkrank_runs").
		WithArgs(
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
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"linkrank_scores"}, []string{"run_id", "doc_id", "url", "score", "position"}).
		WillReturnResult(2)
	mock.ExpectCommit()

	require.NoError(t, s.SaveRun(context.Background(), run))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRunRollsBackOnError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO linkrank_runs").WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err = s.SaveRun(context.Background(), sampleRun())
	require.ErrorContains(t, err, "duplicate key")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRunRequiresID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewWithPool(mock, "")
	require.NoError(t, err)
	require.Error(t, s.SaveRun(context.Background(), Run{}))
}

func TestLatestRun(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewWithPool(mock, "")
	require.NoError(t, err)
	want := sampleRun()
	want.Scores = nil

	mock.ExpectQuery("SELECT run_id").WillReturnRows(
		pgxmock.NewRows(runColumns).AddRow(
			want.RunID, want.StartedAt, want.FinishedAt, want.Nodes, want.Edges,
			want.Alpha, want.Epsilon, want.Iterations, want.Termination, want.Delta,
		),
	)

	got, err := s.LatestRun(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestRunEmpty(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT run_id").WillReturnError(pgx.ErrNoRows)

	_, err = s.LatestRun(context.Background())
	require.ErrorIs(t, err, ErrNoRuns)
}
