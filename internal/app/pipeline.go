package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkrank/internal/linkgraph"
	"github.com/JakeFAU/linkrank/internal/pagerank"
	"github.com/JakeFAU/linkrank/internal/progress"
	"github.com/JakeFAU/linkrank/internal/report"
	"github.com/JakeFAU/linkrank/internal/scheduler"
	"github.com/JakeFAU/linkrank/internal/seed"
	pgstore "github.com/JakeFAU/linkrank/internal/storage/postgres"
)

// RankSummary describes one finished rank run.
type RankSummary struct {
	RunID      string
	Result     pagerank.Result
	Stats      linkgraph.BuildStats
	Edges      int
	Lines      []report.Line
	ReportPath string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Notice is the JSON payload published after each rank run.
type Notice struct {
	RunID       string    `json:"run_id"`
	Termination string    `json:"termination"`
	Iterations  int       `json:"iterations"`
	Delta       float64   `json:"delta"`
	Nodes       int       `json:"nodes"`
	Edges       int       `json:"edges"`
	TopID       int       `json:"top_id"`
	TopURL      string    `json:"top_url"`
	TopScore    float64   `json:"top_score"`
	ReportPath  string    `json:"report_path"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Crawl fetches every seed whose document is not yet stored. Only an
// unreadable seed list or an early cancel is an error; per-document failures
// are listed in the report.
func (a *App) Crawl(ctx context.Context) (scheduler.Report, error) {
	entries, err := seed.LoadFile(a.cfg.Seeds.Path)
	if err != nil {
		return scheduler.Report{}, err
	}
	spacing := a.cfg.Crawler.RequestSpacing
	if spacing == 0 {
		spacing = -1
	}
	sched := scheduler.New(
		a.docs,
		a.fetcher,
		a.chooser,
		a.Emitter(),
		a.clock,
		a.ids,
		scheduler.Config{
			Concurrency:    a.cfg.Crawler.Concurrency,
			RequestSpacing: spacing,
		},
		a.logger,
	)
	rep, err := sched.Run(ctx, entries)
	if err != nil {
		return rep, fmt.Errorf("crawl: %w", err)
	}
	return rep, nil
}

// Rank builds the link graph from the stored documents, runs PageRank and
// writes the report. Persistence to Postgres is part of the run when a store
// is configured; the Pub/Sub notice is best effort.
func (a *App) Rank(ctx context.Context) (RankSummary, error) {
	entries, err := seed.LoadFile(a.cfg.Seeds.Path)
	if err != nil {
		return RankSummary{}, err
	}
	runID, err := a.ids.NewID()
	if err != nil {
		return RankSummary{}, fmt.Errorf("new run id: %w", err)
	}
	runBytes, err := progress.ParseRunID(runID)
	if err != nil {
		return RankSummary{}, err
	}
	summary := RankSummary{RunID: runID, StartedAt: a.clock.Now(), ReportPath: a.cfg.Report.Path}
	logger := a.logger.With(zap.String("run_id", runID))

	graph, stats, err := linkgraph.NewBuilder(a.docs, entries, logger).Build(ctx)
	if err != nil {
		return summary, fmt.Errorf("build link graph: %w", err)
	}
	summary.Stats = stats
	summary.Edges = graph.EdgeCount()

	res, err := pagerank.Rank(ctx, graph, pagerank.Params{
		Alpha:         a.cfg.Rank.Alpha,
		Epsilon:       a.cfg.Rank.Epsilon,
		MaxIterations: a.cfg.Rank.MaxIterations,
		Workers:       a.cfg.Rank.Workers,
		Logger:        logger,
	})
	if err != nil {
		return summary, fmt.Errorf("pagerank: %w", err)
	}
	summary.Result = res
	summary.Lines = report.Order(res.Scores, entries)

	if err := report.NewFileWriter(a.cfg.Report.Path, logger).Write(ctx, summary.Lines); err != nil {
		return summary, err
	}
	summary.FinishedAt = a.clock.Now()

	if a.runStore != nil {
		if err := a.runStore.SaveRun(ctx, a.toRun(summary)); err != nil {
			return summary, fmt.Errorf("persist rank run: %w", err)
		}
		logger.Info("rank run persisted", zap.Int("scores", len(summary.Lines)))
	}
	a.publishNotice(ctx, logger, summary)

	a.Emitter().Emit(progress.Event{
		RunID: runBytes,
		TS:    summary.FinishedAt,
		Stage: progress.StageRankDone,
		DocID: -1,
		Dur:   summary.FinishedAt.Sub(summary.StartedAt),
		Note:  res.Termination.String(),
	})
	return summary, nil
}

func (a *App) toRun(s RankSummary) pgstore.Run {
	scores := make([]pgstore.Score, len(s.Lines))
	for i, line := range s.Lines {
		scores[i] = pgstore.Score{DocID: line.ID, URL: line.URL, Score: line.Score, Position: i + 1}
	}
	return pgstore.Run{
		RunID:       s.RunID,
		StartedAt:   s.StartedAt,
		FinishedAt:  s.FinishedAt,
		Nodes:       s.Stats.Nodes,
		Edges:       s.Edges,
		Alpha:       a.cfg.Rank.Alpha,
		Epsilon:     a.cfg.Rank.Epsilon,
		Iterations:  s.Result.Iterations,
		Termination: s.Result.Termination.String(),
		Delta:       s.Result.Delta,
		Scores:      scores,
	}
}

func (a *App) publishNotice(ctx context.Context, logger *zap.Logger, s RankSummary) {
	notice := Notice{
		RunID:       s.RunID,
		Termination: s.Result.Termination.String(),
		Iterations:  s.Result.Iterations,
		Delta:       s.Result.Delta,
		Nodes:       s.Stats.Nodes,
		Edges:       s.Edges,
		TopID:       -1,
		ReportPath:  s.ReportPath,
		FinishedAt:  s.FinishedAt,
	}
	if len(s.Lines) > 0 {
		notice.TopID = s.Lines[0].ID
		notice.TopURL = s.Lines[0].URL
		notice.TopScore = s.Lines[0].Score
	}
	id, err := a.publisher.Publish(ctx, a.cfg.PubSub.Topic, notice)
	if err != nil {
		logger.Warn("rank notice publish failed", zap.Error(err))
		return
	}
	logger.Debug("rank notice published", zap.String("message_id", id))
}
