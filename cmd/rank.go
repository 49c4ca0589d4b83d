package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkrank/internal/app"
)

func newRankCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rank",
		Short: "Compute PageRank over the stored documents",
		Long: `Builds the link graph from the stored documents (absent documents become nodes
without out-links), runs PageRank and writes the ranking report.`,
		Args: cobra.NoArgs,
		RunE: runRankCommand,
	}
}

func runRankCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	summary, err := appInstance.Rank(cmd.Context())
	if err != nil {
		return err
	}
	logRankSummary(appInstance.Logger(), summary)
	return nil
}

func logRankSummary(logger *zap.Logger, s app.RankSummary) {
	fields := []zap.Field{
		zap.String("run_id", s.RunID),
		zap.Stringer("termination", s.Result.Termination),
		zap.Int("iterations", s.Result.Iterations),
		zap.Int("nodes", s.Stats.Nodes),
		zap.Int("edges", s.Edges),
		zap.Int("links_dropped", s.Stats.LinksDropped),
		zap.String("report", s.ReportPath),
	}
	if len(s.Lines) > 0 {
		fields = append(fields, zap.Int("top_id", s.Lines[0].ID), zap.String("top_url", s.Lines[0].URL))
	}
	logger.Info("Rank command finished.", fields...)
}
