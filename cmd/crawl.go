package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkrank/internal/scheduler"
)

func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Fetch every seed document that is not stored yet",
		Long: `Reads the seed list, skips ids whose document already exists on the store and
fetches the rest with a fixed pool of workers. Failed fetches are logged and
left absent so a later crawl retries them.`,
		Args: cobra.NoArgs,
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	rep, err := appInstance.Crawl(cmd.Context())
	if err != nil {
		return err
	}
	logCrawlReport(appInstance.Logger(), rep)
	return nil
}

func logCrawlReport(logger *zap.Logger, rep scheduler.Report) {
	logger.Info("Crawl command finished.",
		zap.String("run_id", rep.RunID),
		zap.Int("seeds", rep.Seeds),
		zap.Int("skipped", rep.Skipped),
		zap.Int("fetched", rep.Fetched),
		zap.Int("failed", rep.Failed),
		zap.Int("abandoned", rep.Abandoned),
	)
	for _, f := range rep.Failures {
		logger.Debug("document left absent", zap.Int("doc_id", f.ID), zap.String("url", f.URL), zap.String("cause", f.Cause))
	}
	if rep.Failed > 0 {
		logger.Warn(fmt.Sprintf("%d documents failed; rerun crawl to retry them", rep.Failed))
	}
}
