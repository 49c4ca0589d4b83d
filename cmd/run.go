package cmd

import (
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Crawl, then rank, in one process",
		Long: `Equivalent to crawl followed by rank against the same App. This is the only way
to use the memory backend end to end.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runCrawlCommand(cmd, args); err != nil {
				return err
			}
			return runRankCommand(cmd, args)
		},
	}
}
