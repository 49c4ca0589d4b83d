// Package cmd defines the linkrank CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkrank/internal/app"
	"github.com/JakeFAU/linkrank/internal/config"
	"github.com/JakeFAU/linkrank/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. Tests replace it to inject options.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.Build(ctx, cfg, logger)
}

// flagBindings maps persistent flags onto configuration keys.
var flagBindings = map[string]string{
	"seeds":       "seeds.path",
	"storage-dir": "storage.dir",
	"backend":     "storage.backend",
	"concurrency": "crawler.concurrency",
	"spacing":     "crawler.request_spacing",
	"report":      "report.path",
	"addr":        "server.addr",
	"log-level":   "logging.level",
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "linkrank",
		Short: "Crawl a fixed corpus and rank it with PageRank.",
		Long: `linkrank fetches every URL of a seed list into a document store, builds the
link graph restricted to that corpus and writes a PageRank report.

The crawl and rank steps are independent: crawl only fetches documents that are
not yet stored, and rank reads whatever the store holds.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadViper(v, cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), shutdownTimeout)
			defer cancel()
			if err := appInstance.Close(ctx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (YAML)")
	flags.String("seeds", "", "seed list, one URL per line")
	flags.String("storage-dir", "", "document directory for the local backend")
	flags.String("backend", "", "document store backend: local, memory or gcs")
	flags.Int("concurrency", 0, "number of fetch workers")
	flags.Duration("spacing", 0, "minimum gap between two requests of one worker")
	flags.String("report", "", "ranking report path")
	flags.String("addr", "", "status server listen address")
	flags.String("log-level", "", "log level override (debug, info, warn, error)")
	bindFlags(v, flags)

	cmd.AddCommand(newCrawlCmd(), newRankCmd(), newRunCmd())
	return cmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	for name, key := range flagBindings {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		zap.L().Fatal("Command execution failed", zap.Error(err))
	}
}
