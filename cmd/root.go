// Package cmd defines and implements the CLI commands for the quotecrawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/quotes-crawler/internal/app"
	"github.com/JakeFAU/quotes-crawler/internal/config"
	"github.com/JakeFAU/quotes-crawler/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. It's a variable so tests can swap it.
var newApp = app.New

// rootCmd owns the App built for the running subcommand. Cobra skips
// PersistentPostRun when RunE fails, so the App is closed by closeApp after
// execution instead.
type rootCmd struct {
	*cobra.Command
	app *app.App
}

func (r *rootCmd) closeApp() {
	if r.app != nil {
		r.app.Close()
		r.app = nil
	}
}

// newRootCmd creates and configures the root command.
func newRootCmd() *rootCmd {
	var cfgFile string
	root := &rootCmd{}
	cmd := &cobra.Command{
		Use:   "quotecrawler",
		Short: "Crawls a paginated quotes site into Postgres.",
		Long: `quotecrawler walks every listing page of a quotes site, follows each
author link for biographical detail, and stores quotes, authors and tags
idempotently. It can run once, on a schedule, or behind a small dashboard.`,
		SilenceUsage: true,

		// Config, logger and services are built once here and handed to the
		// subcommand through the command context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			root.app = appInstance
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (CRAWLER_* environment variables override it)")

	cmd.AddCommand(
		newCrawlCmd(),
		newScheduleCmd(),
		newServeCmd(),
		newShowCmd(),
		newDatabasesCmd(),
	)
	root.Command = cmd
	return root
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command
// context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, newRootCmd())
	stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run executes root and closes the App whether or not the subcommand
// succeeded.
func run(ctx context.Context, root *rootCmd) error {
	defer root.closeApp()
	return root.ExecuteContext(ctx)
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
