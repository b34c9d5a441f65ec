package cmd

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/quotes-crawler/internal/export"
	"github.com/JakeFAU/quotes-crawler/internal/store"
)

// newCrawlCmd creates the 'crawl' subcommand, which performs one run and
// exits.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Runs one crawl and exits",
		Long: `Walks the listing pages of crawler.base_url, persists what it finds,
writes the export sheets when a sink is configured and prints a run summary.`,
		Args: cobra.NoArgs,
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	run, err := appInstance.Worker().RunOnce(cmd.Context())
	if printErr := printRun(cmd.OutOrStdout(), run); printErr != nil {
		return printErr
	}
	if err != nil {
		return fmt.Errorf("crawl run %s: %w", run.ID, err)
	}
	return nil
}

func printRun(w io.Writer, run store.Run) error {
	t := export.NewTable()
	t.AppendHeader(table.Row{"run", "status", "pages", "quotes", "tags", "row errors"})
	t.AppendRow(table.Row{run.ID, run.Status, run.Pages, run.Quotes, run.Tags, run.RowErrors})
	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return fmt.Errorf("write run summary: %w", err)
	}
	return nil
}
