package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/quotes-crawler/internal/export"
)

const showQuoteLimit = 1000

func newShowCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:       "show quotes|tags",
		Short:     "Prints stored quotes or tags",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"quotes", "tags"},
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			reader := appInstance.Reader()

			var sheet export.Sheet
			switch args[0] {
			case "quotes":
				quotes, err := reader.ListQuotes(cmd.Context(), showQuoteLimit, 0)
				if err != nil {
					return fmt.Errorf("list quotes: %w", err)
				}
				sheet = export.StoredQuotesSheet(quotes)
			case "tags":
				tags, err := reader.ListTags(cmd.Context())
				if err != nil {
					return fmt.Errorf("list tags: %w", err)
				}
				sheet = export.StoredTagsSheet(tags)
			default:
				return fmt.Errorf("unknown table %q, want quotes or tags", args[0])
			}

			out, err := export.Render(sheet, f)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", string(export.FormatTable), "output format: table, csv or markdown")
	return cmd
}
