package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/portfolioledger/internal/format"
	"github.com/alanyoungcy/portfolioledger/internal/importer"
)

func newPasteCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paste [text-file]",
		Short: "Preview balances and trades read from pasted dashboard text",
		Long: `Parse text copied from a brokerage dashboard against the account state and
show what a commit would apply. Reads stdin when no file is given. Nothing is
written.

Example:
  ledgerctl paste -f alts-backup.json dashboard.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := "-"
			if len(args) == 1 {
				src = args[0]
			}
			if src == "-" && opts.file == "-" {
				return fmt.Errorf("paste text and backup cannot both come from stdin")
			}
			state, err := opts.loadState(cmd.InOrStdin())
			if err != nil {
				return err
			}
			text, err := readInput(src, cmd.InOrStdin())
			if err != nil {
				return err
			}
			preview := importer.ParsePaste(string(text), state, time.Now())

			return render(cmd.OutOrStdout(), opts.output, preview, func(tw *tabwriter.Writer) {
				if len(preview.Balances) > 0 {
					row(tw, "SYMBOL", "UNITS")
					for _, b := range preview.Balances {
						row(tw, b.Symbol, format.Units(b.Units))
					}
					row(tw)
				}
				if len(preview.Trades) > 0 {
					row(tw, "ID", "TYPE", "SYMBOL", "UNITS", "PRICE", "STATUS", "DATE", "DUPLICATE")
					for _, t := range preview.Trades {
						row(tw, t.ID, t.Type, t.Symbol, format.Units(t.Units), format.Units(t.Price),
							t.Status, t.Date, t.Duplicate)
					}
				}
				if preview.MatchRate != nil {
					row(tw, "match rate:", format.Percent(*preview.MatchRate*100))
				}
				for _, w := range preview.Warnings {
					row(tw, "warning:", strings.TrimSpace(w))
				}
			})
		},
	}
	return cmd
}
