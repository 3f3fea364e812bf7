package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
	"github.com/alanyoungcy/portfolioledger/internal/format"
	"github.com/alanyoungcy/portfolioledger/internal/importer"
)

// backupSummary is what verify reports for a valid backup.
type backupSummary struct {
	Account       domain.AccountID `json:"account" yaml:"account"`
	Positions     int              `json:"positions" yaml:"positions"`
	Journal       int              `json:"journal" yaml:"journal"`
	PendingOrders int              `json:"pendingOrders" yaml:"pending_orders"`
	TotalValue    float64          `json:"totalValue" yaml:"total_value"`
	CashValue     float64          `json:"cashValue" yaml:"cash_value"`
}

func newBackupCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export or verify account backups",
		Long: `Subcommands:
  export  - write the backup JSON of the loaded state (seed when no file)
  verify  - check a backup file and summarise it

Examples:
  ledgerctl backup export -a alts > alts.json
  ledgerctl backup verify alts.json`,
	}

	export := &cobra.Command{
		Use:   "export",
		Short: "Write the normalised backup JSON of the loaded state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := opts.loadState(cmd.InOrStdin())
			if err != nil {
				return err
			}
			raw, err := importer.ExportBackup(state)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return err
		},
	}

	verify := &cobra.Command{
		Use:   "verify <backup-file>",
		Short: "Validate a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.file = args[0]
			state, err := opts.loadState(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("backup %s is invalid: %w", args[0], err)
			}
			sum := backupSummary{
				Account:       state.ID,
				Positions:     len(state.Positions),
				Journal:       len(state.Journal),
				PendingOrders: len(state.PendingOrders),
				TotalValue:    state.TotalValue(),
				CashValue:     state.CashValue(),
			}
			return render(cmd.OutOrStdout(), opts.output, sum, func(tw *tabwriter.Writer) {
				row(tw, "account", sum.Account)
				row(tw, "positions", sum.Positions)
				row(tw, "journal entries", sum.Journal)
				row(tw, "pending orders", sum.PendingOrders)
				row(tw, "total value", format.USD(sum.TotalValue))
				row(tw, "cash", format.USD(sum.CashValue))
			})
		},
	}

	cmd.AddCommand(export, verify)
	return cmd
}
