package cmd

import (
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/portfolioledger/internal/format"
	"github.com/alanyoungcy/portfolioledger/internal/rebalance"
)

func newRebalanceCmd(opts *rootOptions) *cobra.Command {
	ro := rebalance.DefaultOptions()
	var feePercent float64

	cmd := &cobra.Command{
		Use:   "rebalance",
		Short: "Suggest trades that bring positions back to their targets",
		Long: `Compare every position against its target allocation and net the gap
against open pending orders. Gaps below the noise threshold are omitted.

Example:
  ledgerctl rebalance -f sui-backup.json --noise 25`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := opts.loadState(cmd.InOrStdin())
			if err != nil {
				return err
			}
			ro.FeeRate = feePercent / 100
			actions := rebalance.ComputeRebalance(state.Positions, state.TotalValue(), state.PendingOrders, ro)
			if actions == nil {
				actions = []rebalance.Action{}
			}

			return render(cmd.OutOrStdout(), opts.output, actions, func(tw *tabwriter.Writer) {
				row(tw, "SYMBOL", "ACTION", "STATUS", "CURRENT", "TARGET", "DIFF", "UNITS", "FEE")
				for _, a := range actions {
					row(tw, a.Symbol, a.Action, a.Status,
						format.USD(a.CurrentValue), format.USD(a.TargetValue), format.USD(a.Diff),
						format.Units(a.SuggestedUnits), format.USD(a.Fee))
				}
			})
		},
	}

	cmd.Flags().Float64Var(&ro.NoiseThreshold, "noise", ro.NoiseThreshold, "minimum gap in dollars that produces an action")
	cmd.Flags().Float64Var(&ro.CoverRatio, "cover", ro.CoverRatio, "share of the gap pending orders must cover")
	cmd.Flags().Float64Var(&feePercent, "fee-percent", ro.FeeRate*100, "trade fee in percent")
	return cmd
}
