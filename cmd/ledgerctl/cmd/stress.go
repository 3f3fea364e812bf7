package cmd

import (
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/portfolioledger/internal/format"
	"github.com/alanyoungcy/portfolioledger/internal/rebalance"
)

func newStressCmd(opts *rootOptions) *cobra.Command {
	var (
		shock  float64
		target string
	)

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Shock position values and show the impact",
		Long: `Scale the value of the target position (or every position with ALL) by
1+shock/100 and recompute allocations. Cash is never shocked.

Example:
  ledgerctl stress --shock -40 --target ALL -f sui-backup.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := opts.loadState(cmd.InOrStdin())
			if err != nil {
				return err
			}
			t := strings.ToUpper(strings.TrimSpace(target))
			if t == "" {
				t = rebalance.StressAll
			}
			res := rebalance.ComputeStressTest(state.Positions, shock, t)

			return render(cmd.OutOrStdout(), opts.output, res, func(tw *tabwriter.Writer) {
				row(tw, "SYMBOL", "VALUE", "STRESSED", "DELTA", "ALLOC", "STRESSED ALLOC")
				for _, p := range res.Positions {
					row(tw, p.Symbol, format.USD(p.Value), format.USD(p.StressedValue), format.USD(p.Delta),
						format.Percent(p.Allocation), format.Percent(p.StressedAllocation))
				}
				row(tw, "TOTAL", format.USD(res.Before), format.USD(res.After), format.USD(res.NetImpact), "", "")
			})
		},
	}

	cmd.Flags().Float64Var(&shock, "shock", -20, "price change in percent")
	cmd.Flags().StringVar(&target, "target", rebalance.StressAll, "symbol to shock, or ALL")
	return cmd
}
