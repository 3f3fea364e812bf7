package cmd

import (
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
	"github.com/alanyoungcy/portfolioledger/internal/format"
	"github.com/alanyoungcy/portfolioledger/internal/ledger"
)

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Show the seeded default state of an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			idStr := opts.account
			if idStr == "" {
				idStr = string(domain.AnchorAccount)
			}
			id, err := domain.ParseAccountID(idStr)
			if err != nil {
				return err
			}
			state := ledger.Defaults(id)
			return render(cmd.OutOrStdout(), opts.output, state, func(tw *tabwriter.Writer) {
				positionsTable(tw, state)
			})
		},
	}
}

func positionsTable(tw *tabwriter.Writer, state domain.AccountState) {
	row(tw, "SYMBOL", "UNITS", "PRICE", "VALUE", "COST", "GAIN/LOSS", "ALLOC", "TARGET")
	for _, p := range state.Positions {
		row(tw, p.Symbol, format.Units(p.Units), format.Units(p.CurrentPrice), format.USD(p.CurrentValue),
			format.USD(p.TotalCost), format.USD(p.GainLoss), format.Percent(p.Allocation), format.Percent(p.TargetAllocation))
	}
	row(tw, "TOTAL", "", "", format.USD(state.TotalValue()), "", "", "", "")
}
