// Command ledgerctl inspects portfolio backups offline: rebalance
// suggestions, stress tests, paste previews and backup verification.
package main

import (
	"os"

	"github.com/alanyoungcy/portfolioledger/cmd/ledgerctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
