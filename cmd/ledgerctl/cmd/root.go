// Package cmd holds the ledgerctl command tree.
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/portfolioledger/internal/domain"
	"github.com/alanyoungcy/portfolioledger/internal/importer"
	"github.com/alanyoungcy/portfolioledger/internal/ledger"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	output  string
	file    string
	account string
}

// NewRootCmd builds the ledgerctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Offline tools for portfolio ledger backups",
		Long: `ledgerctl reads a backup file exported by ledgerd (or the seeded defaults
when no file is given) and runs the portfolio analyses on it.

Examples:
  ledgerctl rebalance -f sui-backup.json
  ledgerctl stress --shock -30 --target SUI -f sui-backup.json -o json
  ledgerctl paste -f alts-backup.json < dashboard.txt
  ledgerctl backup verify sui-backup.json`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case outputTable, outputJSON, outputYAML:
				return nil
			default:
				return fmt.Errorf("unknown output %q (valid: table, json, yaml)", opts.output)
			}
		},
	}

	root.PersistentFlags().StringVarP(&opts.output, "output", "o", outputTable, "output format (table, json, yaml)")
	root.PersistentFlags().StringVarP(&opts.file, "file", "f", "", "backup file to read, - for stdin (default: seeded state)")
	root.PersistentFlags().StringVarP(&opts.account, "account", "a", "", "account id (sui, alts); defaults to the backup's active account")

	root.AddCommand(
		newRebalanceCmd(opts),
		newStressCmd(opts),
		newPasteCmd(opts),
		newBackupCmd(opts),
		newSeedCmd(opts),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadState returns the account state described by the flags: the backup
// applied over the seeded defaults of its account, or the seed alone.
func (o *rootOptions) loadState(in io.Reader) (domain.AccountState, error) {
	var b importer.Backup
	if o.file != "" {
		raw, err := readInput(o.file, in)
		if err != nil {
			return domain.AccountState{}, err
		}
		b, err = importer.ParseBackup(raw)
		if err != nil {
			return domain.AccountState{}, err
		}
	}

	idStr := o.account
	if idStr == "" {
		idStr = string(b.ActiveAccount)
	}
	if idStr == "" {
		idStr = string(domain.AnchorAccount)
	}
	id, err := domain.ParseAccountID(idStr)
	if err != nil {
		return domain.AccountState{}, err
	}

	state := b.Apply(ledger.Defaults(id))
	ledger.Recompute(state.Positions)
	return state, nil
}

func readInput(path string, in io.Reader) ([]byte, error) {
	if path == "-" {
		raw, err := io.ReadAll(in)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(strings.TrimSpace(path))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}
