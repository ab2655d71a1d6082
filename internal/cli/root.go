package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Config is the CUE deployment file. Empty uses schema defaults.
	Config string

	// Database overrides ledger.path from the deployment file.
	Database string

	// Keypair is the caller's solana-keygen JSON file.
	Keypair string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the didreg CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "didreg",
		Short: "didreg - DID credential registry",
		Long: `A registry for soulbound DID credentials.

Every (identifier, wallet) pair moves through authorize, issue, and then
burn or revoke followed by cleanup. Each record locks a storage deposit that
is returned to whoever funded it when the record closes.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "deployment file (CUE)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite ledger (overrides ledger.path)")
	cmd.PersistentFlags().StringVarP(&opts.Keypair, "keypair", "k", "", "caller keypair file (solana-keygen JSON)")

	cmd.AddCommand(NewInitCommand(opts))
	for _, tc := range transitionCommands {
		cmd.AddCommand(newTransitionCommand(opts, tc))
	}
	cmd.AddCommand(NewAdminCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))
	cmd.AddCommand(NewAccountsCommand(opts))
	cmd.AddCommand(NewFundCommand(opts))
	cmd.AddCommand(NewBalanceCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
