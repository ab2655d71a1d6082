package cli

import (
	"context"
	"errors"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/roach88/didreg/internal/lifecycle"
)

// adminCommand describes one authority-only subcommand. run receives the
// caller and the single positional argument.
type adminCommand struct {
	use   string
	short string
	run   func(ctx context.Context, e *lifecycle.Engine, caller solana.PublicKey, arg string) (*lifecycle.Result, error)
}

// withKey adapts an engine method taking a subject key.
func withKey(field string, fn func(*lifecycle.Engine, context.Context, solana.PublicKey, solana.PublicKey) (*lifecycle.Result, error)) func(context.Context, *lifecycle.Engine, solana.PublicKey, string) (*lifecycle.Result, error) {
	return func(ctx context.Context, e *lifecycle.Engine, caller solana.PublicKey, arg string) (*lifecycle.Result, error) {
		pk, err := parseKey(field, arg)
		if err != nil {
			return nil, err
		}
		return fn(e, ctx, caller, pk)
	}
}

// withString adapts an engine method taking a string argument.
func withString(fn func(*lifecycle.Engine, context.Context, solana.PublicKey, string) (*lifecycle.Result, error)) func(context.Context, *lifecycle.Engine, solana.PublicKey, string) (*lifecycle.Result, error) {
	return func(ctx context.Context, e *lifecycle.Engine, caller solana.PublicKey, arg string) (*lifecycle.Result, error) {
		return fn(e, ctx, caller, arg)
	}
}

var adminCommands = []adminCommand{
	{"transfer-authority <new-authority>", "Hand the authority role to another key", withKey("authority", (*lifecycle.Engine).TransferAuthority)},
	{"add-operator <operator>", "Grant the operator role", withKey("operator", (*lifecycle.Engine).AddOperator)},
	{"remove-operator <operator>", "Revoke the operator role", withKey("operator", (*lifecycle.Engine).RemoveOperator)},
	{"set-fee-recipient <recipient>", "Change where mint fees are paid", withKey("recipient", (*lifecycle.Engine).SetFeeRecipient)},
	{"block-wallet <wallet>", "Block a wallet from the lifecycle", withKey("wallet", (*lifecycle.Engine).BlockWallet)},
	{"unblock-wallet <wallet>", "Remove a wallet from the blocklist", withKey("wallet", (*lifecycle.Engine).UnblockWallet)},
	{"block-identifier <identifier>", "Block a credential identifier", withString((*lifecycle.Engine).BlockIdentifier)},
	{"unblock-identifier <identifier>", "Remove an identifier from the blocklist", withString((*lifecycle.Engine).UnblockIdentifier)},
	{"set-base-uri <uri>", "Set the metadata base URI for new tokens", withString((*lifecycle.Engine).SetBaseURI)},
	{
		"set-mint-fee <lamports>", "Set the fee charged by authorize",
		func(ctx context.Context, e *lifecycle.Engine, caller solana.PublicKey, arg string) (*lifecycle.Result, error) {
			fee, err := strconv.ParseUint(arg, 10, 64)
			if err != nil {
				return nil, WrapExitError(ExitCommandError, "invalid fee", err)
			}
			return e.SetMintFee(ctx, caller, fee)
		},
	},
	{
		"set-direct-issue <true|false>", "Allow the authority to issue without authorize",
		func(ctx context.Context, e *lifecycle.Engine, caller solana.PublicKey, arg string) (*lifecycle.Result, error) {
			allow, err := strconv.ParseBool(arg)
			if err != nil {
				return nil, WrapExitError(ExitCommandError, "invalid flag value", err)
			}
			return e.SetDirectIssue(ctx, caller, allow)
		},
	},
}

// NewAdminCommand creates the admin command group.
func NewAdminCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Authority-only project configuration",
		Long: `Change the project configuration. Every subcommand must be signed by the
current authority.`,
	}
	for _, ac := range adminCommands {
		cmd.AddCommand(newAdminSubcommand(rootOpts, ac))
	}
	return cmd
}

func newAdminSubcommand(opts *RootOptions, ac adminCommand) *cobra.Command {
	return &cobra.Command{
		Use:           ac.use,
		Short:         ac.short,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := signer(opts)
			if err != nil {
				return err
			}
			e, err := openEnv(opts, cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			res, err := ac.run(cmdContext(cmd), e.engine, caller, args[0])
			if err != nil {
				var exitErr *ExitError
				if errors.As(err, &exitErr) {
					return err
				}
				return e.out.Reject(err)
			}
			return printResult(e.out, res)
		},
	}
}
