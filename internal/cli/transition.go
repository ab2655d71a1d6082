package cli

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/roach88/didreg/internal/access"
	"github.com/roach88/didreg/internal/lifecycle"
)

// transitionCommand describes one lifecycle subcommand.
type transitionCommand struct {
	action access.Action
	short  string
	long   string

	// holder commands default --wallet to the caller.
	holder bool
}

var transitionCommands = []transitionCommand{
	{
		action: access.ActionAuthorize,
		short:  "Authorize a wallet to receive a credential",
		long: `Authorize an (identifier, wallet) pair. The caller must be the authority
or an operator; it pays the mint fee and funds the status record.`,
	},
	{
		action: access.ActionIssue,
		short:  "Issue the credential token for an authorized pair",
		long: `Issue the non-transferable credential token. The caller funds the token
and the wallet funds its holding record.`,
	},
	{
		action: access.ActionBurn,
		short:  "Burn your own credential",
		long:   `Burn a minted credential. Only the holding wallet may burn; every deposit is returned.`,
		holder: true,
	},
	{
		action: access.ActionRevoke,
		short:  "Revoke a minted credential",
		long: `Revoke a minted credential through the issuer override. The holding stays
open with a zero balance until the wallet runs cleanup.`,
	},
	{
		action: access.ActionCleanup,
		short:  "Close a revoked credential's remaining records",
		long:   `Close the holding and status of a revoked credential. Only the holding wallet may clean up.`,
		holder: true,
	},
}

// TransitionOptions holds flags shared by the lifecycle commands.
type TransitionOptions struct {
	*RootOptions
	Wallet    string
	Proof     string // hex SHA-256 digest
	ProofFile string // file hashed into the digest
}

func newTransitionCommand(rootOpts *RootOptions, tc transitionCommand) *cobra.Command {
	opts := &TransitionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   string(tc.action) + " <identifier>",
		Short: tc.short,
		Long: tc.long + `

Exit codes:
  0 - Transition committed
  1 - Transition rejected (error code printed)
  2 - Command error`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransition(opts, tc, args[0], cmd)
		},
	}

	walletHelp := "credential holder (base58)"
	if tc.holder {
		walletHelp += ", defaults to the caller"
	}
	cmd.Flags().StringVarP(&opts.Wallet, "wallet", "w", "", walletHelp)
	if tc.action == access.ActionIssue {
		cmd.Flags().StringVar(&opts.Proof, "proof", "", "proof digest (64 hex chars)")
		cmd.Flags().StringVar(&opts.ProofFile, "proof-file", "", "file whose SHA-256 is the proof digest")
		cmd.MarkFlagsMutuallyExclusive("proof", "proof-file")
	}

	return cmd
}

func runTransition(opts *TransitionOptions, tc transitionCommand, identifier string, cmd *cobra.Command) error {
	caller, err := signer(opts.RootOptions)
	if err != nil {
		return err
	}

	req := lifecycle.Request{Caller: caller, Identifier: identifier}
	switch {
	case opts.Wallet != "":
		if req.Wallet, err = parseKey("wallet", opts.Wallet); err != nil {
			return err
		}
	case tc.holder:
		req.Wallet = caller
	default:
		return NewExitError(ExitCommandError, "--wallet is required")
	}

	if req.ProofDigest, err = proofDigest(opts); err != nil {
		return err
	}

	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	res, err := e.engine.Execute(cmdContext(cmd), tc.action, req)
	if err != nil {
		return e.out.Reject(err)
	}
	return printResult(e.out, res)
}

func proofDigest(opts *TransitionOptions) ([32]byte, error) {
	var digest [32]byte
	switch {
	case opts.ProofFile != "":
		data, err := os.ReadFile(opts.ProofFile)
		if err != nil {
			return digest, WrapExitError(ExitCommandError, "failed to read proof file", err)
		}
		return sha256.Sum256(data), nil
	case opts.Proof != "":
		b, err := hex.DecodeString(opts.Proof)
		if err != nil || len(b) != len(digest) {
			return digest, NewExitError(ExitCommandError, fmt.Sprintf("--proof must be %d hex-encoded bytes", len(digest)))
		}
		copy(digest[:], b)
	}
	return digest, nil
}

// printResult renders a committed transition.
func printResult(out *OutputFormatter, res *lifecycle.Result) error {
	if out.Format == "json" {
		return out.Success(res)
	}

	w := out.Writer
	fmt.Fprintf(w, "✓ %s committed (tx %s, seq %d)\n", res.Action, res.TxID, res.Seq)
	if res.Status != "" {
		fmt.Fprintf(w, "  status:  %s\n", res.Status)
	}
	printAddresses(w, "created", res.Created)
	printAddresses(w, "closed", res.Closed)
	for _, c := range res.Credits {
		fmt.Fprintf(w, "  refund:  %d lamports -> %s (from %s)\n", c.Lamports, c.Recipient, c.Address)
	}
	return nil
}

func printAddresses(w io.Writer, label string, addrs []solana.PublicKey) {
	for _, a := range addrs {
		fmt.Fprintf(w, "  %-8s %s\n", label+":", a)
	}
}
