package cli

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/roach88/didreg/internal/address"
	"github.com/roach88/didreg/internal/ledger"
	"github.com/roach88/didreg/internal/record"
)

// CredentialView is the status command's output.
type CredentialView struct {
	Identifier  string      `json:"identifier"`
	Wallet      string      `json:"wallet"`
	Status      string      `json:"status"`
	RefCount    uint64      `json:"refcount"`
	URI         string      `json:"uri,omitempty"`
	ProofDigest string      `json:"proof_digest,omitempty"`
	Addresses   address.Set `json:"addresses"`
}

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Wallet string
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status <identifier>",
		Short: "Show the lifecycle state of a credential",
		Long: `Show the state of an (identifier, wallet) pair, the identifier's live
credential count, and every derived record address.

Example:
  didreg status order-1 --wallet 9xQe...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, args[0], cmd)
		},
	}
	cmd.Flags().StringVarP(&opts.Wallet, "wallet", "w", "", "credential holder (base58, required)")
	_ = cmd.MarkFlagRequired("wallet")
	return cmd
}

func runStatus(opts *StatusOptions, identifier string, cmd *cobra.Command) error {
	wallet, err := parseKey("wallet", opts.Wallet)
	if err != nil {
		return err
	}

	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmdContext(cmd)
	st, err := e.engine.Status(ctx, identifier, wallet)
	if err != nil {
		return e.out.Reject(err)
	}
	count, err := e.engine.RefCount(ctx, identifier)
	if err != nil {
		return e.out.Reject(err)
	}

	view := CredentialView{
		Identifier: identifier,
		Wallet:     wallet.String(),
		Status:     st.String(),
		RefCount:   count,
		Addresses:  e.engine.Addresses(identifier, wallet),
	}
	if st == record.StatusMinted {
		tok, err := e.engine.Token(ctx, identifier, wallet)
		if err != nil {
			return e.out.Reject(err)
		}
		view.URI = tok.URI
		view.ProofDigest = hex.EncodeToString(tok.ProofDigest[:])
	}

	if e.out.Format == "json" {
		return e.out.Success(view)
	}
	w := e.out.Writer
	fmt.Fprintf(w, "%s / %s: %s\n", view.Identifier, view.Wallet, view.Status)
	fmt.Fprintf(w, "  refcount: %d\n", view.RefCount)
	if view.URI != "" {
		fmt.Fprintf(w, "  uri:      %s\n", view.URI)
	}
	if view.ProofDigest != "" {
		fmt.Fprintf(w, "  proof:    %s\n", view.ProofDigest)
	}
	fmt.Fprintf(w, "  status record:   %s\n", view.Addresses.Status)
	fmt.Fprintf(w, "  token record:    %s\n", view.Addresses.Token)
	fmt.Fprintf(w, "  holding record:  %s\n", view.Addresses.Holding)
	fmt.Fprintf(w, "  refcount record: %s\n", view.Addresses.RefCount)
	return nil
}

// AuditOptions holds flags for the audit command.
type AuditOptions struct {
	*RootOptions
	Identifier string
	After      int64
	Limit      int
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print the audit log of committed transitions",
		Long: `Print committed transitions in sequence order. Rejected calls are never
recorded.

Examples:
  didreg audit
  didreg audit --identifier order-1 --format json
  didreg audit --after 120 --limit 50`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Identifier, "identifier", "", "only transitions on this identifier")
	cmd.Flags().Int64Var(&opts.After, "after", 0, "only entries with seq greater than this")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of entries (0 = all)")
	return cmd
}

func runAudit(opts *AuditOptions, cmd *cobra.Command) error {
	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	entries, err := e.ledger.AuditLog(cmdContext(cmd), ledger.AuditFilter{
		Identifier: opts.Identifier,
		AfterSeq:   opts.After,
		Limit:      opts.Limit,
	})
	if err != nil {
		return e.out.Reject(err)
	}

	if e.out.Format == "json" {
		if entries == nil {
			entries = []ledger.AuditEntry{}
		}
		return e.out.Success(entries)
	}

	w := e.out.Writer
	if len(entries) == 0 {
		fmt.Fprintln(w, "No transitions recorded.")
		return nil
	}
	for _, en := range entries {
		fmt.Fprintf(w, "[%d] %s %s caller=%s", en.Seq, en.TxID, en.Action, en.Caller)
		if !en.Wallet.IsZero() {
			fmt.Fprintf(w, " wallet=%s", en.Wallet)
		}
		if en.Identifier != "" {
			fmt.Fprintf(w, " identifier=%q", en.Identifier)
		}
		fmt.Fprintln(w)
		printAddresses(w, "created", en.Created)
		printAddresses(w, "closed", en.Closed)
		for _, c := range en.Credits {
			fmt.Fprintf(w, "  refund:  %d lamports -> %s\n", c.Lamports, c.Recipient)
		}
	}
	return nil
}

// BalanceView is the balance command's output.
type BalanceView struct {
	Identity string `json:"identity"`
	Lamports uint64 `json:"lamports"`
}

// NewFundCommand creates the fund command.
func NewFundCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fund <identity> <lamports>",
		Short: "Credit lamports to an identity",
		Long: `Credit spendable lamports to an identity on the local ledger so it can pay
fees and storage deposits.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := parseKey("identity", args[0])
			if err != nil {
				return err
			}
			amount, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid lamports", err)
			}

			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmdContext(cmd)
			if err := e.ledger.Fund(ctx, identity, amount); err != nil {
				return e.out.Reject(err)
			}
			return showBalance(e, identity, cmd)
		},
	}
}

// NewBalanceCommand creates the balance command.
func NewBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance [identity]",
		Short: "Show spendable lamports",
		Long: `Show the spendable lamports of an identity. Without an argument the
--keypair identity is used. Locked storage deposits are not included.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var identity solana.PublicKey
			var err error
			if len(args) == 1 {
				identity, err = parseKey("identity", args[0])
			} else {
				identity, err = signer(rootOpts)
			}
			if err != nil {
				return err
			}

			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer e.Close()
			return showBalance(e, identity, cmd)
		},
	}
}

func showBalance(e *env, identity solana.PublicKey, cmd *cobra.Command) error {
	bal, err := e.ledger.Balance(cmdContext(cmd), identity)
	if err != nil {
		return e.out.Reject(err)
	}
	view := BalanceView{Identity: identity.String(), Lamports: bal}
	if e.out.Format == "json" {
		return e.out.Success(view)
	}
	fmt.Fprintf(e.out.Writer, "%s: %d lamports\n", view.Identity, view.Lamports)
	return nil
}

// AccountsOptions holds flags for the accounts command.
type AccountsOptions struct {
	*RootOptions
	Kind string
}

// AccountView is one live record in the accounts listing.
type AccountView struct {
	Address  string      `json:"address"`
	Kind     record.Kind `json:"kind"`
	Funder   string      `json:"funder"`
	Lamports uint64      `json:"lamports"`
	Space    int         `json:"space"`
}

// AccountsResult is the accounts command's output.
type AccountsResult struct {
	Accounts      []AccountView `json:"accounts"`
	TotalDeposits uint64        `json:"total_deposits"`
}

var accountKinds = []record.Kind{
	record.KindConfig, record.KindStatus, record.KindToken, record.KindHolding, record.KindRefCount,
}

// NewAccountsCommand creates the accounts command.
func NewAccountsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AccountsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List live records and their locked deposits",
		Long: `List every live record with the identity that funded it and the deposit
it locks, followed by the total locked across the ledger.

Kinds: project_config, credential_status, token, holding, identifier_refcount`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccounts(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only records of this kind")
	return cmd
}

func runAccounts(opts *AccountsOptions, cmd *cobra.Command) error {
	kind := record.Kind(opts.Kind)
	if kind != "" && !validKind(kind) {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown record kind %q", opts.Kind))
	}

	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmdContext(cmd)
	accts, err := e.ledger.Accounts(ctx, kind)
	if err != nil {
		return e.out.Reject(err)
	}
	total, err := e.ledger.TotalDeposits(ctx)
	if err != nil {
		return e.out.Reject(err)
	}

	result := AccountsResult{Accounts: make([]AccountView, 0, len(accts)), TotalDeposits: total}
	for _, a := range accts {
		if got, ok := record.KindOf(a.Data); !ok || got != a.Kind {
			return e.out.Reject(fmt.Errorf("account %s: stored %s data does not match its kind", a.Address, a.Kind))
		}
		result.Accounts = append(result.Accounts, AccountView{
			Address:  a.Address.String(),
			Kind:     a.Kind,
			Funder:   a.Funder.String(),
			Lamports: a.Lamports,
			Space:    a.Space,
		})
	}

	if e.out.Format == "json" {
		return e.out.Success(result)
	}
	w := e.out.Writer
	for _, a := range result.Accounts {
		fmt.Fprintf(w, "%-20s %s %d lamports (funder %s)\n", a.Kind, a.Address, a.Lamports, a.Funder)
	}
	fmt.Fprintf(w, "Total locked: %d lamports\n", result.TotalDeposits)
	return nil
}

func validKind(k record.Kind) bool {
	for _, v := range accountKinds {
		if v == k {
			return true
		}
	}
	return false
}
