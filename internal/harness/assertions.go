package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/roach88/didreg/internal/ledger"
	"github.com/roach88/didreg/internal/lifecycle"
	"github.com/roach88/didreg/internal/testutil"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s caller=%s wallet=%s identifier=%s -> %s\n",
				ev.Step, ev.Action, ev.Caller, ev.Wallet, ev.Identifier, ev.Outcome)
		}
	}

	return buf.String()
}

// AssertionContext provides ledger access for state assertions.
type AssertionContext struct {
	Ctx     context.Context
	Engine  *lifecycle.Engine
	Ledger  *ledger.Ledger
	Keys    *testutil.Keyring
	Funded  uint64
	Parties []solana.PublicKey
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertStatus, AssertRefCount, AssertBalance, AssertAccount, AssertConserved:
			if actx == nil || actx.Ledger == nil {
				err = fmt.Errorf("assertion[%d]: %s requires ledger context", i, assertion.Type)
				break
			}
			err = assertState(actx, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}

// assertTraceOrder checks that committed actions appear in the given order.
// Actions don't need to be consecutive.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	committed := committedActions(trace)
	pos := 0
	for _, want := range assertion.Actions {
		found := false
		for pos < len(committed) {
			pos++
			if committed[pos-1] == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual:   fmt.Sprintf("committed actions: %v", committed),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that a committed action appears exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	var count uint64
	for _, action := range committedActions(trace) {
		if action == assertion.Action {
			count++
		}
	}
	if count != *assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", *assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func committedActions(trace []TraceEvent) []string {
	var out []string
	for _, ev := range trace {
		if ev.Outcome == OutcomeOK {
			out = append(out, ev.Action)
		}
	}
	return out
}

func assertState(actx *AssertionContext, a Assertion) error {
	ctx := actx.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	var wallet solana.PublicKey
	if a.Wallet != "" {
		wallet = actx.Keys.Key(a.Wallet)
	}

	switch a.Type {
	case AssertStatus:
		st, err := actx.Engine.Status(ctx, a.Identifier, wallet)
		if err != nil {
			return fmt.Errorf("status %s/%s: %w", a.Identifier, a.Wallet, err)
		}
		if st.String() != a.Status {
			return &AssertionError{
				Type:     AssertStatus,
				Expected: fmt.Sprintf("%s/%s is %s", a.Identifier, a.Wallet, a.Status),
				Actual:   st.String(),
			}
		}

	case AssertRefCount:
		n, err := actx.Engine.RefCount(ctx, a.Identifier)
		if err != nil {
			return fmt.Errorf("refcount %s: %w", a.Identifier, err)
		}
		if n != *a.Count {
			return &AssertionError{
				Type:     AssertRefCount,
				Expected: fmt.Sprintf("refcount %s = %d", a.Identifier, *a.Count),
				Actual:   fmt.Sprintf("%d", n),
			}
		}

	case AssertBalance:
		bal, err := actx.Ledger.Balance(ctx, actx.Keys.Key(a.Party))
		if err != nil {
			return fmt.Errorf("balance %s: %w", a.Party, err)
		}
		if bal != *a.Lamports {
			return &AssertionError{
				Type:     AssertBalance,
				Expected: fmt.Sprintf("%s holds %d lamports", a.Party, *a.Lamports),
				Actual:   fmt.Sprintf("%d", bal),
			}
		}

	case AssertAccount:
		return assertAccount(ctx, actx, a)

	case AssertConserved:
		return assertConserved(ctx, actx)
	}
	return nil
}

func assertAccount(ctx context.Context, actx *AssertionContext, a Assertion) error {
	addr := addressOf(actx.Engine, actx.Keys, a)
	acct, err := actx.Ledger.Account(ctx, addr)
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		acct = nil
	case err != nil:
		return fmt.Errorf("account %s: %w", a.Record, err)
	}

	what := a.Record
	if a.Identifier != "" {
		what += "/" + a.Identifier
	}
	if a.Wallet != "" {
		what += "/" + a.Wallet
	}

	if exists := acct != nil; exists != *a.Exists {
		return &AssertionError{
			Type:     AssertAccount,
			Expected: fmt.Sprintf("%s exists=%t", what, *a.Exists),
			Actual:   fmt.Sprintf("exists=%t", exists),
		}
	}
	if acct != nil && a.Lamports != nil && acct.Lamports != *a.Lamports {
		return &AssertionError{
			Type:     AssertAccount,
			Expected: fmt.Sprintf("%s locks %d lamports", what, *a.Lamports),
			Actual:   fmt.Sprintf("%d", acct.Lamports),
		}
	}
	return nil
}

// assertConserved checks that no lamports were created or destroyed.
func assertConserved(ctx context.Context, actx *AssertionContext) error {
	var total uint64
	for _, pk := range actx.Parties {
		bal, err := actx.Ledger.Balance(ctx, pk)
		if err != nil {
			return fmt.Errorf("balance %s: %w", actx.Keys.Name(pk), err)
		}
		total += bal
	}
	deposits, err := actx.Ledger.TotalDeposits(ctx)
	if err != nil {
		return fmt.Errorf("total deposits: %w", err)
	}
	if total+deposits != actx.Funded {
		return &AssertionError{
			Type:     AssertConserved,
			Expected: fmt.Sprintf("balances + deposits = %d", actx.Funded),
			Actual:   fmt.Sprintf("%d + %d = %d", total, deposits, total+deposits),
		}
	}
	return nil
}
