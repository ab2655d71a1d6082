package harness

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/gagliardetto/solana-go"

	"github.com/roach88/didreg/internal/access"
	"github.com/roach88/didreg/internal/ledger"
	"github.com/roach88/didreg/internal/lifecycle"
	"github.com/roach88/didreg/internal/testutil"
)

// Harness is the scenario execution engine.
// It runs steps with deterministic keys and transaction ids.
type Harness struct {
	ledger *ledger.Ledger
	engine *lifecycle.Engine
	keys   *testutil.Keyring
	labels map[solana.PublicKey]string
	funded uint64
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory ledger for isolation.
//
// Execution flow:
// 1. Create fresh in-memory ledger
// 2. Fund parties and initialize the project
// 3. Execute setup steps (each must commit)
// 4. Execute flow steps, checking each outcome against expect
// 5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	l, err := ledger.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory ledger: %w", err)
	}
	defer l.Close()

	h := &Harness{
		ledger: l,
		engine: lifecycle.New(l,
			lifecycle.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // Suppress logs in tests
			lifecycle.WithTxIDGenerator(testutil.NewSequenceGenerator(scenario.Name)),
		),
		keys:   testutil.NewKeyring(),
		labels: make(map[solana.PublicKey]string),
	}
	h.labels[h.engine.Deriver().Config()] = "config"

	ctx := context.Background()
	if err := h.setupProject(ctx, scenario); err != nil {
		return nil, err
	}

	result := NewResult()
	step := 0
	for i, s := range scenario.Setup {
		step++
		ev, err := h.execute(ctx, step, s)
		if err != nil {
			return nil, fmt.Errorf("setup[%d]: %w", i, err)
		}
		if ev.Outcome != OutcomeOK {
			return nil, fmt.Errorf("setup[%d]: %s failed with %s", i, s.Action, ev.Outcome)
		}
		result.Trace = append(result.Trace, ev)
	}

	for i, s := range scenario.Flow {
		step++
		ev, err := h.execute(ctx, step, s)
		if err != nil {
			return nil, fmt.Errorf("flow[%d]: %w", i, err)
		}
		result.Trace = append(result.Trace, ev)
		if ev.Outcome != s.Outcome() {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected %s, got %s", i, s.Action, s.Outcome(), ev.Outcome))
		}
	}

	actx := &AssertionContext{
		Ctx:     ctx,
		Engine:  h.engine,
		Ledger:  l,
		Keys:    h.keys,
		Funded:  h.funded,
		Parties: h.parties(scenario),
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// setupProject funds every party and initializes the project.
func (h *Harness) setupProject(ctx context.Context, scenario *Scenario) error {
	for name, lamports := range scenario.Funding {
		if err := h.ledger.Fund(ctx, h.keys.Key(name), lamports); err != nil {
			return fmt.Errorf("fund %s: %w", name, err)
		}
		h.funded += lamports
	}

	p := scenario.Project
	settings := lifecycle.Settings{
		MintFee:          p.MintFee,
		BaseURI:          p.BaseURI,
		AllowDirectIssue: p.AllowDirectIssue,
	}
	if p.FeeRecipient != "" {
		settings.FeeRecipient = h.keys.Key(p.FeeRecipient)
	}
	for _, op := range p.Operators {
		settings.Operators = append(settings.Operators, h.keys.Key(op))
	}
	if _, err := h.engine.Initialize(ctx, h.keys.Key(p.Authority), settings); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	return nil
}

// parties lists every named identity in the scenario.
func (h *Harness) parties(scenario *Scenario) []solana.PublicKey {
	names := map[string]bool{scenario.Project.Authority: true}
	if scenario.Project.FeeRecipient != "" {
		names[scenario.Project.FeeRecipient] = true
	}
	for name := range scenario.Funding {
		names[name] = true
	}
	for _, steps := range [][]Step{scenario.Setup, scenario.Flow} {
		for _, s := range steps {
			names[s.Caller] = true
			if s.Wallet != "" {
				names[s.Wallet] = true
			}
		}
	}
	out := make([]solana.PublicKey, 0, len(names))
	for name := range names {
		out = append(out, h.keys.Key(name))
	}
	return out
}

// label registers readable names for every address a step may touch.
func (h *Harness) label(identifier, wallet string) {
	set := h.engine.Addresses(identifier, h.keys.Key(wallet))
	pair := identifier + "/" + wallet
	h.labels[set.Status] = "status/" + pair
	h.labels[set.Token] = "token/" + pair
	h.labels[set.Holding] = "holding/" + pair
	h.labels[set.RefCount] = "refcount/" + identifier
}

func (h *Harness) name(pk solana.PublicKey) string {
	if l, ok := h.labels[pk]; ok {
		return l
	}
	return pk.String()
}

// execute runs one step. Rejections become the event's outcome; only
// infrastructure failures are returned as errors.
func (h *Harness) execute(ctx context.Context, n int, s Step) (TraceEvent, error) {
	ev := TraceEvent{
		Step:       n,
		Action:     s.Action,
		Caller:     s.Caller,
		Wallet:     s.Wallet,
		Identifier: s.Identifier,
	}

	res, err := h.dispatch(ctx, s)
	if err != nil {
		code := lifecycle.CodeOf(err)
		if code == "" {
			return ev, err
		}
		ev.Outcome = string(code)
		return ev, nil
	}

	ev.Outcome = OutcomeOK
	ev.Status = res.Status
	for _, addr := range res.Created {
		ev.Created = append(ev.Created, h.name(addr))
	}
	for _, addr := range res.Closed {
		ev.Closed = append(ev.Closed, h.name(addr))
	}
	for _, c := range res.Credits {
		ev.Credits = append(ev.Credits, CreditEvent{
			Record:    h.name(c.Address),
			Recipient: h.keys.Name(c.Recipient),
			Lamports:  c.Lamports,
		})
	}
	return ev, nil
}

func (h *Harness) dispatch(ctx context.Context, s Step) (*lifecycle.Result, error) {
	caller := h.keys.Key(s.Caller)
	var subject solana.PublicKey
	if s.Wallet != "" {
		subject = h.keys.Key(s.Wallet)
	}

	action := access.Action(s.Action)
	if action.IsLifecycle() {
		h.label(s.Identifier, s.Wallet)
		req := lifecycle.Request{Caller: caller, Wallet: subject, Identifier: s.Identifier}
		if s.Proof != "" {
			req.ProofDigest = sha256.Sum256([]byte(s.Proof))
		}
		return h.engine.Execute(ctx, action, req)
	}

	e := h.engine
	switch action {
	case access.ActionTransferAuthority:
		return e.TransferAuthority(ctx, caller, subject)
	case access.ActionAddOperator:
		return e.AddOperator(ctx, caller, subject)
	case access.ActionRemoveOperator:
		return e.RemoveOperator(ctx, caller, subject)
	case access.ActionSetFeeRecipient:
		return e.SetFeeRecipient(ctx, caller, subject)
	case access.ActionBlockWallet:
		return e.BlockWallet(ctx, caller, subject)
	case access.ActionUnblockWallet:
		return e.UnblockWallet(ctx, caller, subject)
	case access.ActionBlockIdentifier:
		return e.BlockIdentifier(ctx, caller, s.Identifier)
	case access.ActionUnblockIdentifier:
		return e.UnblockIdentifier(ctx, caller, s.Identifier)
	case access.ActionSetBaseURI:
		return e.SetBaseURI(ctx, caller, s.Value)
	case access.ActionSetMintFee:
		fee, err := strconv.ParseUint(s.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("set_mint_fee value: %w", err)
		}
		return e.SetMintFee(ctx, caller, fee)
	case access.ActionSetDirectIssue:
		allow, err := strconv.ParseBool(s.Value)
		if err != nil {
			return nil, fmt.Errorf("set_direct_issue value: %w", err)
		}
		return e.SetDirectIssue(ctx, caller, allow)
	default:
		return nil, fmt.Errorf("unknown action %q", s.Action)
	}
}

// addressOf resolves the record an account assertion names.
func addressOf(e *lifecycle.Engine, keys *testutil.Keyring, a Assertion) solana.PublicKey {
	if a.Record == "config" {
		return e.Deriver().Config()
	}
	var wallet solana.PublicKey
	if a.Wallet != "" {
		wallet = keys.Key(a.Wallet)
	}
	set := e.Addresses(a.Identifier, wallet)
	switch a.Record {
	case "status":
		return set.Status
	case "token":
		return set.Token
	case "holding":
		return set.Holding
	default:
		return set.RefCount
	}
}
