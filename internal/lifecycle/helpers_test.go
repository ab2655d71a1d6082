package lifecycle

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/didreg/internal/events"
	"github.com/roach88/didreg/internal/ledger"
	"github.com/roach88/didreg/internal/record"
	"github.com/roach88/didreg/internal/testutil"
)

const (
	startingBalance = 1_000_000_000
	testBaseURI     = "https://meta.example.test/did/"
)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	ledger *ledger.Ledger
	eng    *Engine
	events *events.Recorder

	authority solana.PublicKey
	operator  solana.PublicKey
	feeSink   solana.PublicKey
	alice     solana.PublicKey
	bob       solana.PublicKey
}

// newFixture initializes a project with one operator and funds every party.
func newFixture(t *testing.T, mutate ...func(*Settings)) *fixture {
	t.Helper()
	f := &fixture{
		t:         t,
		ctx:       context.Background(),
		ledger:    testutil.OpenLedger(t),
		events:    &events.Recorder{},
		authority: testutil.PublicKey("authority"),
		operator:  testutil.PublicKey("operator"),
		feeSink:   testutil.PublicKey("fee-sink"),
		alice:     testutil.PublicKey("alice"),
		bob:       testutil.PublicKey("bob"),
	}
	f.eng = New(f.ledger,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithTxIDGenerator(testutil.NewSequenceGenerator("tx")),
		WithPublisher(f.events),
	)

	for _, pk := range []solana.PublicKey{f.authority, f.operator, f.alice, f.bob} {
		require.NoError(t, f.ledger.Fund(f.ctx, pk, startingBalance))
	}

	settings := Settings{
		Operators:    []solana.PublicKey{f.operator},
		FeeRecipient: f.feeSink,
		BaseURI:      testBaseURI,
	}
	for _, m := range mutate {
		m(&settings)
	}
	_, err := f.eng.Initialize(f.ctx, f.authority, settings)
	require.NoError(t, err)
	return f
}

func (f *fixture) req(caller, wallet solana.PublicKey, id string) Request {
	return Request{Caller: caller, Wallet: wallet, Identifier: id}
}

func (f *fixture) authorize(caller, wallet solana.PublicKey, id string) *Result {
	f.t.Helper()
	res, err := f.eng.Authorize(f.ctx, f.req(caller, wallet, id))
	require.NoError(f.t, err)
	return res
}

func (f *fixture) issue(caller, wallet solana.PublicKey, id string) *Result {
	f.t.Helper()
	res, err := f.eng.Issue(f.ctx, f.req(caller, wallet, id))
	require.NoError(f.t, err)
	return res
}

// mint authorizes and issues id to wallet through the operator.
func (f *fixture) mint(wallet solana.PublicKey, id string) {
	f.t.Helper()
	f.authorize(f.operator, wallet, id)
	f.issue(f.operator, wallet, id)
}

func (f *fixture) balance(pk solana.PublicKey) uint64 {
	f.t.Helper()
	bal, err := f.ledger.Balance(f.ctx, pk)
	require.NoError(f.t, err)
	return bal
}

func (f *fixture) status(wallet solana.PublicKey, id string) record.Status {
	f.t.Helper()
	st, err := f.eng.Status(f.ctx, id, wallet)
	require.NoError(f.t, err)
	return st
}

func (f *fixture) refCount(id string) uint64 {
	f.t.Helper()
	n, err := f.eng.RefCount(f.ctx, id)
	require.NoError(f.t, err)
	return n
}

func (f *fixture) exists(addr solana.PublicKey) bool {
	f.t.Helper()
	_, err := f.ledger.Account(f.ctx, addr)
	if err == nil {
		return true
	}
	require.ErrorIs(f.t, err, ledger.ErrAccountNotFound)
	return false
}

// totalValue is every balance plus every locked deposit. No transition may
// create or destroy value.
func (f *fixture) totalValue() uint64 {
	f.t.Helper()
	total, err := f.ledger.TotalDeposits(f.ctx)
	require.NoError(f.t, err)
	for _, pk := range []solana.PublicKey{f.authority, f.operator, f.feeSink, f.alice, f.bob} {
		total += f.balance(pk)
	}
	return total
}

func (f *fixture) auditCount() int {
	f.t.Helper()
	entries, err := f.ledger.AuditLog(f.ctx, ledger.AuditFilter{})
	require.NoError(f.t, err)
	return len(entries)
}

// requireCode asserts err is a lifecycle error with code.
func requireCode(t *testing.T, err error, code Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, CodeOf(err), "error: %v", err)
}

func deposit(space int) uint64 {
	return record.Deposit(space)
}

func tokenDeposit(id string) uint64 {
	return record.Deposit(record.TokenSpace(len(id), len(testBaseURI)))
}
