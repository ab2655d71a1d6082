package ledger

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/didreg/internal/record"
)

func TestOpenAppliesPragmas(t *testing.T) {
	l := createTestLedger(t)

	require.NoError(t, l.verifyPragma("journal_mode", "wal"))
	require.NoError(t, l.verifyPragma("busy_timeout", "5000"))
	require.NoError(t, l.verifyPragma("foreign_keys", "1"))
	require.NoError(t, l.verifyPragma("user_version", "1"))
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	l1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l1.Fund(ctx, testKey(1), 500))
	require.NoError(t, l1.Close())

	l2, err := Open(path)
	require.NoError(t, err)
	defer l2.Close()

	bal, err := l2.Balance(ctx, testKey(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(500), bal)
}

func TestCreateDebitsFunder(t *testing.T) {
	l := createTestLedger(t)
	ctx := context.Background()
	funder := testKey(1)
	deposit := record.Deposit(record.RefCountSpace)

	require.NoError(t, l.Fund(ctx, funder, deposit+10))

	err := l.Update(ctx, func(tx *Tx) error {
		got, err := tx.Create(testKey(50), record.KindRefCount, funder, record.RefCountSpace, []byte{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, deposit, got)
		return nil
	})
	require.NoError(t, err)

	bal, err := l.Balance(ctx, funder)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), bal)

	acct, err := l.Account(ctx, testKey(50))
	require.NoError(t, err)
	assert.Equal(t, funder, acct.Funder)
	assert.Equal(t, deposit, acct.Lamports)
	assert.Equal(t, record.KindRefCount, acct.Kind)
	assert.Equal(t, []byte{1, 2, 3}, acct.Data)
}

func TestCreateOccupiedAddress(t *testing.T) {
	l := createTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Fund(ctx, testKey(1), 10_000_000))

	create := func(tx *Tx) error {
		_, err := tx.Create(testKey(50), record.KindHolding, testKey(1), record.HoldingSpace, nil)
		return err
	}
	require.NoError(t, l.Update(ctx, create))

	before, err := l.Balance(ctx, testKey(1))
	require.NoError(t, err)

	err = l.Update(ctx, create)
	require.ErrorIs(t, err, ErrAddressInUse)

	after, err := l.Balance(ctx, testKey(1))
	require.NoError(t, err)
	assert.Equal(t, before, after, "failed create must not keep the deposit debit")
}

func TestCreateInsufficientFunds(t *testing.T) {
	l := createTestLedger(t)
	ctx := context.Background()

	err := l.Update(ctx, func(tx *Tx) error {
		_, err := tx.Create(testKey(50), record.KindHolding, testKey(1), record.HoldingSpace, nil)
		return err
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = l.Account(ctx, testKey(50))
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestCloseRefundsFunderOnce(t *testing.T) {
	l := createTestLedger(t)
	ctx := context.Background()
	funder := testKey(1)
	require.NoError(t, l.Fund(ctx, funder, 10_000_000))

	require.NoError(t, l.Update(ctx, func(tx *Tx) error {
		_, err := tx.Create(testKey(50), record.KindStatus, funder, record.StatusSpace, nil)
		return err
	}))

	var credit Credit
	require.NoError(t, l.Update(ctx, func(tx *Tx) error {
		var err error
		credit, err = tx.Close(testKey(50))
		return err
	}))
	assert.Equal(t, funder, credit.Recipient)
	assert.Equal(t, record.Deposit(record.StatusSpace), credit.Lamports)

	bal, err := l.Balance(ctx, funder)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000_000), bal, "close returns the full deposit")

	err = l.Update(ctx, func(tx *Tx) error {
		_, err := tx.Close(testKey(50))
		return err
	})
	require.ErrorIs(t, err, ErrAccountNotFound, "a record can only be closed once")
}

func TestWriteRespectsSpace(t *testing.T) {
	l := createTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Fund(ctx, testKey(1), 10_000_000))

	err := l.Update(ctx, func(tx *Tx) error {
		if _, err := tx.Create(testKey(50), record.KindHolding, testKey(1), 4, []byte{1}); err != nil {
			return err
		}
		if err := tx.Write(testKey(50), []byte{1, 2, 3, 4}); err != nil {
			return err
		}
		return tx.Write(testKey(50), []byte{1, 2, 3, 4, 5})
	})
	require.ErrorIs(t, err, ErrAccountTooSmall)

	_, err = l.Account(ctx, testKey(50))
	require.ErrorIs(t, err, ErrAccountNotFound, "whole transaction rolled back")
}

func TestUpdateRollsBackEverything(t *testing.T) {
	l := createTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Fund(ctx, testKey(1), 1_000))

	boom := errors.New("boom")
	err := l.Update(ctx, func(tx *Tx) error {
		require.NoError(t, tx.Transfer(testKey(1), testKey(2), 400))
		return boom
	})
	require.ErrorIs(t, err, boom)

	b1, _ := l.Balance(ctx, testKey(1))
	b2, _ := l.Balance(ctx, testKey(2))
	assert.Equal(t, uint64(1_000), b1)
	assert.Equal(t, uint64(0), b2)
}

func TestCreditRejectsOverflow(t *testing.T) {
	l := createTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Fund(ctx, testKey(1), math.MaxInt64-10))

	err := l.Fund(ctx, testKey(1), 11)
	require.ErrorIs(t, err, ErrBalanceOverflow)
	err = l.Fund(ctx, testKey(2), math.MaxInt64+1)
	require.ErrorIs(t, err, ErrBalanceOverflow)

	require.NoError(t, l.Fund(ctx, testKey(1), 10))
	bal, err := l.Balance(ctx, testKey(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxInt64), bal, "the balance stays readable at the limit")
}

func TestTransfer(t *testing.T) {
	l := createTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Fund(ctx, testKey(1), 100))

	err := l.Update(ctx, func(tx *Tx) error {
		return tx.Transfer(testKey(1), testKey(2), 101)
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	require.NoError(t, l.Update(ctx, func(tx *Tx) error {
		if err := tx.Transfer(testKey(1), testKey(2), 0); err != nil {
			return err
		}
		return tx.Transfer(testKey(1), testKey(2), 60)
	}))

	b1, _ := l.Balance(ctx, testKey(1))
	b2, _ := l.Balance(ctx, testKey(2))
	assert.Equal(t, uint64(40), b1)
	assert.Equal(t, uint64(60), b2)
}

func TestAuditLog(t *testing.T) {
	l := createTestLedger(t)
	ctx := context.Background()

	var seqs []int64
	for i, id := range []string{"alice", "bob", "alice"} {
		require.NoError(t, l.Update(ctx, func(tx *Tx) error {
			seq, err := tx.AppendAudit(AuditEntry{
				TxID:       "tx-" + string(rune('a'+i)),
				Action:     "authorize",
				Caller:     testKey(1),
				Wallet:     testKey(2),
				Identifier: id,
				Created:    []solana.PublicKey{testKey(60)},
				Credits:    []Credit{{Address: testKey(61), Recipient: testKey(1), Lamports: 5}},
			})
			seqs = append(seqs, seq)
			return err
		}))
	}
	assert.Equal(t, []int64{1, 2, 3}, seqs)

	all, err := l.AuditLog(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "tx-a", all[0].TxID)
	assert.Equal(t, testKey(2), all[0].Wallet)
	assert.Equal(t, []solana.PublicKey{testKey(60)}, all[0].Created)
	assert.Empty(t, all[0].Closed)
	assert.Equal(t, uint64(5), all[0].Credits[0].Lamports)

	alice, err := l.AuditLog(ctx, AuditFilter{Identifier: "alice"})
	require.NoError(t, err)
	assert.Len(t, alice, 2)

	tail, err := l.AuditLog(ctx, AuditFilter{AfterSeq: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, int64(2), tail[0].Seq)
}

func TestAccountsByKind(t *testing.T) {
	l := createTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Fund(ctx, testKey(1), 100_000_000))

	require.NoError(t, l.Update(ctx, func(tx *Tx) error {
		for i, kind := range []record.Kind{record.KindStatus, record.KindStatus, record.KindHolding} {
			if _, err := tx.Create(testKey(byte(50+i)), kind, testKey(1), 8, nil); err != nil {
				return err
			}
		}
		return nil
	}))

	statuses, err := l.Accounts(ctx, record.KindStatus)
	require.NoError(t, err)
	assert.Len(t, statuses, 2)

	all, err := l.Accounts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	total, err := l.TotalDeposits(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3*record.Deposit(8), total)
}
