package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
	"github.com/mattn/go-sqlite3"

	"github.com/roach88/didreg/internal/record"
)

// Account is a live record row.
type Account struct {
	Address  solana.PublicKey `json:"address"`
	Kind     record.Kind      `json:"kind"`
	Funder   solana.PublicKey `json:"funder"`
	Lamports uint64           `json:"lamports"`
	Space    int              `json:"space"`
	Data     []byte           `json:"data"`
}

// Credit is a deposit returned to the party that funded a closed record.
type Credit struct {
	Address   solana.PublicKey `json:"address"`
	Recipient solana.PublicKey `json:"recipient"`
	Lamports  uint64           `json:"lamports"`
}

// Tx is a ledger transaction. It is only valid inside the Update or View
// callback that received it.
type Tx struct {
	ctx context.Context
	tx  *sql.Tx
}

// Get loads the account at addr. Returns ErrAccountNotFound if no record lives there.
func (t *Tx) Get(addr solana.PublicKey) (*Account, error) {
	var (
		kind, funder string
		lamports     int64
		acct         Account
	)
	err := t.tx.QueryRowContext(t.ctx, `
		SELECT kind, funder, lamports, space, data
		FROM accounts WHERE address = ?
	`, addr.String()).Scan(&kind, &funder, &lamports, &acct.Space, &acct.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s: %w", addr, ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", addr, err)
	}

	acct.Address = addr
	acct.Kind = record.Kind(kind)
	acct.Lamports = uint64(lamports)
	acct.Funder, err = solana.PublicKeyFromBase58(funder)
	if err != nil {
		return nil, fmt.Errorf("get %s: corrupt funder: %w", addr, err)
	}
	return &acct, nil
}

// Exists reports whether a record lives at addr.
func (t *Tx) Exists(addr solana.PublicKey) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(t.ctx, `SELECT COUNT(*) FROM accounts WHERE address = ?`, addr.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", addr, err)
	}
	return n > 0, nil
}

// Create allocates a record at addr funded by funder and returns the
// deposit taken. It fails with ErrAddressInUse if addr is occupied and
// ErrInsufficientFunds if funder cannot cover the deposit.
func (t *Tx) Create(addr solana.PublicKey, kind record.Kind, funder solana.PublicKey, space int, data []byte) (uint64, error) {
	if len(data) > space {
		return 0, fmt.Errorf("create %s: %w", addr, ErrAccountTooSmall)
	}
	deposit := record.Deposit(space)

	if err := t.Debit(funder, deposit); err != nil {
		return 0, fmt.Errorf("create %s: deposit: %w", addr, err)
	}

	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO accounts (address, kind, funder, lamports, space, data)
		VALUES (?, ?, ?, ?, ?, ?)
	`, addr.String(), string(kind), funder.String(), int64(deposit), space, data)
	if err != nil {
		var sqlErr sqlite3.Error
		if errors.As(err, &sqlErr) && sqlErr.Code == sqlite3.ErrConstraint {
			return 0, fmt.Errorf("create %s: %w", addr, ErrAddressInUse)
		}
		return 0, fmt.Errorf("create %s: %w", addr, err)
	}
	return deposit, nil
}

// Write replaces the data of the live record at addr. The record keeps its
// funder and deposit.
func (t *Tx) Write(addr solana.PublicKey, data []byte) error {
	acct, err := t.Get(addr)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if len(data) > acct.Space {
		return fmt.Errorf("write %s: %d > %d: %w", addr, len(data), acct.Space, ErrAccountTooSmall)
	}
	if _, err := t.tx.ExecContext(t.ctx, `UPDATE accounts SET data = ? WHERE address = ?`, data, addr.String()); err != nil {
		return fmt.Errorf("write %s: %w", addr, err)
	}
	return nil
}

// Close destroys the record at addr and credits its deposit to the
// identity that funded it.
func (t *Tx) Close(addr solana.PublicKey) (Credit, error) {
	acct, err := t.Get(addr)
	if err != nil {
		return Credit{}, fmt.Errorf("close: %w", err)
	}

	res, err := t.tx.ExecContext(t.ctx, `DELETE FROM accounts WHERE address = ?`, addr.String())
	if err != nil {
		return Credit{}, fmt.Errorf("close %s: %w", addr, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Credit{}, fmt.Errorf("close %s: %w", addr, err)
	}
	if n != 1 {
		return Credit{}, fmt.Errorf("close %s: %w", addr, ErrAccountNotFound)
	}

	if err := t.Credit(acct.Funder, acct.Lamports); err != nil {
		return Credit{}, fmt.Errorf("close %s: refund: %w", addr, err)
	}
	return Credit{Address: addr, Recipient: acct.Funder, Lamports: acct.Lamports}, nil
}

// Balance returns the spendable lamports of identity. Unknown identities have zero.
func (t *Tx) Balance(identity solana.PublicKey) (uint64, error) {
	var bal int64
	err := t.tx.QueryRowContext(t.ctx, `SELECT lamports FROM balances WHERE identity = ?`, identity.String()).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("balance %s: %w", identity, err)
	}
	return uint64(bal), nil
}

// Credit adds amount to identity's balance. It fails with ErrBalanceOverflow
// if the balance would exceed what the store can hold.
func (t *Tx) Credit(identity solana.PublicKey, amount uint64) error {
	bal, err := t.Balance(identity)
	if err != nil {
		return err
	}
	if amount > math.MaxInt64 || bal > math.MaxInt64-amount {
		return fmt.Errorf("credit %s: have %d, adding %d: %w", identity, bal, amount, ErrBalanceOverflow)
	}
	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO balances (identity, lamports) VALUES (?, ?)
		ON CONFLICT(identity) DO UPDATE SET lamports = lamports + excluded.lamports
	`, identity.String(), int64(amount))
	if err != nil {
		return fmt.Errorf("credit %s: %w", identity, err)
	}
	return nil
}

// Debit removes amount from identity's balance, failing with
// ErrInsufficientFunds rather than going negative.
func (t *Tx) Debit(identity solana.PublicKey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	bal, err := t.Balance(identity)
	if err != nil {
		return err
	}
	if bal < amount {
		return fmt.Errorf("debit %s: have %d, need %d: %w", identity, bal, amount, ErrInsufficientFunds)
	}
	_, err = t.tx.ExecContext(t.ctx, `UPDATE balances SET lamports = lamports - ? WHERE identity = ?`, int64(amount), identity.String())
	if err != nil {
		return fmt.Errorf("debit %s: %w", identity, err)
	}
	return nil
}

// Transfer moves amount from one identity to another.
func (t *Tx) Transfer(from, to solana.PublicKey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if err := t.Debit(from, amount); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	return t.Credit(to, amount)
}
