package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added audit_log lookup index by identifier
const currentSchemaVersion = 1

// Sentinel errors returned by ledger operations.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrAddressInUse      = errors.New("address already in use")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountTooSmall   = errors.New("data exceeds allocated space")
	ErrBalanceOverflow   = errors.New("balance overflow")
)

// Ledger is the durable record store.
type Ledger struct {
	db *sql.DB
}

// Open creates or opens a SQLite ledger at the given path.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time. One connection also makes
	// every Update a serialised, single-writer transaction.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Update runs fn in a write transaction. The transaction commits only if fn
// returns nil; otherwise every change fn made is discarded.
func (l *Ledger) Update(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback() // No-op if committed

	if err := fn(&Tx{ctx: ctx, tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// View runs fn in a read-only transaction that is always rolled back.
func (l *Ledger) View(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin read tx: %w", err)
	}
	defer sqlTx.Rollback()

	return fn(&Tx{ctx: ctx, tx: sqlTx})
}

// Fund credits amount to identity outside of any lifecycle transition.
// Used to seed balances for wallets, operators and the authority.
func (l *Ledger) Fund(ctx context.Context, identity solana.PublicKey, amount uint64) error {
	return l.Update(ctx, func(tx *Tx) error {
		return tx.Credit(identity, amount)
	})
}

// Balance returns the spendable lamports of identity.
func (l *Ledger) Balance(ctx context.Context, identity solana.PublicKey) (uint64, error) {
	var bal uint64
	err := l.View(ctx, func(tx *Tx) error {
		var err error
		bal, err = tx.Balance(identity)
		return err
	})
	return bal, err
}

// Account loads the live account at addr.
func (l *Ledger) Account(ctx context.Context, addr solana.PublicKey) (*Account, error) {
	var acct *Account
	err := l.View(ctx, func(tx *Tx) error {
		var err error
		acct, err = tx.Get(addr)
		return err
	})
	return acct, err
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the audit lookup index used by `didreg audit --identifier`.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_audit_identifier
		ON audit_log(identifier, seq)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (l *Ledger) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := l.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
