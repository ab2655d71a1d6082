package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/roach88/didreg/internal/record"
)

// AuditEntry records one committed transition.
type AuditEntry struct {
	Seq        int64              `json:"seq"`
	TxID       string             `json:"tx_id"`
	Action     string             `json:"action"`
	Caller     solana.PublicKey   `json:"caller"`
	Wallet     solana.PublicKey   `json:"wallet"`
	Identifier string             `json:"identifier,omitempty"`
	Created    []solana.PublicKey `json:"created"`
	Closed     []solana.PublicKey `json:"closed"`
	Credits    []Credit           `json:"credits"`
}

// AuditFilter narrows AuditLog results. Zero values match everything.
type AuditFilter struct {
	Identifier string
	AfterSeq   int64
	Limit      int
}

// AppendAudit writes entry and returns its sequence number.
func (t *Tx) AppendAudit(entry AuditEntry) (int64, error) {
	created, err := marshalList(entry.Created)
	if err != nil {
		return 0, fmt.Errorf("append audit: %w", err)
	}
	closed, err := marshalList(entry.Closed)
	if err != nil {
		return 0, fmt.Errorf("append audit: %w", err)
	}
	credits, err := marshalList(entry.Credits)
	if err != nil {
		return 0, fmt.Errorf("append audit: %w", err)
	}

	wallet := ""
	if !entry.Wallet.IsZero() {
		wallet = entry.Wallet.String()
	}

	res, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO audit_log (tx_id, action, caller, wallet, identifier, created, closed, credits)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.TxID, entry.Action, entry.Caller.String(), wallet, entry.Identifier, created, closed, credits)
	if err != nil {
		return 0, fmt.Errorf("append audit: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append audit: last insert id: %w", err)
	}
	return seq, nil
}

// AuditLog returns committed transitions in seq order.
func (l *Ledger) AuditLog(ctx context.Context, filter AuditFilter) ([]AuditEntry, error) {
	query := `
		SELECT seq, tx_id, action, caller, wallet, identifier, created, closed, credits
		FROM audit_log WHERE seq > ?`
	args := []any{filter.AfterSeq}
	if filter.Identifier != "" {
		query += ` AND identifier = ?`
		args = append(args, filter.Identifier)
	}
	query += ` ORDER BY seq ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit log: %w", err)
	}
	defer rows.Close()

	entries := []AuditEntry{}
	for rows.Next() {
		var (
			e                        AuditEntry
			caller, wallet           string
			created, closed, credits string
		)
		if err := rows.Scan(&e.Seq, &e.TxID, &e.Action, &caller, &wallet, &e.Identifier, &created, &closed, &credits); err != nil {
			return nil, fmt.Errorf("audit log: scan: %w", err)
		}
		if e.Caller, err = solana.PublicKeyFromBase58(caller); err != nil {
			return nil, fmt.Errorf("audit log seq %d: caller: %w", e.Seq, err)
		}
		if wallet != "" {
			if e.Wallet, err = solana.PublicKeyFromBase58(wallet); err != nil {
				return nil, fmt.Errorf("audit log seq %d: wallet: %w", e.Seq, err)
			}
		}
		if err := json.Unmarshal([]byte(created), &e.Created); err != nil {
			return nil, fmt.Errorf("audit log seq %d: created: %w", e.Seq, err)
		}
		if err := json.Unmarshal([]byte(closed), &e.Closed); err != nil {
			return nil, fmt.Errorf("audit log seq %d: closed: %w", e.Seq, err)
		}
		if err := json.Unmarshal([]byte(credits), &e.Credits); err != nil {
			return nil, fmt.Errorf("audit log seq %d: credits: %w", e.Seq, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit log: %w", err)
	}
	return entries, nil
}

// Accounts lists live records of kind, ordered by address. An empty kind lists all.
func (l *Ledger) Accounts(ctx context.Context, kind record.Kind) ([]Account, error) {
	query := `SELECT address, kind, funder, lamports, space, data FROM accounts`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY address ASC`

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("accounts: %w", err)
	}
	defer rows.Close()

	var accts []Account
	for rows.Next() {
		var (
			a              Account
			addr, k, fundr string
			lamports       int64
		)
		if err := rows.Scan(&addr, &k, &fundr, &lamports, &a.Space, &a.Data); err != nil {
			return nil, fmt.Errorf("accounts: scan: %w", err)
		}
		if a.Address, err = solana.PublicKeyFromBase58(addr); err != nil {
			return nil, fmt.Errorf("accounts: address: %w", err)
		}
		if a.Funder, err = solana.PublicKeyFromBase58(fundr); err != nil {
			return nil, fmt.Errorf("accounts: funder: %w", err)
		}
		a.Kind = record.Kind(k)
		a.Lamports = uint64(lamports)
		accts = append(accts, a)
	}
	return accts, rows.Err()
}

// TotalDeposits sums the lamports held by all live records.
func (l *Ledger) TotalDeposits(ctx context.Context) (uint64, error) {
	var total int64
	if err := l.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(lamports), 0) FROM accounts`).Scan(&total); err != nil {
		return 0, fmt.Errorf("total deposits: %w", err)
	}
	return uint64(total), nil
}

func marshalList[T any](v []T) (string, error) {
	if v == nil {
		v = []T{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
