package lifecycle

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/roach88/didreg/internal/address"
	"github.com/roach88/didreg/internal/ledger"
	"github.com/roach88/didreg/internal/record"
)

// Config returns the deployment's ProjectConfig.
func (e *Engine) Config(ctx context.Context) (*record.ProjectConfig, error) {
	var cfg *record.ProjectConfig
	err := e.ledger.View(ctx, func(tx *ledger.Tx) error {
		var err error
		cfg, err = e.loadConfig(tx, Request{})
		return err
	})
	return cfg, err
}

// Status returns the lifecycle state of (identifier, wallet). A pair with no
// CredentialStatus record is Unauthorized.
func (e *Engine) Status(ctx context.Context, identifier string, wallet solana.PublicKey) (record.Status, error) {
	st, err := e.Credential(ctx, identifier, wallet)
	if CodeOf(err) == CodeRecordNotFound {
		return record.StatusUnauthorized, nil
	}
	if err != nil {
		return 0, err
	}
	return st.Status(), nil
}

// Credential returns the CredentialStatus record of (identifier, wallet).
func (e *Engine) Credential(ctx context.Context, identifier string, wallet solana.PublicKey) (*record.CredentialStatus, error) {
	addr, _ := e.deriver.Status(identifier, wallet)
	var st *record.CredentialStatus
	err := e.ledger.View(ctx, func(tx *ledger.Tx) error {
		var err error
		if st, err = loadStatus(tx, addr); err == nil && st == nil {
			err = fmt.Errorf("credential status %s: %w", addr, ledger.ErrAccountNotFound)
		}
		return err
	})
	return st, translate(err, Request{Identifier: identifier, Wallet: wallet})
}

// RefCount returns the number of live credentials for identifier across all
// wallets. It is zero when the IdentifierRefCount record does not exist.
func (e *Engine) RefCount(ctx context.Context, identifier string) (uint64, error) {
	addr := e.deriver.RefCount(identifier)
	var count uint64
	err := e.ledger.View(ctx, func(tx *ledger.Tx) error {
		rc, err := loadOptional[record.RefCount](tx, addr)
		if err != nil || rc == nil {
			return err
		}
		count = rc.Count
		return nil
	})
	return count, err
}

// Token returns the token record minted for (identifier, wallet).
func (e *Engine) Token(ctx context.Context, identifier string, wallet solana.PublicKey) (*record.Token, error) {
	addr, _ := e.deriver.Token(identifier, wallet)
	var tok *record.Token
	err := e.ledger.View(ctx, func(tx *ledger.Tx) error {
		var err error
		tok, err = load[record.Token](tx, addr)
		return err
	})
	return tok, translate(err, Request{Identifier: identifier, Wallet: wallet})
}

// Addresses returns every address a transition on (identifier, wallet) can
// touch.
func (e *Engine) Addresses(identifier string, wallet solana.PublicKey) address.Set {
	return e.deriver.All(identifier, wallet)
}
