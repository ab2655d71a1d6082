package lifecycle

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/roach88/didreg/internal/access"
	"github.com/roach88/didreg/internal/address"
	"github.com/roach88/didreg/internal/ledger"
	"github.com/roach88/didreg/internal/record"
)

// statusClosed is reported for pairs whose records have all been closed.
const statusClosed = "closed"

// Authorize moves an Unauthorized pair to Authorized. The caller pays the
// configured mint fee to the fee recipient and funds the CredentialStatus.
//
// A second Authorize while any CredentialStatus exists for the pair fails
// with ALREADY_AUTHORIZED.
func (e *Engine) Authorize(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	return e.run(ctx, operation{
		action: access.ActionAuthorize,
		req:    req,
		apply: func(s *session) error {
			exists, err := s.tx.Exists(s.addrs.Status)
			if err != nil {
				return err
			}
			if exists {
				return newError(CodeAlreadyAuthorized, req, "credential status already exists")
			}
			if err := s.tx.Transfer(req.Caller, s.cfg.FeeRecipient, s.cfg.MintFee); err != nil {
				return err
			}
			_, err = s.createStatus()
			return err
		},
	})
}

// createStatus allocates an Authorized CredentialStatus funded by the caller.
func (s *session) createStatus() (*record.CredentialStatus, error) {
	st := &record.CredentialStatus{
		Wallet:     s.req.Wallet,
		Identifier: address.IdentifierDigest(s.req.Identifier),
		Bump:       s.addrs.StatusBump,
	}
	st.SetStatus(record.StatusAuthorized)
	if err := s.create(s.addrs.Status, s.req.Caller, record.StatusSpace, st); err != nil {
		return nil, err
	}
	s.status = record.StatusAuthorized.String()
	return st, nil
}

// Issue mints the credential token for an Authorized pair. In one step it
// creates the token with its proof digest (funded by the caller), creates
// the wallet's holding (funded by the wallet), marks the status Minted and
// increments the identifier's reference count.
//
// When the deployment allows direct issue, the authority may issue to an
// Unauthorized pair; the status is then created inline and no fee is taken.
func (e *Engine) Issue(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	return e.run(ctx, operation{
		action: access.ActionIssue,
		req:    req,
		apply: func(s *session) error {
			st, err := loadStatus(s.tx, s.addrs.Status)
			if err != nil {
				return err
			}
			if st == nil {
				if !access.CanSkipAuthorization(s.cfg, req.Caller) {
					return newError(CodeRecordNotFound, req, "credential is not authorized")
				}
				if st, err = s.createStatus(); err != nil {
					return err
				}
			}
			if st.Status() != record.StatusAuthorized {
				return newError(CodeAlreadyProcessed, req, "credential is %s", st.Status())
			}

			if err := s.createToken(e.deriver.Config()); err != nil {
				return err
			}
			holding := &record.Holding{Token: s.addrs.Token, Owner: req.Wallet, Amount: 1}
			if err := s.create(s.addrs.Holding, req.Wallet, record.HoldingSpace, holding); err != nil {
				return err
			}

			st.SetStatus(record.StatusMinted)
			st.Token = s.addrs.Token
			if err := s.write(s.addrs.Status, st); err != nil {
				return err
			}
			s.status = record.StatusMinted.String()

			return s.incrementRefCount()
		},
	})
}

// createToken allocates the token, funded by the caller. The issuer is the
// config address, through which the authority and operators hold the
// override used by Revoke.
func (s *session) createToken(issuer solana.PublicKey) error {
	id := string(address.Normalize(s.req.Identifier))
	tok := &record.Token{
		Issuer:          issuer,
		Wallet:          s.req.Wallet,
		Identifier:      id,
		URI:             s.cfg.BaseURI,
		ProofDigest:     s.req.ProofDigest,
		Supply:          1,
		NonTransferable: true,
		Bump:            s.addrs.TokenBump,
	}
	space := record.TokenSpace(len(tok.Identifier), len(tok.URI))
	return s.create(s.addrs.Token, s.req.Caller, space, tok)
}

// incrementRefCount bumps the identifier's count, creating the record at 1
// funded by the caller when absent.
func (s *session) incrementRefCount() error {
	rc, err := loadOptional[record.RefCount](s.tx, s.addrs.RefCount)
	if err != nil {
		return err
	}
	if rc == nil {
		rc = &record.RefCount{Identifier: address.IdentifierDigest(s.req.Identifier), Count: 1}
		return s.create(s.addrs.RefCount, s.req.Caller, record.RefCountSpace, rc)
	}
	rc.Count++
	return s.write(s.addrs.RefCount, rc)
}

// decrementRefCount drops the identifier's count by one and closes the
// record, refunding its funder, when the count reaches zero.
func (s *session) decrementRefCount() error {
	rc, err := load[record.RefCount](s.tx, s.addrs.RefCount)
	if err != nil {
		return err
	}
	if rc.Count == 0 {
		return newError(CodeRecordNotFound, s.req, "identifier reference count is already zero")
	}
	rc.Count--
	if rc.Count == 0 {
		return s.close(s.addrs.RefCount)
	}
	return s.write(s.addrs.RefCount, rc)
}

// loadStatus loads the CredentialStatus at addr, or nil if there is none. A
// stored status that breaks its field invariants is an error.
func loadStatus(tx *ledger.Tx, addr solana.PublicKey) (*record.CredentialStatus, error) {
	st, err := loadOptional[record.CredentialStatus](tx, addr)
	if err != nil || st == nil {
		return st, err
	}
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("credential status %s: %w", addr, err)
	}
	return st, nil
}

// loadStatusIn loads the pair's CredentialStatus and requires it to be in want.
func (s *session) loadStatusIn(want record.Status) (*record.CredentialStatus, error) {
	st, err := loadStatus(s.tx, s.addrs.Status)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, newError(CodeRecordNotFound, s.req, "credential status not found")
	}
	if st.Status() != want {
		return nil, newError(CodeAlreadyProcessed, s.req, "credential is %s, not %s", st.Status(), want)
	}
	return st, nil
}

// Burn lets the wallet relinquish a Minted credential. The holding, token
// and status are closed, each refunding its funder, and the identifier's
// reference count is decremented.
func (e *Engine) Burn(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	return e.run(ctx, operation{
		action: access.ActionBurn,
		req:    req,
		apply: func(s *session) error {
			st, err := s.loadStatusIn(record.StatusMinted)
			if err != nil {
				return err
			}
			holding := e.deriver.Holding(req.Wallet, st.Token)
			if err := s.close(holding); err != nil {
				return err
			}
			if err := s.close(st.Token); err != nil {
				return err
			}
			if err := s.close(s.addrs.Status); err != nil {
				return err
			}
			s.status = statusClosed
			return s.decrementRefCount()
		},
	})
}

// Revoke invalidates a Minted credential without the holder's cooperation.
// The holding balance is forced to zero through the issuer override, the
// token is closed (refunding its funder) and the status becomes Revoked.
// The holding itself stays open: its deposit belongs to the wallet and is
// only returned by Cleanup.
func (e *Engine) Revoke(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	return e.run(ctx, operation{
		action: access.ActionRevoke,
		req:    req,
		apply: func(s *session) error {
			st, err := s.loadStatusIn(record.StatusMinted)
			if err != nil {
				return err
			}

			holdingAddr := e.deriver.Holding(req.Wallet, st.Token)
			holding, err := load[record.Holding](s.tx, holdingAddr)
			if err != nil {
				return err
			}
			holding.Amount = 0
			if err := s.write(holdingAddr, holding); err != nil {
				return err
			}

			if err := s.close(st.Token); err != nil {
				return err
			}

			st.SetStatus(record.StatusRevoked)
			if err := s.write(s.addrs.Status, st); err != nil {
				return err
			}
			s.status = record.StatusRevoked.String()
			return nil
		},
	})
}

// Cleanup lets the wallet retire a Revoked credential. The emptied holding
// is closed (refunding the wallet), the status is closed (refunding its
// funder) and the identifier's reference count is decremented.
func (e *Engine) Cleanup(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	return e.run(ctx, operation{
		action: access.ActionCleanup,
		req:    req,
		apply: func(s *session) error {
			st, err := s.loadStatusIn(record.StatusRevoked)
			if err != nil {
				return err
			}
			if err := s.close(e.deriver.Holding(req.Wallet, st.Token)); err != nil {
				return err
			}
			if err := s.close(s.addrs.Status); err != nil {
				return err
			}
			s.status = statusClosed
			return s.decrementRefCount()
		},
	})
}
