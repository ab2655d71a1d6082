package lifecycle

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/roach88/didreg/internal/access"
	"github.com/roach88/didreg/internal/address"
	"github.com/roach88/didreg/internal/record"
)

// ActionInitialize is the audit action recorded by Initialize.
const ActionInitialize access.Action = "initialize"

// Settings are the initial ProjectConfig values.
type Settings struct {
	Operators        []solana.PublicKey
	MintFee          uint64
	FeeRecipient     solana.PublicKey // defaults to the authority
	BaseURI          string
	AllowDirectIssue bool
}

// Initialize creates the deployment's ProjectConfig with the caller as
// authority. The caller funds the record. Initializing twice fails with
// ALREADY_PROCESSED.
func (e *Engine) Initialize(ctx context.Context, authority solana.PublicKey, settings Settings) (*Result, error) {
	req := Request{Caller: authority}
	if authority.IsZero() {
		return nil, newError(CodeInvalidArgument, req, "authority is required")
	}

	cfg := &record.ProjectConfig{
		Authority:        authority,
		MintFee:          settings.MintFee,
		FeeRecipient:     settings.FeeRecipient,
		BaseURI:          settings.BaseURI,
		AllowDirectIssue: settings.AllowDirectIssue,
	}
	if cfg.FeeRecipient.IsZero() {
		cfg.FeeRecipient = authority
	}
	for _, op := range settings.Operators {
		cfg.AddOperator(op)
	}
	if err := cfg.Validate(); err != nil {
		return nil, newError(CodeInvalidArgument, req, "%s", err)
	}

	return e.run(ctx, operation{
		action:     ActionInitialize,
		req:        req,
		initialize: true,
		apply: func(s *session) error {
			addr, bump, err := e.deriver.Derive(address.NamespaceConfig)
			if err != nil {
				return err
			}
			exists, err := s.tx.Exists(addr)
			if err != nil {
				return err
			}
			if exists {
				return newError(CodeAlreadyProcessed, req, "project is already initialized")
			}
			cfg.Bump = bump
			return s.create(addr, authority, record.ConfigSpace, cfg)
		},
	})
}

// admin runs an authority-only change to the ProjectConfig. mutate reports
// an *Error when the change does not apply; the result is validated against
// the config limits before it is written.
func (e *Engine) admin(ctx context.Context, action access.Action, req Request, mutate func(cfg *record.ProjectConfig) error) (*Result, error) {
	if req.Caller.IsZero() {
		return nil, newError(CodeInvalidArgument, req, "caller is required")
	}
	return e.run(ctx, operation{
		action: action,
		req:    req,
		apply: func(s *session) error {
			if err := mutate(s.cfg); err != nil {
				return err
			}
			if err := s.cfg.Validate(); err != nil {
				return newError(CodeInvalidArgument, req, "%s", err)
			}
			return s.write(e.deriver.Config(), s.cfg)
		},
	})
}

func requireKey(req Request, pk solana.PublicKey, what string) error {
	if pk.IsZero() {
		return newError(CodeInvalidArgument, req, "%s is required", what)
	}
	return nil
}

// TransferAuthority hands the deployment to next.
func (e *Engine) TransferAuthority(ctx context.Context, caller, next solana.PublicKey) (*Result, error) {
	req := Request{Caller: caller, Wallet: next}
	if err := requireKey(req, next, "new authority"); err != nil {
		return nil, err
	}
	return e.admin(ctx, access.ActionTransferAuthority, req, func(cfg *record.ProjectConfig) error {
		cfg.Authority = next
		return nil
	})
}

// AddOperator grants op issuance permissions.
func (e *Engine) AddOperator(ctx context.Context, caller, op solana.PublicKey) (*Result, error) {
	req := Request{Caller: caller, Wallet: op}
	if err := requireKey(req, op, "operator"); err != nil {
		return nil, err
	}
	return e.admin(ctx, access.ActionAddOperator, req, func(cfg *record.ProjectConfig) error {
		if !cfg.AddOperator(op) {
			return newError(CodeAlreadyProcessed, req, "%s is already an operator", op)
		}
		return nil
	})
}

// RemoveOperator revokes op's issuance permissions.
func (e *Engine) RemoveOperator(ctx context.Context, caller, op solana.PublicKey) (*Result, error) {
	req := Request{Caller: caller, Wallet: op}
	return e.admin(ctx, access.ActionRemoveOperator, req, func(cfg *record.ProjectConfig) error {
		if !cfg.RemoveOperator(op) {
			return newError(CodeRecordNotFound, req, "%s is not an operator", op)
		}
		return nil
	})
}

// SetMintFee changes the fee collected by Authorize.
func (e *Engine) SetMintFee(ctx context.Context, caller solana.PublicKey, fee uint64) (*Result, error) {
	return e.admin(ctx, access.ActionSetMintFee, Request{Caller: caller}, func(cfg *record.ProjectConfig) error {
		cfg.MintFee = fee
		return nil
	})
}

// SetFeeRecipient changes who receives mint fees.
func (e *Engine) SetFeeRecipient(ctx context.Context, caller, recipient solana.PublicKey) (*Result, error) {
	req := Request{Caller: caller, Wallet: recipient}
	if err := requireKey(req, recipient, "fee recipient"); err != nil {
		return nil, err
	}
	return e.admin(ctx, access.ActionSetFeeRecipient, req, func(cfg *record.ProjectConfig) error {
		cfg.FeeRecipient = recipient
		return nil
	})
}

// SetBaseURI changes the metadata URI written into tokens issued from now on.
func (e *Engine) SetBaseURI(ctx context.Context, caller solana.PublicKey, uri string) (*Result, error) {
	return e.admin(ctx, access.ActionSetBaseURI, Request{Caller: caller}, func(cfg *record.ProjectConfig) error {
		cfg.BaseURI = uri
		return nil
	})
}

// SetDirectIssue toggles whether the authority may issue without a prior
// Authorize.
func (e *Engine) SetDirectIssue(ctx context.Context, caller solana.PublicKey, allow bool) (*Result, error) {
	return e.admin(ctx, access.ActionSetDirectIssue, Request{Caller: caller}, func(cfg *record.ProjectConfig) error {
		cfg.AllowDirectIssue = allow
		return nil
	})
}

// BlockWallet denies every action targeting wallet until it is unblocked.
func (e *Engine) BlockWallet(ctx context.Context, caller, wallet solana.PublicKey) (*Result, error) {
	req := Request{Caller: caller, Wallet: wallet}
	if err := requireKey(req, wallet, "wallet"); err != nil {
		return nil, err
	}
	return e.admin(ctx, access.ActionBlockWallet, req, func(cfg *record.ProjectConfig) error {
		if !cfg.BlockWallet(wallet) {
			return newError(CodeAlreadyProcessed, req, "wallet is already blocked")
		}
		return nil
	})
}

// UnblockWallet lifts a wallet block.
func (e *Engine) UnblockWallet(ctx context.Context, caller, wallet solana.PublicKey) (*Result, error) {
	req := Request{Caller: caller, Wallet: wallet}
	return e.admin(ctx, access.ActionUnblockWallet, req, func(cfg *record.ProjectConfig) error {
		if !cfg.UnblockWallet(wallet) {
			return newError(CodeRecordNotFound, req, "wallet is not blocked")
		}
		return nil
	})
}

// BlockIdentifier denies every action on identifier, for any wallet.
func (e *Engine) BlockIdentifier(ctx context.Context, caller solana.PublicKey, identifier string) (*Result, error) {
	req := Request{Caller: caller, Identifier: identifier}
	if identifier == "" {
		return nil, newError(CodeInvalidArgument, req, "identifier is required")
	}
	return e.admin(ctx, access.ActionBlockIdentifier, req, func(cfg *record.ProjectConfig) error {
		if !cfg.BlockIdentifier(address.IdentifierDigest(identifier)) {
			return newError(CodeAlreadyProcessed, req, "identifier is already blocked")
		}
		return nil
	})
}

// UnblockIdentifier lifts an identifier block.
func (e *Engine) UnblockIdentifier(ctx context.Context, caller solana.PublicKey, identifier string) (*Result, error) {
	req := Request{Caller: caller, Identifier: identifier}
	return e.admin(ctx, access.ActionUnblockIdentifier, req, func(cfg *record.ProjectConfig) error {
		if !cfg.UnblockIdentifier(address.IdentifierDigest(identifier)) {
			return newError(CodeRecordNotFound, req, "identifier is not blocked")
		}
		return nil
	})
}
