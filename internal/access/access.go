// Package access decides whether a caller may perform a lifecycle or
// administrative action. Check is a pure function of the project
// configuration; it never touches the ledger.
package access

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/roach88/didreg/internal/address"
	"github.com/roach88/didreg/internal/record"
)

// Action names a mutating operation.
type Action string

// Lifecycle actions.
const (
	ActionAuthorize Action = "authorize"
	ActionIssue     Action = "issue"
	ActionBurn      Action = "burn"
	ActionRevoke    Action = "revoke"
	ActionCleanup   Action = "cleanup"
)

// Administrative actions.
const (
	ActionTransferAuthority Action = "transfer_authority"
	ActionAddOperator       Action = "add_operator"
	ActionRemoveOperator    Action = "remove_operator"
	ActionSetMintFee        Action = "set_mint_fee"
	ActionSetFeeRecipient   Action = "set_fee_recipient"
	ActionSetBaseURI        Action = "set_base_uri"
	ActionSetDirectIssue    Action = "set_direct_issue"
	ActionBlockWallet       Action = "block_wallet"
	ActionUnblockWallet     Action = "unblock_wallet"
	ActionBlockIdentifier   Action = "block_identifier"
	ActionUnblockIdentifier Action = "unblock_identifier"
)

// Permission is a set of capabilities held by a caller.
type Permission uint8

const (
	// PermAdmin allows configuration changes. Held only by the authority.
	PermAdmin Permission = 1 << iota
	// PermIssue allows authorize and issue on behalf of any wallet.
	PermIssue
	// PermIssuerOverride is the issuer's standing capability over the
	// non-transferable tokens it minted: it may zero a holder's balance
	// without the holder's cooperation.
	PermIssuerOverride
	// PermHolder is held by the wallet that owns the target credential.
	PermHolder
)

// Has reports whether p includes every bit of want.
func (p Permission) Has(want Permission) bool {
	return p&want == want
}

// required lists, per action, the permission sets any one of which suffices.
var required = map[Action][]Permission{
	ActionAuthorize: {PermIssue},
	ActionIssue:     {PermIssue},
	ActionRevoke:    {PermIssue | PermIssuerOverride},
	ActionBurn:      {PermHolder},
	ActionCleanup:   {PermHolder},

	ActionTransferAuthority: {PermAdmin},
	ActionAddOperator:       {PermAdmin},
	ActionRemoveOperator:    {PermAdmin},
	ActionSetMintFee:        {PermAdmin},
	ActionSetFeeRecipient:   {PermAdmin},
	ActionSetBaseURI:        {PermAdmin},
	ActionSetDirectIssue:    {PermAdmin},
	ActionBlockWallet:       {PermAdmin},
	ActionUnblockWallet:     {PermAdmin},
	ActionBlockIdentifier:   {PermAdmin},
	ActionUnblockIdentifier: {PermAdmin},
}

// IsLifecycle reports whether a is one of the credential transitions.
func (a Action) IsLifecycle() bool {
	switch a {
	case ActionAuthorize, ActionIssue, ActionBurn, ActionRevoke, ActionCleanup:
		return true
	}
	return false
}

func (a Action) lifts() bool {
	return a == ActionUnblockWallet || a == ActionUnblockIdentifier
}

// Reason explains a denial.
type Reason string

const (
	ReasonUnauthorized      Reason = "UNAUTHORIZED"
	ReasonBlockedAddress    Reason = "BLOCKED_ADDRESS"
	ReasonBlockedIdentifier Reason = "BLOCKED_IDENTIFIER"
)

// Target is the subject of an action: the credential of a lifecycle action,
// or the wallet or identifier an administrative action names.
type Target struct {
	Wallet     solana.PublicKey
	Identifier string
}

// Decision is the outcome of Check.
type Decision struct {
	Allowed bool
	Reason  Reason
	Detail  string
}

// Allowed is the decision for a permitted call.
var Allowed = Decision{Allowed: true}

func deny(reason Reason, format string, args ...any) Decision {
	return Decision{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Grants returns the permissions caller holds against wallet.
func Grants(cfg *record.ProjectConfig, caller, wallet solana.PublicKey) Permission {
	var p Permission
	if caller.Equals(cfg.Authority) {
		p |= PermAdmin | PermIssue | PermIssuerOverride
	}
	if cfg.IsOperator(caller) {
		p |= PermIssue | PermIssuerOverride
	}
	if !wallet.IsZero() && caller.Equals(wallet) {
		p |= PermHolder
	}
	return p
}

// Check decides whether caller may perform action on target.
//
// Any action whose target wallet or identifier is blocked is denied
// whoever the caller is. The unblock actions are exempt so the authority
// can always lift a block.
func Check(cfg *record.ProjectConfig, caller solana.PublicKey, action Action, target Target) Decision {
	needs, ok := required[action]
	if !ok {
		return deny(ReasonUnauthorized, "unknown action %q", action)
	}

	if !action.lifts() {
		if d := checkBlocklist(cfg, target); !d.Allowed {
			return d
		}
	}

	have := Grants(cfg, caller, target.Wallet)
	for _, need := range needs {
		if have.Has(need) {
			return Allowed
		}
	}
	return deny(ReasonUnauthorized, "%s may not %s", caller, action)
}

func checkBlocklist(cfg *record.ProjectConfig, target Target) Decision {
	if !target.Wallet.IsZero() && cfg.IsWalletBlocked(target.Wallet) {
		return deny(ReasonBlockedAddress, "wallet %s is blocked", target.Wallet)
	}
	if target.Identifier != "" && cfg.IsIdentifierBlocked(address.IdentifierDigest(target.Identifier)) {
		return deny(ReasonBlockedIdentifier, "identifier %q is blocked", target.Identifier)
	}
	return Allowed
}

// CanSkipAuthorization reports whether caller may issue to an Unauthorized
// pair directly. Only the authority may, and only when the deployment
// enables it.
func CanSkipAuthorization(cfg *record.ProjectConfig, caller solana.PublicKey) bool {
	return cfg.AllowDirectIssue && caller.Equals(cfg.Authority)
}
