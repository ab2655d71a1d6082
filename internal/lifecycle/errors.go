package lifecycle

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/roach88/didreg/internal/access"
	"github.com/roach88/didreg/internal/ledger"
)

// Code categorizes a rejected transition.
type Code string

const (
	// CodeUnauthorized indicates the caller lacks the role the action needs.
	CodeUnauthorized Code = "UNAUTHORIZED"

	// CodeAlreadyAuthorized indicates a live CredentialStatus already exists
	// for the (identifier, wallet) pair.
	CodeAlreadyAuthorized Code = "ALREADY_AUTHORIZED"

	// CodeAlreadyProcessed indicates the pair is in a state that does not
	// permit the transition.
	CodeAlreadyProcessed Code = "ALREADY_PROCESSED"

	// CodeInsufficientFunds indicates a payer cannot cover a fee or deposit.
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"

	// CodeBlockedAddress indicates the target wallet is blocklisted.
	CodeBlockedAddress Code = "BLOCKED_ADDRESS"

	// CodeBlockedIdentifier indicates the credential identifier is blocklisted.
	CodeBlockedIdentifier Code = "BLOCKED_IDENTIFIER"

	// CodeRecordNotFound indicates a record the transition needs does not exist.
	CodeRecordNotFound Code = "RECORD_NOT_FOUND"

	// CodeInvalidArgument indicates malformed input or a configuration limit.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// CodeNotInitialized indicates the deployment has no ProjectConfig yet.
	CodeNotInitialized Code = "NOT_INITIALIZED"
)

// Codes lists every error code in a stable order.
var Codes = []Code{
	CodeUnauthorized,
	CodeAlreadyAuthorized,
	CodeAlreadyProcessed,
	CodeInsufficientFunds,
	CodeBlockedAddress,
	CodeBlockedIdentifier,
	CodeRecordNotFound,
	CodeInvalidArgument,
	CodeNotInitialized,
}

// ParseCode validates s as a known code.
func ParseCode(s string) (Code, error) {
	for _, c := range Codes {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown error code %q", s)
}

// Error is a rejected transition. A call that returns an *Error changed
// nothing.
type Error struct {
	Code       Code
	Message    string
	Identifier string
	Wallet     solana.PublicKey
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Identifier != "" {
		msg += fmt.Sprintf(" (identifier=%q", e.Identifier)
		if !e.Wallet.IsZero() {
			msg += ", wallet=" + e.Wallet.String()
		}
		msg += ")"
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so the sentinels below work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrUnauthorized      = &Error{Code: CodeUnauthorized}
	ErrAlreadyAuthorized = &Error{Code: CodeAlreadyAuthorized}
	ErrAlreadyProcessed  = &Error{Code: CodeAlreadyProcessed}
	ErrInsufficientFunds = &Error{Code: CodeInsufficientFunds}
	ErrBlockedAddress    = &Error{Code: CodeBlockedAddress}
	ErrBlockedIdentifier = &Error{Code: CodeBlockedIdentifier}
	ErrRecordNotFound    = &Error{Code: CodeRecordNotFound}
	ErrInvalidArgument   = &Error{Code: CodeInvalidArgument}
	ErrNotInitialized    = &Error{Code: CodeNotInitialized}
)

// CodeOf returns the code of the first *Error in err's chain, or "" if there
// is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func newError(code Code, req Request, format string, args ...any) *Error {
	return &Error{
		Code:       code,
		Message:    fmt.Sprintf(format, args...),
		Identifier: req.Identifier,
		Wallet:     req.Wallet,
	}
}

var reasonCodes = map[access.Reason]Code{
	access.ReasonUnauthorized:      CodeUnauthorized,
	access.ReasonBlockedAddress:    CodeBlockedAddress,
	access.ReasonBlockedIdentifier: CodeBlockedIdentifier,
}

func denied(d access.Decision, req Request) *Error {
	code, ok := reasonCodes[d.Reason]
	if !ok {
		code = CodeUnauthorized
	}
	return newError(code, req, "%s", d.Detail)
}

// translate maps ledger sentinels onto the taxonomy. Anything else is an
// infrastructure failure and is returned unchanged.
func translate(err error, req Request) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	var code Code
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		code = CodeInsufficientFunds
	case errors.Is(err, ledger.ErrAccountNotFound):
		code = CodeRecordNotFound
	case errors.Is(err, ledger.ErrAddressInUse):
		code = CodeAlreadyProcessed
	case errors.Is(err, ledger.ErrAccountTooSmall):
		code = CodeInvalidArgument
	default:
		return err
	}
	return &Error{
		Code:       code,
		Message:    err.Error(),
		Identifier: req.Identifier,
		Wallet:     req.Wallet,
		Err:        err,
	}
}
