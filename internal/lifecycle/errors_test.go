package lifecycle

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/didreg/internal/access"
	"github.com/roach88/didreg/internal/ledger"
	"github.com/roach88/didreg/internal/testutil"
)

func TestError_Is(t *testing.T) {
	err := newError(CodeAlreadyProcessed, Request{Identifier: "alice"}, "credential is minted")
	wrapped := fmt.Errorf("handler: %w", err)

	assert.True(t, errors.Is(wrapped, ErrAlreadyProcessed))
	assert.False(t, errors.Is(wrapped, ErrAlreadyAuthorized))
	assert.Equal(t, CodeAlreadyProcessed, CodeOf(wrapped))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
	assert.Equal(t, Code(""), CodeOf(nil))
}

func TestError_Message(t *testing.T) {
	alice := testutil.PublicKey("alice")
	err := newError(CodeRecordNotFound, Request{Identifier: "alice", Wallet: alice}, "credential status not found")
	assert.Equal(t,
		`RECORD_NOT_FOUND: credential status not found (identifier="alice", wallet=`+alice.String()+`)`,
		err.Error())

	bare := &Error{Code: CodeNotInitialized}
	assert.Equal(t, "NOT_INITIALIZED", bare.Error())
}

func TestTranslate(t *testing.T) {
	req := Request{Identifier: "alice"}
	tests := []struct {
		err  error
		code Code
	}{
		{fmt.Errorf("debit: %w", ledger.ErrInsufficientFunds), CodeInsufficientFunds},
		{fmt.Errorf("get: %w", ledger.ErrAccountNotFound), CodeRecordNotFound},
		{fmt.Errorf("create: %w", ledger.ErrAddressInUse), CodeAlreadyProcessed},
		{fmt.Errorf("write: %w", ledger.ErrAccountTooSmall), CodeInvalidArgument},
	}
	for _, tt := range tests {
		got := translate(tt.err, req)
		assert.Equal(t, tt.code, CodeOf(got), "%v", tt.err)
		assert.ErrorIs(t, got, tt.err, "cause is preserved")
	}

	infra := errors.New("disk I/O error")
	assert.Same(t, infra, translate(infra, req), "infrastructure errors pass through")
	assert.NoError(t, translate(nil, req))

	already := newError(CodeUnauthorized, req, "denied")
	assert.Same(t, already, translate(already, req))
}

func TestDenied(t *testing.T) {
	req := Request{Identifier: "alice"}
	tests := []struct {
		reason access.Reason
		code   Code
	}{
		{access.ReasonUnauthorized, CodeUnauthorized},
		{access.ReasonBlockedAddress, CodeBlockedAddress},
		{access.ReasonBlockedIdentifier, CodeBlockedIdentifier},
	}
	for _, tt := range tests {
		err := denied(access.Decision{Reason: tt.reason, Detail: "x"}, req)
		assert.Equal(t, tt.code, err.Code)
	}
}

func TestParseCode(t *testing.T) {
	for _, c := range Codes {
		got, err := ParseCode(string(c))
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseCode("NOPE")
	require.Error(t, err)
}
