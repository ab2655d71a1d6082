package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/didreg/internal/lifecycle"
	"github.com/roach88/didreg/internal/testutil"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"status": "minted"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error("E_COMMAND", "ledger unavailable", map[string]string{"path": "x.db"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_COMMAND", resp.Error.Code)
	assert.Equal(t, "ledger unavailable", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_Text(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	require.NoError(t, formatter.Success("committed"))
	require.NoError(t, formatter.Error("UNAUTHORIZED", "not an operator", map[string]string{"wallet": "w"}))

	assert.Contains(t, buf.String(), "committed")
	assert.Contains(t, buf.String(), "Error [UNAUTHORIZED]: not an operator")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			errBuf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: buf, ErrWriter: errBuf, Verbose: tt.verbose}

			formatter.VerboseLog("opening %s", "ledger.db")

			assert.Empty(t, buf.String(), "verbose output must not corrupt JSON")
			if tt.wantLog {
				assert.Contains(t, errBuf.String(), "opening ledger.db")
			} else {
				assert.Empty(t, errBuf.String())
			}
		})
	}
}

func TestOutputFormatter_RejectLifecycleError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	cause := &lifecycle.Error{
		Code:       lifecycle.CodeBlockedAddress,
		Message:    "wallet is blocked",
		Identifier: "order-1",
		Wallet:     testutil.PublicKey("mallory"),
	}
	err := formatter.Reject(cause)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, lifecycle.ErrBlockedAddress)
	assert.True(t, IsReported(err), "rendered rejections are not printed again")

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "BLOCKED_ADDRESS", resp.Error.Code)
	details, ok := resp.Error.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "order-1", details["identifier"])
	assert.Equal(t, testutil.PublicKey("mallory").String(), details["wallet"])
}

func TestOutputFormatter_RejectOtherError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Reject(errors.New("disk full"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E_COMMAND]: disk full")
	assert.True(t, IsReported(err))
}

func TestExitError(t *testing.T) {
	plain := NewExitError(ExitCommandError, "--keypair is required")
	assert.Equal(t, "--keypair is required", plain.Error())
	assert.Equal(t, ExitCommandError, GetExitCode(plain))
	assert.False(t, IsReported(plain))
	assert.False(t, IsReported(errors.New("plain")))

	wrapped := WrapExitError(ExitFailure, "rejected", errors.New("cause"))
	assert.Equal(t, "rejected: cause", wrapped.Error())
	assert.Equal(t, "cause", errors.Unwrap(wrapped).Error())

	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}
