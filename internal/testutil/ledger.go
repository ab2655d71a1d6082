package testutil

import (
	"path/filepath"
	"testing"

	"github.com/roach88/didreg/internal/ledger"
)

// OpenLedger opens a fresh file-backed ledger in t's temp dir and closes it
// when the test ends.
func OpenLedger(t testing.TB) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("ledger.Open() failed: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}
