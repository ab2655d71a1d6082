package ledger

import (
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
)

// createTestLedger creates a new file-backed ledger in a temp dir.
func createTestLedger(t *testing.T) *Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

// testKey returns a distinct public key for b.
func testKey(b byte) solana.PublicKey {
	var pk solana.PublicKey
	pk[0] = b
	pk[1] = 0xd1
	return pk
}
