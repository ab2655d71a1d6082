package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceGenerator_Format(t *testing.T) {
	gen := NewSequenceGenerator("")
	assert.Equal(t, "tx-0001", gen.Generate())
	assert.Equal(t, "tx-0002", gen.Generate())
	assert.Equal(t, 2, gen.Count())

	gen = NewSequenceGenerator("scn")
	assert.Equal(t, "scn-0001", gen.Generate())
}

func TestSequenceGenerator_Reset(t *testing.T) {
	gen := NewSequenceGenerator("tx")
	gen.Generate()
	gen.Generate()
	gen.Reset()
	assert.Equal(t, 0, gen.Count())
	assert.Equal(t, "tx-0001", gen.Generate())
}

func TestSequenceGenerator_ThreadSafe(t *testing.T) {
	gen := NewSequenceGenerator("tx")
	const numGoroutines = 50
	const callsPerGoroutine = 20

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]bool)
	)
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				id := gen.Generate()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, numGoroutines*callsPerGoroutine, "ids must be unique")
}

func TestPrivateKey_Deterministic(t *testing.T) {
	a1 := PrivateKey("alice")
	a2 := PrivateKey("alice")
	assert.Equal(t, a1, a2)
	assert.Equal(t, a1.PublicKey(), PublicKey("alice"))
	assert.NotEqual(t, PublicKey("alice"), PublicKey("bob"))
}

func TestKeyring(t *testing.T) {
	kr := NewKeyring()
	alice := kr.Key("alice")
	assert.Equal(t, alice, kr.Key("alice"))
	assert.Equal(t, "alice", kr.Name(alice))

	stranger := PublicKey("stranger")
	assert.Equal(t, stranger.String(), kr.Name(stranger))
}

func TestOpenLedger(t *testing.T) {
	l := OpenLedger(t)
	ctx := context.Background()
	alice := PublicKey("alice")

	require.NoError(t, l.Fund(ctx, alice, 500))
	bal, err := l.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), bal)
}
