package testutil

import (
	"fmt"
	"sync"
)

// SequenceGenerator produces transaction ids "<prefix>-0001", "<prefix>-0002", ...
//
// This enables deterministic test execution and golden audit comparison: the
// same scenario run with a fresh SequenceGenerator stamps byte-identical ids.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	seq    int
}

// NewSequenceGenerator creates a generator starting at 1.
// If prefix is empty, "tx" is used.
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = "tx"
	}
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next id. Implements lifecycle.TxIDGenerator.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%04d", g.prefix, g.seq)
}

// Count returns how many ids have been generated since the last Reset.
func (g *SequenceGenerator) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// Reset restarts the sequence. The next Generate returns "<prefix>-0001".
func (g *SequenceGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
