package address

import (
	"crypto/sha256"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/text/unicode/norm"
)

// Namespaces for each record kind. The version suffix changes whenever a
// record layout changes incompatibly, so old records become unreachable
// instead of being misread.
const (
	NamespaceConfig   = "did_config_v1"
	NamespaceStatus   = "did_status_v2"
	NamespaceToken    = "did_token_v1"
	NamespaceHolding  = "did_holding_v1"
	NamespaceRefCount = "did_refcount_v1"
)

// MaxComponents is the number of component seeds Derive accepts. The
// namespace and the bump byte take the remaining two of the 16 seed slots.
const MaxComponents = solana.MaxSeeds - 2

// DefaultProgramID is the program id used when a deployment does not set one.
var DefaultProgramID = func() solana.PublicKey {
	sum := sha256.Sum256([]byte("didreg/program/v1"))
	return solana.PublicKeyFromBytes(sum[:])
}()

// Deriver computes addresses for a single program id.
// It holds no mutable state and is safe for concurrent use.
type Deriver struct {
	programID solana.PublicKey
}

// NewDeriver creates a Deriver for programID. A zero key selects DefaultProgramID.
func NewDeriver(programID solana.PublicKey) *Deriver {
	if programID.IsZero() {
		programID = DefaultProgramID
	}
	return &Deriver{programID: programID}
}

// ProgramID returns the program id addresses are derived under.
func (d *Deriver) ProgramID() solana.PublicKey {
	return d.programID
}

// Derive returns the address and bump for namespace and components.
// Each component is passed through Seed first.
func (d *Deriver) Derive(namespace string, components ...[]byte) (solana.PublicKey, uint8, error) {
	if len(components) > MaxComponents {
		return solana.PublicKey{}, 0, fmt.Errorf("derive %s: %d components exceeds %d", namespace, len(components), MaxComponents)
	}

	seeds := make([][]byte, 0, len(components)+1)
	seeds = append(seeds, Seed([]byte(namespace)))
	for _, c := range components {
		seeds = append(seeds, Seed(c))
	}

	addr, bump, err := solana.FindProgramAddress(seeds, d.programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("derive %s: %w", namespace, err)
	}
	return addr, bump, nil
}

// MustDerive is like Derive but panics on error.
// Use only when the component count is fixed at compile time.
func (d *Deriver) MustDerive(namespace string, components ...[]byte) solana.PublicKey {
	addr, _, err := d.Derive(namespace, components...)
	if err != nil {
		panic(err)
	}
	return addr
}

// Seed returns b unchanged when it fits in a single seed, otherwise its SHA-256 digest.
func Seed(b []byte) []byte {
	if len(b) <= solana.MaxSeedLength {
		return b
	}
	sum := sha256.Sum256(b)
	return sum[:]
}

// Normalize returns the canonical byte form of a credential identifier (NFC).
// Visually identical identifiers typed with different Unicode compositions
// map to the same records.
func Normalize(identifier string) []byte {
	return []byte(norm.NFC.String(identifier))
}

// IdentifierSeed is the address component for a credential identifier.
func IdentifierSeed(identifier string) []byte {
	return Seed(Normalize(identifier))
}

// IdentifierDigest is the fixed-width fingerprint stored in records and
// blocklists. Unlike IdentifierSeed it is always hashed.
func IdentifierDigest(identifier string) [32]byte {
	return sha256.Sum256(Normalize(identifier))
}
