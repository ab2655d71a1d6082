// Package testutil provides deterministic fixtures for tests and the
// scenario harness.
package testutil

import (
	"crypto/ed25519"
	"crypto/sha256"

	"github.com/gagliardetto/solana-go"
)

// PrivateKey derives a stable ed25519 keypair from name, so "alice" is the
// same wallet in every run.
func PrivateKey(name string) solana.PrivateKey {
	seed := sha256.Sum256([]byte("didreg/testutil/" + name))
	return solana.PrivateKey(ed25519.NewKeyFromSeed(seed[:]))
}

// PublicKey returns the public half of PrivateKey(name).
func PublicKey(name string) solana.PublicKey {
	return PrivateKey(name).PublicKey()
}

// Keyring caches named keys and remembers which name each belongs to.
type Keyring struct {
	byName map[string]solana.PublicKey
	byKey  map[solana.PublicKey]string
}

// NewKeyring creates an empty keyring.
func NewKeyring() *Keyring {
	return &Keyring{
		byName: make(map[string]solana.PublicKey),
		byKey:  make(map[solana.PublicKey]string),
	}
}

// Key returns the public key for name, deriving it on first use.
func (k *Keyring) Key(name string) solana.PublicKey {
	if pk, ok := k.byName[name]; ok {
		return pk
	}
	pk := PublicKey(name)
	k.byName[name] = pk
	k.byKey[pk] = name
	return pk
}

// Name returns the name pk was derived from, or its base58 form if unknown.
func (k *Keyring) Name(pk solana.PublicKey) string {
	if name, ok := k.byKey[pk]; ok {
		return name
	}
	return pk.String()
}
