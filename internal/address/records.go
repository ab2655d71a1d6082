package address

import (
	"github.com/gagliardetto/solana-go"
)

// Set holds every address a lifecycle transition on one (identifier, wallet)
// pair can touch.
type Set struct {
	Config   solana.PublicKey `json:"config"`
	Status   solana.PublicKey `json:"status"`
	Token    solana.PublicKey `json:"token"`
	Holding  solana.PublicKey `json:"holding"`
	RefCount solana.PublicKey `json:"refcount"`

	StatusBump uint8 `json:"status_bump"`
	TokenBump  uint8 `json:"token_bump"`
}

// Config returns the address of the deployment's ProjectConfig record.
func (d *Deriver) Config() solana.PublicKey {
	return d.MustDerive(NamespaceConfig)
}

// Status returns the CredentialStatus address for (identifier, wallet).
func (d *Deriver) Status(identifier string, wallet solana.PublicKey) (solana.PublicKey, uint8) {
	addr, bump, err := d.Derive(NamespaceStatus, IdentifierSeed(identifier), wallet.Bytes())
	if err != nil {
		panic(err)
	}
	return addr, bump
}

// Token returns the token record address for (identifier, wallet).
func (d *Deriver) Token(identifier string, wallet solana.PublicKey) (solana.PublicKey, uint8) {
	addr, bump, err := d.Derive(NamespaceToken, IdentifierSeed(identifier), wallet.Bytes())
	if err != nil {
		panic(err)
	}
	return addr, bump
}

// Holding returns the wallet's ownership record for token.
func (d *Deriver) Holding(wallet, token solana.PublicKey) solana.PublicKey {
	return d.MustDerive(NamespaceHolding, wallet.Bytes(), token.Bytes())
}

// RefCount returns the IdentifierRefCount address for identifier. It does not
// depend on any wallet.
func (d *Deriver) RefCount(identifier string) solana.PublicKey {
	return d.MustDerive(NamespaceRefCount, IdentifierSeed(identifier))
}

// All derives the full address set for (identifier, wallet).
func (d *Deriver) All(identifier string, wallet solana.PublicKey) Set {
	status, statusBump := d.Status(identifier, wallet)
	token, tokenBump := d.Token(identifier, wallet)
	return Set{
		Config:     d.Config(),
		Status:     status,
		Token:      token,
		Holding:    d.Holding(wallet, token),
		RefCount:   d.RefCount(identifier),
		StatusBump: statusBump,
		TokenBump:  tokenBump,
	}
}
