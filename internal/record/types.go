package record

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Status is the lifecycle state of a (credential identifier, wallet) pair.
type Status uint8

const (
	StatusUnauthorized Status = iota
	StatusAuthorized
	StatusMinted
	StatusRevoked
)

func (s Status) String() string {
	switch s {
	case StatusUnauthorized:
		return "unauthorized"
	case StatusAuthorized:
		return "authorized"
	case StatusMinted:
		return "minted"
	case StatusRevoked:
		return "revoked"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, error) {
	for _, st := range []Status{StatusUnauthorized, StatusAuthorized, StatusMinted, StatusRevoked} {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", s)
}

// Limits on the variable parts of ProjectConfig.
const (
	MaxOperators          = 16
	MaxBlockedWallets     = 64
	MaxBlockedIdentifiers = 64
	MaxBaseURILen         = 200
)

// ConfigSpace is the allocation reserved for ProjectConfig so it can grow to
// its limits without reallocation.
const ConfigSpace = DiscriminatorSize +
	32 + // authority
	4 + MaxOperators*32 +
	8 + // mint fee
	32 + // fee recipient
	4 + MaxBaseURILen +
	1 + // allow direct issue
	4 + MaxBlockedWallets*32 +
	4 + MaxBlockedIdentifiers*32 +
	1 // bump

// ProjectConfig is the single deployment-wide configuration record.
type ProjectConfig struct {
	Authority          solana.PublicKey
	Operators          []solana.PublicKey
	MintFee            uint64
	FeeRecipient       solana.PublicKey
	BaseURI            string
	AllowDirectIssue   bool
	BlockedWallets     []solana.PublicKey
	BlockedIdentifiers [][32]byte
	Bump               uint8
}

func (*ProjectConfig) Kind() Kind { return KindConfig }

// IsOperator reports whether pk is a listed operator.
func (c *ProjectConfig) IsOperator(pk solana.PublicKey) bool {
	return indexOf(c.Operators, pk) >= 0
}

// IsWalletBlocked reports whether pk is on the wallet blocklist.
func (c *ProjectConfig) IsWalletBlocked(pk solana.PublicKey) bool {
	return indexOf(c.BlockedWallets, pk) >= 0
}

// IsIdentifierBlocked reports whether digest is on the identifier blocklist.
func (c *ProjectConfig) IsIdentifierBlocked(digest [32]byte) bool {
	for _, d := range c.BlockedIdentifiers {
		if d == digest {
			return true
		}
	}
	return false
}

// AddOperator appends pk. It reports false if pk was already listed.
func (c *ProjectConfig) AddOperator(pk solana.PublicKey) bool {
	if c.IsOperator(pk) {
		return false
	}
	c.Operators = append(c.Operators, pk)
	return true
}

// RemoveOperator removes pk. It reports false if pk was not listed.
func (c *ProjectConfig) RemoveOperator(pk solana.PublicKey) bool {
	var ok bool
	c.Operators, ok = remove(c.Operators, pk)
	return ok
}

// BlockWallet adds pk to the wallet blocklist.
func (c *ProjectConfig) BlockWallet(pk solana.PublicKey) bool {
	if c.IsWalletBlocked(pk) {
		return false
	}
	c.BlockedWallets = append(c.BlockedWallets, pk)
	return true
}

// UnblockWallet removes pk from the wallet blocklist.
func (c *ProjectConfig) UnblockWallet(pk solana.PublicKey) bool {
	var ok bool
	c.BlockedWallets, ok = remove(c.BlockedWallets, pk)
	return ok
}

// BlockIdentifier adds digest to the identifier blocklist.
func (c *ProjectConfig) BlockIdentifier(digest [32]byte) bool {
	if c.IsIdentifierBlocked(digest) {
		return false
	}
	c.BlockedIdentifiers = append(c.BlockedIdentifiers, digest)
	return true
}

// UnblockIdentifier removes digest from the identifier blocklist.
func (c *ProjectConfig) UnblockIdentifier(digest [32]byte) bool {
	for i, d := range c.BlockedIdentifiers {
		if d == digest {
			c.BlockedIdentifiers = append(c.BlockedIdentifiers[:i:i], c.BlockedIdentifiers[i+1:]...)
			return true
		}
	}
	return false
}

// Validate checks the list and string limits that keep the record within ConfigSpace.
func (c *ProjectConfig) Validate() error {
	if c.Authority.IsZero() {
		return fmt.Errorf("authority is required")
	}
	if len(c.Operators) > MaxOperators {
		return fmt.Errorf("%d operators exceeds limit of %d", len(c.Operators), MaxOperators)
	}
	if len(c.BaseURI) > MaxBaseURILen {
		return fmt.Errorf("base uri is %d bytes, limit is %d", len(c.BaseURI), MaxBaseURILen)
	}
	if len(c.BlockedWallets) > MaxBlockedWallets {
		return fmt.Errorf("%d blocked wallets exceeds limit of %d", len(c.BlockedWallets), MaxBlockedWallets)
	}
	if len(c.BlockedIdentifiers) > MaxBlockedIdentifiers {
		return fmt.Errorf("%d blocked identifiers exceeds limit of %d", len(c.BlockedIdentifiers), MaxBlockedIdentifiers)
	}
	return nil
}

// CredentialStatus tracks one (identifier, wallet) pair.
type CredentialStatus struct {
	State      uint8 // a Status value
	Wallet     solana.PublicKey
	Identifier [32]byte
	Token      solana.PublicKey // zero until minted
	Bump       uint8
}

func (*CredentialStatus) Kind() Kind { return KindStatus }

// Status returns the typed lifecycle state.
func (s *CredentialStatus) Status() Status { return Status(s.State) }

// SetStatus updates the lifecycle state.
func (s *CredentialStatus) SetStatus(st Status) { s.State = uint8(st) }

// Validate checks the field invariants for the current state.
func (s *CredentialStatus) Validate() error {
	switch s.Status() {
	case StatusAuthorized:
		if !s.Token.IsZero() {
			return fmt.Errorf("authorized status must not reference a token")
		}
	case StatusMinted, StatusRevoked:
		if s.Token.IsZero() {
			return fmt.Errorf("%s status must reference its token", s.Status())
		}
	default:
		return fmt.Errorf("invalid stored status %s", s.Status())
	}
	if s.Wallet.IsZero() {
		return fmt.Errorf("wallet is required")
	}
	return nil
}

// StatusSpace is the fixed allocation of a CredentialStatus record.
const StatusSpace = DiscriminatorSize + 1 + 32 + 32 + 32 + 1

// Token is the non-transferable credential token. Issuer holds the standing
// override that lets it zero the holder's balance on revocation.
type Token struct {
	Issuer          solana.PublicKey
	Wallet          solana.PublicKey
	Identifier      string
	URI             string
	ProofDigest     [32]byte
	Supply          uint64
	NonTransferable bool
	Bump            uint8
}

func (*Token) Kind() Kind { return KindToken }

// TokenSpace is the allocation of a Token carrying an identifier and URI of
// the given byte lengths.
func TokenSpace(identifierLen, uriLen int) int {
	return DiscriminatorSize +
		32 + 32 + // issuer, wallet
		4 + identifierLen +
		4 + uriLen +
		32 + // proof digest
		8 + // supply
		1 + 1 // non-transferable, bump
}

// Holding is the wallet's ownership record for one token. The wallet funds
// it and is the only party credited when it closes.
type Holding struct {
	Token  solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
}

func (*Holding) Kind() Kind { return KindHolding }

// HoldingSpace is the fixed allocation of a Holding record.
const HoldingSpace = DiscriminatorSize + 32 + 32 + 8

// RefCount counts the live CredentialStatus records for one identifier.
type RefCount struct {
	Identifier [32]byte
	Count      uint64
}

func (*RefCount) Kind() Kind { return KindRefCount }

// RefCountSpace is the fixed allocation of a RefCount record.
const RefCountSpace = DiscriminatorSize + 32 + 8

func indexOf(list []solana.PublicKey, pk solana.PublicKey) int {
	for i, v := range list {
		if v.Equals(pk) {
			return i
		}
	}
	return -1
}

func remove(list []solana.PublicKey, pk solana.PublicKey) ([]solana.PublicKey, bool) {
	i := indexOf(list, pk)
	if i < 0 {
		return list, false
	}
	return append(list[:i:i], list[i+1:]...), true
}
