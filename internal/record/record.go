package record

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"reflect"

	"github.com/near/borsh-go"
)

// Kind names a record type.
type Kind string

const (
	KindConfig   Kind = "project_config"
	KindStatus   Kind = "credential_status"
	KindToken    Kind = "token"
	KindHolding  Kind = "holding"
	KindRefCount Kind = "identifier_refcount"
)

// DiscriminatorSize is the length of the kind prefix on every record.
const DiscriminatorSize = 8

// ErrWrongKind is returned when data carries another record's discriminator.
var ErrWrongKind = errors.New("record kind mismatch")

// Record is implemented by every on-ledger record type.
type Record interface {
	Kind() Kind
}

// Discriminator returns the 8-byte prefix for kind.
func Discriminator(kind Kind) [DiscriminatorSize]byte {
	sum := sha256.Sum256([]byte("account:" + string(kind)))
	var d [DiscriminatorSize]byte
	copy(d[:], sum[:DiscriminatorSize])
	return d
}

// Encode serialises r with its discriminator.
func Encode(r Record) ([]byte, error) {
	// borsh treats pointers as optional values, so encode the struct itself.
	body, err := borsh.Serialize(reflect.Indirect(reflect.ValueOf(r)).Interface())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", r.Kind(), err)
	}
	d := Discriminator(r.Kind())
	out := make([]byte, 0, DiscriminatorSize+len(body))
	out = append(out, d[:]...)
	return append(out, body...), nil
}

// Decode parses data as a record of type T.
//
//	status, err := record.Decode[record.CredentialStatus](acct.Data)
func Decode[T any, PT interface {
	*T
	Record
}](data []byte) (*T, error) {
	var v T
	p := PT(&v)

	if len(data) < DiscriminatorSize {
		return nil, fmt.Errorf("decode %s: %d bytes is shorter than the discriminator", p.Kind(), len(data))
	}
	want := Discriminator(p.Kind())
	if !bytes.Equal(data[:DiscriminatorSize], want[:]) {
		return nil, fmt.Errorf("decode %s: %w", p.Kind(), ErrWrongKind)
	}
	if err := borsh.Deserialize(p, data[DiscriminatorSize:]); err != nil {
		return nil, fmt.Errorf("decode %s: %w", p.Kind(), err)
	}
	return &v, nil
}

// KindOf reports which known kind data belongs to.
func KindOf(data []byte) (Kind, bool) {
	if len(data) < DiscriminatorSize {
		return "", false
	}
	for _, k := range []Kind{KindConfig, KindStatus, KindToken, KindHolding, KindRefCount} {
		d := Discriminator(k)
		if bytes.Equal(data[:DiscriminatorSize], d[:]) {
			return k, true
		}
	}
	return "", false
}
