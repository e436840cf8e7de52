package types

import (
	"encoding/hex"
	"fmt"
)

// CryptoIdentitySize is the encoded length of a CryptoIdentity.
const CryptoIdentitySize = 64

// CryptoIdentity is the public identity of a user: the Ed25519 signing key
// followed by the X25519 key-agreement key. It is comparable and can be used
// as a map key.
type CryptoIdentity [CryptoIdentitySize]byte

// NewCryptoIdentity assembles an identity from its two public keys.
func NewCryptoIdentity(sign Ed25519Public, dh X25519Public) CryptoIdentity {
	var id CryptoIdentity
	copy(id[:32], sign[:])
	copy(id[32:], dh[:])
	return id
}

// ParseCryptoIdentity decodes the raw 64-byte form.
func ParseCryptoIdentity(b []byte) (CryptoIdentity, error) {
	var id CryptoIdentity
	if len(b) != CryptoIdentitySize {
		return id, fmt.Errorf("identity: want %d bytes, got %d", CryptoIdentitySize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// ParseCryptoIdentityHex decodes the hex form produced by String.
func ParseCryptoIdentityHex(s string) (CryptoIdentity, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return CryptoIdentity{}, fmt.Errorf("identity: %w", err)
	}
	return ParseCryptoIdentity(b)
}

// Bytes returns the raw encoding.
func (id CryptoIdentity) Bytes() []byte { return id[:] }

// SigningKey returns the Ed25519 half.
func (id CryptoIdentity) SigningKey() Ed25519Public {
	var k Ed25519Public
	copy(k[:], id[:32])
	return k
}

// KeyAgreementKey returns the X25519 half.
func (id CryptoIdentity) KeyAgreementKey() X25519Public {
	var k X25519Public
	copy(k[:], id[32:])
	return k
}

// String returns the full hex encoding.
func (id CryptoIdentity) String() string { return hex.EncodeToString(id[:]) }

// Short returns an abbreviated form for logs.
func (id CryptoIdentity) Short() string { return hex.EncodeToString(id[:6]) }

// IsZero reports whether the identity is unset.
func (id CryptoIdentity) IsZero() bool { return id == CryptoIdentity{} }

// MarshalText encodes the identity as hex.
func (id CryptoIdentity) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText decodes a hex identity.
func (id *CryptoIdentity) UnmarshalText(b []byte) error {
	v, err := ParseCryptoIdentityHex(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// OwnedIdentity is a user's own identity with its private material. It is
// shared by every device of the user.
type OwnedIdentity struct {
	Identity CryptoIdentity `json:"identity"`
	SignPriv Ed25519Private `json:"sign_priv"`
	DHPriv   X25519Private  `json:"dh_priv"`
	// SeedKey keys the deterministic SAS seeds so sibling devices derive
	// identical values without talking to each other.
	SeedKey [32]byte    `json:"seed_key"`
	Details CoreDetails `json:"details"`
}
