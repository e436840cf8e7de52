package types

import (
	"encoding/hex"
	"fmt"
	"io"
)

// UIDSize is the length of device and protocol instance identifiers.
const UIDSize = 32

// SeedSize is the length of a SAS seed.
const SeedSize = 32

// Fingerprint is a short identifier for identities presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// UID identifies a device or a protocol instance.
type UID [UIDSize]byte

// NewUID draws a fresh UID from r.
func NewUID(r io.Reader) (UID, error) {
	var u UID
	if _, err := io.ReadFull(r, u[:]); err != nil {
		return UID{}, err
	}
	return u, nil
}

// ParseUID decodes the hex form produced by String.
func ParseUID(s string) (UID, error) {
	var u UID
	b, err := hex.DecodeString(s)
	if err != nil {
		return UID{}, err
	}
	if len(b) != UIDSize {
		return UID{}, fmt.Errorf("uid: want %d bytes, got %d", UIDSize, len(b))
	}
	copy(u[:], b)
	return u, nil
}

// String returns the hex form of the UID.
func (u UID) String() string { return hex.EncodeToString(u[:]) }

// Short returns an abbreviated form for logs.
func (u UID) Short() string { return hex.EncodeToString(u[:4]) }

// IsZero reports whether the UID is unset.
func (u UID) IsZero() bool { return u == UID{} }

// MarshalText encodes the UID as hex.
func (u UID) MarshalText() ([]byte, error) { return []byte(u.String()), nil }

// UnmarshalText decodes a hex UID.
func (u *UID) UnmarshalText(b []byte) error {
	v, err := ParseUID(string(b))
	if err != nil {
		return err
	}
	*u = v
	return nil
}

// Seed is the secret input each party contributes to the SAS.
type Seed [SeedSize]byte

// Slice returns the seed as a []byte.
func (s Seed) Slice() []byte { return s[:] }

// ProtocolID names a concrete protocol driven by the engine.
type ProtocolID uint8

// StateID tags a concrete protocol state.
type StateID uint8

// MessageID tags a concrete protocol message.
type MessageID uint8
