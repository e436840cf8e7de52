package types

import "time"

// TrustOriginKind ranks why a contact is trusted. Higher values are stronger.
type TrustOriginKind uint8

const (
	TrustOriginNone TrustOriginKind = iota
	TrustOriginLegacy
	TrustOriginIntroduction
	TrustOriginGroup
	TrustOriginDirect
)

func (k TrustOriginKind) String() string {
	switch k {
	case TrustOriginLegacy:
		return "legacy"
	case TrustOriginIntroduction:
		return "introduction"
	case TrustOriginGroup:
		return "group"
	case TrustOriginDirect:
		return "direct"
	default:
		return "none"
	}
}

// TrustOrigin records one reason for trusting a contact.
type TrustOrigin struct {
	Kind      TrustOriginKind `json:"kind" cbor:"kind"`
	Timestamp time.Time       `json:"timestamp" cbor:"timestamp"`
}

// Contact is a remote identity known to an owned identity.
type Contact struct {
	Identity     CryptoIdentity `json:"identity" cbor:"identity"`
	Details      CoreDetails    `json:"details" cbor:"details"`
	TrustOrigins []TrustOrigin  `json:"trust_origins" cbor:"trust_origins"`
	Devices      []UID          `json:"devices" cbor:"devices"`
	OneToOne     bool           `json:"one_to_one" cbor:"one_to_one"`
}

// TrustLevel returns the strongest recorded origin kind.
func (c Contact) TrustLevel() TrustOriginKind {
	lvl := TrustOriginNone
	for _, o := range c.TrustOrigins {
		if o.Kind > lvl {
			lvl = o.Kind
		}
	}
	return lvl
}

// HasDevice reports whether uid is a known device of the contact.
func (c Contact) HasDevice(uid UID) bool {
	for _, d := range c.Devices {
		if d == uid {
			return true
		}
	}
	return false
}
