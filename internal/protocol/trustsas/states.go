package trustsas

import (
	"sastrust/internal/crypto"
	"sastrust/internal/domain"
)

// State identifiers as persisted.
const (
	WaitingForSeedID domain.StateID = iota + 1
	WaitingForConfirmationID
	WaitingForDecommitmentID
	WaitingForUserSASID
	ContactSASCheckedID
	MutualTrustConfirmedID
	CancelledID
	ContactIdentityTrustedLegacyID
)

// WaitingForSeed is the inviter waiting for the invitee's seed.
type WaitingForSeed struct {
	ContactIdentity domain.CryptoIdentity `cbor:"1,keyasint"`
	ContactName     string                `cbor:"2,keyasint,omitempty"`
	Decommitment    []byte                `cbor:"3,keyasint"`
	OwnSeed         domain.Seed           `cbor:"4,keyasint"`
	DialogID        domain.DialogID       `cbor:"5,keyasint"`
}

// WaitingForConfirmation is the invitee waiting for the user to accept.
type WaitingForConfirmation struct {
	ContactIdentity   domain.CryptoIdentity `cbor:"1,keyasint"`
	ContactDetails    domain.CoreDetails    `cbor:"2,keyasint"`
	ContactDeviceUIDs []domain.UID          `cbor:"3,keyasint"`
	Commitment        []byte                `cbor:"4,keyasint"`
	DialogID          domain.DialogID       `cbor:"5,keyasint"`
}

// WaitingForDecommitment is the invitee waiting for the inviter to open the
// commitment. Seed is the invitee's own seed.
type WaitingForDecommitment struct {
	ContactIdentity   domain.CryptoIdentity `cbor:"1,keyasint"`
	ContactDetails    domain.CoreDetails    `cbor:"2,keyasint"`
	ContactDeviceUIDs []domain.UID          `cbor:"3,keyasint"`
	Commitment        []byte                `cbor:"4,keyasint"`
	Seed              domain.Seed           `cbor:"5,keyasint"`
	DialogID          domain.DialogID       `cbor:"6,keyasint"`
}

// WaitingForUserSAS waits for the user to type the SAS shown to the peer.
type WaitingForUserSAS struct {
	ContactIdentity   domain.CryptoIdentity `cbor:"1,keyasint"`
	ContactDetails    domain.CoreDetails    `cbor:"2,keyasint"`
	ContactDeviceUIDs []domain.UID          `cbor:"3,keyasint"`
	OwnSeed           domain.Seed           `cbor:"4,keyasint"`
	PeerSeed          domain.Seed           `cbor:"5,keyasint"`
	DialogID          domain.DialogID       `cbor:"6,keyasint"`
	IsInitiator       bool                  `cbor:"7,keyasint"`
	BadAttempts       int                   `cbor:"8,keyasint"`
}

// ContactSASChecked waits for the peer to confirm its side of the SAS.
type ContactSASChecked struct {
	ContactIdentity   domain.CryptoIdentity `cbor:"1,keyasint"`
	ContactDetails    domain.CoreDetails    `cbor:"2,keyasint"`
	ContactDeviceUIDs []domain.UID          `cbor:"3,keyasint"`
	DialogID          domain.DialogID       `cbor:"4,keyasint"`
}

// ContactIdentityTrustedLegacy is left by an older trust path that already
// recorded the contact; only the final notification remains.
type ContactIdentityTrustedLegacy struct {
	ContactIdentity domain.CryptoIdentity `cbor:"1,keyasint"`
	ContactDetails  domain.CoreDetails    `cbor:"2,keyasint"`
	DialogID        domain.DialogID       `cbor:"3,keyasint"`
}

// MutualTrustConfirmed is the terminal success state.
type MutualTrustConfirmed struct{}

// Cancelled is the terminal failure state.
type Cancelled struct {
	Cause error `cbor:"-"`
}

func (*WaitingForSeed) StateID() domain.StateID               { return WaitingForSeedID }
func (*WaitingForConfirmation) StateID() domain.StateID       { return WaitingForConfirmationID }
func (*WaitingForDecommitment) StateID() domain.StateID       { return WaitingForDecommitmentID }
func (*WaitingForUserSAS) StateID() domain.StateID            { return WaitingForUserSASID }
func (*ContactSASChecked) StateID() domain.StateID            { return ContactSASCheckedID }
func (*ContactIdentityTrustedLegacy) StateID() domain.StateID { return ContactIdentityTrustedLegacyID }
func (*MutualTrustConfirmed) StateID() domain.StateID         { return MutualTrustConfirmedID }
func (*Cancelled) StateID() domain.StateID                    { return CancelledID }

func (s *WaitingForSeed) Peer() domain.CryptoIdentity               { return s.ContactIdentity }
func (s *WaitingForConfirmation) Peer() domain.CryptoIdentity       { return s.ContactIdentity }
func (s *WaitingForDecommitment) Peer() domain.CryptoIdentity       { return s.ContactIdentity }
func (s *WaitingForUserSAS) Peer() domain.CryptoIdentity            { return s.ContactIdentity }
func (s *ContactSASChecked) Peer() domain.CryptoIdentity            { return s.ContactIdentity }
func (s *ContactIdentityTrustedLegacy) Peer() domain.CryptoIdentity { return s.ContactIdentity }

func (s *WaitingForSeed) Dialog() domain.DialogID               { return s.DialogID }
func (s *WaitingForConfirmation) Dialog() domain.DialogID       { return s.DialogID }
func (s *WaitingForDecommitment) Dialog() domain.DialogID       { return s.DialogID }
func (s *WaitingForUserSAS) Dialog() domain.DialogID            { return s.DialogID }
func (s *ContactSASChecked) Dialog() domain.DialogID            { return s.DialogID }
func (s *ContactIdentityTrustedLegacy) Dialog() domain.DialogID { return s.DialogID }

// CancelCause returns why the instance was cancelled.
func (s *Cancelled) CancelCause() error { return s.Cause }

// halves returns the SAS half to show and the half the user must type.
func (s *WaitingForUserSAS) halves(owned domain.CryptoIdentity, digits int) (display, compare string, err error) {
	var sas string
	if s.IsInitiator {
		sas, err = crypto.ComputeSAS(s.OwnSeed, s.PeerSeed, s.ContactIdentity, digits)
	} else {
		sas, err = crypto.ComputeSAS(s.PeerSeed, s.OwnSeed, owned, digits)
	}
	if err != nil {
		return "", "", err
	}
	display, compare = crypto.SASHalves(sas, s.IsInitiator)
	return display, compare, nil
}
