package trustsas

import "sastrust/internal/domain"

// Message identifiers on the wire.
const (
	InviteRequestID domain.MessageID = iota
	CommitmentMessageID
	PropagatedInviteID
	PropagatedCommitmentID
	InviteResponseID
	PropagatedConfirmationID
	SeedMessageID
	DecommitmentMessageID
	SasEntryID
	PropagatedSasID
	MutualTrustMessageID
)

// InviteRequest is the local request to invite a contact.
type InviteRequest struct {
	ContactIdentity domain.CryptoIdentity `cbor:"1,keyasint"`
	ContactName     string                `cbor:"2,keyasint,omitempty"`
}

// CommitmentMessage carries the inviter's commitment to every invitee device.
type CommitmentMessage struct {
	ContactDetails    domain.CoreDetails `cbor:"1,keyasint"`
	ContactDeviceUIDs []domain.UID       `cbor:"2,keyasint"`
	Commitment        []byte             `cbor:"3,keyasint"`
}

// PropagatedInvite tells the inviter's other devices about the invite.
type PropagatedInvite struct {
	ContactIdentity domain.CryptoIdentity `cbor:"1,keyasint"`
	ContactName     string                `cbor:"2,keyasint,omitempty"`
	Decommitment    []byte                `cbor:"3,keyasint"`
	Seed            domain.Seed           `cbor:"4,keyasint"`
}

// PropagatedCommitment tells the invitee's other devices about the invite.
type PropagatedCommitment struct {
	ContactIdentity   domain.CryptoIdentity `cbor:"1,keyasint"`
	ContactDetails    domain.CoreDetails    `cbor:"2,keyasint"`
	ContactDeviceUIDs []domain.UID          `cbor:"3,keyasint"`
	Commitment        []byte                `cbor:"4,keyasint"`
}

// InviteResponse is the user's answer to the accept-invite dialog.
type InviteResponse struct {
	DialogID domain.DialogID `cbor:"1,keyasint"`
	Accepted bool            `cbor:"2,keyasint"`
}

// PropagatedConfirmation mirrors the user's answer to sibling devices.
type PropagatedConfirmation struct {
	Accepted bool `cbor:"1,keyasint"`
}

// SeedMessage carries the invitee's seed back to the inviter.
type SeedMessage struct {
	ContactDeviceUIDs []domain.UID       `cbor:"1,keyasint"`
	Seed              domain.Seed        `cbor:"2,keyasint"`
	ContactDetails    domain.CoreDetails `cbor:"3,keyasint"`
}

// DecommitmentMessage opens the inviter's commitment.
type DecommitmentMessage struct {
	Decommitment []byte `cbor:"1,keyasint"`
}

// SasEntry is the SAS typed by the user.
type SasEntry struct {
	DialogID domain.DialogID `cbor:"1,keyasint"`
	Sas      string          `cbor:"2,keyasint"`
}

// PropagatedSas mirrors a matching SAS entry to sibling devices.
type PropagatedSas struct {
	ContactSas string `cbor:"1,keyasint"`
}

// MutualTrustMessage tells the peer that the local user confirmed the SAS.
type MutualTrustMessage struct{}

func (*InviteRequest) MessageID() domain.MessageID          { return InviteRequestID }
func (*CommitmentMessage) MessageID() domain.MessageID      { return CommitmentMessageID }
func (*PropagatedInvite) MessageID() domain.MessageID       { return PropagatedInviteID }
func (*PropagatedCommitment) MessageID() domain.MessageID   { return PropagatedCommitmentID }
func (*InviteResponse) MessageID() domain.MessageID         { return InviteResponseID }
func (*PropagatedConfirmation) MessageID() domain.MessageID { return PropagatedConfirmationID }
func (*SeedMessage) MessageID() domain.MessageID            { return SeedMessageID }
func (*DecommitmentMessage) MessageID() domain.MessageID    { return DecommitmentMessageID }
func (*SasEntry) MessageID() domain.MessageID               { return SasEntryID }
func (*PropagatedSas) MessageID() domain.MessageID          { return PropagatedSasID }
func (*MutualTrustMessage) MessageID() domain.MessageID     { return MutualTrustMessageID }
