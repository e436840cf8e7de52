package types

import (
	"time"

	"github.com/gofrs/uuid"
)

// DialogID correlates dialogs with the protocol instance that owns them.
type DialogID = uuid.UUID

// DialogCategory is the kind of prompt or notice shown to the user.
type DialogCategory uint8

const (
	DialogNone DialogCategory = iota
	DialogInviteSent
	DialogAcceptInvite
	DialogSasExchange
	DialogSasConfirmed
	DialogInvitationAccepted
	DialogMutualTrustConfirmed
	DialogDelete
)

func (c DialogCategory) String() string {
	switch c {
	case DialogInviteSent:
		return "invite-sent"
	case DialogAcceptInvite:
		return "accept-invite"
	case DialogSasExchange:
		return "sas-exchange"
	case DialogSasConfirmed:
		return "sas-confirmed"
	case DialogInvitationAccepted:
		return "invitation-accepted"
	case DialogMutualTrustConfirmed:
		return "mutual-trust-confirmed"
	case DialogDelete:
		return "delete"
	default:
		return "none"
	}
}

// Dialog is the latest user-facing event of a protocol instance.
type Dialog struct {
	ID              DialogID       `json:"id" cbor:"id"`
	Owned           CryptoIdentity `json:"owned" cbor:"owned"`
	Protocol        ProtocolID     `json:"protocol" cbor:"protocol"`
	InstanceUID     UID            `json:"instance_uid" cbor:"instance_uid"`
	Category        DialogCategory `json:"category" cbor:"category"`
	ContactIdentity CryptoIdentity `json:"contact_identity" cbor:"contact_identity"`
	ContactName     string         `json:"contact_name,omitempty" cbor:"contact_name,omitempty"`
	// SasToDisplay is set for sas-exchange dialogs.
	SasToDisplay string    `json:"sas_to_display,omitempty" cbor:"sas_to_display,omitempty"`
	BadAttempts  int       `json:"bad_attempts,omitempty" cbor:"bad_attempts,omitempty"`
	UpdatedAt    time.Time `json:"updated_at" cbor:"updated_at"`
}
