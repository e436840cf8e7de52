package interfaces

import (
	"context"
	"time"

	domaintypes "sastrust/internal/domain/types"
)

// IdentityService creates, links and inspects the owned identity of a device.
type IdentityService interface {
	GenerateIdentity(passphrase string, details domaintypes.CoreDetails) (
		domaintypes.OwnedIdentity,
		domaintypes.Fingerprint,
		error,
	)
	LinkDevice(passphrase string, keystorePath string) (domaintypes.OwnedIdentity, error)
	LoadIdentity(passphrase string) (domaintypes.OwnedIdentity, error)
	FingerprintIdentity(passphrase string) (domaintypes.Fingerprint, error)
	RegisterDevice(ctx context.Context, passphrase string) ([]domaintypes.UID, error)
}

// TrustService drives trust establishment on behalf of the local user.
type TrustService interface {
	Invite(ctx context.Context, contact domaintypes.CryptoIdentity, name string) (domaintypes.UID, error)
	RespondToInvite(ctx context.Context, dialog domaintypes.DialogID, accept bool) error
	EnterSAS(ctx context.Context, dialog domaintypes.DialogID, sas string) (domaintypes.Dialog, error)
	Deliver(ctx context.Context, msg domaintypes.ReceivedMessage) error
	Receive(ctx context.Context, limit int) (int, error)
	Dialogs() ([]domaintypes.Dialog, error)
	Contacts() ([]domaintypes.Contact, error)
	Instances() ([]domaintypes.InstanceRecord, error)
	Abort(instance domaintypes.UID) error
	PurgePending(olderThan time.Duration) (int, error)
}
