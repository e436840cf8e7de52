package interfaces

import (
	"time"

	domaintypes "sastrust/internal/domain/types"
)

// IdentityStore is the identity and contact bookkeeping consumed by
// protocol steps. All calls run inside the caller's transaction.
type IdentityStore interface {
	DeterministicSeed(owned domaintypes.CryptoIdentity, diversifier []byte) (domaintypes.Seed, error)
	DeviceUIDs(owned domaintypes.CryptoIdentity) ([]domaintypes.UID, error)
	OtherDeviceUIDs(owned domaintypes.CryptoIdentity) ([]domaintypes.UID, error)
	OwnedIdentityDetails(owned domaintypes.CryptoIdentity) (domaintypes.CoreDetails, error)

	IsContact(contact, owned domaintypes.CryptoIdentity) (bool, error)
	AddContact(
		contact domaintypes.CryptoIdentity,
		details domaintypes.CoreDetails,
		origin domaintypes.TrustOrigin,
		owned domaintypes.CryptoIdentity,
		oneToOne bool,
	) error
	AddTrustOriginIfIncreased(origin domaintypes.TrustOrigin, contact, owned domaintypes.CryptoIdentity) error
	AddContactDevice(contact domaintypes.CryptoIdentity, device domaintypes.UID, owned domaintypes.CryptoIdentity) error

	Contact(contact, owned domaintypes.CryptoIdentity) (domaintypes.Contact, bool, error)
	Contacts(owned domaintypes.CryptoIdentity) ([]domaintypes.Contact, error)
}

// ReplayGuard is the append-only set of accepted commitments.
type ReplayGuard interface {
	Exists(owned domaintypes.CryptoIdentity, commitment []byte) (bool, error)
	// Insert fails with an error wrapping ErrAlreadyExists on duplicates.
	Insert(owned domaintypes.CryptoIdentity, commitment []byte) error
}

// InstanceStore persists live protocol instances.
type InstanceStore interface {
	Load(key domaintypes.InstanceKey) (domaintypes.InstanceRecord, bool, error)
	Save(rec domaintypes.InstanceRecord) error
	Delete(key domaintypes.InstanceKey) error
	List(owned domaintypes.CryptoIdentity) ([]domaintypes.InstanceRecord, error)
}

// Outbox queues messages written by a step until they are posted.
type Outbox interface {
	Enqueue(out domaintypes.Outbound) error
	List() ([]domaintypes.QueuedOutbound, error)
	Remove(seq uint64) error
}

// PendingStore parks received messages that arrived before their step.
type PendingStore interface {
	Add(msg domaintypes.ReceivedMessage) error
	List(key domaintypes.InstanceKey) ([]domaintypes.PendingMessage, error)
	Remove(seq uint64) error
	DeleteInstance(key domaintypes.InstanceKey) error
	Purge(olderThan time.Time) (int, error)
}

// DialogStore holds the latest dialog of each instance.
type DialogStore interface {
	Put(d domaintypes.Dialog) error
	Get(id domaintypes.DialogID) (domaintypes.Dialog, bool, error)
	Delete(id domaintypes.DialogID) error
	List(owned domaintypes.CryptoIdentity) ([]domaintypes.Dialog, error)
}

// Tx is one atomic unit of work against the device database.
type Tx interface {
	Identities() IdentityStore
	Commitments() ReplayGuard
	Instances() InstanceStore
	Outbox() Outbox
	Pending() PendingStore
	Dialogs() DialogStore
}

// Database runs serialized read-write and concurrent read-only transactions.
type Database interface {
	Update(fn func(tx Tx) error) error
	View(fn func(tx Tx) error) error
}

// KeyStore persists the owned identity encrypted under a passphrase.
type KeyStore interface {
	SaveIdentity(passphrase string, id domaintypes.OwnedIdentity) error
	LoadIdentity(passphrase string) (domaintypes.OwnedIdentity, error)
	Exists() bool
}
