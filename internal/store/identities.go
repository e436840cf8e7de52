package store

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"sastrust/internal/crypto"
	"sastrust/internal/domain"
)

// identities is the identity store view of a transaction. Contacts are keyed
// by owned || contact so each owned identity has its own address book.
type identities struct{ t *tx }

func (s identities) owned(owned domain.CryptoIdentity) (ownedRecord, error) {
	var rec ownedRecord
	if err := getCBOR(s.t.bucket(ownedBucket), owned.Bytes(), &rec); err != nil {
		return ownedRecord{}, fmt.Errorf("store: owned identity %s: %w", owned.Short(), err)
	}
	return rec, nil
}

func (s identities) DeterministicSeed(owned domain.CryptoIdentity, diversifier []byte) (domain.Seed, error) {
	key, ok := s.t.db.seedKey(owned)
	if !ok {
		return domain.Seed{}, ErrLocked
	}
	return crypto.DeriveSeed(key, diversifier)
}

func (s identities) DeviceUIDs(owned domain.CryptoIdentity) ([]domain.UID, error) {
	rec, err := s.owned(owned)
	if err != nil {
		return nil, err
	}
	return append([]domain.UID(nil), rec.Devices...), nil
}

func (s identities) OtherDeviceUIDs(owned domain.CryptoIdentity) ([]domain.UID, error) {
	rec, err := s.owned(owned)
	if err != nil {
		return nil, err
	}
	var out []domain.UID
	for _, u := range rec.Devices {
		if u != rec.Device {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s identities) OwnedIdentityDetails(owned domain.CryptoIdentity) (domain.CoreDetails, error) {
	rec, err := s.owned(owned)
	if err != nil {
		return domain.CoreDetails{}, err
	}
	return rec.Details, nil
}

func (s identities) IsContact(contact, owned domain.CryptoIdentity) (bool, error) {
	return s.t.bucket(contactsBucket).Get(contactKey(owned, contact)) != nil, nil
}

func (s identities) AddContact(
	contact domain.CryptoIdentity,
	details domain.CoreDetails,
	origin domain.TrustOrigin,
	owned domain.CryptoIdentity,
	oneToOne bool,
) error {
	if contact == owned {
		return fmt.Errorf("store: cannot add owned identity as a contact")
	}
	if _, err := s.owned(owned); err != nil {
		return err
	}
	bkt := s.t.bucket(contactsBucket)
	k := contactKey(owned, contact)
	if bkt.Get(k) != nil {
		return fmt.Errorf("store: contact %s: %w", contact.Short(), domain.ErrAlreadyExists)
	}
	return putCBOR(bkt, k, domain.Contact{
		Identity:     contact,
		Details:      details,
		TrustOrigins: []domain.TrustOrigin{origin},
		OneToOne:     oneToOne,
	})
}

func (s identities) AddTrustOriginIfIncreased(origin domain.TrustOrigin, contact, owned domain.CryptoIdentity) error {
	return s.updateContact(owned, contact, func(c *domain.Contact) bool {
		if origin.Kind <= c.TrustLevel() {
			return false
		}
		c.TrustOrigins = append(c.TrustOrigins, origin)
		return true
	})
}

func (s identities) AddContactDevice(contact domain.CryptoIdentity, device domain.UID, owned domain.CryptoIdentity) error {
	return s.updateContact(owned, contact, func(c *domain.Contact) bool {
		if c.HasDevice(device) {
			return false
		}
		c.Devices = append(c.Devices, device)
		return true
	})
}

func (s identities) updateContact(owned, contact domain.CryptoIdentity, fn func(*domain.Contact) bool) error {
	bkt := s.t.bucket(contactsBucket)
	k := contactKey(owned, contact)
	var c domain.Contact
	if err := getCBOR(bkt, k, &c); err != nil {
		return fmt.Errorf("store: contact %s: %w", contact.Short(), err)
	}
	if !fn(&c) {
		return nil
	}
	return putCBOR(bkt, k, c)
}

func (s identities) Contact(contact, owned domain.CryptoIdentity) (domain.Contact, bool, error) {
	var c domain.Contact
	err := getCBOR(s.t.bucket(contactsBucket), contactKey(owned, contact), &c)
	switch {
	case err == nil:
		return c, true, nil
	case errors.Is(err, domain.ErrNotFound):
		return domain.Contact{}, false, nil
	default:
		return domain.Contact{}, false, err
	}
}

func (s identities) Contacts(owned domain.CryptoIdentity) ([]domain.Contact, error) {
	var out []domain.Contact
	prefix := owned.Bytes()
	c := s.t.bucket(contactsBucket).Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		var ct domain.Contact
		if err := cbor.Unmarshal(v, &ct); err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, nil
}

func contactKey(owned, contact domain.CryptoIdentity) []byte {
	return concat(owned.Bytes(), contact.Bytes())
}

var _ domain.IdentityStore = identities{}
