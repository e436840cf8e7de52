package store

import (
	"fmt"

	"sastrust/internal/domain"
)

// commitments is the replay guard. Entries are never removed.
type commitments struct{ t *tx }

func (s commitments) Exists(owned domain.CryptoIdentity, commitment []byte) (bool, error) {
	return s.t.bucket(commitmentsBucket).Get(concat(owned.Bytes(), commitment)) != nil, nil
}

func (s commitments) Insert(owned domain.CryptoIdentity, commitment []byte) error {
	if len(commitment) == 0 {
		return fmt.Errorf("store: empty commitment")
	}
	bkt := s.t.bucket(commitmentsBucket)
	k := concat(owned.Bytes(), commitment)
	if bkt.Get(k) != nil {
		return fmt.Errorf("store: commitment: %w", domain.ErrAlreadyExists)
	}
	return bkt.Put(k, []byte{1})
}

var _ domain.ReplayGuard = commitments{}
