package store

import (
	"bytes"
	"errors"

	"github.com/fxamacker/cbor/v2"

	"sastrust/internal/domain"
)

// instances keys records by protocol || owned || uid.
type instances struct{ t *tx }

func instanceKey(k domain.InstanceKey) []byte {
	return concat([]byte{byte(k.Protocol)}, k.Owned.Bytes(), k.UID[:])
}

func (s instances) Load(key domain.InstanceKey) (domain.InstanceRecord, bool, error) {
	var rec domain.InstanceRecord
	err := getCBOR(s.t.bucket(instancesBucket), instanceKey(key), &rec)
	switch {
	case err == nil:
		return rec, true, nil
	case errors.Is(err, domain.ErrNotFound):
		return domain.InstanceRecord{}, false, nil
	default:
		return domain.InstanceRecord{}, false, err
	}
}

func (s instances) Save(rec domain.InstanceRecord) error {
	return putCBOR(s.t.bucket(instancesBucket), instanceKey(rec.Key()), rec)
}

func (s instances) Delete(key domain.InstanceKey) error {
	return s.t.bucket(instancesBucket).Delete(instanceKey(key))
}

func (s instances) List(owned domain.CryptoIdentity) ([]domain.InstanceRecord, error) {
	var out []domain.InstanceRecord
	err := s.t.bucket(instancesBucket).ForEach(func(k, v []byte) error {
		if len(k) < 1+domain.CryptoIdentitySize || !bytes.Equal(k[1:1+domain.CryptoIdentitySize], owned.Bytes()) {
			return nil
		}
		var rec domain.InstanceRecord
		if err := cbor.Unmarshal(v, &rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

var _ domain.InstanceStore = instances{}
