package store

import (
	"errors"

	"github.com/fxamacker/cbor/v2"

	"sastrust/internal/domain"
)

// dialogs keeps the latest dialog per dialog id.
type dialogs struct{ t *tx }

func (s dialogs) Put(d domain.Dialog) error {
	return putCBOR(s.t.bucket(dialogsBucket), d.ID.Bytes(), d)
}

func (s dialogs) Get(id domain.DialogID) (domain.Dialog, bool, error) {
	var d domain.Dialog
	err := getCBOR(s.t.bucket(dialogsBucket), id.Bytes(), &d)
	switch {
	case err == nil:
		return d, true, nil
	case errors.Is(err, domain.ErrNotFound):
		return domain.Dialog{}, false, nil
	default:
		return domain.Dialog{}, false, err
	}
}

func (s dialogs) Delete(id domain.DialogID) error {
	return s.t.bucket(dialogsBucket).Delete(id.Bytes())
}

func (s dialogs) List(owned domain.CryptoIdentity) ([]domain.Dialog, error) {
	var out []domain.Dialog
	err := s.t.bucket(dialogsBucket).ForEach(func(_, v []byte) error {
		var d domain.Dialog
		if err := cbor.Unmarshal(v, &d); err != nil {
			return err
		}
		if d.Owned == owned {
			out = append(out, d)
		}
		return nil
	})
	return out, err
}

var _ domain.DialogStore = dialogs{}
