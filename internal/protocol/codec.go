package protocol

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"sastrust/internal/domain"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	if decMode, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic(err)
	}
}

// EncodeMessage returns the wire encoding of m.
func EncodeMessage(m Message) ([]byte, error) {
	return encMode.Marshal(m)
}

// DecodeMessage decodes payload as message id of protocol d.
func DecodeMessage(d *Definition, id domain.MessageID, payload []byte) (Message, error) {
	m, err := d.NewMessage(id)
	if err != nil {
		return nil, fmt.Errorf("%w: message %d: %v", ErrMalformed, id, err)
	}
	if err := decMode.Unmarshal(payload, m); err != nil {
		return nil, fmt.Errorf("%w: message %d: %v", ErrMalformed, id, err)
	}
	return m, nil
}

// EncodeState returns the persisted encoding of s.
func EncodeState(s State) ([]byte, error) {
	return encMode.Marshal(s)
}

// DecodeState decodes a persisted state of protocol d.
func DecodeState(d *Definition, id domain.StateID, b []byte) (State, error) {
	if id == InitialStateID {
		return Initial{}, nil
	}
	s, err := d.NewState(id)
	if err != nil {
		return nil, fmt.Errorf("%w: state %d: %v", ErrMalformed, id, err)
	}
	if err := decMode.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("%w: state %d: %v", ErrMalformed, id, err)
	}
	return s, nil
}

// NewRecord builds an instance record holding s, for seeding instances that
// were created by other code paths.
func NewRecord(key domain.InstanceKey, s State) (domain.InstanceRecord, error) {
	b, err := EncodeState(s)
	if err != nil {
		return domain.InstanceRecord{}, err
	}
	return domain.InstanceRecord{
		Protocol: key.Protocol,
		Owned:    key.Owned,
		UID:      key.UID,
		StateID:  s.StateID(),
		State:    b,
	}, nil
}
