package relay

import (
	"errors"

	"sastrust/internal/crypto"
	"sastrust/internal/domain"
)

const registrationLabel = "sastrust device registration v1"

// ErrBadSignature is returned for registrations not signed by the identity.
var ErrBadSignature = errors.New("relay: bad registration signature")

func registrationMessage(identity domain.CryptoIdentity, device domain.UID) []byte {
	msg := make([]byte, 0, len(registrationLabel)+domain.CryptoIdentitySize+domain.UIDSize)
	msg = append(msg, registrationLabel...)
	msg = append(msg, identity[:]...)
	return append(msg, device[:]...)
}

// SignRegistration returns a registration of device signed by owned.
func SignRegistration(owned domain.OwnedIdentity, device domain.UID) domain.DeviceRegistration {
	return domain.DeviceRegistration{
		Identity:  owned.Identity,
		Device:    device,
		Signature: crypto.SignEd25519(owned.SignPriv, registrationMessage(owned.Identity, device)),
	}
}

// VerifyRegistration checks the signature of reg.
func VerifyRegistration(reg domain.DeviceRegistration) error {
	if reg.Identity.IsZero() || reg.Device.IsZero() {
		return ErrBadSignature
	}
	msg := registrationMessage(reg.Identity, reg.Device)
	if !crypto.VerifyEd25519(reg.Identity.SigningKey(), msg, reg.Signature) {
		return ErrBadSignature
	}
	return nil
}
