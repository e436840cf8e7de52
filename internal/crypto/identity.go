package crypto

import (
	"io"

	"sastrust/internal/domain"
)

// NewOwnedIdentity generates the key pairs and seed key of a new identity.
func NewOwnedIdentity(r io.Reader, details domain.CoreDetails) (domain.OwnedIdentity, error) {
	signPriv, signPub, err := GenerateEd25519(r)
	if err != nil {
		return domain.OwnedIdentity{}, err
	}
	dhPriv, dhPub, err := GenerateX25519(r)
	if err != nil {
		return domain.OwnedIdentity{}, err
	}
	id := domain.OwnedIdentity{
		Identity: domain.NewCryptoIdentity(signPub, dhPub),
		SignPriv: signPriv,
		DHPriv:   dhPriv,
		Details:  details,
	}
	if _, err := io.ReadFull(r, id.SeedKey[:]); err != nil {
		return domain.OwnedIdentity{}, err
	}
	return id, nil
}
