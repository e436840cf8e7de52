package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"sastrust/internal/domain"
)

const seedInfo = "sastrust seed v1"

// NewSeed draws a random seed.
func NewSeed(r io.Reader) (domain.Seed, error) {
	var s domain.Seed
	if _, err := io.ReadFull(r, s[:]); err != nil {
		return domain.Seed{}, err
	}
	return s, nil
}

// DeriveSeed derives the seed for diversifier from the owned seed key.
// Every device holding the same seed key gets the same result.
func DeriveSeed(seedKey [32]byte, diversifier []byte) (domain.Seed, error) {
	info := make([]byte, 0, len(seedInfo)+len(diversifier))
	info = append(info, seedInfo...)
	info = append(info, diversifier...)

	var s domain.Seed
	if _, err := io.ReadFull(hkdf.New(sha256.New, seedKey[:], nil, info), s[:]); err != nil {
		return domain.Seed{}, err
	}
	return s, nil
}
