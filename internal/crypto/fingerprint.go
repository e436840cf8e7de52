package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"sastrust/internal/domain"
)

// Fingerprint returns a short hex fingerprint of an identity.
//
// It hashes with SHA-256 and truncates to 10 bytes (20 hex chars).
func Fingerprint(id domain.CryptoIdentity) domain.Fingerprint {
	sum := sha256.Sum256(id.Bytes())
	return domain.Fingerprint(hex.EncodeToString(sum[:10]))
}
