package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"sastrust/internal/domain"
)

const (
	// DefaultSASDigits is the SAS length used when none is configured.
	DefaultSASDigits = 8
	// MaxSASDigits bounds the SAS length, far below what HKDF can expand.
	MaxSASDigits = 64
)

const sasInfo = "sastrust sas v1"

// ErrOddDigitCount is returned for SAS lengths that cannot be halved.
var ErrOddDigitCount = errors.New("crypto: SAS digit count must be even and positive")

// ErrTooManyDigits is returned for SAS lengths above MaxSASDigits.
var ErrTooManyDigits = errors.New("crypto: SAS digit count too large")

// ValidateSASDigits checks that digits can be used as a SAS length.
func ValidateSASDigits(digits int) error {
	if digits <= 0 || digits%2 != 0 {
		return fmt.Errorf("%w: %d", ErrOddDigitCount, digits)
	}
	if digits > MaxSASDigits {
		return fmt.Errorf("%w: %d > %d", ErrTooManyDigits, digits, MaxSASDigits)
	}
	return nil
}

// ComputeSAS expands both seeds and the responder identity into a string of
// decimal digits. Each digit comes from one HKDF output byte; bytes of 250
// and above are skipped so digits are uniform.
func ComputeSAS(
	seedInitiator, seedResponder domain.Seed,
	responder domain.CryptoIdentity,
	digits int,
) (string, error) {
	if err := ValidateSASDigits(digits); err != nil {
		return "", err
	}
	ikm := make([]byte, 0, 2*domain.SeedSize)
	ikm = append(ikm, seedInitiator[:]...)
	ikm = append(ikm, seedResponder[:]...)

	kdf := hkdf.New(sha256.New, ikm, responder.Bytes(), []byte(sasInfo))
	out := make([]byte, 0, digits)
	var b [1]byte
	for len(out) < digits {
		if _, err := io.ReadFull(kdf, b[:]); err != nil {
			return "", fmt.Errorf("crypto: sas expansion: %w", err)
		}
		if b[0] >= 250 {
			continue
		}
		out = append(out, '0'+b[0]%10)
	}
	return string(out), nil
}

// SASHalves splits sas for one side of the exchange. The initiator shows the
// second half and expects the user to type the first; the responder does the
// opposite.
func SASHalves(sas string, initiator bool) (display, compare string) {
	mid := len(sas) / 2
	first, second := sas[:mid], sas[mid:]
	if initiator {
		return second, first
	}
	return first, second
}
