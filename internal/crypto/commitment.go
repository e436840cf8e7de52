package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"hash"
	"io"
)

const (
	// CommitmentSize is the length of a commitment.
	CommitmentSize = sha256.Size

	commitmentNonceSize = 32
	commitmentLabel     = "sastrust commitment v1"
)

// ErrCommitmentMismatch is returned when a decommitment does not open a
// commitment under the given tag.
var ErrCommitmentMismatch = errors.New("crypto: commitment does not open")

// Commit binds value to tag. The commitment is
//
//	SHA-256(label || len(tag) || tag || len(value) || value || e)
//
// for a fresh 32-byte e, and the decommitment is e || value.
func Commit(tag, value []byte, r io.Reader) (commitment, decommitment []byte, err error) {
	e := make([]byte, commitmentNonceSize)
	if _, err := io.ReadFull(r, e); err != nil {
		return nil, nil, err
	}
	commitment = commitDigest(tag, value, e)
	decommitment = make([]byte, 0, len(e)+len(value))
	decommitment = append(decommitment, e...)
	decommitment = append(decommitment, value...)
	return commitment, decommitment, nil
}

// Open checks decommitment against commitment and tag and returns the
// committed value.
func Open(commitment, tag, decommitment []byte) ([]byte, error) {
	if len(commitment) != CommitmentSize || len(decommitment) < commitmentNonceSize {
		return nil, ErrCommitmentMismatch
	}
	e, value := decommitment[:commitmentNonceSize], decommitment[commitmentNonceSize:]
	if subtle.ConstantTimeCompare(commitDigest(tag, value, e), commitment) != 1 {
		return nil, ErrCommitmentMismatch
	}
	return append([]byte(nil), value...), nil
}

func commitDigest(tag, value, e []byte) []byte {
	h := sha256.New()
	h.Write([]byte(commitmentLabel))
	writePrefixed(h, tag)
	writePrefixed(h, value)
	h.Write(e)
	return h.Sum(nil)
}

func writePrefixed(h hash.Hash, b []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(b)))
	h.Write(n[:])
	h.Write(b)
}
