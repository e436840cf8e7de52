package crypto_test

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"sastrust/internal/crypto"
)

func TestCommitOpenRoundTrip(t *testing.T) {
	require := require.New(t)

	tag := bytes.Repeat([]byte{0xa1}, 64)
	value := []byte("seed-value-0123456789abcdef01234")

	c, d, err := crypto.Commit(tag, value, rand.Reader)
	require.NoError(err)
	require.Len(c, crypto.CommitmentSize)

	got, err := crypto.Open(c, tag, d)
	require.NoError(err)
	require.Equal(value, got)
}

func TestOpenRejectsWrongTag(t *testing.T) {
	require := require.New(t)

	value := []byte("value")
	c, d, err := crypto.Commit([]byte("alice"), value, rand.Reader)
	require.NoError(err)

	_, err = crypto.Open(c, []byte("mallory"), d)
	require.ErrorIs(err, crypto.ErrCommitmentMismatch)
}

func TestOpenRejectsOtherValue(t *testing.T) {
	require := require.New(t)

	tag := []byte("alice")
	c1, _, err := crypto.Commit(tag, []byte("seed one"), rand.Reader)
	require.NoError(err)
	_, d2, err := crypto.Commit(tag, []byte("seed two"), rand.Reader)
	require.NoError(err)

	_, err = crypto.Open(c1, tag, d2)
	require.ErrorIs(err, crypto.ErrCommitmentMismatch)
}

func TestOpenRejectsTampering(t *testing.T) {
	require := require.New(t)

	tag := []byte("alice")
	c, d, err := crypto.Commit(tag, []byte("seed"), rand.Reader)
	require.NoError(err)

	c[0] ^= 1
	_, err = crypto.Open(c, tag, d)
	require.ErrorIs(err, crypto.ErrCommitmentMismatch)
	c[0] ^= 1

	d[len(d)-1] ^= 1
	_, err = crypto.Open(c, tag, d)
	require.ErrorIs(err, crypto.ErrCommitmentMismatch)

	_, err = crypto.Open(c, tag, d[:10])
	require.ErrorIs(err, crypto.ErrCommitmentMismatch)
}

func TestCommitHidesEqualValues(t *testing.T) {
	c1, _, err := crypto.Commit([]byte("t"), []byte("v"), rand.Reader)
	require.NoError(t, err)
	c2, _, err := crypto.Commit([]byte("t"), []byte("v"), rand.Reader)
	require.NoError(t, err)
	require.NotEqual(t, c1, c2)
}

func TestCommitTagValueBoundary(t *testing.T) {
	// "ab"+"c" and "a"+"bc" must not collide.
	e := bytes.NewReader(make([]byte, 64))
	c1, _, err := crypto.Commit([]byte("ab"), []byte("c"), e)
	require.NoError(t, err)
	c2, _, err := crypto.Commit([]byte("a"), []byte("bc"), e)
	require.NoError(t, err)
	require.NotEqual(t, c1, c2)
}
