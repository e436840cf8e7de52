package store

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"sastrust/internal/domain"
	"sastrust/internal/util/memzero"
)

const (
	// KeyStoreFilename is the keystore file name inside a device home.
	KeyStoreFilename = "identity.json.enc"

	// The current supported version of the encrypted blob format stored on disk.
	keystoreFormatVersion = 1
)

// ErrWrongPassphrase is returned when the passphrase is incorrect or the
// ciphertext has been modified.
var ErrWrongPassphrase = errors.New("store: wrong passphrase or corrupted identity")

// blob is the on-disk JSON structure holding the ciphertext and KDF parameters.
type blob struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Cipher []byte `json:"cipher"`
}

// ScryptParams are the key derivation costs used when sealing.
type ScryptParams struct {
	N, R, P int
}

// DefaultScryptParams are the production key derivation costs.
var DefaultScryptParams = ScryptParams{N: 1 << 15, R: 8, P: 1}

// KeyStore persists the owned identity in a single encrypted file.
type KeyStore struct {
	path   string
	params ScryptParams
	mu     sync.Mutex
}

// NewKeyStore returns a KeyStore backed by the file at path.
func NewKeyStore(path string, params ScryptParams) *KeyStore {
	return &KeyStore{path: path, params: params}
}

// Path returns the keystore file location.
func (s *KeyStore) Path() string { return s.path }

// Exists reports whether the keystore file is present.
func (s *KeyStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// SaveIdentity seals id under passphrase and writes it atomically.
func (s *KeyStore) SaveIdentity(passphrase string, id domain.OwnedIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}
	defer memzero.Zero(raw)

	ct, err := seal(passphrase, raw, s.params)
	if err != nil {
		return err
	}
	return writeFile(s.path, ct, 0o600)
}

// LoadIdentity reads and opens the keystore.
func (s *KeyStore) LoadIdentity(passphrase string) (domain.OwnedIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := readFile(s.path)
	if err != nil {
		return domain.OwnedIdentity{}, err
	}
	if b == nil {
		return domain.OwnedIdentity{}, domain.ErrNoIdentity
	}
	pt, err := open(passphrase, b)
	if err != nil {
		return domain.OwnedIdentity{}, err
	}
	defer memzero.Zero(pt)

	var id domain.OwnedIdentity
	if err := json.Unmarshal(pt, &id); err != nil {
		return domain.OwnedIdentity{}, err
	}
	return id, nil
}

// seal derives a key from passphrase and encrypts raw into a JSON blob.
func seal(passphrase string, raw []byte, params ScryptParams) ([]byte, error) {
	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, err
	}
	key, err := scrypt.Key([]byte(passphrase), salt[:], params.N, params.R, params.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte // zero nonce; the key is bound to a fresh salt
	ct := aead.Seal(nil, nonce[:], raw, salt[:])

	return json.Marshal(blob{
		V:      keystoreFormatVersion,
		Salt:   salt[:],
		N:      params.N,
		R:      params.R,
		P:      params.P,
		Cipher: ct,
	})
}

// open decrypts the JSON blob using a key derived from passphrase.
func open(passphrase string, b []byte) ([]byte, error) {
	var bl blob
	if err := json.Unmarshal(b, &bl); err != nil {
		return nil, err
	}
	if bl.V > keystoreFormatVersion {
		return nil, fmt.Errorf("store: unsupported keystore version %d", bl.V)
	}

	key, err := scrypt.Key([]byte(passphrase), bl.Salt, bl.N, bl.R, bl.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	pt, err := aead.Open(nil, nonce[:], bl.Cipher, bl.Salt)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}

// Compile-time assertion that KeyStore implements domain.KeyStore.
var _ domain.KeyStore = (*KeyStore)(nil)
