package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"unicode"

	"gopkg.in/op/go-logging.v1"

	"sastrust/internal/crypto"
	"sastrust/internal/domain"
	"sastrust/internal/relay"
)

const (
	// minPassphraseLength defines the minimum number of characters required for a passphrase.
	minPassphraseLength = 12
)

var (
	// ErrWeakPassphrase is returned when the passphrase fails the strength policy.
	ErrWeakPassphrase = fmt.Errorf(
		"passphrase is too weak (must be at least %d characters and include upper, lower, "+
			"number, and symbol)",
		minPassphraseLength,
	)
	// ErrIdentityMismatch is returned when the keystore and the device
	// database disagree about the owned identity.
	ErrIdentityMismatch = errors.New("identity: keystore does not match device database")
	// ErrNoRelay is returned by operations that need a relay when none is configured.
	ErrNoRelay = errors.New("identity: no relay configured")
)

// DeviceDB is the part of the device database the service manages.
type DeviceDB interface {
	CreateOwnedIdentity(id domain.OwnedIdentity, device domain.UID) error
	AddOwnedDevice(owned domain.CryptoIdentity, device domain.UID) (bool, error)
	LocalIdentity() (domain.CryptoIdentity, domain.UID, error)
	Unlock(id domain.OwnedIdentity)
}

// Config holds the dependencies of a Service.
type Config struct {
	Keys  domain.KeyStore
	DB    DeviceDB
	Relay domain.RelayClient
	// OpenKeyStore opens the keystore of another device for linking.
	OpenKeyStore func(path string) domain.KeyStore
	Log          *logging.Logger
	Rand         io.Reader
}

// Service manages the owned identity of one device.
type Service struct {
	keys      domain.KeyStore
	db        DeviceDB
	relay     domain.RelayClient
	openStore func(path string) domain.KeyStore
	log       *logging.Logger
	rand      io.Reader
}

// New returns an identity service.
func New(cfg Config) *Service {
	r := cfg.Rand
	if r == nil {
		r = rand.Reader
	}
	return &Service{
		keys:      cfg.Keys,
		db:        cfg.DB,
		relay:     cfg.Relay,
		openStore: cfg.OpenKeyStore,
		log:       cfg.Log,
		rand:      r,
	}
}

// GenerateIdentity creates a new identity with a first device, saves it
// encrypted with the passphrase, and returns it with its fingerprint.
func (s *Service) GenerateIdentity(
	passphrase string,
	details domain.CoreDetails,
) (domain.OwnedIdentity, domain.Fingerprint, error) {
	if !isSecurePassphrase(passphrase) {
		return domain.OwnedIdentity{}, "", ErrWeakPassphrase
	}
	if s.keys.Exists() {
		return domain.OwnedIdentity{}, "", fmt.Errorf("identity: %w", domain.ErrAlreadyExists)
	}

	id, err := crypto.NewOwnedIdentity(s.rand, details)
	if err != nil {
		return domain.OwnedIdentity{}, "", err
	}
	if err := s.install(passphrase, id); err != nil {
		return domain.OwnedIdentity{}, "", err
	}
	return id, crypto.Fingerprint(id.Identity), nil
}

// LinkDevice makes this device another device of the identity stored in the
// keystore at keystorePath.
func (s *Service) LinkDevice(passphrase string, keystorePath string) (domain.OwnedIdentity, error) {
	if s.openStore == nil {
		return domain.OwnedIdentity{}, errors.New("identity: linking is not supported")
	}
	if s.keys.Exists() {
		return domain.OwnedIdentity{}, fmt.Errorf("identity: %w", domain.ErrAlreadyExists)
	}
	id, err := s.openStore(keystorePath).LoadIdentity(passphrase)
	if err != nil {
		return domain.OwnedIdentity{}, fmt.Errorf("identity: open %s: %w", keystorePath, err)
	}
	if err := s.install(passphrase, id); err != nil {
		return domain.OwnedIdentity{}, err
	}
	return id, nil
}

// install stores id for a fresh device of this home.
func (s *Service) install(passphrase string, id domain.OwnedIdentity) error {
	device, err := domain.NewUID(s.rand)
	if err != nil {
		return err
	}
	if err := s.keys.SaveIdentity(passphrase, id); err != nil {
		return err
	}
	if err := s.db.CreateOwnedIdentity(id, device); err != nil {
		return err
	}
	s.db.Unlock(id)
	s.log.Infof("Created device %s of %s", device.Short(), id.Identity.Short())
	return nil
}

// LoadIdentity decrypts the owned identity and unlocks it in the device
// database.
func (s *Service) LoadIdentity(passphrase string) (domain.OwnedIdentity, error) {
	id, err := s.keys.LoadIdentity(passphrase)
	if err != nil {
		return domain.OwnedIdentity{}, err
	}
	local, _, err := s.db.LocalIdentity()
	if err != nil {
		return domain.OwnedIdentity{}, err
	}
	if local != id.Identity {
		return domain.OwnedIdentity{}, ErrIdentityMismatch
	}
	s.db.Unlock(id)
	return id, nil
}

// FingerprintIdentity returns the fingerprint of the owned identity.
func (s *Service) FingerprintIdentity(passphrase string) (domain.Fingerprint, error) {
	id, err := s.keys.LoadIdentity(passphrase)
	if err != nil {
		return "", err
	}
	return crypto.Fingerprint(id.Identity), nil
}

// RegisterDevice announces this device to the relay and records the sibling
// devices the relay knows about. It returns every device of the identity.
func (s *Service) RegisterDevice(ctx context.Context, passphrase string) ([]domain.UID, error) {
	if s.relay == nil {
		return nil, ErrNoRelay
	}
	id, err := s.LoadIdentity(passphrase)
	if err != nil {
		return nil, err
	}
	_, device, err := s.db.LocalIdentity()
	if err != nil {
		return nil, err
	}
	if err := s.relay.RegisterDevice(ctx, relay.SignRegistration(id, device)); err != nil {
		return nil, err
	}
	devices, err := s.relay.Devices(ctx, id.Identity)
	if err != nil {
		return nil, err
	}
	for _, u := range devices {
		if u == device {
			continue
		}
		if _, err := s.db.AddOwnedDevice(id.Identity, u); err != nil {
			return nil, err
		}
	}
	return devices, nil
}

// isSecurePassphrase enforces a basic strength policy.
func isSecurePassphrase(passphrase string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(passphrase) < minPassphraseLength {
		return false
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}

// Compile-time assertion that Service implements domain.IdentityService.
var _ domain.IdentityService = (*Service)(nil)
