package app

import (
	"errors"
	"os"

	"sastrust/internal/domain"
	"sastrust/internal/protocol"
)

// ErrNoHome is returned when the device directory does not exist.
var ErrNoHome = errors.New("app: device home does not exist, run init or link first")

// App is a device with its owned identity unlocked.
type App struct {
	*Wire

	Owned  domain.OwnedIdentity
	Device domain.UID
	Engine *protocol.Engine
	Trust  domain.TrustService
}

// Open builds the device from cfg and unlocks its identity with passphrase.
// onDialog, when set, observes dialog changes.
func Open(cfg *Config, passphrase string, onDialog func(domain.Dialog), opts ...Option) (*App, error) {
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.Home); os.IsNotExist(err) {
		return nil, ErrNoHome
	}
	w, err := NewWire(cfg, opts...)
	if err != nil {
		return nil, err
	}
	a, err := w.Unlock(passphrase, onDialog)
	if err != nil {
		w.Close()
		return nil, err
	}
	return a, nil
}

// Unlock loads the owned identity of w and starts its trust service.
func (w *Wire) Unlock(passphrase string, onDialog func(domain.Dialog)) (*App, error) {
	id, err := w.Identity.LoadIdentity(passphrase)
	if err != nil {
		return nil, err
	}
	_, device, err := w.DB.LocalIdentity()
	if err != nil {
		return nil, err
	}
	trust, engine, err := w.newTrust(id.Identity, device, onDialog)
	if err != nil {
		return nil, err
	}
	return &App{Wire: w, Owned: id, Device: device, Engine: engine, Trust: trust}, nil
}
