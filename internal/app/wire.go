package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"sastrust/internal/domain"
	"sastrust/internal/log"
	"sastrust/internal/protocol"
	"sastrust/internal/protocol/trustsas"
	"sastrust/internal/relay"
	identitysvc "sastrust/internal/services/identity"
	trustsvc "sastrust/internal/services/trust"
	"sastrust/internal/store"
)

// Option customizes NewWire.
type Option func(*Wire)

// WithLogBackend shares an existing logging backend.
func WithLogBackend(b *log.Backend) Option {
	return func(w *Wire) { w.LogBackend = b }
}

// WithScryptParams overrides the keystore key derivation costs.
func WithScryptParams(p store.ScryptParams) Option {
	return func(w *Wire) { w.scrypt = p }
}

// WithHTTPClient sets the client used to reach the relay.
func WithHTTPClient(c *http.Client) Option {
	return func(w *Wire) { w.HTTP = c }
}

// Wire bundles the stores, services and clients of one device.
type Wire struct {
	Config     *Config
	LogBackend *log.Backend
	DB         *store.DB
	Keys       *store.KeyStore
	Relay      *relay.Client
	Identity   *identitysvc.Service
	Registry   *prometheus.Registry
	HTTP       *http.Client

	transport domain.Transport
	scrypt    store.ScryptParams
	metrics   *protocol.Metrics
	ownLog    bool
}

// NewWire constructs the dependency graph from cfg, creating the device home
// if needed.
func NewWire(cfg *Config, opts ...Option) (*Wire, error) {
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	w := &Wire{
		Config:   cfg,
		Registry: prometheus.NewRegistry(),
		HTTP:     http.DefaultClient,
		scrypt:   store.DefaultScryptParams,
	}
	for _, o := range opts {
		o(w)
	}

	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return nil, err
	}
	if w.LogBackend == nil {
		b, err := log.New(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Disable)
		if err != nil {
			return nil, err
		}
		w.LogBackend, w.ownLog = b, true
	}

	db, err := store.Open(filepath.Join(cfg.Home, store.DBFilename), w.LogBackend.GetLogger("store"))
	if err != nil {
		w.closeLog()
		return nil, err
	}
	w.DB = db
	w.Keys = store.NewKeyStore(filepath.Join(cfg.Home, store.KeyStoreFilename), w.scrypt)

	if cfg.RelayURL != "" {
		w.Relay = relay.NewClient(cfg.RelayURL, w.LogBackend.GetLogger("relay"))
		w.Relay.HTTP = w.HTTP
	}
	var rc domain.RelayClient
	if w.Relay != nil {
		rc = w.Relay
	}
	w.Identity = identitysvc.New(identitysvc.Config{
		Keys:  w.Keys,
		DB:    db,
		Relay: rc,
		OpenKeyStore: func(path string) domain.KeyStore {
			return store.NewKeyStore(path, w.scrypt)
		},
		Log: w.LogBackend.GetLogger("identity"),
	})
	return w, nil
}

// SetTransport makes the device post messages through t instead of the
// relay. It must be called before Unlock.
func (w *Wire) SetTransport(t domain.Transport) { w.transport = t }

// Transport returns what the engine posts through: the override, else the
// relay, else a transport that keeps everything queued.
func (w *Wire) Transport() domain.Transport {
	switch {
	case w.transport != nil:
		return w.transport
	case w.Relay != nil:
		return w.Relay
	default:
		return offline{}
	}
}

// Close releases the database and the log file.
func (w *Wire) Close() error {
	err := w.DB.Close()
	w.closeLog()
	return err
}

func (w *Wire) closeLog() {
	if w.ownLog {
		w.LogBackend.Close()
	}
}

// ErrOffline is returned when posting without a relay.
var ErrOffline = errors.New("app: no relay configured, message kept in outbox")

type offline struct{}

func (offline) PostMessage(context.Context, domain.Outbound) error { return ErrOffline }

// newEngine starts the protocol engine of the device.
func (w *Wire) newEngine(device domain.UID, onDialog func(domain.Dialog)) (*protocol.Engine, error) {
	def, err := trustsas.New(trustsas.Config{
		SASDigits: w.Config.Protocol.SASDigits,
		Log:       w.LogBackend.GetLogger("trustsas"),
	})
	if err != nil {
		return nil, err
	}
	if w.metrics == nil {
		w.metrics = protocol.NewMetrics(w.Registry)
	}
	return protocol.New(protocol.Config{
		DB:        w.DB,
		Transport: w.Transport(),
		Device:    device,
		Log:       w.LogBackend.GetLogger("engine"),
		Metrics:   w.metrics,
		OnDialog:  onDialog,
	}, def)
}

// newTrust builds the trust service for an unlocked identity.
func (w *Wire) newTrust(owned domain.CryptoIdentity, device domain.UID, onDialog func(domain.Dialog)) (*trustsvc.Service, *protocol.Engine, error) {
	engine, err := w.newEngine(device, onDialog)
	if err != nil {
		return nil, nil, err
	}
	var rc domain.RelayClient
	if w.Relay != nil {
		rc = w.Relay
	}
	return trustsvc.New(trustsvc.Config{
		Engine: engine,
		DB:     w.DB,
		Relay:  rc,
		Owned:  owned,
		Device: device,
		Log:    w.LogBackend.GetLogger("trust"),
	}), engine, nil
}
