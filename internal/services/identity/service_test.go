package identity_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"sastrust/internal/crypto"
	"sastrust/internal/domain"
	"sastrust/internal/log"
	"sastrust/internal/relay"
	"sastrust/internal/services/identity"
	"sastrust/internal/store"
)

const pass = "Correct-horse-1!"

var fastScrypt = store.ScryptParams{N: 1 << 10, R: 8, P: 1}

type device struct {
	svc  *identity.Service
	db   *store.DB
	keys *store.KeyStore
}

func newDevice(t *testing.T, rc domain.RelayClient) device {
	t.Helper()
	dir := t.TempDir()
	lb := log.Discard()
	db, err := store.Open(filepath.Join(dir, store.DBFilename), lb.GetLogger("store"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	keys := store.NewKeyStore(filepath.Join(dir, store.KeyStoreFilename), fastScrypt)
	return device{
		svc: identity.New(identity.Config{
			Keys:  keys,
			DB:    db,
			Relay: rc,
			OpenKeyStore: func(path string) domain.KeyStore {
				return store.NewKeyStore(path, fastScrypt)
			},
			Log: lb.GetLogger("identity"),
		}),
		db:   db,
		keys: keys,
	}
}

func TestGenerateIdentity(t *testing.T) {
	d := newDevice(t, nil)

	_, _, err := d.svc.GenerateIdentity("short", domain.CoreDetails{})
	require.ErrorIs(t, err, identity.ErrWeakPassphrase)

	id, fp, err := d.svc.GenerateIdentity(pass, domain.CoreDetails{FirstName: "Alice"})
	require.NoError(t, err)
	require.Equal(t, crypto.Fingerprint(id.Identity), fp)

	owned, device, err := d.db.LocalIdentity()
	require.NoError(t, err)
	require.Equal(t, id.Identity, owned)
	require.False(t, device.IsZero())

	_, _, err = d.svc.GenerateIdentity(pass, domain.CoreDetails{})
	require.ErrorIs(t, err, domain.ErrAlreadyExists)

	got, err := d.svc.FingerprintIdentity(pass)
	require.NoError(t, err)
	require.Equal(t, fp, got)

	loaded, err := d.svc.LoadIdentity(pass)
	require.NoError(t, err)
	require.Equal(t, id, loaded)

	_, err = d.svc.LoadIdentity("Wrong-horse-1!")
	require.ErrorIs(t, err, store.ErrWrongPassphrase)
}

func TestDeterministicSeedAfterGenerate(t *testing.T) {
	d := newDevice(t, nil)
	id, _, err := d.svc.GenerateIdentity(pass, domain.CoreDetails{})
	require.NoError(t, err)

	require.NoError(t, d.db.View(func(tx domain.Tx) error {
		_, err := tx.Identities().DeterministicSeed(id.Identity, []byte("x"))
		return err
	}))
}

func TestLinkAndRegisterDevices(t *testing.T) {
	lb := log.Discard()
	srv := httptest.NewServer(relay.NewServer(lb.GetLogger("relay"), prometheus.NewRegistry()))
	defer srv.Close()
	rc := relay.NewClient(srv.URL, lb.GetLogger("relay"))
	ctx := context.Background()

	first := newDevice(t, rc)
	id, _, err := first.svc.GenerateIdentity(pass, domain.CoreDetails{FirstName: "Bob"})
	require.NoError(t, err)

	second := newDevice(t, rc)
	_, err = second.svc.LinkDevice("Wrong-horse-1!", first.keys.Path())
	require.Error(t, err)
	linked, err := second.svc.LinkDevice(pass, first.keys.Path())
	require.NoError(t, err)
	require.Equal(t, id, linked)

	_, firstUID, err := first.db.LocalIdentity()
	require.NoError(t, err)
	_, secondUID, err := second.db.LocalIdentity()
	require.NoError(t, err)
	require.NotEqual(t, firstUID, secondUID)

	devices, err := first.svc.RegisterDevice(ctx, pass)
	require.NoError(t, err)
	require.Equal(t, []domain.UID{firstUID}, devices)

	devices, err = second.svc.RegisterDevice(ctx, pass)
	require.NoError(t, err)
	require.ElementsMatch(t, []domain.UID{firstUID, secondUID}, devices)

	_, err = first.svc.RegisterDevice(ctx, pass)
	require.NoError(t, err)

	for _, d := range []device{first, second} {
		require.NoError(t, d.db.View(func(tx domain.Tx) error {
			uids, err := tx.Identities().DeviceUIDs(id.Identity)
			require.ElementsMatch(t, []domain.UID{firstUID, secondUID}, uids)
			return err
		}))
	}
}

func TestRegisterWithoutRelay(t *testing.T) {
	d := newDevice(t, nil)
	_, _, err := d.svc.GenerateIdentity(pass, domain.CoreDetails{})
	require.NoError(t, err)
	_, err = d.svc.RegisterDevice(context.Background(), pass)
	require.ErrorIs(t, err, identity.ErrNoRelay)
}
