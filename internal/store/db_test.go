package store_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/require"

	"sastrust/internal/domain"
	"sastrust/internal/log"
	"sastrust/internal/store"
)

func openDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), store.DBFilename), log.Discard().GetLogger("store"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func ownedFixture(t *testing.T, db *store.DB) (domain.OwnedIdentity, domain.UID) {
	t.Helper()
	id := domain.OwnedIdentity{
		Identity: domain.CryptoIdentity{0xaa},
		SeedKey:  [32]byte{9},
		Details:  domain.CoreDetails{FirstName: "Alice"},
	}
	device := domain.UID{1}
	require.NoError(t, db.CreateOwnedIdentity(id, device))
	return id, device
}

func TestOwnedIdentityDevices(t *testing.T) {
	require := require.New(t)
	db := openDB(t)
	id, device := ownedFixture(t, db)

	got, gotDevice, err := db.LocalIdentity()
	require.NoError(err)
	require.Equal(id.Identity, got)
	require.Equal(device, gotDevice)

	added, err := db.AddOwnedDevice(id.Identity, domain.UID{2})
	require.NoError(err)
	require.True(added)
	added, err = db.AddOwnedDevice(id.Identity, domain.UID{2})
	require.NoError(err)
	require.False(added)

	require.NoError(db.View(func(tx domain.Tx) error {
		all, err := tx.Identities().DeviceUIDs(id.Identity)
		require.NoError(err)
		require.Equal([]domain.UID{{1}, {2}}, all)

		others, err := tx.Identities().OtherDeviceUIDs(id.Identity)
		require.NoError(err)
		require.Equal([]domain.UID{{2}}, others)

		details, err := tx.Identities().OwnedIdentityDetails(id.Identity)
		require.NoError(err)
		require.Equal("Alice", details.FirstName)
		return nil
	}))

	err = db.CreateOwnedIdentity(id, device)
	require.ErrorIs(err, domain.ErrAlreadyExists)
}

func TestDeterministicSeedRequiresUnlock(t *testing.T) {
	require := require.New(t)
	db := openDB(t)
	id, _ := ownedFixture(t, db)

	err := db.View(func(tx domain.Tx) error {
		_, err := tx.Identities().DeterministicSeed(id.Identity, []byte("c"))
		return err
	})
	require.ErrorIs(err, store.ErrLocked)

	db.Unlock(id)
	var s1, s2 domain.Seed
	require.NoError(db.View(func(tx domain.Tx) error {
		var err error
		if s1, err = tx.Identities().DeterministicSeed(id.Identity, []byte("c")); err != nil {
			return err
		}
		s2, err = tx.Identities().DeterministicSeed(id.Identity, []byte("c"))
		return err
	}))
	require.Equal(s1, s2)
	require.NotEqual(domain.Seed{}, s1)
}

func TestContactsAndTrustOrigins(t *testing.T) {
	require := require.New(t)
	db := openDB(t)
	id, _ := ownedFixture(t, db)
	bob := domain.CryptoIdentity{0xbb}
	now := time.Now()

	require.NoError(db.Update(func(tx domain.Tx) error {
		ids := tx.Identities()
		ok, err := ids.IsContact(bob, id.Identity)
		require.NoError(err)
		require.False(ok)

		require.NoError(ids.AddContact(bob, domain.CoreDetails{FirstName: "Bob"},
			domain.TrustOrigin{Kind: domain.TrustOriginKind(2), Timestamp: now}, id.Identity, true))
		require.ErrorIs(ids.AddContact(bob, domain.CoreDetails{}, domain.TrustOrigin{}, id.Identity, true),
			domain.ErrAlreadyExists)

		// weaker origin is ignored, stronger one is appended
		require.NoError(ids.AddTrustOriginIfIncreased(domain.TrustOrigin{Kind: 1, Timestamp: now}, bob, id.Identity))
		require.NoError(ids.AddTrustOriginIfIncreased(domain.TrustOrigin{Kind: 4, Timestamp: now}, bob, id.Identity))

		require.NoError(ids.AddContactDevice(bob, domain.UID{7}, id.Identity))
		require.NoError(ids.AddContactDevice(bob, domain.UID{7}, id.Identity))
		return nil
	}))

	require.NoError(db.View(func(tx domain.Tx) error {
		c, ok, err := tx.Identities().Contact(bob, id.Identity)
		require.NoError(err)
		require.True(ok)
		require.Len(c.TrustOrigins, 2)
		require.Equal(domain.TrustOriginKind(4), c.TrustLevel())
		require.Equal([]domain.UID{{7}}, c.Devices)

		all, err := tx.Identities().Contacts(id.Identity)
		require.NoError(err)
		require.Len(all, 1)

		others, err := tx.Identities().Contacts(domain.CryptoIdentity{0xcc})
		require.NoError(err)
		require.Empty(others)
		return nil
	}))
}

func TestReplayGuard(t *testing.T) {
	require := require.New(t)
	db := openDB(t)
	owned := domain.CryptoIdentity{0xaa}
	c := []byte("commitment")

	require.NoError(db.Update(func(tx domain.Tx) error {
		ok, err := tx.Commitments().Exists(owned, c)
		require.NoError(err)
		require.False(ok)
		return tx.Commitments().Insert(owned, c)
	}))
	err := db.Update(func(tx domain.Tx) error {
		return tx.Commitments().Insert(owned, c)
	})
	require.ErrorIs(err, domain.ErrAlreadyExists)

	// scoped per owned identity
	require.NoError(db.Update(func(tx domain.Tx) error {
		return tx.Commitments().Insert(domain.CryptoIdentity{0xbb}, c)
	}))
}

func TestRolledBackTransactionLeavesNoTrace(t *testing.T) {
	require := require.New(t)
	db := openDB(t)
	owned := domain.CryptoIdentity{0xaa}

	err := db.Update(func(tx domain.Tx) error {
		require.NoError(tx.Commitments().Insert(owned, []byte("c")))
		return domain.ErrNotFound
	})
	require.ErrorIs(err, domain.ErrNotFound)

	require.NoError(db.View(func(tx domain.Tx) error {
		ok, err := tx.Commitments().Exists(owned, []byte("c"))
		require.NoError(err)
		require.False(ok)
		return nil
	}))
}

func TestInstancesOutboxPendingDialogs(t *testing.T) {
	require := require.New(t)
	db := openDB(t)
	owned := domain.CryptoIdentity{0xaa}
	key := domain.InstanceKey{Protocol: 3, Owned: owned, UID: domain.UID{5}}
	now := time.Now()

	require.NoError(db.Update(func(tx domain.Tx) error {
		require.NoError(tx.Instances().Save(domain.InstanceRecord{
			Protocol: key.Protocol, Owned: owned, UID: key.UID, StateID: 2, State: []byte{0xa0},
		}))
		require.NoError(tx.Outbox().Enqueue(domain.Outbound{MessageID: 1}))
		require.NoError(tx.Outbox().Enqueue(domain.Outbound{MessageID: 2}))
		require.NoError(tx.Pending().Add(domain.ReceivedMessage{
			Protocol: key.Protocol, Owned: owned, InstanceUID: key.UID, ReceivedAt: now.Add(-time.Hour),
		}))
		require.NoError(tx.Pending().Add(domain.ReceivedMessage{
			Protocol: key.Protocol, Owned: owned, InstanceUID: domain.UID{6}, ReceivedAt: now,
		}))
		return tx.Dialogs().Put(domain.Dialog{ID: uuid.Must(uuid.NewV4()), Owned: owned, InstanceUID: key.UID})
	}))

	require.NoError(db.Update(func(tx domain.Tx) error {
		rec, ok, err := tx.Instances().Load(key)
		require.NoError(err)
		require.True(ok)
		require.Equal(domain.StateID(2), rec.StateID)

		list, err := tx.Instances().List(owned)
		require.NoError(err)
		require.Len(list, 1)

		out, err := tx.Outbox().List()
		require.NoError(err)
		require.Len(out, 2)
		require.Equal(domain.MessageID(1), out[0].Outbound.MessageID)
		require.NoError(tx.Outbox().Remove(out[0].Seq))

		ps, err := tx.Pending().List(key)
		require.NoError(err)
		require.Len(ps, 1)

		n, err := tx.Pending().Purge(now.Add(-time.Minute))
		require.NoError(err)
		require.Equal(1, n)

		ds, err := tx.Dialogs().List(owned)
		require.NoError(err)
		require.Len(ds, 1)
		require.NoError(tx.Dialogs().Delete(ds[0].ID))

		return tx.Instances().Delete(key)
	}))

	require.NoError(db.View(func(tx domain.Tx) error {
		_, ok, err := tx.Instances().Load(key)
		require.NoError(err)
		require.False(ok)
		out, err := tx.Outbox().List()
		require.NoError(err)
		require.Len(out, 1)
		ps, err := tx.Pending().List(domain.InstanceKey{Protocol: 3, Owned: owned, UID: domain.UID{6}})
		require.NoError(err)
		require.Len(ps, 1)
		return nil
	}))
}
