package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"
	"gopkg.in/op/go-logging.v1"

	"sastrust/internal/domain"
	"sastrust/internal/util/memzero"
)

const (
	// DBFilename is the database file name inside a device home.
	DBFilename = "device.db"

	metadataBucket    = "metadata"
	ownedBucket       = "owned"
	contactsBucket    = "contacts"
	commitmentsBucket = "commitments"
	instancesBucket   = "instances"
	outboxBucket      = "outbox"
	pendingBucket     = "pending"
	dialogsBucket     = "dialogs"

	versionKey = "version"
	dbVersion  = 1
)

// ErrLocked is returned when a seed is requested for an owned identity whose
// seed key was not handed over with Unlock.
var ErrLocked = errors.New("store: owned identity is locked")

// ownedRecord is the public part of an owned identity kept in the database.
type ownedRecord struct {
	Details domain.CoreDetails `cbor:"details"`
	Device  domain.UID         `cbor:"device"`
	Devices []domain.UID       `cbor:"devices"`
}

// DB is the bbolt backed device database.
type DB struct {
	db  *bolt.DB
	log *logging.Logger

	mu       sync.RWMutex
	seedKeys map[domain.CryptoIdentity]*[32]byte
}

// Open creates (or loads) the device database in file f.
func Open(f string, log *logging.Logger) (*DB, error) {
	bdb, err := bolt.Open(f, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}
	d := &DB{
		db:       bdb,
		log:      log,
		seedKeys: make(map[domain.CryptoIdentity]*[32]byte),
	}

	if err := bdb.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists([]byte(metadataBucket))
		if err != nil {
			return err
		}
		for _, name := range []string{
			ownedBucket, contactsBucket, commitmentsBucket, instancesBucket,
			outboxBucket, pendingBucket, dialogsBucket,
		} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		if b := meta.Get([]byte(versionKey)); b != nil {
			if len(b) != 1 || b[0] != dbVersion {
				return fmt.Errorf("store: incompatible database version: %v", b)
			}
			return nil
		}
		return meta.Put([]byte(versionKey), []byte{dbVersion})
	}); err != nil {
		bdb.Close()
		return nil, err
	}
	return d, nil
}

// Close wipes the unlocked seed keys and closes the database.
func (d *DB) Close() error {
	d.mu.Lock()
	for k, v := range d.seedKeys {
		memzero.ZeroArray32(v)
		delete(d.seedKeys, k)
	}
	d.mu.Unlock()
	return d.db.Close()
}

// Unlock makes the seed key of id available to DeterministicSeed.
func (d *DB) Unlock(id domain.OwnedIdentity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := id.SeedKey
	d.seedKeys[id.Identity] = &k
}

func (d *DB) seedKey(owned domain.CryptoIdentity) ([32]byte, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	k, ok := d.seedKeys[owned]
	if !ok {
		return [32]byte{}, false
	}
	return *k, true
}

// Update runs fn in a read-write transaction. bbolt allows one writer at a
// time, so steps never interleave.
func (d *DB) Update(fn func(domain.Tx) error) error {
	return d.db.Update(func(btx *bolt.Tx) error {
		return fn(&tx{btx: btx, db: d})
	})
}

// View runs fn in a read-only transaction.
func (d *DB) View(fn func(domain.Tx) error) error {
	return d.db.View(func(btx *bolt.Tx) error {
		return fn(&tx{btx: btx, db: d})
	})
}

// CreateOwnedIdentity records id as owned by this database with device as
// the current device.
func (d *DB) CreateOwnedIdentity(id domain.OwnedIdentity, device domain.UID) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(ownedBucket))
		if bkt.Get(id.Identity.Bytes()) != nil {
			return fmt.Errorf("store: owned identity %s: %w", id.Identity.Short(), domain.ErrAlreadyExists)
		}
		return putCBOR(bkt, id.Identity.Bytes(), ownedRecord{
			Details: id.Details,
			Device:  device,
			Devices: []domain.UID{device},
		})
	})
}

// AddOwnedDevice records another device of owned. Known devices are ignored.
func (d *DB) AddOwnedDevice(owned domain.CryptoIdentity, device domain.UID) (bool, error) {
	added := false
	err := d.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(ownedBucket))
		var rec ownedRecord
		if err := getCBOR(bkt, owned.Bytes(), &rec); err != nil {
			return err
		}
		for _, u := range rec.Devices {
			if u == device {
				return nil
			}
		}
		rec.Devices = append(rec.Devices, device)
		added = true
		return putCBOR(bkt, owned.Bytes(), rec)
	})
	if added {
		d.log.Infof("Added device %s to owned identity %s", device.Short(), owned.Short())
	}
	return added, err
}

// LocalIdentity returns the owned identity of this device and its device UID.
func (d *DB) LocalIdentity() (domain.CryptoIdentity, domain.UID, error) {
	var (
		id     domain.CryptoIdentity
		device domain.UID
	)
	err := d.db.View(func(tx *bolt.Tx) error {
		k, v := tx.Bucket([]byte(ownedBucket)).Cursor().First()
		if k == nil {
			return domain.ErrNoIdentity
		}
		var rec ownedRecord
		if err := cbor.Unmarshal(v, &rec); err != nil {
			return err
		}
		var err error
		if id, err = domain.ParseCryptoIdentity(k); err != nil {
			return err
		}
		device = rec.Device
		return nil
	})
	return id, device, err
}

// Compile-time assertion that DB implements domain.Database.
var _ domain.Database = (*DB)(nil)

// encMode keeps sub-second timestamps, which the default unix mode drops.
var encMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

func putCBOR(bkt *bolt.Bucket, k []byte, v any) error {
	b, err := encMode.Marshal(v)
	if err != nil {
		return err
	}
	return bkt.Put(k, b)
}

// getCBOR decodes the value at k into v, or returns domain.ErrNotFound.
func getCBOR(bkt *bolt.Bucket, k []byte, v any) error {
	b := bkt.Get(k)
	if b == nil {
		return domain.ErrNotFound
	}
	return cbor.Unmarshal(b, v)
}

func seqKey(seq uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], seq)
	return k[:]
}

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func seqFromKey(k []byte) uint64 { return binary.BigEndian.Uint64(k) }
