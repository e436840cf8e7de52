package store

import (
	bolt "go.etcd.io/bbolt"

	"sastrust/internal/domain"
)

type tx struct {
	btx *bolt.Tx
	db  *DB
}

func (t *tx) bucket(name string) *bolt.Bucket { return t.btx.Bucket([]byte(name)) }

func (t *tx) Identities() domain.IdentityStore { return identities{t} }
func (t *tx) Commitments() domain.ReplayGuard   { return commitments{t} }
func (t *tx) Instances() domain.InstanceStore   { return instances{t} }
func (t *tx) Outbox() domain.Outbox             { return outbox{t} }
func (t *tx) Pending() domain.PendingStore      { return pending{t} }
func (t *tx) Dialogs() domain.DialogStore       { return dialogs{t} }
