package store

import (
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"sastrust/internal/domain"
)

// outbox holds outbound messages in sequence order.
type outbox struct{ t *tx }

func (s outbox) Enqueue(out domain.Outbound) error {
	bkt := s.t.bucket(outboxBucket)
	seq, err := bkt.NextSequence()
	if err != nil {
		return err
	}
	return putCBOR(bkt, seqKey(seq), out)
}

func (s outbox) List() ([]domain.QueuedOutbound, error) {
	var out []domain.QueuedOutbound
	err := forEachSeq(s.t.bucket(outboxBucket), func(seq uint64, v []byte) error {
		var o domain.Outbound
		if err := cbor.Unmarshal(v, &o); err != nil {
			return err
		}
		out = append(out, domain.QueuedOutbound{Seq: seq, Outbound: o})
		return nil
	})
	return out, err
}

func (s outbox) Remove(seq uint64) error {
	return s.t.bucket(outboxBucket).Delete(seqKey(seq))
}

// pending parks received messages that had no step in their instance's
// current state.
type pending struct{ t *tx }

func (s pending) Add(msg domain.ReceivedMessage) error {
	bkt := s.t.bucket(pendingBucket)
	seq, err := bkt.NextSequence()
	if err != nil {
		return err
	}
	return putCBOR(bkt, seqKey(seq), msg)
}

func (s pending) all() ([]domain.PendingMessage, error) {
	var out []domain.PendingMessage
	err := forEachSeq(s.t.bucket(pendingBucket), func(seq uint64, v []byte) error {
		var m domain.ReceivedMessage
		if err := cbor.Unmarshal(v, &m); err != nil {
			return err
		}
		out = append(out, domain.PendingMessage{Seq: seq, Message: m})
		return nil
	})
	return out, err
}

func (s pending) List(key domain.InstanceKey) ([]domain.PendingMessage, error) {
	all, err := s.all()
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, p := range all {
		if p.Message.Key() == key {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s pending) Remove(seq uint64) error {
	return s.t.bucket(pendingBucket).Delete(seqKey(seq))
}

func (s pending) DeleteInstance(key domain.InstanceKey) error {
	ps, err := s.List(key)
	if err != nil {
		return err
	}
	for _, p := range ps {
		if err := s.Remove(p.Seq); err != nil {
			return err
		}
	}
	return nil
}

func (s pending) Purge(olderThan time.Time) (int, error) {
	all, err := s.all()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range all {
		if p.Message.ReceivedAt.Before(olderThan) {
			if err := s.Remove(p.Seq); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

// forEachSeq visits a sequence keyed bucket in order. Deleting while
// iterating a bbolt cursor skips entries, so callers collect first.
func forEachSeq(bkt *bolt.Bucket, fn func(seq uint64, v []byte) error) error {
	return bkt.ForEach(func(k, v []byte) error {
		if len(k) != 8 {
			return nil
		}
		return fn(seqFromKey(k), v)
	})
}

var (
	_ domain.Outbox       = outbox{}
	_ domain.PendingStore = pending{}
)
