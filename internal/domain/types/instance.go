package types

import "time"

// InstanceKey identifies a protocol instance on a device.
type InstanceKey struct {
	Protocol ProtocolID
	Owned    CryptoIdentity
	UID      UID
}

// InstanceRecord is the persisted form of a live protocol instance.
type InstanceRecord struct {
	Protocol  ProtocolID     `cbor:"protocol"`
	Owned     CryptoIdentity `cbor:"owned"`
	UID       UID            `cbor:"uid"`
	StateID   StateID        `cbor:"state_id"`
	State     []byte         `cbor:"state"`
	CreatedAt time.Time      `cbor:"created_at"`
	UpdatedAt time.Time      `cbor:"updated_at"`
}

// Key returns the identifying triple of the record.
func (r InstanceRecord) Key() InstanceKey {
	return InstanceKey{Protocol: r.Protocol, Owned: r.Owned, UID: r.UID}
}

// Key returns the instance addressed by the message.
func (m ReceivedMessage) Key() InstanceKey {
	return InstanceKey{Protocol: m.Protocol, Owned: m.Owned, UID: m.InstanceUID}
}

// QueuedOutbound is an outbox entry waiting to be posted.
type QueuedOutbound struct {
	Seq      uint64
	Outbound Outbound
}

// PendingMessage is a received message parked until its instance can use it.
type PendingMessage struct {
	Seq     uint64
	Message ReceivedMessage
}
