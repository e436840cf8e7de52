package types

import "time"

// Envelope is an outbound message queued at the relay for one device.
type Envelope struct {
	Seq        uint64    `json:"seq"`
	ToDevice   UID       `json:"to_device"`
	Message    Outbound  `json:"message"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// DeviceRegistration announces a device of an identity to the relay. The
// signature is made with the identity's signing key.
type DeviceRegistration struct {
	Identity  CryptoIdentity `json:"identity"`
	Device    UID            `json:"device"`
	Signature []byte         `json:"signature"`
}
