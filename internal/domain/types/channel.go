package types

import "time"

// ChannelKind identifies how a protocol message travels.
type ChannelKind uint8

const (
	ChannelNone ChannelKind = iota
	// ChannelLocal carries requests made on this device, such as an invite.
	ChannelLocal
	// ChannelAsymmetricBroadcast reaches every device of a remote identity.
	ChannelAsymmetricBroadcast
	// ChannelAsymmetricDevices reaches the listed devices of a remote identity.
	ChannelAsymmetricDevices
	// ChannelOwnedDevices reaches the other devices of the owned identity.
	ChannelOwnedDevices
	// ChannelUserInterface carries dialog responses typed by the user.
	ChannelUserInterface
)

func (c ChannelKind) String() string {
	switch c {
	case ChannelLocal:
		return "local"
	case ChannelAsymmetricBroadcast:
		return "asymmetric-broadcast"
	case ChannelAsymmetricDevices:
		return "asymmetric-devices"
	case ChannelOwnedDevices:
		return "owned-devices"
	case ChannelUserInterface:
		return "user-interface"
	default:
		return "none"
	}
}

// Remote reports whether messages on this channel leave the device.
func (c ChannelKind) Remote() bool {
	switch c {
	case ChannelAsymmetricBroadcast, ChannelAsymmetricDevices, ChannelOwnedDevices:
		return true
	}
	return false
}

// Outbound is a protocol message produced by a step, addressed to other
// devices. FromIdentity and FromDevice are filled in by the engine.
type Outbound struct {
	Channel      ChannelKind    `json:"channel" cbor:"channel"`
	FromIdentity CryptoIdentity `json:"from_identity" cbor:"from_identity"`
	FromDevice   UID            `json:"from_device" cbor:"from_device"`
	ToIdentity   CryptoIdentity `json:"to_identity" cbor:"to_identity"`
	// ToDevices is empty for broadcasts.
	ToDevices   []UID      `json:"to_devices,omitempty" cbor:"to_devices,omitempty"`
	Protocol    ProtocolID `json:"protocol" cbor:"protocol"`
	InstanceUID UID        `json:"instance_uid" cbor:"instance_uid"`
	MessageID   MessageID  `json:"message_id" cbor:"message_id"`
	Payload     []byte     `json:"payload" cbor:"payload"`
}

// Receive converts an outbound message into what the device of owned
// identified by device observes when it arrives.
func (o Outbound) Receive(owned CryptoIdentity, at time.Time) ReceivedMessage {
	return ReceivedMessage{
		Protocol:       o.Protocol,
		Owned:          owned,
		InstanceUID:    o.InstanceUID,
		Channel:        o.Channel,
		RemoteIdentity: o.FromIdentity,
		RemoteDevice:   o.FromDevice,
		MessageID:      o.MessageID,
		Payload:        o.Payload,
		ReceivedAt:     at,
	}
}

// ReceivedMessage is a protocol message handed to the engine.
type ReceivedMessage struct {
	Protocol       ProtocolID     `cbor:"protocol"`
	Owned          CryptoIdentity `cbor:"owned"`
	InstanceUID    UID            `cbor:"instance_uid"`
	Channel        ChannelKind    `cbor:"channel"`
	RemoteIdentity CryptoIdentity `cbor:"remote_identity"`
	RemoteDevice   UID            `cbor:"remote_device"`
	MessageID      MessageID      `cbor:"message_id"`
	Payload        []byte         `cbor:"payload"`
	ReceivedAt     time.Time      `cbor:"received_at"`
}
