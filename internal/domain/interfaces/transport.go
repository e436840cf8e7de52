package interfaces

import (
	"context"

	domaintypes "sastrust/internal/domain/types"
)

// Transport delivers outbound protocol messages to other devices.
type Transport interface {
	PostMessage(ctx context.Context, out domaintypes.Outbound) error
}

// RelayClient talks to the relay server, all with context.
type RelayClient interface {
	Transport

	RegisterDevice(ctx context.Context, reg domaintypes.DeviceRegistration) error
	Devices(ctx context.Context, identity domaintypes.CryptoIdentity) ([]domaintypes.UID, error)
	FetchMessages(ctx context.Context, device domaintypes.UID, limit int) ([]domaintypes.Envelope, error)
	AckMessages(ctx context.Context, device domaintypes.UID, seqs []uint64) error
}
