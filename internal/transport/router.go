package transport

import (
	"errors"
	"fmt"

	"sastrust/internal/domain"
)

var (
	// ErrNotRemote is returned for channel kinds that never leave the device.
	ErrNotRemote = errors.New("transport: channel is not remote")
	// ErrNoRecipient is returned when a message resolves to no device.
	ErrNoRecipient = errors.New("transport: no recipient device")
)

// Directory lists the registered devices of an identity.
type Directory func(identity domain.CryptoIdentity) []domain.UID

// Route returns the devices out must be delivered to. Broadcasts reach every
// device of the recipient identity; other remote channels reach the listed
// devices that belong to it. The sending device never receives its own
// message.
func Route(out domain.Outbound, devices Directory) ([]domain.UID, error) {
	if !out.Channel.Remote() {
		return nil, fmt.Errorf("%w: %s", ErrNotRemote, out.Channel)
	}
	if out.Channel == domain.ChannelOwnedDevices && out.ToIdentity != out.FromIdentity {
		return nil, fmt.Errorf("transport: owned-device message addressed to %s", out.ToIdentity.Short())
	}

	known := devices(out.ToIdentity)
	var targets []domain.UID
	if out.Channel == domain.ChannelAsymmetricBroadcast {
		targets = known
	} else {
		member := make(map[domain.UID]bool, len(known))
		for _, u := range known {
			member[u] = true
		}
		for _, u := range out.ToDevices {
			if member[u] {
				targets = append(targets, u)
			}
		}
	}

	seen := make(map[domain.UID]bool, len(targets))
	var to []domain.UID
	for _, u := range targets {
		if u == out.FromDevice || seen[u] {
			continue
		}
		seen[u] = true
		to = append(to, u)
	}
	if len(to) == 0 {
		return nil, fmt.Errorf("%w: %s message %d to %s",
			ErrNoRecipient, out.Channel, out.MessageID, out.ToIdentity.Short())
	}
	return to, nil
}
