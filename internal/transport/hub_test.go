package transport_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"sastrust/internal/domain"
	"sastrust/internal/log"
	"sastrust/internal/transport"
)

var (
	alice = domain.CryptoIdentity{0xa1}
	bob   = domain.CryptoIdentity{0xb0}
	a1    = domain.UID{0xa1}
	b1    = domain.UID{0xb1}
	b2    = domain.UID{0xb2}
)

type inbox map[domain.UID][]domain.ReceivedMessage

func (in inbox) handler(device domain.UID) transport.Handler {
	return func(_ context.Context, msg domain.ReceivedMessage) error {
		in[device] = append(in[device], msg)
		return nil
	}
}

func network(t *testing.T) (*transport.Hub, map[domain.UID]*transport.Endpoint, inbox) {
	t.Helper()
	hub := transport.NewHub(log.Discard().GetLogger("hub"))
	in := inbox{}
	eps := map[domain.UID]*transport.Endpoint{
		a1: hub.Attach(alice, a1, in.handler(a1)),
		b1: hub.Attach(bob, b1, in.handler(b1)),
		b2: hub.Attach(bob, b2, in.handler(b2)),
	}
	return hub, eps, in
}

func TestRouteByChannel(t *testing.T) {
	dir := func(id domain.CryptoIdentity) []domain.UID {
		if id == bob {
			return []domain.UID{b1, b2}
		}
		return []domain.UID{a1}
	}

	to, err := transport.Route(domain.Outbound{
		Channel: domain.ChannelAsymmetricBroadcast, FromIdentity: alice, FromDevice: a1, ToIdentity: bob,
	}, dir)
	require.NoError(t, err)
	require.Equal(t, []domain.UID{b1, b2}, to)

	to, err = transport.Route(domain.Outbound{
		Channel: domain.ChannelAsymmetricDevices, FromIdentity: alice, FromDevice: a1, ToIdentity: bob,
		ToDevices: []domain.UID{b2, {0xff}},
	}, dir)
	require.NoError(t, err)
	require.Equal(t, []domain.UID{b2}, to)

	to, err = transport.Route(domain.Outbound{
		Channel: domain.ChannelOwnedDevices, FromIdentity: bob, FromDevice: b1, ToIdentity: bob,
		ToDevices: []domain.UID{b1, b2},
	}, dir)
	require.NoError(t, err)
	require.Equal(t, []domain.UID{b2}, to)

	_, err = transport.Route(domain.Outbound{Channel: domain.ChannelLocal, ToIdentity: bob}, dir)
	require.ErrorIs(t, err, transport.ErrNotRemote)

	_, err = transport.Route(domain.Outbound{
		Channel: domain.ChannelOwnedDevices, FromIdentity: alice, FromDevice: a1, ToIdentity: alice,
	}, dir)
	require.ErrorIs(t, err, transport.ErrNoRecipient)
}

func TestHubDeliversInOrder(t *testing.T) {
	ctx := context.Background()
	hub, eps, in := network(t)

	for _, id := range []domain.MessageID{1, 2} {
		require.NoError(t, eps[a1].PostMessage(ctx, domain.Outbound{
			Channel: domain.ChannelAsymmetricBroadcast, FromIdentity: alice, FromDevice: a1,
			ToIdentity: bob, MessageID: id, Payload: []byte{byte(id)},
		}))
	}
	require.Equal(t, 4, hub.Pending())

	n, err := hub.Run(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Zero(t, hub.Pending())

	for _, dev := range []domain.UID{b1, b2} {
		require.Len(t, in[dev], 2)
		require.Equal(t, domain.MessageID(1), in[dev][0].MessageID)
		require.Equal(t, domain.MessageID(2), in[dev][1].MessageID)
		require.Equal(t, bob, in[dev][0].Owned)
		require.Equal(t, alice, in[dev][0].RemoteIdentity)
		require.Equal(t, a1, in[dev][0].RemoteDevice)
		require.False(t, in[dev][0].ReceivedAt.IsZero())
	}
	require.Empty(t, in[a1])
}

func TestEndpointOfflineAndImpersonation(t *testing.T) {
	ctx := context.Background()
	hub, eps, _ := network(t)
	out := domain.Outbound{
		Channel: domain.ChannelAsymmetricBroadcast, FromIdentity: alice, FromDevice: a1, ToIdentity: bob,
	}

	eps[a1].SetOffline(true)
	require.ErrorIs(t, eps[a1].PostMessage(ctx, out), transport.ErrOffline)
	eps[a1].SetOffline(false)
	require.NoError(t, eps[a1].PostMessage(ctx, out))

	require.Error(t, eps[b1].PostMessage(ctx, out))
	require.Equal(t, 2, hub.Pending())
}

func TestHubStepReportsHandlerErrors(t *testing.T) {
	ctx := context.Background()
	hub, eps, _ := network(t)
	boom := errors.New("boom")
	eps[b1].SetHandler(func(context.Context, domain.ReceivedMessage) error { return boom })

	require.NoError(t, eps[a1].PostMessage(ctx, domain.Outbound{
		Channel: domain.ChannelAsymmetricDevices, FromIdentity: alice, FromDevice: a1,
		ToIdentity: bob, ToDevices: []domain.UID{b1},
	}))
	ok, err := hub.Step(ctx)
	require.True(t, ok)
	require.ErrorIs(t, err, boom)

	ok, err = hub.Step(ctx)
	require.False(t, ok)
	require.NoError(t, err)
}
