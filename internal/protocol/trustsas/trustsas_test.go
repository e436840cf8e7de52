package trustsas_test

import (
	"context"
	"crypto/rand"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"sastrust/internal/crypto"
	"sastrust/internal/domain"
	"sastrust/internal/log"
	"sastrust/internal/protocol"
	"sastrust/internal/protocol/trustsas"
	"sastrust/internal/store"
	"sastrust/internal/transport"
)

type device struct {
	name    string
	owned   domain.OwnedIdentity
	uid     domain.UID
	db      *store.DB
	engine  *protocol.Engine
	ep      *transport.Endpoint
	metrics *protocol.Metrics
	results []protocol.Result

	// hold keeps deliveries in held instead of handling them.
	hold bool
	held []domain.ReceivedMessage
}

type world struct {
	hub   *transport.Hub
	alice domain.OwnedIdentity
	bob   domain.OwnedIdentity
	a1    *device
	a2    *device
	b1    *device
	b2    *device
}

func newUID(t *testing.T) domain.UID {
	t.Helper()
	u, err := domain.NewUID(rand.Reader)
	require.NoError(t, err)
	return u
}

func newOwned(t *testing.T, first string) domain.OwnedIdentity {
	t.Helper()
	id, err := crypto.NewOwnedIdentity(rand.Reader, domain.CoreDetails{FirstName: first})
	require.NoError(t, err)
	return id
}

// newDevice opens a database for one device of owned that knows about all
// devices listed in family, and attaches it to hub.
func newDevice(t *testing.T, hub *transport.Hub, name string, owned domain.OwnedIdentity, uid domain.UID, family []domain.UID, unlock bool) *device {
	t.Helper()
	lb := log.Discard()
	db, err := store.Open(filepath.Join(t.TempDir(), store.DBFilename), lb.GetLogger("store"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.CreateOwnedIdentity(owned, uid))
	for _, u := range family {
		_, err := db.AddOwnedDevice(owned.Identity, u)
		require.NoError(t, err)
	}
	if unlock {
		db.Unlock(owned)
	}

	def, err := trustsas.New(trustsas.Config{Log: lb.GetLogger("trustsas")})
	require.NoError(t, err)

	d := &device{name: name, owned: owned, uid: uid, db: db, metrics: protocol.NewMetrics(prometheus.NewRegistry())}
	d.ep = hub.Attach(owned.Identity, uid, func(ctx context.Context, msg domain.ReceivedMessage) error {
		if d.hold {
			d.held = append(d.held, msg)
			return nil
		}
		res, err := d.engine.Handle(ctx, msg)
		d.results = append(d.results, res)
		return err
	})
	d.engine, err = protocol.New(protocol.Config{
		DB:        db,
		Transport: d.ep,
		Device:    uid,
		Log:       lb.GetLogger("engine"),
		Metrics:   d.metrics,
	}, def)
	require.NoError(t, err)
	return d
}

// newWorld sets up Alice with one device and Bob with two.
func newWorld(t *testing.T, unlockB1 bool) *world {
	t.Helper()
	w := &world{
		hub:   transport.NewHub(log.Discard().GetLogger("hub")),
		alice: newOwned(t, "Alice"),
		bob:   newOwned(t, "Bob"),
	}
	a1, b1, b2 := newUID(t), newUID(t), newUID(t)
	w.a1 = newDevice(t, w.hub, "a1", w.alice, a1, nil, true)
	w.b1 = newDevice(t, w.hub, "b1", w.bob, b1, []domain.UID{b2}, unlockB1)
	w.b2 = newDevice(t, w.hub, "b2", w.bob, b2, []domain.UID{b1}, true)
	return w
}

// newSiblingWorld sets up Alice and Bob with two devices each.
func newSiblingWorld(t *testing.T) *world {
	t.Helper()
	w := &world{
		hub:   transport.NewHub(log.Discard().GetLogger("hub")),
		alice: newOwned(t, "Alice"),
		bob:   newOwned(t, "Bob"),
	}
	a1, a2, b1, b2 := newUID(t), newUID(t), newUID(t), newUID(t)
	w.a1 = newDevice(t, w.hub, "a1", w.alice, a1, []domain.UID{a2}, true)
	w.a2 = newDevice(t, w.hub, "a2", w.alice, a2, []domain.UID{a1}, true)
	w.b1 = newDevice(t, w.hub, "b1", w.bob, b1, []domain.UID{b2}, true)
	w.b2 = newDevice(t, w.hub, "b2", w.bob, b2, []domain.UID{b1}, true)
	return w
}

func (w *world) devices() []*device {
	if w.a2 != nil {
		return []*device{w.a1, w.a2, w.b1, w.b2}
	}
	return []*device{w.a1, w.b1, w.b2}
}

// release hands the held messages of d to its engine, newest first when
// reverse is set, and stops holding.
func (d *device) release(t *testing.T, reverse bool) []protocol.Result {
	t.Helper()
	msgs := d.held
	d.hold, d.held = false, nil
	var out []protocol.Result
	for i := range msgs {
		msg := msgs[i]
		if reverse {
			msg = msgs[len(msgs)-1-i]
		}
		res, err := d.engine.Handle(context.Background(), msg)
		require.NoError(t, err)
		out = append(out, res)
	}
	return out
}

// confirmBoth has each side type the SAS shown by the other and checks that
// every device ends trusting the other user.
func (w *world) confirmBoth(t *testing.T, instance domain.UID) {
	t.Helper()
	aliceShows := w.a1.dialog(t).SasToDisplay
	bobShows := w.b1.dialog(t).SasToDisplay

	require.Equal(t, trustsas.ContactSASCheckedID, enterSAS(t, w.b1, aliceShows).StateID)
	w.run(t)
	w.requireNoContacts(t)
	require.Equal(t, trustsas.ContactSASCheckedID, enterSAS(t, w.a1, bobShows).StateID)
	w.run(t)

	for _, d := range w.devices() {
		d.noInstances(t)
		dlg := d.dialog(t)
		require.Equal(t, domain.DialogMutualTrustConfirmed, dlg.Category, d.name)
		require.Equal(t, instance, dlg.InstanceUID, d.name)

		cs := d.contacts(t)
		require.Len(t, cs, 1, d.name)
		require.Equal(t, domain.TrustOriginDirect, cs[0].TrustLevel(), d.name)
		require.Len(t, cs[0].Devices, 1, d.name)
		if d.owned.Identity == w.alice.Identity {
			require.Equal(t, w.bob.Identity, cs[0].Identity, d.name)
			require.Equal(t, w.b1.uid, cs[0].Devices[0], d.name)
		} else {
			require.Equal(t, w.alice.Identity, cs[0].Identity, d.name)
			require.Equal(t, w.a1.uid, cs[0].Devices[0], d.name)
		}
	}
}

func (w *world) run(t *testing.T) {
	t.Helper()
	_, err := w.hub.Run(context.Background(), 1000)
	require.NoError(t, err)
	require.Zero(t, w.hub.Pending())
}

func (d *device) inject(t *testing.T, instance domain.UID, ch domain.ChannelKind, m protocol.Message) protocol.Result {
	t.Helper()
	payload, err := protocol.EncodeMessage(m)
	require.NoError(t, err)
	res, err := d.engine.Handle(context.Background(), domain.ReceivedMessage{
		Protocol:    trustsas.ProtocolID,
		Owned:       d.owned.Identity,
		InstanceUID: instance,
		Channel:     ch,
		MessageID:   m.MessageID(),
		Payload:     payload,
	})
	require.NoError(t, err)
	return res
}

func (d *device) invite(t *testing.T, contact domain.OwnedIdentity) domain.UID {
	t.Helper()
	instance := newUID(t)
	res := d.inject(t, instance, domain.ChannelLocal, &trustsas.InviteRequest{
		ContactIdentity: contact.Identity,
		ContactName:     contact.Details.FirstName,
	})
	require.Equal(t, protocol.OutcomeAdvanced, res.Outcome, res.Cause)
	require.Equal(t, trustsas.WaitingForSeedID, res.StateID)
	return instance
}

func (d *device) dialogs(t *testing.T) []domain.Dialog {
	t.Helper()
	var out []domain.Dialog
	require.NoError(t, d.db.View(func(tx domain.Tx) error {
		var err error
		out, err = tx.Dialogs().List(d.owned.Identity)
		return err
	}))
	return out
}

func (d *device) dialog(t *testing.T) domain.Dialog {
	t.Helper()
	ds := d.dialogs(t)
	require.Len(t, ds, 1, d.name)
	return ds[0]
}

func (d *device) contacts(t *testing.T) []domain.Contact {
	t.Helper()
	var out []domain.Contact
	require.NoError(t, d.db.View(func(tx domain.Tx) error {
		var err error
		out, err = tx.Identities().Contacts(d.owned.Identity)
		return err
	}))
	return out
}

func (d *device) state(t *testing.T) domain.StateID {
	t.Helper()
	recs, err := d.engine.Instances(d.owned.Identity)
	require.NoError(t, err)
	require.Len(t, recs, 1, d.name)
	return recs[0].StateID
}

func (d *device) noInstances(t *testing.T) {
	t.Helper()
	recs, err := d.engine.Instances(d.owned.Identity)
	require.NoError(t, err)
	require.Empty(t, recs, d.name)
}

func (w *world) requireNoContacts(t *testing.T) {
	t.Helper()
	for _, d := range w.devices() {
		require.Empty(t, d.contacts(t), d.name)
	}
}

// acceptOn answers the accept-invite dialog shown on d.
func acceptOn(t *testing.T, d *device, accepted bool) protocol.Result {
	t.Helper()
	dlg := d.dialog(t)
	require.Equal(t, domain.DialogAcceptInvite, dlg.Category)
	return d.inject(t, dlg.InstanceUID, domain.ChannelUserInterface, &trustsas.InviteResponse{
		DialogID: dlg.ID,
		Accepted: accepted,
	})
}

func enterSAS(t *testing.T, d *device, sas string) protocol.Result {
	t.Helper()
	dlg := d.dialog(t)
	require.Equal(t, domain.DialogSasExchange, dlg.Category)
	return d.inject(t, dlg.InstanceUID, domain.ChannelUserInterface, &trustsas.SasEntry{
		DialogID: dlg.ID,
		Sas:      sas,
	})
}

// exchange runs the protocol up to both sides showing their SAS.
func (w *world) exchange(t *testing.T) domain.UID {
	t.Helper()
	instance := w.a1.invite(t, w.bob)
	require.Equal(t, domain.DialogInviteSent, w.a1.dialog(t).Category)
	w.run(t)

	for _, d := range []*device{w.b1, w.b2} {
		dlg := d.dialog(t)
		require.Equal(t, domain.DialogAcceptInvite, dlg.Category)
		require.Equal(t, w.alice.Identity, dlg.ContactIdentity)
		require.Equal(t, "Alice", dlg.ContactName)
		require.Equal(t, trustsas.WaitingForConfirmationID, d.state(t))
	}

	res := acceptOn(t, w.b1, true)
	require.Equal(t, protocol.OutcomeAdvanced, res.Outcome, res.Cause)
	require.Equal(t, trustsas.WaitingForDecommitmentID, res.StateID)
	require.Equal(t, domain.DialogInvitationAccepted, w.b1.dialog(t).Category)
	w.run(t)

	for _, d := range w.devices() {
		require.Equal(t, trustsas.WaitingForUserSASID, d.state(t), d.name)
		dlg := d.dialog(t)
		require.Equal(t, domain.DialogSasExchange, dlg.Category, d.name)
		require.Len(t, dlg.SasToDisplay, crypto.DefaultSASDigits/2)
		require.Zero(t, dlg.BadAttempts)
	}
	require.Equal(t, w.b1.dialog(t).SasToDisplay, w.b2.dialog(t).SasToDisplay)
	w.requireNoContacts(t)
	return instance
}

// offByOne changes the first digit of sas.
func offByOne(sas string) string {
	b := []byte(sas)
	b[0] = '0' + (b[0]-'0'+1)%10
	return string(b)
}

func TestDefinitionIsValid(t *testing.T) {
	def, err := trustsas.New(trustsas.Config{Log: log.Discard().GetLogger("trustsas")})
	require.NoError(t, err)
	require.NoError(t, def.Validate())
	require.Len(t, def.Transitions, 12)

	_, err = trustsas.New(trustsas.Config{SASDigits: 5, Log: log.Discard().GetLogger("trustsas")})
	require.ErrorIs(t, err, crypto.ErrOddDigitCount)
	_, err = trustsas.New(trustsas.Config{SASDigits: crypto.MaxSASDigits + 2, Log: log.Discard().GetLogger("trustsas")})
	require.ErrorIs(t, err, crypto.ErrTooManyDigits)
}

func TestTrustEstablishedAcrossDevices(t *testing.T) {
	w := newWorld(t, true)
	instance := w.exchange(t)

	// Bob's sibling learned about the acceptance before seeing the SAS.
	require.Equal(t, trustsas.WaitingForUserSASID, w.b2.state(t))

	aliceShows := w.a1.dialog(t).SasToDisplay
	bobShows := w.b1.dialog(t).SasToDisplay

	res := enterSAS(t, w.b1, aliceShows)
	require.Equal(t, protocol.OutcomeAdvanced, res.Outcome, res.Cause)
	require.Equal(t, trustsas.ContactSASCheckedID, res.StateID)
	require.Equal(t, domain.DialogSasConfirmed, w.b1.dialog(t).Category)
	w.run(t)

	require.Equal(t, trustsas.ContactSASCheckedID, w.b2.state(t))
	require.Equal(t, trustsas.WaitingForUserSASID, w.a1.state(t))
	w.requireNoContacts(t)

	res = enterSAS(t, w.a1, bobShows)
	require.Equal(t, trustsas.ContactSASCheckedID, res.StateID)
	require.Equal(t, protocol.OutcomeAdvanced, res.Outcome)
	w.run(t)

	for _, d := range w.devices() {
		d.noInstances(t)
		dlg := d.dialog(t)
		require.Equal(t, domain.DialogMutualTrustConfirmed, dlg.Category, d.name)
		require.Equal(t, instance, dlg.InstanceUID)
		require.Equal(t, float64(1), testutil.ToFloat64(d.metrics.Steps.WithLabelValues(trustsas.Name, "AddTrust")), d.name)
	}

	aliceContacts := w.a1.contacts(t)
	require.Len(t, aliceContacts, 1)
	require.Equal(t, w.bob.Identity, aliceContacts[0].Identity)
	require.Equal(t, []domain.UID{w.b1.uid}, aliceContacts[0].Devices)
	require.Equal(t, domain.TrustOriginDirect, aliceContacts[0].TrustLevel())
	require.True(t, aliceContacts[0].OneToOne)
	require.Equal(t, "Bob", aliceContacts[0].Details.FirstName)

	for _, d := range []*device{w.b1, w.b2} {
		cs := d.contacts(t)
		require.Len(t, cs, 1, d.name)
		require.Equal(t, w.alice.Identity, cs[0].Identity)
		require.Equal(t, []domain.UID{w.a1.uid}, cs[0].Devices)
		require.Equal(t, domain.TrustOriginDirect, cs[0].TrustLevel())
	}
}

func TestWrongSASShowsDialogAgain(t *testing.T) {
	w := newWorld(t, true)
	w.exchange(t)

	bobShows := w.b1.dialog(t).SasToDisplay
	aliceShows := w.a1.dialog(t).SasToDisplay

	res := enterSAS(t, w.a1, offByOne(bobShows))
	require.Equal(t, protocol.OutcomeAdvanced, res.Outcome)
	require.Equal(t, trustsas.WaitingForUserSASID, res.StateID)
	dlg := w.a1.dialog(t)
	require.Equal(t, domain.DialogSasExchange, dlg.Category)
	require.Equal(t, 1, dlg.BadAttempts)
	require.Equal(t, aliceShows, dlg.SasToDisplay)
	require.Zero(t, w.hub.Pending())

	res = enterSAS(t, w.a1, bobShows[:2])
	require.Equal(t, 2, w.a1.dialog(t).BadAttempts)
	require.Equal(t, trustsas.WaitingForUserSASID, res.StateID)

	res = enterSAS(t, w.a1, bobShows)
	require.Equal(t, trustsas.ContactSASCheckedID, res.StateID)
	w.requireNoContacts(t)
}

func TestSASForAnotherDialogIsDropped(t *testing.T) {
	w := newWorld(t, true)
	w.exchange(t)

	dlg := w.a1.dialog(t)
	res := w.a1.inject(t, dlg.InstanceUID, domain.ChannelUserInterface, &trustsas.SasEntry{
		DialogID: domain.DialogID{1},
		Sas:      w.b1.dialog(t).SasToDisplay,
	})
	require.Equal(t, protocol.OutcomeDropped, res.Outcome)
	require.ErrorIs(t, res.Cause, protocol.ErrDrop)
	require.Equal(t, trustsas.WaitingForUserSASID, w.a1.state(t))
}

func TestReplayedCommitmentIsRejected(t *testing.T) {
	w := newWorld(t, true)

	var captured []domain.ReceivedMessage
	w.b1.ep.SetHandler(func(ctx context.Context, msg domain.ReceivedMessage) error {
		captured = append(captured, msg)
		_, err := w.b1.engine.Handle(ctx, msg)
		return err
	})
	w.a1.invite(t, w.bob)
	w.run(t)
	require.NotEmpty(t, captured)
	commitment := captured[0]
	require.Equal(t, trustsas.CommitmentMessageID, commitment.MessageID)
	before := w.b1.dialogs(t)

	commitment.InstanceUID = newUID(t)
	res, err := w.b1.engine.Handle(context.Background(), commitment)
	require.NoError(t, err)
	require.Equal(t, protocol.OutcomeCancelled, res.Outcome)
	require.ErrorIs(t, res.Cause, trustsas.ErrCommitmentReplayed)

	require.Equal(t, before, w.b1.dialogs(t))
	require.Empty(t, w.b1.contacts(t))
	recs, err := w.b1.engine.Instances(w.bob.Identity)
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestRejectionCancelsEveryInviteeDevice(t *testing.T) {
	w := newWorld(t, true)
	instance := w.a1.invite(t, w.bob)
	w.run(t)

	res := acceptOn(t, w.b2, false)
	require.Equal(t, protocol.OutcomeCancelled, res.Outcome)
	require.ErrorIs(t, res.Cause, trustsas.ErrInvitationRejected)
	w.run(t)

	for _, d := range []*device{w.b1, w.b2} {
		d.noInstances(t)
		require.Empty(t, d.dialogs(t), d.name)
	}
	w.requireNoContacts(t)

	// The inviter is never told and gives up explicitly.
	require.Equal(t, trustsas.WaitingForSeedID, w.a1.state(t))
	res, err := w.a1.engine.Abort(domain.InstanceKey{Protocol: trustsas.ProtocolID, Owned: w.alice.Identity, UID: instance})
	require.NoError(t, err)
	require.ErrorIs(t, res.Cause, protocol.ErrAborted)
	w.a1.noInstances(t)
	require.Empty(t, w.a1.dialogs(t))
}

func TestFailedStepLeavesIdentityStoreUntouched(t *testing.T) {
	w := newWorld(t, false)
	w.a1.invite(t, w.bob)
	w.run(t)

	res := acceptOn(t, w.b1, true)
	require.Equal(t, protocol.OutcomeCancelled, res.Outcome)
	require.ErrorIs(t, res.Cause, store.ErrLocked)
	w.b1.noInstances(t)
	require.Empty(t, w.b1.dialogs(t))
	require.Zero(t, w.hub.Pending())
	w.requireNoContacts(t)
}

func TestPropagatedSASMismatchCancelsSibling(t *testing.T) {
	w := newWorld(t, true)
	instance := w.exchange(t)

	payload, err := protocol.EncodeMessage(&trustsas.PropagatedSas{
		ContactSas: offByOne(w.a1.dialog(t).SasToDisplay),
	})
	require.NoError(t, err)
	res, err := w.b2.engine.Handle(context.Background(), domain.ReceivedMessage{
		Protocol:       trustsas.ProtocolID,
		Owned:          w.bob.Identity,
		InstanceUID:    instance,
		Channel:        domain.ChannelOwnedDevices,
		RemoteIdentity: w.bob.Identity,
		RemoteDevice:   w.b1.uid,
		MessageID:      trustsas.PropagatedSasID,
		Payload:        payload,
	})
	require.NoError(t, err)
	require.Equal(t, protocol.OutcomeCancelled, res.Outcome)
	require.ErrorIs(t, res.Cause, trustsas.ErrSASMismatch)
	w.b2.noInstances(t)
}

func TestMutualTrustFromStrangerIsDropped(t *testing.T) {
	w := newWorld(t, true)
	instance := w.exchange(t)
	require.Equal(t, trustsas.ContactSASCheckedID, enterSAS(t, w.a1, w.b1.dialog(t).SasToDisplay).StateID)

	mallory := newOwned(t, "Mallory")
	payload, err := protocol.EncodeMessage(&trustsas.MutualTrustMessage{})
	require.NoError(t, err)
	res, err := w.a1.engine.Handle(context.Background(), domain.ReceivedMessage{
		Protocol:       trustsas.ProtocolID,
		Owned:          w.alice.Identity,
		InstanceUID:    instance,
		Channel:        domain.ChannelAsymmetricDevices,
		RemoteIdentity: mallory.Identity,
		RemoteDevice:   newUID(t),
		MessageID:      trustsas.MutualTrustMessageID,
		Payload:        payload,
	})
	require.NoError(t, err)
	require.Equal(t, protocol.OutcomeDropped, res.Outcome)
	require.ErrorIs(t, res.Cause, protocol.ErrWrongSender)
	require.Equal(t, trustsas.ContactSASCheckedID, w.a1.state(t))
	require.Empty(t, w.a1.contacts(t))
}

func TestLegacyTrustIsNotifiedOnly(t *testing.T) {
	w := newWorld(t, true)
	key := domain.InstanceKey{Protocol: trustsas.ProtocolID, Owned: w.alice.Identity, UID: newUID(t)}
	dialogID := domain.DialogID{7}

	rec, err := protocol.NewRecord(key, &trustsas.ContactIdentityTrustedLegacy{
		ContactIdentity: w.bob.Identity,
		ContactDetails:  w.bob.Details,
		DialogID:        dialogID,
	})
	require.NoError(t, err)
	require.NoError(t, w.a1.db.Update(func(tx domain.Tx) error { return tx.Instances().Save(rec) }))

	payload, err := protocol.EncodeMessage(&trustsas.MutualTrustMessage{})
	require.NoError(t, err)
	res, err := w.a1.engine.Handle(context.Background(), domain.ReceivedMessage{
		Protocol:       trustsas.ProtocolID,
		Owned:          w.alice.Identity,
		InstanceUID:    key.UID,
		Channel:        domain.ChannelAsymmetricDevices,
		RemoteIdentity: w.bob.Identity,
		RemoteDevice:   w.b1.uid,
		MessageID:      trustsas.MutualTrustMessageID,
		Payload:        payload,
	})
	require.NoError(t, err)
	require.Equal(t, protocol.OutcomeFinished, res.Outcome)
	require.Equal(t, "NotifiedMutualTrustEstablishedLegacy", res.Step)

	dlg := w.a1.dialog(t)
	require.Equal(t, dialogID, dlg.ID)
	require.Equal(t, domain.DialogMutualTrustConfirmed, dlg.Category)
	require.Empty(t, w.a1.contacts(t))
	w.a1.noInstances(t)
}

func TestInviteSelfIsRejected(t *testing.T) {
	w := newWorld(t, true)
	res := w.a1.inject(t, newUID(t), domain.ChannelLocal, &trustsas.InviteRequest{ContactIdentity: w.alice.Identity})
	require.Equal(t, protocol.OutcomeCancelled, res.Outcome)
	require.ErrorIs(t, res.Cause, trustsas.ErrInvalidInvite)
	w.a1.noInstances(t)
	require.Zero(t, w.hub.Pending())
}

func TestInviterSiblingFollowsTheExchange(t *testing.T) {
	w := newSiblingWorld(t)
	instance := w.exchange(t)

	// a2 learned the invite from a1 and opened the commitment to Bob too.
	a2 := w.a2.dialog(t)
	require.Equal(t, w.a1.dialog(t).SasToDisplay, a2.SasToDisplay)
	require.Equal(t, w.bob.Identity, a2.ContactIdentity)
	require.Equal(t, 1.0, testutil.ToFloat64(w.a2.metrics.Steps.WithLabelValues(trustsas.Name, "StoreDecommitment")))
	require.Equal(t, 1.0, testutil.ToFloat64(w.a2.metrics.Steps.WithLabelValues(trustsas.Name, "ShowSasDialogAndSendDecommitment")))

	w.confirmBoth(t, instance)
	require.Equal(t, 1.0, testutil.ToFloat64(w.a2.metrics.Steps.WithLabelValues(trustsas.Name, "CheckPropagatedSas")))
	require.Equal(t, 1.0, testutil.ToFloat64(w.a2.metrics.Steps.WithLabelValues(trustsas.Name, "AddTrust")))
	for _, d := range []*device{w.b1, w.b2} {
		// the second decommitment, from a2, never ran a step
		require.Equal(t, 1.0, testutil.ToFloat64(d.metrics.Steps.WithLabelValues(trustsas.Name, "ShowSasDialog")), d.name)
	}
}

func TestSeedBeforePropagatedInvite(t *testing.T) {
	w := newSiblingWorld(t)
	w.a2.hold = true

	instance := w.a1.invite(t, w.bob)
	w.run(t)
	res := acceptOn(t, w.b1, true)
	require.Equal(t, protocol.OutcomeAdvanced, res.Outcome, res.Cause)
	w.run(t)

	require.Len(t, w.a2.held, 2)
	require.Equal(t, trustsas.PropagatedInviteID, w.a2.held[0].MessageID)
	require.Equal(t, trustsas.SeedMessageID, w.a2.held[1].MessageID)
	w.a2.noInstances(t)

	results := w.a2.release(t, true)
	require.Equal(t, protocol.OutcomeParked, results[0].Outcome)
	require.Equal(t, protocol.OutcomeAdvanced, results[1].Outcome)
	require.Equal(t, "StoreDecommitment", results[1].Step)

	// the parked seed ran as soon as the instance existed
	require.Equal(t, trustsas.WaitingForUserSASID, w.a2.state(t))
	require.Equal(t, w.a1.dialog(t).SasToDisplay, w.a2.dialog(t).SasToDisplay)
	w.run(t)

	w.confirmBoth(t, instance)
}
