package trustsas

import (
	"crypto/subtle"
	"fmt"

	"gopkg.in/op/go-logging.v1"

	"sastrust/internal/crypto"
	"sastrust/internal/domain"
	"sastrust/internal/protocol"
)

type steps struct {
	digits int
	log    *logging.Logger
}

func (s *steps) sendCommitment(sc *protocol.StepContext, _ protocol.State, m protocol.Message) (protocol.State, error) {
	req := m.(*InviteRequest)
	if req.ContactIdentity.IsZero() || req.ContactIdentity == sc.Owned {
		return nil, fmt.Errorf("%w: contact %s", ErrInvalidInvite, req.ContactIdentity.Short())
	}
	ids := sc.Identities()

	seed, err := crypto.NewSeed(sc.Rand)
	if err != nil {
		return nil, err
	}
	commitment, decommitment, err := crypto.Commit(sc.Owned.Bytes(), seed[:], sc.Rand)
	if err != nil {
		return nil, err
	}
	details, err := ids.OwnedIdentityDetails(sc.Owned)
	if err != nil {
		return nil, err
	}
	devices, err := ids.DeviceUIDs(sc.Owned)
	if err != nil {
		return nil, err
	}
	dialogID, err := sc.NewDialogID()
	if err != nil {
		return nil, err
	}

	sc.Propagate(&PropagatedInvite{
		ContactIdentity: req.ContactIdentity,
		ContactName:     req.ContactName,
		Decommitment:    decommitment,
		Seed:            seed,
	})
	if err := sc.Broadcast(req.ContactIdentity, &CommitmentMessage{
		ContactDetails:    details,
		ContactDeviceUIDs: devices,
		Commitment:        commitment,
	}); err != nil {
		return nil, err
	}
	if err := sc.ShowDialog(domain.Dialog{
		ID:              dialogID,
		Category:        domain.DialogInviteSent,
		ContactIdentity: req.ContactIdentity,
		ContactName:     req.ContactName,
	}); err != nil {
		return nil, err
	}
	s.log.Infof("Invited %s", req.ContactIdentity.Short())

	return &WaitingForSeed{
		ContactIdentity: req.ContactIdentity,
		ContactName:     req.ContactName,
		Decommitment:    decommitment,
		OwnSeed:         seed,
		DialogID:        dialogID,
	}, nil
}

func (s *steps) storeDecommitment(sc *protocol.StepContext, _ protocol.State, m protocol.Message) (protocol.State, error) {
	inv := m.(*PropagatedInvite)
	if inv.ContactIdentity.IsZero() || inv.ContactIdentity == sc.Owned {
		return nil, fmt.Errorf("%w: propagated invite for %s", ErrMalformedMessage, inv.ContactIdentity.Short())
	}
	dialogID, err := sc.NewDialogID()
	if err != nil {
		return nil, err
	}
	if err := sc.ShowDialog(domain.Dialog{
		ID:              dialogID,
		Category:        domain.DialogInviteSent,
		ContactIdentity: inv.ContactIdentity,
		ContactName:     inv.ContactName,
	}); err != nil {
		return nil, err
	}
	return &WaitingForSeed{
		ContactIdentity: inv.ContactIdentity,
		ContactName:     inv.ContactName,
		Decommitment:    inv.Decommitment,
		OwnSeed:         inv.Seed,
		DialogID:        dialogID,
	}, nil
}

func (s *steps) showSasDialogAndSendDecommitment(sc *protocol.StepContext, from protocol.State, m protocol.Message) (protocol.State, error) {
	st := from.(*WaitingForSeed)
	seed := m.(*SeedMessage)
	if len(seed.ContactDeviceUIDs) == 0 {
		return nil, fmt.Errorf("%w: seed message lists no devices", ErrMalformedMessage)
	}

	if err := sc.SendToDevices(st.ContactIdentity, seed.ContactDeviceUIDs, &DecommitmentMessage{
		Decommitment: st.Decommitment,
	}); err != nil {
		return nil, err
	}

	next := &WaitingForUserSAS{
		ContactIdentity:   st.ContactIdentity,
		ContactDetails:    seed.ContactDetails,
		ContactDeviceUIDs: seed.ContactDeviceUIDs,
		OwnSeed:           st.OwnSeed,
		PeerSeed:          seed.Seed,
		DialogID:          st.DialogID,
		IsInitiator:       true,
	}
	if err := s.showSasExchange(sc, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *steps) storeAndPropagateCommitment(sc *protocol.StepContext, _ protocol.State, m protocol.Message) (protocol.State, error) {
	cm := m.(*CommitmentMessage)
	contact := sc.Received.RemoteIdentity

	next, err := s.acceptCommitment(sc, contact, cm.ContactDetails, cm.ContactDeviceUIDs, cm.Commitment)
	if err != nil {
		return nil, err
	}
	if _, cancelled := next.(*Cancelled); cancelled {
		return next, nil
	}
	sc.Propagate(&PropagatedCommitment{
		ContactIdentity:   contact,
		ContactDetails:    cm.ContactDetails,
		ContactDeviceUIDs: cm.ContactDeviceUIDs,
		Commitment:        cm.Commitment,
	})
	return next, nil
}

func (s *steps) storeCommitmentAndAskForConfirmation(sc *protocol.StepContext, _ protocol.State, m protocol.Message) (protocol.State, error) {
	pc := m.(*PropagatedCommitment)
	if pc.ContactIdentity.IsZero() || pc.ContactIdentity == sc.Owned {
		return nil, fmt.Errorf("%w: propagated commitment for %s", ErrMalformedMessage, pc.ContactIdentity.Short())
	}
	return s.acceptCommitment(sc, pc.ContactIdentity, pc.ContactDetails, pc.ContactDeviceUIDs, pc.Commitment)
}

// acceptCommitment records a first-seen commitment in the replay guard and
// asks the user whether to accept the invite.
func (s *steps) acceptCommitment(
	sc *protocol.StepContext,
	contact domain.CryptoIdentity,
	details domain.CoreDetails,
	devices []domain.UID,
	commitment []byte,
) (protocol.State, error) {
	if len(commitment) != crypto.CommitmentSize {
		return nil, fmt.Errorf("%w: commitment of %d bytes", ErrMalformedMessage, len(commitment))
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("%w: commitment lists no devices", ErrMalformedMessage)
	}
	guard := sc.Commitments()
	seen, err := guard.Exists(sc.Owned, commitment)
	if err != nil {
		return nil, err
	}
	if seen {
		s.log.Noticef("Rejected replayed commitment from %s", contact.Short())
		return &Cancelled{Cause: ErrCommitmentReplayed}, nil
	}
	if err := guard.Insert(sc.Owned, commitment); err != nil {
		return nil, err
	}

	dialogID, err := sc.NewDialogID()
	if err != nil {
		return nil, err
	}
	if err := sc.ShowDialog(domain.Dialog{
		ID:              dialogID,
		Category:        domain.DialogAcceptInvite,
		ContactIdentity: contact,
		ContactName:     details.FullDisplayName(),
	}); err != nil {
		return nil, err
	}
	return &WaitingForConfirmation{
		ContactIdentity:   contact,
		ContactDetails:    details,
		ContactDeviceUIDs: devices,
		Commitment:        commitment,
		DialogID:          dialogID,
	}, nil
}

func (s *steps) sendSeedAndPropagateConfirmation(sc *protocol.StepContext, from protocol.State, m protocol.Message) (protocol.State, error) {
	st := from.(*WaitingForConfirmation)
	resp := m.(*InviteResponse)
	if resp.DialogID != st.DialogID {
		return nil, fmt.Errorf("%w: response to dialog %s", protocol.ErrDrop, resp.DialogID)
	}
	sc.Propagate(&PropagatedConfirmation{Accepted: resp.Accepted})
	return s.confirm(sc, st, resp.Accepted, true)
}

func (s *steps) receiveConfirmationFromOtherDevice(sc *protocol.StepContext, from protocol.State, m protocol.Message) (protocol.State, error) {
	return s.confirm(sc, from.(*WaitingForConfirmation), m.(*PropagatedConfirmation).Accepted, false)
}

// confirm applies the user's decision. Only the device the user answered on
// sends the seed to the peer; siblings derive the same seed on their own.
func (s *steps) confirm(sc *protocol.StepContext, st *WaitingForConfirmation, accepted, sendSeed bool) (protocol.State, error) {
	if !accepted {
		return &Cancelled{Cause: ErrInvitationRejected}, nil
	}
	ids := sc.Identities()
	seed, err := ids.DeterministicSeed(sc.Owned, st.Commitment)
	if err != nil {
		return nil, err
	}
	if sendSeed {
		details, err := ids.OwnedIdentityDetails(sc.Owned)
		if err != nil {
			return nil, err
		}
		devices, err := ids.DeviceUIDs(sc.Owned)
		if err != nil {
			return nil, err
		}
		if err := sc.SendToDevices(st.ContactIdentity, st.ContactDeviceUIDs, &SeedMessage{
			ContactDeviceUIDs: devices,
			Seed:              seed,
			ContactDetails:    details,
		}); err != nil {
			return nil, err
		}
	}
	if err := sc.ShowDialog(domain.Dialog{
		ID:              st.DialogID,
		Category:        domain.DialogInvitationAccepted,
		ContactIdentity: st.ContactIdentity,
		ContactName:     st.ContactDetails.FullDisplayName(),
	}); err != nil {
		return nil, err
	}
	return &WaitingForDecommitment{
		ContactIdentity:   st.ContactIdentity,
		ContactDetails:    st.ContactDetails,
		ContactDeviceUIDs: st.ContactDeviceUIDs,
		Commitment:        st.Commitment,
		Seed:              seed,
		DialogID:          st.DialogID,
	}, nil
}

func (s *steps) showSasDialog(sc *protocol.StepContext, from protocol.State, m protocol.Message) (protocol.State, error) {
	st := from.(*WaitingForDecommitment)
	value, err := crypto.Open(st.Commitment, st.ContactIdentity.Bytes(), m.(*DecommitmentMessage).Decommitment)
	if err != nil {
		return &Cancelled{Cause: fmt.Errorf("%w: %v", ErrDecommitmentInvalid, err)}, nil
	}
	if len(value) != domain.SeedSize {
		return &Cancelled{Cause: fmt.Errorf("%w: seed of %d bytes", ErrDecommitmentInvalid, len(value))}, nil
	}
	var peerSeed domain.Seed
	copy(peerSeed[:], value)

	next := &WaitingForUserSAS{
		ContactIdentity:   st.ContactIdentity,
		ContactDetails:    st.ContactDetails,
		ContactDeviceUIDs: st.ContactDeviceUIDs,
		OwnSeed:           st.Seed,
		PeerSeed:          peerSeed,
		DialogID:          st.DialogID,
	}
	if err := s.showSasExchange(sc, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *steps) showSasExchange(sc *protocol.StepContext, st *WaitingForUserSAS) error {
	display, _, err := st.halves(sc.Owned, s.digits)
	if err != nil {
		return err
	}
	return sc.ShowDialog(domain.Dialog{
		ID:              st.DialogID,
		Category:        domain.DialogSasExchange,
		ContactIdentity: st.ContactIdentity,
		ContactName:     st.ContactDetails.FullDisplayName(),
		SasToDisplay:    display,
		BadAttempts:     st.BadAttempts,
	})
}

func (s *steps) checkSas(sc *protocol.StepContext, from protocol.State, m protocol.Message) (protocol.State, error) {
	st := from.(*WaitingForUserSAS)
	entry := m.(*SasEntry)
	if entry.DialogID != st.DialogID {
		return nil, fmt.Errorf("%w: SAS for dialog %s", protocol.ErrDrop, entry.DialogID)
	}
	_, expected, err := st.halves(sc.Owned, s.digits)
	if err != nil {
		return nil, err
	}
	if !sasEqual(entry.Sas, expected) {
		next := *st
		next.BadAttempts++
		s.log.Noticef("Wrong SAS for %s, attempt %d", st.ContactIdentity.Short(), next.BadAttempts)
		if err := s.showSasExchange(sc, &next); err != nil {
			return nil, err
		}
		return &next, nil
	}

	sc.Propagate(&PropagatedSas{ContactSas: entry.Sas})
	if err := s.showSasConfirmed(sc, st); err != nil {
		return nil, err
	}
	if err := sc.SendToDevices(st.ContactIdentity, st.ContactDeviceUIDs, &MutualTrustMessage{}); err != nil {
		return nil, err
	}
	return checked(st), nil
}

func (s *steps) checkPropagatedSas(sc *protocol.StepContext, from protocol.State, m protocol.Message) (protocol.State, error) {
	st := from.(*WaitingForUserSAS)
	_, expected, err := st.halves(sc.Owned, s.digits)
	if err != nil {
		return nil, err
	}
	if !sasEqual(m.(*PropagatedSas).ContactSas, expected) {
		return &Cancelled{Cause: ErrSASMismatch}, nil
	}
	if err := s.showSasConfirmed(sc, st); err != nil {
		return nil, err
	}
	return checked(st), nil
}

func (s *steps) showSasConfirmed(sc *protocol.StepContext, st *WaitingForUserSAS) error {
	return sc.ShowDialog(domain.Dialog{
		ID:              st.DialogID,
		Category:        domain.DialogSasConfirmed,
		ContactIdentity: st.ContactIdentity,
		ContactName:     st.ContactDetails.FullDisplayName(),
	})
}

func (s *steps) addTrust(sc *protocol.StepContext, from protocol.State, _ protocol.Message) (protocol.State, error) {
	st := from.(*ContactSASChecked)
	ids := sc.Identities()
	origin := domain.TrustOrigin{Kind: domain.TrustOriginDirect, Timestamp: sc.Now}

	known, err := ids.IsContact(st.ContactIdentity, sc.Owned)
	if err != nil {
		return nil, err
	}
	if known {
		err = ids.AddTrustOriginIfIncreased(origin, st.ContactIdentity, sc.Owned)
	} else {
		err = ids.AddContact(st.ContactIdentity, st.ContactDetails, origin, sc.Owned, true)
	}
	if err != nil {
		return nil, err
	}
	if err := ids.AddContactDevice(st.ContactIdentity, sc.Received.RemoteDevice, sc.Owned); err != nil {
		return nil, err
	}
	s.log.Infof("Trust established with %s", st.ContactIdentity.Short())

	if err := s.showMutualTrust(sc, st.DialogID, st.ContactIdentity, st.ContactDetails); err != nil {
		return nil, err
	}
	return &MutualTrustConfirmed{}, nil
}

func (s *steps) notifiedMutualTrustLegacy(sc *protocol.StepContext, from protocol.State, _ protocol.Message) (protocol.State, error) {
	st := from.(*ContactIdentityTrustedLegacy)
	if err := s.showMutualTrust(sc, st.DialogID, st.ContactIdentity, st.ContactDetails); err != nil {
		return nil, err
	}
	return &MutualTrustConfirmed{}, nil
}

func (s *steps) showMutualTrust(sc *protocol.StepContext, id domain.DialogID, contact domain.CryptoIdentity, details domain.CoreDetails) error {
	return sc.ShowDialog(domain.Dialog{
		ID:              id,
		Category:        domain.DialogMutualTrustConfirmed,
		ContactIdentity: contact,
		ContactName:     details.FullDisplayName(),
	})
}

func checked(st *WaitingForUserSAS) *ContactSASChecked {
	return &ContactSASChecked{
		ContactIdentity:   st.ContactIdentity,
		ContactDetails:    st.ContactDetails,
		ContactDeviceUIDs: st.ContactDeviceUIDs,
		DialogID:          st.DialogID,
	}
}

func sasEqual(entered, expected string) bool {
	return len(entered) == len(expected) &&
		subtle.ConstantTimeCompare([]byte(entered), []byte(expected)) == 1
}
