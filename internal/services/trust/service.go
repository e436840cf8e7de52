package trust

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/op/go-logging.v1"

	"sastrust/internal/domain"
	"sastrust/internal/protocol"
	"sastrust/internal/protocol/trustsas"
)

var (
	// ErrUnknownDialog is returned for dialog ids that are not shown.
	ErrUnknownDialog = errors.New("trust: unknown dialog")
	// ErrUnexpectedDialog is returned when answering a dialog of another kind.
	ErrUnexpectedDialog = errors.New("trust: dialog does not take this answer")
	// ErrNoRelay is returned by Receive when no relay is configured.
	ErrNoRelay = errors.New("trust: no relay configured")
)

// Config holds the dependencies of a Service.
type Config struct {
	Engine *protocol.Engine
	DB     domain.Database
	// Relay is optional; without it messages arrive through Deliver only.
	Relay  domain.RelayClient
	Owned  domain.CryptoIdentity
	Device domain.UID
	Log    *logging.Logger
	Rand   io.Reader
	Clock  func() time.Time
}

// Service drives trust establishment for the owned identity of one device.
type Service struct {
	engine *protocol.Engine
	db     domain.Database
	relay  domain.RelayClient
	owned  domain.CryptoIdentity
	device domain.UID
	log    *logging.Logger
	rand   io.Reader
	clock  func() time.Time
}

// New returns a trust service.
func New(cfg Config) *Service {
	s := &Service{
		engine: cfg.Engine,
		db:     cfg.DB,
		relay:  cfg.Relay,
		owned:  cfg.Owned,
		device: cfg.Device,
		log:    cfg.Log,
		rand:   cfg.Rand,
		clock:  cfg.Clock,
	}
	if s.rand == nil {
		s.rand = rand.Reader
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	return s
}

// Invite starts trust establishment with contact and returns the instance.
func (s *Service) Invite(ctx context.Context, contact domain.CryptoIdentity, name string) (domain.UID, error) {
	instance, err := domain.NewUID(s.rand)
	if err != nil {
		return domain.UID{}, err
	}
	res, err := s.inject(ctx, instance, domain.ChannelLocal, &trustsas.InviteRequest{
		ContactIdentity: contact,
		ContactName:     name,
	})
	if err != nil {
		return domain.UID{}, err
	}
	if res.Outcome != protocol.OutcomeAdvanced {
		return domain.UID{}, fmt.Errorf("trust: invite %s: %s: %w", contact.Short(), res.Outcome, res.Cause)
	}
	return instance, nil
}

// RespondToInvite answers an accept-invite dialog.
func (s *Service) RespondToInvite(ctx context.Context, dialog domain.DialogID, accept bool) error {
	d, err := s.dialog(dialog, domain.DialogAcceptInvite)
	if err != nil {
		return err
	}
	res, err := s.inject(ctx, d.InstanceUID, domain.ChannelUserInterface, &trustsas.InviteResponse{
		DialogID: dialog,
		Accepted: accept,
	})
	if err != nil {
		return err
	}
	switch {
	case res.Outcome == protocol.OutcomeAdvanced:
		return nil
	case res.Outcome == protocol.OutcomeCancelled && errors.Is(res.Cause, trustsas.ErrInvitationRejected):
		return nil
	default:
		return fmt.Errorf("trust: respond to %s: %s: %w", dialog, res.Outcome, res.Cause)
	}
}

// EnterSAS submits the digits the user typed and returns the dialog as it
// stands afterwards. A wrong SAS leaves a sas-exchange dialog with a higher
// bad attempt count.
func (s *Service) EnterSAS(ctx context.Context, dialog domain.DialogID, sas string) (domain.Dialog, error) {
	d, err := s.dialog(dialog, domain.DialogSasExchange)
	if err != nil {
		return domain.Dialog{}, err
	}
	res, err := s.inject(ctx, d.InstanceUID, domain.ChannelUserInterface, &trustsas.SasEntry{
		DialogID: dialog,
		Sas:      sas,
	})
	if err != nil {
		return domain.Dialog{}, err
	}
	if res.Outcome == protocol.OutcomeDropped || res.Outcome == protocol.OutcomeCancelled {
		return domain.Dialog{}, fmt.Errorf("trust: enter SAS for %s: %s: %w", dialog, res.Outcome, res.Cause)
	}

	var (
		out   domain.Dialog
		found bool
	)
	err = s.db.View(func(tx domain.Tx) error {
		var err error
		out, found, err = tx.Dialogs().Get(dialog)
		return err
	})
	if err != nil {
		return domain.Dialog{}, err
	}
	if !found {
		out = d
		out.Category = domain.DialogDelete
	}
	return out, nil
}

// Deliver hands a message from another device to the engine.
func (s *Service) Deliver(ctx context.Context, msg domain.ReceivedMessage) error {
	res, err := s.engine.Handle(ctx, msg)
	if err != nil {
		return err
	}
	s.log.Debugf("Message %d from %s: %s", msg.MessageID, msg.RemoteDevice.Short(), res.Outcome)
	return nil
}

// Receive retries queued outbound messages, then fetches up to limit
// messages from the relay, delivers them in order and acknowledges the ones
// handled. It returns the number of messages delivered.
func (s *Service) Receive(ctx context.Context, limit int) (int, error) {
	if s.relay == nil {
		return 0, ErrNoRelay
	}
	if err := s.engine.Flush(ctx); err != nil {
		s.log.Warningf("Retrying outbox: %v", err)
	}
	envs, err := s.relay.FetchMessages(ctx, s.device, limit)
	if err != nil {
		return 0, err
	}

	var (
		done    []uint64
		failure error
	)
	for _, env := range envs {
		if env.ToDevice != s.device || env.Message.ToIdentity != s.owned {
			s.log.Warningf("Discarding envelope %d addressed to %s", env.Seq, env.ToDevice.Short())
			done = append(done, env.Seq)
			continue
		}
		if err := s.Deliver(ctx, env.Message.Receive(s.owned, s.clock())); err != nil {
			if errors.Is(err, protocol.ErrUnknownProtocol) {
				s.log.Warningf("Discarding envelope %d: %v", env.Seq, err)
				done = append(done, env.Seq)
				continue
			}
			failure = err
			break
		}
		done = append(done, env.Seq)
	}
	if err := s.relay.AckMessages(ctx, s.device, done); err != nil {
		return len(done), err
	}
	return len(done), failure
}

// Dialogs returns the dialogs currently shown.
func (s *Service) Dialogs() ([]domain.Dialog, error) {
	var out []domain.Dialog
	err := s.db.View(func(tx domain.Tx) error {
		var err error
		out, err = tx.Dialogs().List(s.owned)
		return err
	})
	return out, err
}

// Contacts returns the contacts of the owned identity.
func (s *Service) Contacts() ([]domain.Contact, error) {
	var out []domain.Contact
	err := s.db.View(func(tx domain.Tx) error {
		var err error
		out, err = tx.Identities().Contacts(s.owned)
		return err
	})
	return out, err
}

// Instances lists the live protocol instances.
func (s *Service) Instances() ([]domain.InstanceRecord, error) {
	return s.engine.Instances(s.owned)
}

// Abort cancels a live trust establishment.
func (s *Service) Abort(instance domain.UID) error {
	_, err := s.engine.Abort(domain.InstanceKey{
		Protocol: trustsas.ProtocolID,
		Owned:    s.owned,
		UID:      instance,
	})
	return err
}

// PurgePending drops parked messages older than olderThan.
func (s *Service) PurgePending(olderThan time.Duration) (int, error) {
	return s.engine.PurgePending(s.clock().Add(-olderThan))
}

func (s *Service) dialog(id domain.DialogID, want domain.DialogCategory) (domain.Dialog, error) {
	var (
		d     domain.Dialog
		found bool
	)
	if err := s.db.View(func(tx domain.Tx) error {
		var err error
		d, found, err = tx.Dialogs().Get(id)
		return err
	}); err != nil {
		return domain.Dialog{}, err
	}
	if !found || d.Owned != s.owned {
		return domain.Dialog{}, fmt.Errorf("%w: %s", ErrUnknownDialog, id)
	}
	if d.Category != want {
		return domain.Dialog{}, fmt.Errorf("%w: %s is %s", ErrUnexpectedDialog, id, d.Category)
	}
	return d, nil
}

func (s *Service) inject(ctx context.Context, instance domain.UID, ch domain.ChannelKind, m protocol.Message) (protocol.Result, error) {
	payload, err := protocol.EncodeMessage(m)
	if err != nil {
		return protocol.Result{}, err
	}
	return s.engine.Handle(ctx, domain.ReceivedMessage{
		Protocol:    trustsas.ProtocolID,
		Owned:       s.owned,
		InstanceUID: instance,
		Channel:     ch,
		MessageID:   m.MessageID(),
		Payload:     payload,
		ReceivedAt:  s.clock(),
	})
}

// Compile-time assertion that Service implements domain.TrustService.
var _ domain.TrustService = (*Service)(nil)
