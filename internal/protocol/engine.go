package protocol

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"gopkg.in/op/go-logging.v1"

	"sastrust/internal/domain"
)

// errRollback aborts a transaction without reporting a failure.
var errRollback = errors.New("protocol: rollback")

// Outcome summarizes what happened to a delivered message.
type Outcome int

const (
	// OutcomeDropped means the message was ignored.
	OutcomeDropped Outcome = iota
	// OutcomeParked means the message waits for a later state.
	OutcomeParked
	// OutcomeAdvanced means a step ran and the instance lives on.
	OutcomeAdvanced
	// OutcomeFinished means a step ran and reached a terminal success state.
	OutcomeFinished
	// OutcomeCancelled means the instance ended in failure.
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeParked:
		return "parked"
	case OutcomeAdvanced:
		return "advanced"
	case OutcomeFinished:
		return "finished"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "dropped"
	}
}

// Result reports the effect of delivering one message.
type Result struct {
	Outcome Outcome
	// Step is the name of the step that ran, if any.
	Step    string
	StateID domain.StateID
	// Cause explains drops and cancellations.
	Cause error
}

// Config wires an Engine to one device.
type Config struct {
	DB        domain.Database
	Transport domain.Transport
	// Device is the UID of the local device.
	Device  domain.UID
	Log     *logging.Logger
	Metrics *Metrics
	// Rand defaults to crypto/rand.Reader.
	Rand io.Reader
	// Clock defaults to time.Now.
	Clock func() time.Time
	// OnDialog, when set, observes every dialog change after it commits.
	OnDialog func(domain.Dialog)
}

// Engine runs protocol instances of one device.
type Engine struct {
	cfg  Config
	defs map[domain.ProtocolID]*Definition

	flushMu sync.Mutex
}

// New validates defs and returns an engine running them.
func New(cfg Config, defs ...*Definition) (*Engine, error) {
	if cfg.DB == nil || cfg.Transport == nil || cfg.Log == nil {
		return nil, errors.New("protocol: engine needs a database, a transport and a logger")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(nil)
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Reader
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	e := &Engine{cfg: cfg, defs: make(map[domain.ProtocolID]*Definition, len(defs))}
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := e.defs[d.ID]; dup {
			return nil, fmt.Errorf("protocol: duplicate protocol id %d", d.ID)
		}
		e.defs[d.ID] = d
	}
	return e, nil
}

// Definition returns the registered protocol with id.
func (e *Engine) Definition(id domain.ProtocolID) (*Definition, bool) {
	d, ok := e.defs[id]
	return d, ok
}

// Handle delivers msg, retries messages parked for its instance and flushes
// the outbox. Only database failures are returned as errors; protocol level
// failures are reported in the Result.
func (e *Engine) Handle(ctx context.Context, msg domain.ReceivedMessage) (Result, error) {
	def, ok := e.defs[msg.Protocol]
	if !ok {
		return Result{}, fmt.Errorf("%w: %d", ErrUnknownProtocol, msg.Protocol)
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = e.cfg.Clock()
	}

	res, err := e.apply(ctx, def, msg, 0)
	if err != nil {
		return res, err
	}
	if res.Outcome == OutcomeAdvanced {
		if err := e.retryParked(ctx, def, msg.Key()); err != nil {
			return res, err
		}
	}
	if err := e.Flush(ctx); err != nil {
		e.cfg.Log.Warningf("Flush after %s: %v", def.Name, err)
	}
	return res, nil
}

// apply runs one message against its instance. seq is the parked message
// sequence number when retrying, zero otherwise.
func (e *Engine) apply(ctx context.Context, def *Definition, msg domain.ReceivedMessage, seq uint64) (Result, error) {
	var (
		res     = Result{Outcome: OutcomeDropped}
		fatal   error
		failed  string
		dialogs []domain.Dialog
		key     = msg.Key()
	)

	err := e.cfg.DB.Update(func(tx domain.Tx) error {
		rec, found, err := tx.Instances().Load(key)
		if err != nil {
			return err
		}
		var from State = Initial{}
		if found {
			if from, err = DecodeState(def, rec.StateID, rec.State); err != nil {
				fatal = err
				return errRollback
			}
		}

		tr, ok := Lookup(def, from.StateID(), msg.MessageID, msg.Channel)
		if !ok {
			// A remote message may arrive before the step that creates or
			// advances its instance. Authenticated ones wait for retryParked.
			if !msg.Channel.Remote() || !Accepts(def, msg.MessageID, msg.Channel) {
				res.Cause = fmt.Errorf("%w: state %d message %d channel %s",
					ErrNoTransition, from.StateID(), msg.MessageID, msg.Channel)
				return errRollback
			}
			if err := e.authenticate(msg, from); err != nil {
				res.Cause = err
				return errRollback
			}
			res.Outcome = OutcomeParked
			if seq != 0 {
				return errRollback
			}
			return tx.Pending().Add(msg)
		}
		res.Step = tr.Name

		if err := e.authenticate(msg, from); err != nil {
			res.Cause = err
			return errRollback
		}
		m, err := DecodeMessage(def, msg.MessageID, msg.Payload)
		if err != nil {
			if found {
				fatal = err
			} else {
				res.Cause = err
			}
			return errRollback
		}

		sc := &StepContext{
			ctx:      ctx,
			def:      def,
			tx:       tx,
			Owned:    msg.Owned,
			Device:   e.cfg.Device,
			Instance: msg.InstanceUID,
			Received: msg,
			Now:      e.cfg.Clock(),
			Rand:     e.cfg.Rand,
			Log:      e.cfg.Log,
		}
		next, err := tr.Run(sc, from, m)
		switch {
		case errors.Is(err, ErrDrop):
			res.Cause = err
			return errRollback
		case err != nil:
			fatal, failed = fmt.Errorf("step %s: %w", tr.Name, err), tr.Name
			return errRollback
		case next == nil:
			fatal, failed = fmt.Errorf("step %s: no next state", tr.Name), tr.Name
			return errRollback
		}

		res.StateID = next.StateID()
		if c, ok := next.(Canceller); ok {
			res.Outcome = OutcomeCancelled
			res.Cause = c.CancelCause()
			d, err := e.endInstance(tx, key, from)
			if err != nil {
				return err
			}
			dialogs = append(sc.dialogs, d...)
		} else if def.Terminal(next.StateID()) {
			res.Outcome = OutcomeFinished
			if _, err := e.endInstance(tx, key, nil); err != nil {
				return err
			}
			dialogs = sc.dialogs
		} else {
			res.Outcome = OutcomeAdvanced
			b, err := EncodeState(next)
			if err != nil {
				return fmt.Errorf("protocol: encode state %d: %w", next.StateID(), err)
			}
			now := sc.Now
			created := rec.CreatedAt
			if !found {
				created = now
			}
			if err := tx.Instances().Save(domain.InstanceRecord{
				Protocol:  key.Protocol,
				Owned:     key.Owned,
				UID:       key.UID,
				StateID:   next.StateID(),
				State:     b,
				CreatedAt: created,
				UpdatedAt: now,
			}); err != nil {
				return err
			}
			dialogs = sc.dialogs
		}

		if seq != 0 {
			if err := tx.Pending().Remove(seq); err != nil {
				return err
			}
		}
		for _, out := range sc.outbound {
			if err := tx.Outbox().Enqueue(out); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, errRollback) {
		err = nil
	}
	if err != nil {
		e.cfg.Log.Errorf("%s %s: database failure: %v", def.Name, key.UID.Short(), err)
		return res, err
	}

	if fatal != nil {
		return e.cancel(def, key, failed, fatal)
	}

	protocol := def.Name
	switch res.Outcome {
	case OutcomeDropped:
		e.cfg.Metrics.Dropped.WithLabelValues(protocol).Inc()
		e.cfg.Log.Debugf("%s %s: dropped message %d on %s: %v",
			protocol, key.UID.Short(), msg.MessageID, msg.Channel, res.Cause)
		if seq != 0 {
			if err := e.removeParked(seq); err != nil {
				return res, err
			}
		}
	case OutcomeParked:
		if seq != 0 {
			break
		}
		e.cfg.Metrics.Parked.WithLabelValues(protocol).Inc()
		e.cfg.Log.Debugf("%s %s: parked message %d", protocol, key.UID.Short(), msg.MessageID)
	case OutcomeCancelled:
		e.cfg.Metrics.Steps.WithLabelValues(protocol, res.Step).Inc()
		e.cfg.Metrics.Cancellations.WithLabelValues(protocol).Inc()
		e.cfg.Log.Noticef("%s %s: %s cancelled the instance: %v", protocol, key.UID.Short(), res.Step, res.Cause)
	default:
		e.cfg.Metrics.Steps.WithLabelValues(protocol, res.Step).Inc()
		e.cfg.Log.Infof("%s %s: %s -> state %d", protocol, key.UID.Short(), res.Step, res.StateID)
	}
	e.notify(dialogs)
	return res, nil
}

// authenticate checks the sender of msg against its channel and the state.
func (e *Engine) authenticate(msg domain.ReceivedMessage, from State) error {
	switch msg.Channel {
	case domain.ChannelOwnedDevices:
		if msg.RemoteIdentity != msg.Owned {
			return fmt.Errorf("%w: owned-device message from %s", ErrWrongSender, msg.RemoteIdentity.Short())
		}
		if msg.RemoteDevice == e.cfg.Device {
			return fmt.Errorf("%w: echo of own message", ErrWrongSender)
		}
	case domain.ChannelAsymmetricBroadcast, domain.ChannelAsymmetricDevices:
		if msg.RemoteIdentity == msg.Owned || msg.RemoteIdentity.IsZero() {
			return fmt.Errorf("%w: contact message from %s", ErrWrongSender, msg.RemoteIdentity.Short())
		}
		if p, ok := from.(PeerBound); ok && p.Peer() != msg.RemoteIdentity {
			return fmt.Errorf("%w: expected %s, got %s", ErrWrongSender, p.Peer().Short(), msg.RemoteIdentity.Short())
		}
	default:
		if !msg.RemoteIdentity.IsZero() {
			return fmt.Errorf("%w: %s message from remote identity", ErrWrongSender, msg.Channel)
		}
	}
	return nil
}

// endInstance deletes the instance and its parked messages. When from owns a
// dialog, the dialog is deleted and the delete event returned.
func (e *Engine) endInstance(tx domain.Tx, key domain.InstanceKey, from State) ([]domain.Dialog, error) {
	if err := tx.Instances().Delete(key); err != nil {
		return nil, err
	}
	if err := tx.Pending().DeleteInstance(key); err != nil {
		return nil, err
	}
	holder, ok := from.(DialogBound)
	if !ok || holder.Dialog() == (domain.DialogID{}) {
		return nil, nil
	}
	if err := tx.Dialogs().Delete(holder.Dialog()); err != nil {
		return nil, err
	}
	return []domain.Dialog{{
		ID:          holder.Dialog(),
		Owned:       key.Owned,
		Protocol:    key.Protocol,
		InstanceUID: key.UID,
		Category:    domain.DialogDelete,
		UpdatedAt:   e.cfg.Clock(),
	}}, nil
}

// cancel ends the instance in its own transaction. step names the step that
// failed, if one ran.
func (e *Engine) cancel(def *Definition, key domain.InstanceKey, step string, cause error) (Result, error) {
	res := Result{Outcome: OutcomeCancelled, Step: step, Cause: cause}
	var dialogs []domain.Dialog
	err := e.cfg.DB.Update(func(tx domain.Tx) error {
		rec, found, err := tx.Instances().Load(key)
		if err != nil || !found {
			return err
		}
		res.StateID = rec.StateID
		from, derr := DecodeState(def, rec.StateID, rec.State)
		if derr != nil {
			from = nil
		}
		dialogs, err = e.endInstance(tx, key, from)
		return err
	})
	if err != nil {
		e.cfg.Log.Errorf("%s %s: cancel: %v", def.Name, key.UID.Short(), err)
		return res, err
	}
	if step != "" {
		e.cfg.Metrics.Steps.WithLabelValues(def.Name, step).Inc()
	}
	e.cfg.Metrics.Cancellations.WithLabelValues(def.Name).Inc()
	e.cfg.Log.Noticef("%s %s: cancelled: %v", def.Name, key.UID.Short(), cause)
	e.notify(dialogs)
	return res, nil
}

// retryParked replays parked messages of key until none applies.
func (e *Engine) retryParked(ctx context.Context, def *Definition, key domain.InstanceKey) error {
	for {
		var parked []domain.PendingMessage
		if err := e.cfg.DB.View(func(tx domain.Tx) error {
			var err error
			parked, err = tx.Pending().List(key)
			return err
		}); err != nil {
			return err
		}

		progressed := false
		for _, p := range parked {
			res, err := e.apply(ctx, def, p.Message, p.Seq)
			if err != nil {
				return err
			}
			switch res.Outcome {
			case OutcomeFinished, OutcomeCancelled:
				return nil
			case OutcomeAdvanced:
				progressed = true
			}
			if progressed {
				break
			}
		}
		if !progressed {
			return nil
		}
	}
}

func (e *Engine) removeParked(seq uint64) error {
	return e.cfg.DB.Update(func(tx domain.Tx) error {
		return tx.Pending().Remove(seq)
	})
}

func (e *Engine) notify(dialogs []domain.Dialog) {
	if e.cfg.OnDialog == nil {
		return
	}
	for _, d := range dialogs {
		e.cfg.OnDialog(d)
	}
}

// Flush posts queued outbound messages. Messages for sibling devices are
// dropped when posting fails; others stay queued and the first such error is
// returned.
func (e *Engine) Flush(ctx context.Context) error {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	var queued []domain.QueuedOutbound
	if err := e.cfg.DB.View(func(tx domain.Tx) error {
		var err error
		queued, err = tx.Outbox().List()
		return err
	}); err != nil {
		return err
	}

	var firstErr error
	for _, q := range queued {
		if err := e.cfg.Transport.PostMessage(ctx, q.Outbound); err != nil {
			if q.Outbound.Channel != domain.ChannelOwnedDevices {
				e.cfg.Log.Warningf("Post message %d to %s: %v", q.Outbound.MessageID, q.Outbound.ToIdentity.Short(), err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			e.cfg.Log.Warningf("Propagate message %d to owned devices: %v", q.Outbound.MessageID, err)
		}
		if err := e.cfg.DB.Update(func(tx domain.Tx) error {
			return tx.Outbox().Remove(q.Seq)
		}); err != nil {
			return err
		}
	}
	return firstErr
}

// Instances lists the live instances of owned.
func (e *Engine) Instances(owned domain.CryptoIdentity) ([]domain.InstanceRecord, error) {
	var out []domain.InstanceRecord
	err := e.cfg.DB.View(func(tx domain.Tx) error {
		var err error
		out, err = tx.Instances().List(owned)
		return err
	})
	return out, err
}

// Abort cancels a live instance and deletes its dialog.
func (e *Engine) Abort(key domain.InstanceKey) (Result, error) {
	def, ok := e.defs[key.Protocol]
	if !ok {
		return Result{}, fmt.Errorf("%w: %d", ErrUnknownProtocol, key.Protocol)
	}
	var found bool
	if err := e.cfg.DB.View(func(tx domain.Tx) error {
		var err error
		_, found, err = tx.Instances().Load(key)
		return err
	}); err != nil {
		return Result{}, err
	}
	if !found {
		return Result{}, fmt.Errorf("protocol: instance %s: %w", key.UID.Short(), domain.ErrNotFound)
	}
	return e.cancel(def, key, "", ErrAborted)
}

// PurgePending removes parked messages received before olderThan.
func (e *Engine) PurgePending(olderThan time.Time) (int, error) {
	var n int
	err := e.cfg.DB.Update(func(tx domain.Tx) error {
		var err error
		n, err = tx.Pending().Purge(olderThan)
		return err
	})
	if n > 0 {
		e.cfg.Log.Infof("Purged %d parked messages", n)
	}
	return n, err
}
