package protocol

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gofrs/uuid"
	"gopkg.in/op/go-logging.v1"

	"sastrust/internal/domain"
)

// StepContext is what a step sees of the world. Writes made through it
// belong to the step's transaction.
type StepContext struct {
	ctx context.Context
	def *Definition
	tx  domain.Tx

	// Owned is the identity the instance runs for, Device the local device.
	Owned    domain.CryptoIdentity
	Device   domain.UID
	Instance domain.UID
	// Received is the message being processed.
	Received domain.ReceivedMessage
	Now      time.Time
	Rand     io.Reader
	Log      *logging.Logger

	outbound []domain.Outbound
	dialogs  []domain.Dialog
}

// Context returns the context of the delivery.
func (c *StepContext) Context() context.Context { return c.ctx }

// Identities returns the identity store of the transaction.
func (c *StepContext) Identities() domain.IdentityStore { return c.tx.Identities() }

// Commitments returns the replay guard of the transaction.
func (c *StepContext) Commitments() domain.ReplayGuard { return c.tx.Commitments() }

func (c *StepContext) outboundFor(channel domain.ChannelKind, msg Message) (domain.Outbound, error) {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return domain.Outbound{}, fmt.Errorf("encode message %d: %w", msg.MessageID(), err)
	}
	return domain.Outbound{
		Channel:      channel,
		FromIdentity: c.Owned,
		FromDevice:   c.Device,
		Protocol:     c.def.ID,
		InstanceUID:  c.Instance,
		MessageID:    msg.MessageID(),
		Payload:      payload,
	}, nil
}

// Broadcast queues msg for every device of identity to.
func (c *StepContext) Broadcast(to domain.CryptoIdentity, msg Message) error {
	out, err := c.outboundFor(domain.ChannelAsymmetricBroadcast, msg)
	if err != nil {
		return err
	}
	out.ToIdentity = to
	c.outbound = append(c.outbound, out)
	return nil
}

// SendToDevices queues msg for the listed devices of identity to.
func (c *StepContext) SendToDevices(to domain.CryptoIdentity, devices []domain.UID, msg Message) error {
	if len(devices) == 0 {
		return fmt.Errorf("send message %d: no devices for %s", msg.MessageID(), to.Short())
	}
	out, err := c.outboundFor(domain.ChannelAsymmetricDevices, msg)
	if err != nil {
		return err
	}
	out.ToIdentity = to
	out.ToDevices = append([]domain.UID(nil), devices...)
	c.outbound = append(c.outbound, out)
	return nil
}

// Propagate queues msg for the other devices of the owned identity. It is
// best effort: failures are logged and the step goes on.
func (c *StepContext) Propagate(msg Message) {
	others, err := c.tx.Identities().OtherDeviceUIDs(c.Owned)
	if err != nil {
		c.Log.Warningf("Propagate %d: listing owned devices: %v", msg.MessageID(), err)
		return
	}
	if len(others) == 0 {
		return
	}
	out, err := c.outboundFor(domain.ChannelOwnedDevices, msg)
	if err != nil {
		c.Log.Warningf("Propagate %d: %v", msg.MessageID(), err)
		return
	}
	out.ToIdentity = c.Owned
	out.ToDevices = others
	c.outbound = append(c.outbound, out)
}

// NewDialogID returns a fresh dialog identifier.
func (c *StepContext) NewDialogID() (domain.DialogID, error) {
	return uuid.NewV4()
}

// ShowDialog stores d as the current dialog of the instance.
func (c *StepContext) ShowDialog(d domain.Dialog) error {
	d.Owned = c.Owned
	d.Protocol = c.def.ID
	d.InstanceUID = c.Instance
	d.UpdatedAt = c.Now
	if err := c.tx.Dialogs().Put(d); err != nil {
		return fmt.Errorf("show dialog %s: %w", d.Category, err)
	}
	c.dialogs = append(c.dialogs, d)
	return nil
}
