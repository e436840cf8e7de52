package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gopkg.in/op/go-logging.v1"

	"sastrust/internal/domain"
)

// ErrOffline is returned by endpoints that were taken offline.
var ErrOffline = errors.New("transport: device offline")

// Handler consumes a message delivered to a device.
type Handler func(ctx context.Context, msg domain.ReceivedMessage) error

type delivery struct {
	to  domain.UID
	msg domain.ReceivedMessage
}

// Hub is an in-process network. Posted messages are queued and delivered
// one at a time by Step or Run, in posting order.
type Hub struct {
	log   *logging.Logger
	clock func() time.Time

	mu        sync.Mutex
	endpoints map[domain.UID]*Endpoint
	devices   map[domain.CryptoIdentity][]domain.UID
	queue     []delivery
}

// NewHub returns an empty network.
func NewHub(log *logging.Logger) *Hub {
	return &Hub{
		log:       log,
		clock:     time.Now,
		endpoints: make(map[domain.UID]*Endpoint),
		devices:   make(map[domain.CryptoIdentity][]domain.UID),
	}
}

// Endpoint is the attachment of one device to a Hub. It implements
// domain.Transport.
type Endpoint struct {
	hub      *Hub
	identity domain.CryptoIdentity
	device   domain.UID

	mu      sync.Mutex
	handler Handler
	offline bool
}

var _ domain.Transport = (*Endpoint)(nil)

// Attach registers device of identity. The handler may be set later with
// SetHandler, before the first delivery.
func (h *Hub) Attach(identity domain.CryptoIdentity, device domain.UID, handler Handler) *Endpoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ep, ok := h.endpoints[device]; ok {
		ep.SetHandler(handler)
		return ep
	}
	ep := &Endpoint{hub: h, identity: identity, device: device, handler: handler}
	h.endpoints[device] = ep
	h.devices[identity] = append(h.devices[identity], device)
	return ep
}

// Devices returns the devices attached for identity.
func (h *Hub) Devices(identity domain.CryptoIdentity) []domain.UID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.UID(nil), h.devices[identity]...)
}

// Pending returns the number of queued deliveries.
func (h *Hub) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.queue)
}

// Step delivers the oldest queued message. It reports false when the queue
// is empty.
func (h *Hub) Step(ctx context.Context) (bool, error) {
	h.mu.Lock()
	if len(h.queue) == 0 {
		h.mu.Unlock()
		return false, nil
	}
	d := h.queue[0]
	h.queue = h.queue[1:]
	ep := h.endpoints[d.to]
	h.mu.Unlock()

	ep.mu.Lock()
	handler := ep.handler
	ep.mu.Unlock()
	if handler == nil {
		h.log.Warningf("Device %s has no handler, message %d lost", d.to.Short(), d.msg.MessageID)
		return true, nil
	}
	if err := handler(ctx, d.msg); err != nil {
		return true, fmt.Errorf("transport: deliver %d to %s: %w", d.msg.MessageID, d.to.Short(), err)
	}
	return true, nil
}

// Run delivers until the queue is empty or max deliveries were made. A
// non-positive max means no limit.
func (h *Hub) Run(ctx context.Context, max int) (int, error) {
	n := 0
	for max <= 0 || n < max {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		ok, err := h.Step(ctx)
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		n++
	}
	return n, nil
}

func (h *Hub) post(out domain.Outbound) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	to, err := Route(out, func(id domain.CryptoIdentity) []domain.UID { return h.devices[id] })
	if err != nil {
		return err
	}
	at := h.clock()
	for _, u := range to {
		dst := h.endpoints[u]
		h.queue = append(h.queue, delivery{to: u, msg: out.Receive(dst.identity, at)})
	}
	h.log.Debugf("Queued message %d from %s for %d devices", out.MessageID, out.FromDevice.Short(), len(to))
	return nil
}

// Device returns the UID of the endpoint.
func (e *Endpoint) Device() domain.UID { return e.device }

// SetHandler replaces the delivery handler.
func (e *Endpoint) SetHandler(h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = h
}

// SetOffline makes PostMessage fail with ErrOffline while offline is true.
func (e *Endpoint) SetOffline(offline bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.offline = offline
}

// PostMessage implements domain.Transport.
func (e *Endpoint) PostMessage(ctx context.Context, out domain.Outbound) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	offline := e.offline
	e.mu.Unlock()
	if offline {
		return ErrOffline
	}
	if out.FromDevice != e.device || out.FromIdentity != e.identity {
		return fmt.Errorf("transport: endpoint %s cannot send as %s", e.device.Short(), out.FromDevice.Short())
	}
	return e.hub.post(out)
}
