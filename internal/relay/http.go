package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"gopkg.in/op/go-logging.v1"

	"sastrust/internal/domain"
)

// Client is the HTTP relay client of one device.
type Client struct {
	Base string
	HTTP *http.Client

	log *logging.Logger
}

// NewClient returns a client for the relay at base.
func NewClient(base string, log *logging.Logger) *Client {
	return &Client{Base: base, HTTP: http.DefaultClient, log: log}
}

var _ domain.RelayClient = (*Client)(nil)

// RegisterDevice publishes a signed device registration.
func (c *Client) RegisterDevice(ctx context.Context, reg domain.DeviceRegistration) error {
	return c.post(ctx, "/register", reg, nil)
}

// Devices returns the registered devices of identity.
func (c *Client) Devices(ctx context.Context, identity domain.CryptoIdentity) ([]domain.UID, error) {
	var out []domain.UID
	if err := c.getJSON(ctx, "/devices/"+identity.String(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PostMessage implements domain.Transport.
func (c *Client) PostMessage(ctx context.Context, out domain.Outbound) error {
	var resp struct {
		Delivered int `json:"delivered"`
	}
	if err := c.post(ctx, "/msg", out, &resp); err != nil {
		return err
	}
	c.log.Debugf("Posted message %d on %s to %d devices", out.MessageID, out.Channel, resp.Delivered)
	return nil
}

// FetchMessages returns up to limit queued envelopes of device; all of them
// when limit is not positive.
func (c *Client) FetchMessages(ctx context.Context, device domain.UID, limit int) ([]domain.Envelope, error) {
	path := "/msg/" + url.PathEscape(device.String())
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var envs []domain.Envelope
	if err := c.getJSON(ctx, path, &envs); err != nil {
		return nil, err
	}
	return envs, nil
}

// AckMessages removes delivered envelopes from the queue of device.
func (c *Client) AckMessages(ctx context.Context, device domain.UID, seqs []uint64) error {
	if len(seqs) == 0 {
		return nil
	}
	return c.post(ctx, "/msg/"+url.PathEscape(device.String())+"/ack", ackRequest{Seqs: seqs}, nil)
}

type ackRequest struct {
	Seqs []uint64 `json:"seqs"`
}

func (c *Client) post(ctx context.Context, path string, in any, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("relay post %s: %s", path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("relay get %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
