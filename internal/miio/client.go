package miio

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/miplug-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/miplug-bridge/internal/outlet"
)

// qos for gateway traffic. Requests are not retained.
const qos byte = 1

// MQTTClient is the subset of the MQTT client the relay needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Client talks to one plug through the gateway.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	mqtt    MQTTClient
	prefix  string
	address string
	token   string

	subMu      sync.Mutex
	subscribed bool

	pendingMu sync.Mutex
	pending   map[string]chan Response

	now func() time.Time
}

// New creates a relay client. It performs no I/O.
func New(client MQTTClient, prefix, address, token string) *Client {
	return &Client{
		mqtt:    client,
		prefix:  prefix,
		address: address,
		token:   token,
		pending: make(map[string]chan Response),
		now:     time.Now,
	}
}

// Dialer returns an outlet.DeviceDialer that builds relay clients sharing
// one MQTT connection. With a nil client every call fails with ErrRelay.
func Dialer(client MQTTClient, prefix string) outlet.DeviceDialer {
	return func(address, token string) outlet.DeviceClient {
		return New(client, prefix, address, token)
	}
}

// Get reads the plug's power property.
func (c *Client) Get(ctx context.Context) (bool, error) {
	result, err := c.call(ctx, MethodGetProp, []any{propPower})
	if err != nil {
		return false, err
	}

	switch result {
	case powerOn:
		return true, nil
	case powerOff:
		return false, nil
	default:
		return false, fmt.Errorf("%w: power=%q", ErrUnexpectedResult, result)
	}
}

// Set switches the plug and returns the confirmed state.
func (c *Client) Set(ctx context.Context, on bool) (bool, error) {
	result, err := c.call(ctx, MethodSetPower, []any{powerValue(on)})
	if err != nil {
		return false, err
	}
	if result != resultOK {
		return false, fmt.Errorf("%w: set_power returned %q", ErrUnexpectedResult, result)
	}
	return on, nil
}

// call sends one request and waits for the matching response. It returns
// the first result element as a string.
func (c *Client) call(ctx context.Context, method string, params []any) (string, error) {
	if err := c.ensureSubscribed(); err != nil {
		return "", err
	}

	req := Request{
		ID:        uuid.NewString(),
		Method:    method,
		Params:    params,
		Token:     c.token,
		Timestamp: c.now().UTC(),
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshalling %s request: %w", method, err)
	}

	ch := make(chan Response, 1)
	c.pendingMu.Lock()
	c.pending[req.ID] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, req.ID)
		c.pendingMu.Unlock()
	}()

	if err := c.mqtt.Publish(RequestTopic(c.prefix, c.address), payload, qos, false); err != nil {
		return "", fmt.Errorf("%w: %w", ErrRelay, err)
	}

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %s to %s: %w", ErrTimeout, method, c.address, ctx.Err())
	case resp := <-ch:
		if resp.Error != nil {
			return "", fmt.Errorf("%w: %w", ErrDevice, resp.Error)
		}
		if len(resp.Result) == 0 {
			return "", fmt.Errorf("%w: empty result for %s", ErrUnexpectedResult, method)
		}
		s, ok := resp.Result[0].(string)
		if !ok {
			return "", fmt.Errorf("%w: %s result %v", ErrUnexpectedResult, method, resp.Result[0])
		}
		return s, nil
	}
}

// ensureSubscribed subscribes to the response topic once. A failed attempt
// is retried on the next call.
func (c *Client) ensureSubscribed() error {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	if c.subscribed {
		return nil
	}
	if c.mqtt == nil {
		return fmt.Errorf("%w: no MQTT connection", ErrRelay)
	}
	if err := c.mqtt.Subscribe(ResponseTopic(c.prefix, c.address), qos, c.handleResponse); err != nil {
		return fmt.Errorf("%w: subscribing to responses for %q: %w", ErrRelay, c.address, err)
	}
	c.subscribed = true
	return nil
}

// handleResponse routes a gateway response to its waiting caller.
// Responses for unknown or expired IDs are dropped.
func (c *Client) handleResponse(_ string, payload []byte) error {
	var resp Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return fmt.Errorf("parsing gateway response: %w", err)
	}

	c.pendingMu.Lock()
	ch, ok := c.pending[resp.ID]
	c.pendingMu.Unlock()
	if !ok {
		return nil
	}

	select {
	case ch <- resp:
	default:
	}
	return nil
}
