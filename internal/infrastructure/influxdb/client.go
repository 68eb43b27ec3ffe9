package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/miplug-bridge/internal/infrastructure/config"
)

// MeasurementOutletState holds one point per power transition, field on=0|1.
const MeasurementOutletState = "outlet_state"

const (
	pingTimeout         = 5 * time.Second
	defaultBatchSize    = 100
	defaultFlushSeconds = 10
)

// Client queues outlet state points on the non-blocking write API. A nil or
// closed Client drops writes silently.
type Client struct {
	client influxdb2.Client
	writer api.WriteAPI
	open   atomic.Bool

	mu      sync.Mutex
	onError func(error)
}

// Connect returns ErrDisabled when the sink is switched off, and
// ErrConnectionFailed when the server does not answer a ping.
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batch, flush := batchSettings(cfg)
	flushMillis := (time.Duration(flush) * time.Second).Milliseconds()
	// #nosec G115 -- batchSettings only returns positive values
	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(batch)).
		SetFlushInterval(uint(flushMillis))
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	if err := ping(context.Background(), client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{client: client, writer: client.WriteAPI(cfg.Org, cfg.Bucket)}
	c.open.Store(true)
	go c.forwardErrors()
	return c, nil
}

func ping(ctx context.Context, client influxdb2.Client) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	ok, err := client.Ping(ctx)
	switch {
	case err != nil:
		return fmt.Errorf("ping: %w", err)
	case !ok:
		return fmt.Errorf("server not healthy")
	}
	return nil
}

// batchSettings replaces non-positive values with 100 points and 10 seconds.
func batchSettings(cfg config.InfluxDBConfig) (batchSize, flushSeconds int) {
	batchSize, flushSeconds = cfg.BatchSize, cfg.FlushInterval
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if flushSeconds <= 0 {
		flushSeconds = defaultFlushSeconds
	}
	return batchSize, flushSeconds
}

func (c *Client) forwardErrors() {
	for err := range c.writer.Errors() {
		c.mu.Lock()
		fn := c.onError
		c.mu.Unlock()
		if fn != nil {
			fn(err)
		}
	}
}

// SetOnError registers a callback for failed background batch writes.
func (c *Client) SetOnError(fn func(err error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

func (c *Client) IsConnected() bool {
	return c != nil && c.open.Load()
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if err := ping(ctx, c.client); err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	return nil
}

// WriteOutletState queues one transition.
func (c *Client) WriteOutletState(accessoryID string, on bool, source string, at time.Time) {
	if c.IsConnected() {
		c.writer.WritePoint(outletStatePoint(accessoryID, on, source, at))
	}
}

func outletStatePoint(accessoryID string, on bool, source string, at time.Time) *write.Point {
	p := influxdb2.NewPointWithMeasurement(MeasurementOutletState).
		AddTag("accessory_id", accessoryID).
		AddTag("source", source).
		SetTime(at)
	if on {
		return p.AddField("on", 1)
	}
	return p.AddField("on", 0)
}

// Flush blocks until queued points are sent.
func (c *Client) Flush() {
	if c.IsConnected() {
		c.writer.Flush()
	}
}

// Close flushes and releases the client. It is safe on a nil Client.
func (c *Client) Close() error {
	if c == nil || !c.open.CompareAndSwap(true, false) {
		return nil
	}
	c.writer.Flush()
	c.client.Close()
	return nil
}
