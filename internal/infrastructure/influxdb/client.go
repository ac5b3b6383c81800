package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-audio/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 // seconds
)

// Client writes audio bridge metrics to InfluxDB v2.
//
// Points are queued on the library's non-blocking write API and flushed in
// batches; write failures arrive later through the SetOnError callback.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	mu        sync.RWMutex
	connected bool

	// cbMu is separate from mu: the write API may report errors while
	// Close holds mu for the final flush.
	cbMu    sync.Mutex
	onError func(err error)
}

// Connect builds a client for cfg and pings the server once.
//
// Returns:
//   - *Client: Client ready for writes
//   - error: ErrDisabled, or ErrConnectionFailed when the ping fails
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(positiveOr(cfg.BatchSize, defaultBatchSize))).
		SetFlushInterval(uint(positiveOr(cfg.FlushInterval, defaultFlushInterval)) * uint(time.Second/time.Millisecond))
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	if err := ping(ctx, client, defaultConnectTimeout); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{
		client:    client,
		writeAPI:  client.WriteAPI(cfg.Org, cfg.Bucket),
		connected: true,
	}
	go c.forwardErrors(c.writeAPI.Errors())
	return c, nil
}

func positiveOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func ping(ctx context.Context, client influxdb2.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("server not healthy")
	}
	return nil
}

// forwardErrors hands asynchronous write failures to the callback.
// It ends when the write API closes the channel.
func (c *Client) forwardErrors(errs <-chan error) {
	for err := range errs {
		c.cbMu.Lock()
		callback := c.onError
		c.cbMu.Unlock()

		if callback != nil {
			callback(fmt.Errorf("%w: %w", ErrWriteFailed, err))
		}
	}
}

// Close flushes queued points and releases the client. Later calls, and
// calls on a zero Client, do nothing.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil || !c.connected {
		return nil
	}
	c.connected = false
	c.writeAPI.Flush()
	c.client.Close()
	return nil
}

// write hands p to the write API unless the client is closed. The lock
// keeps Close from shutting the API down mid-write.
func (c *Client) write(p *write.Point) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected {
		return
	}
	c.writeAPI.WritePoint(p)
}

// HealthCheck pings the server.
//
// Returns:
//   - error: ErrNotConnected after Close, or the ping failure
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if err := ping(ctx, c.client, defaultPingTimeout); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// IsConnected reports whether the client is open. It does not ping.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SetOnError registers the callback for failed batch writes.
// Errors passed to it wrap ErrWriteFailed.
func (c *Client) SetOnError(callback func(err error)) {
	c.cbMu.Lock()
	c.onError = callback
	c.cbMu.Unlock()
}

// Flush blocks until queued points are sent. It is a no-op after Close.
func (c *Client) Flush() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.writeAPI == nil || !c.connected {
		return
	}
	c.writeAPI.Flush()
}
