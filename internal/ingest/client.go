package ingest

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// MessageHandler processes one firehose frame. messageType is the
// WebSocket frame type (text carries JSON, binary carries CBOR).
// Returning an error tears down the connection; handlers that want to
// skip a bad event should count it and return nil instead.
type MessageHandler func(messageType int, payload []byte) error

// Client consumes the engagement-event firehose over WebSocket. A lost
// connection is re-dialed with exponential backoff and jitter; the
// upstream replays nothing, so events emitted while disconnected are
// simply missed. The engine's in-memory counts tolerate that.
type Client struct {
	config  Config
	handler MessageHandler
	logger  *slog.Logger

	mu          sync.Mutex
	rng         *rand.Rand // protected by mu
	conn        *websocket.Conn
	isConnected bool

	// reconnectCount tracks consecutive failed dials (atomic). It resets
	// to zero on every successful connect.
	reconnectCount int64
}

// NewClient creates a firehose client. The handler is called once per
// received frame; a nil logger falls back to slog.Default.
func NewClient(config Config, handler MessageHandler, logger *slog.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config:  config,
		handler: handler,
		logger:  logger,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Run connects and consumes frames until ctx is cancelled, re-dialing
// with backoff whenever the connection drops. It returns ctx.Err() on
// cancellation and never gives up on its own; crossing
// MaxRetryAttempts raises the log severity so an operator notices a
// dead upstream.
func (c *Client) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("firehose client stopping")
			c.close()
			return ctx.Err()
		default:
		}

		if err := c.connect(ctx); err != nil {
			if waitErr := c.waitReconnect(ctx, err); waitErr != nil {
				return waitErr
			}
			continue
		}

		atomic.StoreInt64(&c.reconnectCount, 0)
		c.readLoop(ctx)
	}
}

// waitReconnect logs a failed dial and sleeps the backoff delay,
// returning early if ctx is cancelled.
func (c *Client) waitReconnect(ctx context.Context, dialErr error) error {
	c.logger.Warn("firehose connection failed",
		slog.String("error", dialErr.Error()),
		slog.Int64("attempt", atomic.LoadInt64(&c.reconnectCount)+1))

	delay := c.computeBackoff()
	attempts := atomic.AddInt64(&c.reconnectCount, 1)

	if c.config.MaxRetryAttempts > 0 && attempts >= c.config.MaxRetryAttempts {
		c.logger.Error("firehose reconnect attempts exceeded threshold",
			slog.Int64("attempts", attempts))
	}

	c.logger.Info("scheduling reconnect",
		slog.Duration("delay", delay),
		slog.Int64("attempt", attempts))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// connect dials the firehose endpoint.
func (c *Client) connect(ctx context.Context) error {
	c.logger.Info("connecting to firehose", slog.String("url", c.config.URL))

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.isConnected = true
	c.mu.Unlock()

	c.logger.Info("connected to firehose")
	return nil
}

// readLoop hands incoming frames to the handler until the connection
// closes. Payloads are never logged; they may carry user activity.
func (c *Client) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			return
		}

		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			c.logger.Warn("firehose connection closed",
				slog.String("error", err.Error()))
			c.close()
			return
		}

		if c.handler != nil {
			if err := c.handler(messageType, payload); err != nil {
				c.logger.Error("message handler error",
					slog.String("error", err.Error()))
				c.close()
				return
			}
		}
	}
}

// close tears down the WebSocket connection.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.isConnected = false
}

// computeBackoff returns the next reconnect delay:
// BaseDelay * 2^failures, capped at MaxDelay, with the shift itself
// capped at 30 bits to avoid overflow. JitterFactor spreads the result
// over [delay*(1-j/2), delay*(1+j/2)] so a fleet of consumers does not
// re-dial in lockstep.
func (c *Client) computeBackoff() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	shift := uint(atomic.LoadInt64(&c.reconnectCount))
	if shift > 30 {
		shift = 30
	}
	backoff := float64(c.config.BaseDelay) * float64(uint64(1)<<shift)

	if backoff > float64(c.config.MaxDelay) {
		backoff = float64(c.config.MaxDelay)
	}

	if c.config.JitterFactor > 0 {
		jitter := (c.rng.Float64() - 0.5) * c.config.JitterFactor
		backoff = backoff * (1 + jitter)
	}

	return time.Duration(backoff)
}

// IsConnected reports whether the client currently holds a live
// connection.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected
}
