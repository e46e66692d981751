package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/kartracer/kartsim/internal/observer"
)

const (
	defaultMaxReconnect = 10
	maxBackoff          = 30 * time.Second
)

// ErrSendQueueFull is returned by Send when commands are not draining.
var ErrSendQueueFull = errors.New("send queue full")

// FrameSink receives accepted frames. *observer.Peer satisfies it.
type FrameSink interface {
	Deliver(u observer.Update)
}

// ClientConfig configures a Client.
type ClientConfig struct {
	URL    string
	Secret string
	// MaxReconnect is the number of consecutive failed dials before Run
	// gives up.
	MaxReconnect int
	// Backoff is the first reconnect delay. It doubles up to 30s.
	Backoff time.Duration
}

// ClientStats counts frames seen by a client.
type ClientStats struct {
	Received uint64
	Stale    uint64
	Invalid  uint64
}

// Client receives frames from a Hub and forwards the ones that are newer
// than anything already seen for their vehicle.
type Client struct {
	cfg    ClientConfig
	sink   FrameSink
	log    *slog.Logger
	dialer *ws.Dialer

	sendCh chan []byte
	last   map[uint16]uint64

	received atomic.Uint64
	stale    atomic.Uint64
	invalid  atomic.Uint64
}

// NewClient creates a client delivering to sink.
func NewClient(cfg ClientConfig, sink FrameSink, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxReconnect <= 0 {
		cfg.MaxReconnect = defaultMaxReconnect
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	return &Client{
		cfg:    cfg,
		sink:   sink,
		log:    logger,
		dialer: ws.DefaultDialer,
		sendCh: make(chan []byte, sendChSize),
		last:   make(map[uint16]uint64),
	}
}

// Stats returns the frame counters.
func (c *Client) Stats() ClientStats {
	return ClientStats{Received: c.received.Load(), Stale: c.stale.Load(), Invalid: c.invalid.Load()}
}

// Send queues a text command for the hub, for example
// ":INTENT: 3 true false". Commands queued while disconnected go out after
// the next successful dial.
func (c *Client) Send(line string) error {
	select {
	case c.sendCh <- []byte(line):
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Accept reports whether f is newer than the last frame for its vehicle on
// the current connection and records it if so. Duplicates and reordered
// frames are rejected.
func (c *Client) Accept(f Frame) bool {
	if last, ok := c.last[f.VehicleID]; ok && f.Tick <= last {
		return false
	}
	c.last[f.VehicleID] = f.Tick
	return true
}

func (c *Client) resetTicks() {
	clear(c.last)
}

// Run connects and serves until ctx is done, reconnecting with exponential
// backoff. It returns nil when ctx ends and an error when every reconnect
// attempt failed.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.cfg.Backoff
	failures := 0

	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			if failures >= c.cfg.MaxReconnect {
				return fmt.Errorf("giving up after %d attempts: %w", failures, err)
			}
			c.log.Warn("Dial failed, retrying", "attempt", failures, "backoff", backoff, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		failures, backoff = 0, c.cfg.Backoff
		// the hub may belong to a restarted authority whose ticks begin again
		c.resetTicks()
		c.log.Info("Connected to hub", "url", c.cfg.URL)
		err = c.serve(ctx, conn)
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn("Connection lost", "error", err)
	}
}

func (c *Client) dial(ctx context.Context) (*ws.Conn, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if c.cfg.Secret != "" {
		q := u.Query()
		q.Set("secret", c.cfg.Secret)
		u.RawQuery = q.Encode()
	}
	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// serve runs one connection: a write goroutine for commands and the read
// loop on the calling goroutine.
func (c *Client) serve(ctx context.Context, conn *ws.Conn) error {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writeLoop(conn, done)
	}()
	defer func() {
		close(done)
		_ = conn.Close()
		wg.Wait()
	}()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if kind != ws.BinaryMessage {
			continue
		}
		c.handleFrame(data)
	}
}

func (c *Client) handleFrame(data []byte) {
	f, err := DecodeFrame(data)
	if err != nil {
		c.invalid.Add(1)
		c.log.Debug("Dropping malformed frame", "error", err)
		return
	}
	if !c.Accept(f) {
		c.stale.Add(1)
		return
	}
	c.received.Add(1)
	c.sink.Deliver(observer.Update{VehicleID: f.VehicleID, Tick: f.Tick, Snapshot: f.Snapshot})
}

func (c *Client) writeLoop(conn *ws.Conn, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case data := <-c.sendCh:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Warn("WebSocket SetWriteDeadline error", "error", err)
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.log.Warn("WebSocket write error", "error", err)
				return
			}
		}
	}
}
