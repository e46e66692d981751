package transport

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/kartracer/kartsim/internal/dispatcher"
	"github.com/kartracer/kartsim/internal/util"
	"github.com/kartracer/kartsim/pkg/core"
)

const (
	sendChSize     = 256
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxCommandSize = 4096
)

// Dispatcher routes remote commands. *dispatcher.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(e dispatcher.Event) (any, error)
}

// HubConfig configures a Hub.
type HubConfig struct {
	// Secret, when set, must match the secret query parameter.
	Secret string
}

// Hub upgrades observers, broadcasts snapshot frames to all of them and
// feeds their text commands into the dispatcher as remote input.
type Hub struct {
	cfg      HubConfig
	upgrader ws.Upgrader
	commands Dispatcher
	log      *slog.Logger

	mu      sync.Mutex
	clients map[*observerConn]struct{}
	closed  bool
}

// NewHub creates a hub. commands may be nil for a broadcast-only hub.
func NewHub(cfg HubConfig, commands Dispatcher, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		cfg:      cfg,
		upgrader: ws.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		commands: commands,
		log:      logger,
		clients:  make(map[*observerConn]struct{}),
	}
}

// ServeHTTP upgrades the request and serves the observer until it leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Secret != "" {
		got := r.URL.Query().Get("secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.cfg.Secret)) != 1 {
			http.Error(w, "invalid secret", http.StatusUnauthorized)
			return
		}
	}

	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, "hub closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &observerConn{
		hub:    h,
		conn:   conn,
		sendCh: make(chan []byte, sendChSize),
		done:   make(chan struct{}),
		remote: r.RemoteAddr,
	}
	if !h.add(c) {
		_ = conn.Close()
		return
	}
	h.log.Info("Observer connected", "remote", c.remote)

	go c.writeLoop()
	c.readLoop()
}

func (h *Hub) add(c *observerConn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *observerConn) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.close()
		h.log.Info("Observer disconnected", "remote", c.remote)
	}
}

// Clients returns the number of connected observers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// PublishSnapshot broadcasts one frame. An observer whose queue is full
// misses the frame; the next one supersedes it anyway.
func (h *Hub) PublishSnapshot(vs core.VehicleSnapshot) error {
	data, err := EncodeFrame(FrameFor(vs))
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.sendCh <- data:
		default:
			h.log.Debug("Observer queue full, dropping frame", "remote", c.remote, "vehicle", vs.VehicleID, "tick", vs.Tick)
		}
	}
	return nil
}

// Close disconnects every observer and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*observerConn]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

func (h *Hub) handleCommand(c *observerConn, line string) {
	if h.commands == nil {
		return
	}
	command, args, err := util.SplitCommandLine(line)
	if err != nil || command == "" {
		h.log.Warn("Malformed command from observer", "remote", c.remote, "error", err)
		return
	}
	if _, err := h.commands.Dispatch(dispatcher.Event{
		Command:   command,
		Args:      args,
		Source:    dispatcher.SourceRemote,
		Timestamp: time.Now(),
	}); err != nil {
		h.log.Warn("Remote command failed", "remote", c.remote, "command", command, "error", err)
	}
}

// observerConn is one upgraded observer with a single write goroutine.
type observerConn struct {
	hub    *Hub
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{}
	once   sync.Once
	remote string
}

func (c *observerConn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *observerConn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.hub.remove(c)
				return
			}
			if err := c.conn.WriteMessage(ws.BinaryMessage, data); err != nil {
				c.hub.log.Debug("WebSocket write error", "remote", c.remote, "error", err)
				c.hub.remove(c)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.hub.remove(c)
				return
			}
		}
	}
}

func (c *observerConn) readLoop() {
	defer c.hub.remove(c)

	c.conn.SetReadLimit(maxCommandSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != ws.TextMessage {
			continue
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.hub.handleCommand(c, string(message))
	}
}
