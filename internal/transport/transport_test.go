package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/kartracer/kartsim/internal/dispatcher"
	"github.com/kartracer/kartsim/internal/observer"
	"github.com/kartracer/kartsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	updates []observer.Update
}

func (s *recordingSink) Deliver(u observer.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, u)
}

func (s *recordingSink) ticks() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint64, 0, len(s.updates))
	for _, u := range s.updates {
		out = append(out, u.Tick)
	}
	return out
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []dispatcher.Event
}

func (d *recordingDispatcher) Dispatch(e dispatcher.Event) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
	return nil, nil
}

func (d *recordingDispatcher) snapshot() []dispatcher.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatcher.Event(nil), d.events...)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClient_Accept(t *testing.T) {
	c := NewClient(ClientConfig{}, &recordingSink{}, nil)

	assert.True(t, c.Accept(Frame{VehicleID: 1, Tick: 5}))
	assert.False(t, c.Accept(Frame{VehicleID: 1, Tick: 5}), "duplicate")
	assert.False(t, c.Accept(Frame{VehicleID: 1, Tick: 3}), "reordered")
	assert.True(t, c.Accept(Frame{VehicleID: 2, Tick: 1}), "ticks are per vehicle")
	assert.True(t, c.Accept(Frame{VehicleID: 1, Tick: 6}))
}

func TestClient_ResetTicks(t *testing.T) {
	c := NewClient(ClientConfig{}, &recordingSink{}, nil)
	require.True(t, c.Accept(Frame{VehicleID: 1, Tick: 5000}))

	c.resetTicks()
	assert.True(t, c.Accept(Frame{VehicleID: 1, Tick: 1}))
	assert.False(t, c.Accept(Frame{VehicleID: 1, Tick: 1}))
}

// TestClient_ReconnectToRestartedAuthority serves one frame per connection:
// tick 5000 from the first authority, then tick 1 from its restarted
// successor.
func TestClient_ReconnectToRestartedAuthority(t *testing.T) {
	var (
		mu    sync.Mutex
		ticks = []uint64{5000, 1}
	)
	upgrader := ws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		if len(ticks) == 0 {
			mu.Unlock()
			http.Error(w, "gone", http.StatusServiceUnavailable)
			return
		}
		tick := ticks[0]
		ticks = ticks[1:]
		mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		data, err := EncodeFrame(Frame{VehicleID: 1, Tick: tick, Snapshot: testSnapshot()})
		if err != nil {
			return
		}
		_ = conn.WriteMessage(ws.BinaryMessage, data)
		_ = conn.WriteControl(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(time.Second))
	}))
	defer srv.Close()

	sink := &recordingSink{}
	client := NewClient(ClientConfig{URL: wsURL(srv), MaxReconnect: 2, Backoff: time.Millisecond}, sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	require.Eventually(t, func() bool { return len(sink.ticks()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []uint64{5000, 1}, sink.ticks())
	assert.Zero(t, client.Stats().Stale)

	select {
	case err := <-done:
		assert.Error(t, err, "third dial is refused")
	case <-time.After(2 * time.Second):
		t.Fatal("client did not give up")
	}
}

func TestHubBroadcastToClient(t *testing.T) {
	hub := NewHub(HubConfig{}, nil, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	sink := &recordingSink{}
	client := NewClient(ClientConfig{URL: wsURL(srv)}, sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	for _, tick := range []uint64{1, 2, 2, 1, 3} {
		require.NoError(t, hub.PublishSnapshot(core.VehicleSnapshot{VehicleID: 1, Tick: tick, Snapshot: testSnapshot()}))
	}
	require.Eventually(t, func() bool { return client.Stats().Stale == 2 && client.Stats().Received == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []uint64{1, 2, 3}, sink.ticks())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not stop")
	}
}

func TestHubRoutesRemoteCommands(t *testing.T) {
	d := &recordingDispatcher{}
	hub := NewHub(HubConfig{}, d, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	client := NewClient(ClientConfig{URL: wsURL(srv)}, &recordingSink{}, nil)
	require.NoError(t, client.Send(`:EFFECT: 3 "oil slick" 2 straightLineSpeed=-40`))
	require.NoError(t, client.Send(`:BROKEN: "unterminated`))
	require.NoError(t, client.Send(`:INTENT: 3 true false`))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = client.Run(ctx) }()

	require.Eventually(t, func() bool { return len(d.snapshot()) == 2 }, 2*time.Second, 5*time.Millisecond)
	events := d.snapshot()

	assert.Equal(t, ":EFFECT:", events[0].Command)
	assert.Equal(t, []string{"3", "oil slick", "2", "straightLineSpeed=-40"}, events[0].Args)
	assert.Equal(t, dispatcher.SourceRemote, events[0].Source)
	assert.Equal(t, ":INTENT:", events[1].Command)
	assert.Equal(t, dispatcher.SourceRemote, events[1].Source)
}

func TestHubSecret(t *testing.T) {
	hub := NewHub(HubConfig{Secret: "s3cret"}, nil, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	bad := NewClient(ClientConfig{URL: wsURL(srv), Secret: "nope", MaxReconnect: 1}, &recordingSink{}, nil)
	assert.Error(t, bad.Run(context.Background()))

	good := NewClient(ClientConfig{URL: wsURL(srv), Secret: "s3cret"}, &recordingSink{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = good.Run(ctx) }()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestHubClose(t *testing.T) {
	hub := NewHub(HubConfig{}, nil, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	client := NewClient(ClientConfig{URL: wsURL(srv), MaxReconnect: 1, Backoff: time.Millisecond}, &recordingSink{}, nil)
	done := make(chan error, 1)
	go func() { done <- client.Run(context.Background()) }()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)
	hub.Close()
	assert.Equal(t, 0, hub.Clients())

	// the hub refuses the reconnect, so the client gives up
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("client kept running after hub closed")
	}
}
