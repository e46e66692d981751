package influx

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/kartracer/kartsim/internal/config"
	"github.com/kartracer/kartsim/internal/model"
	"github.com/kartracer/kartsim/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(config.InfluxConfig{Enabled: false}, zerolog.Nop(), filepath.Join(t.TempDir(), "backup.lp.gz"))
	assert.Error(t, m.Connect(context.Background()))
	assert.False(t, m.IsValid)
}

func TestWritePoint_WithoutConnect(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop(), "")
	err := m.WritePoint(BucketTelemetry, influxdb2_write.NewPointWithMeasurement("x").AddField("v", 1))
	assert.Error(t, err)
}

func unhealthyServer(t *testing.T) config.InfluxConfig {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return config.InfluxConfig{
		Enabled:  true,
		Protocol: u.Scheme,
		Host:     u.Hostname(),
		Port:     u.Port(),
		Token:    "token",
		Org:      "kartsim",
	}
}

func readBackup(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	return string(data)
}

func TestConnect_FallsBackToBackup(t *testing.T) {
	backup := filepath.Join(t.TempDir(), "backup.lp.gz")
	m := NewManager(unhealthyServer(t), zerolog.Nop(), backup)

	require.NoError(t, m.Connect(context.Background()))
	assert.False(t, m.IsValid)
	require.NotNil(t, m.BackupWriter)

	m.SetSession("abc")
	require.NoError(t, m.PublishSnapshot(core.VehicleSnapshot{
		VehicleID: 3,
		Tick:      12,
		Time:      time.Unix(100, 0),
		Snapshot:  core.Snapshot{Position: mgl64.Vec3{1, 2, 3}, Orientation: mgl64.QuatIdent(), TurnRate: 45},
		Speed:     12.5,
		State:     core.Forward,
	}))
	require.NoError(t, m.WritePerformance(model.SessionPerformance{Time: time.Unix(101, 0), Tick: 50, Karts: 4}))
	require.NoError(t, m.Close())

	content := readBackup(t, backup)
	assert.Contains(t, content, "kart_telemetry")
	assert.Contains(t, content, "vehicle=3")
	assert.Contains(t, content, "session=abc")
	assert.Contains(t, content, "speed=12.5")
	assert.Contains(t, content, "sim_performance")
	assert.Contains(t, content, "karts=4i")
}

func TestTelemetryPoint(t *testing.T) {
	vs := core.VehicleSnapshot{
		VehicleID: 2,
		Tick:      4,
		Time:      time.Unix(10, 0),
		Snapshot:  core.Snapshot{Position: mgl64.Vec3{5, 0, -1}, Orientation: mgl64.QuatIdent(), Drift: true},
		State:     core.DriftLeft,
		OnTerrain: true,
	}
	line := influxdb2_write.PointToLineProtocol(TelemetryPoint("", vs), time.Second)

	assert.Contains(t, line, "state=drift_left")
	assert.Contains(t, line, "drift=true")
	assert.Contains(t, line, "on_terrain=true")
	assert.Contains(t, line, "tick=4i")
	assert.Contains(t, line, " 10")
	assert.NotContains(t, line, "session=")
}

func TestPerformancePoint(t *testing.T) {
	line := influxdb2_write.PointToLineProtocol(PerformancePoint("s1", model.SessionPerformance{
		Time:               time.Unix(20, 0),
		Tick:               7,
		InboxDropped:       2,
		LastTickDurationMs: 0.5,
	}), time.Second)

	assert.Contains(t, line, "sim_performance,session=s1")
	assert.Contains(t, line, "inbox_dropped=2i")
	assert.Contains(t, line, "last_tick_ms=0.5")
}
