package memory

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/kartracer/kartsim/internal/config"
	v1 "github.com/kartracer/kartsim/internal/storage/memory/export/v1"
	"github.com/kartracer/kartsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 5, 2, 18, 30, 0, 0, time.UTC)

func newSession() *core.Session {
	return &core.Session{
		ID:           "s1",
		Name:         "Test Session",
		TrackName:    "stadium",
		StartTime:    start,
		TickInterval: 20 * time.Millisecond,
	}
}

func TestRecordBeforeStart(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.Init())
	defer b.Close()

	assert.Error(t, b.AddVehicle(&core.Vehicle{ID: 1}))
	assert.Error(t, b.RecordSnapshot(&core.VehicleSnapshot{VehicleID: 1}))
	assert.Error(t, b.RecordEffect(&core.EffectEvent{}))
	assert.Error(t, b.RecordStateChange(&core.StateChangeEvent{}))
	assert.Error(t, b.EndSession(start, 0))
}

func TestStartSession_Resets(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartSession(newSession()))
	require.NoError(t, b.AddVehicle(&core.Vehicle{ID: 1}))
	require.NoError(t, b.RecordEffect(&core.EffectEvent{VehicleID: 1}))

	require.NoError(t, b.StartSession(newSession()))
	assert.Empty(t, b.data.Vehicles)
	assert.Empty(t, b.data.Effects)
}

func TestRecordSnapshot_UnknownVehicle(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartSession(newSession()))

	err := b.RecordSnapshot(&core.VehicleSnapshot{VehicleID: 9})
	assert.ErrorContains(t, err, "vehicle 9 not registered")
}

func TestAddVehicle_ReRegisterKeepsSnapshots(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartSession(newSession()))
	require.NoError(t, b.AddVehicle(&core.Vehicle{ID: 1, Name: "old"}))
	require.NoError(t, b.RecordSnapshot(&core.VehicleSnapshot{VehicleID: 1, Tick: 3}))

	require.NoError(t, b.AddVehicle(&core.Vehicle{ID: 1, Name: "new"}))
	assert.Equal(t, "new", b.data.Vehicles[1].Vehicle.Name)
	assert.Len(t, b.data.Vehicles[1].Snapshots, 1)
}

func TestEndSession_Exports(t *testing.T) {
	for _, compress := range []bool{true, false} {
		dir := filepath.Join(t.TempDir(), "replays")
		b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: compress})
		require.NoError(t, b.StartSession(newSession()))
		require.NoError(t, b.AddVehicle(&core.Vehicle{ID: 1, Name: "red"}))
		for tick := uint64(1); tick <= 3; tick++ {
			require.NoError(t, b.RecordSnapshot(&core.VehicleSnapshot{
				VehicleID: 1,
				Tick:      tick,
				Snapshot:  core.Snapshot{Position: mgl64.Vec3{0, 0, float64(tick)}, Orientation: mgl64.QuatIdent()},
				State:     core.Forward,
			}))
		}
		require.NoError(t, b.RecordStateChange(&core.StateChangeEvent{VehicleID: 1, Tick: 1, From: core.Stopped, To: core.Forward}))

		require.NoError(t, b.EndSession(start.Add(time.Minute), 3000))

		path := b.GetExportedFilePath()
		require.NotEmpty(t, path)
		assert.Equal(t, dir, filepath.Dir(path))
		_, err := os.Stat(path)
		require.NoError(t, err)

		got, err := v1.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "Test Session", got.SessionName)
		assert.Equal(t, uint64(3000), got.EndTick)
		require.Len(t, got.Vehicles, 1)
		assert.Len(t, got.Vehicles[0].Snapshots, 3)
		assert.Len(t, got.Events, 1)

		meta := b.GetExportMetadata()
		assert.Equal(t, "Test Session", meta.SessionName)
		assert.Equal(t, time.Minute, meta.Duration)
		assert.Equal(t, 1, meta.Karts)
	}
}

func TestConcurrentRecording(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartSession(newSession()))
	for id := uint16(1); id <= 4; id++ {
		require.NoError(t, b.AddVehicle(&core.Vehicle{ID: id}))
	}

	var wg sync.WaitGroup
	for id := uint16(1); id <= 4; id++ {
		wg.Add(1)
		go func(id uint16) {
			defer wg.Done()
			for tick := uint64(0); tick < 100; tick++ {
				_ = b.RecordSnapshot(&core.VehicleSnapshot{VehicleID: id, Tick: tick})
				_ = b.RecordEffect(&core.EffectEvent{VehicleID: id, Tick: tick})
			}
		}(id)
	}
	wg.Wait()

	for id := uint16(1); id <= 4; id++ {
		assert.Len(t, b.data.Vehicles[id].Snapshots, 100)
	}
	assert.Len(t, b.data.Effects, 400)
}
