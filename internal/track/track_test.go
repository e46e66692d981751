package track

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/kartracer/kartsim/internal/physics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var down = mgl64.Vec3{0, -1, 0}

const rampJSON = `{
	"name": "ramp test",
	"spawn": [0, 1, 0],
	"spawnHeading": 90,
	"surfaces": [
		{"name": "road", "tag": "track", "rings": [[[-10, -10], [10, -10], [10, 10], [-10, 10]]]},
		{"name": "ramp", "tag": "track", "gradZ": 0.5, "rings": [[[-10, 10], [10, 10], [10, 20], [-10, 20]]]},
		{"name": "lawn", "tag": "grass", "rings": [[[-50, -50], [50, -50], [50, 50], [-50, 50]], [[-10, -10], [10, -10], [10, 20], [-10, 20]]]}
	]
}`

func assertVecNear(t *testing.T, want, got mgl64.Vec3, msgAndArgs ...any) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9, msgAndArgs...)
	}
}

func TestParse(t *testing.T) {
	tr, err := Parse([]byte(rampJSON))
	require.NoError(t, err)

	assert.Equal(t, "ramp test", tr.Name)
	require.Len(t, tr.Surfaces, 3)
	assert.Equal(t, physics.SurfaceGrass, tr.Surfaces[2].Tag)
	assert.Equal(t, physics.LayerGrass, tr.Surfaces[2].Layer)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "bad json", input: `{`},
		{name: "no surfaces", input: `{"name": "x"}`},
		{name: "unknown tag", input: `{"surfaces": [{"tag": "lava", "rings": [[[0,0],[1,0],[1,1]]]}]}`},
		{name: "short ring", input: `{"surfaces": [{"rings": [[[0,0],[1,0]]]}]}`},
		{name: "no rings", input: `{"surfaces": [{"tag": "track"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ramp.json")
	require.NoError(t, os.WriteFile(path, []byte(rampJSON), 0644))

	tr, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ramp test", tr.Name)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestCast(t *testing.T) {
	tr, err := Parse([]byte(rampJSON))
	require.NoError(t, err)

	t.Run("flat road", func(t *testing.T) {
		hit, ok := tr.Cast(mgl64.Vec3{0, 3, 0}, down, 4.5, physics.LayerDrivable)
		require.True(t, ok)
		assert.Equal(t, physics.SurfaceTrack, hit.Surface)
		assert.InDelta(t, 3, hit.Distance, 1e-9)
		assertVecNear(t, physics.AxisUp, hit.Normal)
	})

	t.Run("grass outside road", func(t *testing.T) {
		hit, ok := tr.Cast(mgl64.Vec3{30, 3, 0}, down, 4.5, physics.LayerDrivable)
		require.True(t, ok)
		assert.Equal(t, physics.SurfaceGrass, hit.Surface)
	})

	t.Run("mask filters grass", func(t *testing.T) {
		_, ok := tr.Cast(mgl64.Vec3{30, 3, 0}, down, 4.5, physics.LayerTrack)
		assert.False(t, ok)
	})

	t.Run("out of range", func(t *testing.T) {
		_, ok := tr.Cast(mgl64.Vec3{0, 10, 0}, down, 4.5, physics.LayerDrivable)
		assert.False(t, ok)
	})

	t.Run("upward ray misses", func(t *testing.T) {
		_, ok := tr.Cast(mgl64.Vec3{0, 3, 0}, mgl64.Vec3{0, 1, 0}, 4.5, physics.LayerDrivable)
		assert.False(t, ok)
	})

	t.Run("ramp height and normal", func(t *testing.T) {
		hit, ok := tr.Cast(mgl64.Vec3{0, 10, 16}, down, 20, physics.LayerDrivable)
		require.True(t, ok)
		assert.InDelta(t, 8, hit.Point.Y(), 1e-9)
		assert.Less(t, hit.Normal.Z(), 0.0)
	})

	t.Run("nowhere", func(t *testing.T) {
		_, ok := tr.Cast(mgl64.Vec3{500, 3, 0}, down, 4.5, physics.LayerDrivable)
		assert.False(t, ok)
	})
}

func TestStadium(t *testing.T) {
	cfg := DefaultStadium()
	tr, err := Stadium(cfg)
	require.NoError(t, err)

	hit, ok := tr.Cast(tr.Spawn.Add(mgl64.Vec3{0, 2, 0}), down, 4.5, physics.LayerDrivable)
	require.True(t, ok)
	assert.Equal(t, physics.SurfaceTrack, hit.Surface, "spawn is on the road")

	hit, ok = tr.Cast(mgl64.Vec3{0, 3, 0}, down, 4.5, physics.LayerDrivable)
	require.True(t, ok)
	assert.Equal(t, physics.SurfaceGrass, hit.Surface, "infield")

	hit, ok = tr.Cast(mgl64.Vec3{cfg.Radius + cfg.Width, 3, 0}, down, 4.5, physics.LayerDrivable)
	require.True(t, ok)
	assert.Equal(t, physics.SurfaceGrass, hit.Surface, "outfield")

	hit, ok = tr.Cast(mgl64.Vec3{0, 3, cfg.StraightLength/2 + cfg.Radius}, down, 4.5, physics.LayerDrivable)
	require.True(t, ok)
	assert.Equal(t, physics.SurfaceTrack, hit.Surface, "top of the far turn")

	_, ok = tr.Cast(mgl64.Vec3{0, 3, 0}, down, 35, physics.LayerRecovery)
	assert.True(t, ok)
}

func TestSpawnPose(t *testing.T) {
	tr := &Track{Spawn: mgl64.Vec3{0, 1, 0}}

	p0, r0 := tr.SpawnPose(0)
	p1, _ := tr.SpawnPose(1)
	p2, _ := tr.SpawnPose(2)

	assert.InDelta(t, -3, p0.X(), 1e-9)
	assert.InDelta(t, 3, p1.X(), 1e-9)
	assert.InDelta(t, -6, p2.Z(), 1e-9)
	assertVecNear(t, physics.AxisForward, r0.Rotate(physics.AxisForward))
}
