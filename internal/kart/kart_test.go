package kart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/kartracer/kartsim/internal/drive"
	"github.com/kartracer/kartsim/internal/physics"
	"github.com/kartracer/kartsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tick = 20 * time.Millisecond

var flat = physics.ContactFunc(func(origin, dir mgl64.Vec3, maxDist float64, mask physics.LayerMask) (physics.Hit, bool) {
	if mask&physics.LayerTrack == 0 || dir.Y() >= 0 {
		return physics.Hit{}, false
	}
	t := -origin.Y() / dir.Y()
	if t < 0 || t > maxDist {
		return physics.Hit{}, false
	}
	return physics.Hit{Point: origin.Add(dir.Mul(t)), Normal: physics.AxisUp, Distance: t}, true
})

type recordingListener struct {
	states  []core.StateChangeEvent
	effects []core.EffectEvent
}

func (l *recordingListener) StateChanged(e core.StateChangeEvent) { l.states = append(l.states, e) }
func (l *recordingListener) EffectChanged(e core.EffectEvent)     { l.effects = append(l.effects, e) }

func newTestKart(t *testing.T) *Kart {
	t.Helper()
	k, err := New(Config{
		ID:              7,
		Name:            "test",
		Profile:         core.DefaultHandlingProfile(),
		Physics:         physics.DefaultConfig(),
		Debounce:        drive.DefaultDebounce,
		PublishInterval: DefaultPublishInterval,
		Position:        mgl64.Vec3{0, 1, 0},
	}, flat, nil)
	require.NoError(t, err)
	return k
}

func run(k *Kart, n int) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		k.Tick(context.Background(), tick, start.Add(time.Duration(k.tick+1)*tick))
	}
}

func TestKart_StartsStopped(t *testing.T) {
	k := newTestKart(t)
	run(k, 10)

	assert.Equal(t, core.Stopped, k.State())
	assert.Zero(t, k.Body().Speed())
	assert.InDelta(t, 1, k.Body().Position.Y(), 1e-9)
}

func TestKart_DrivesForward(t *testing.T) {
	k := newTestKart(t)
	k.Activate()
	run(k, 150)

	st := k.Status()
	assert.Equal(t, uint64(150), st.Tick)
	assert.Equal(t, core.Forward, st.State)
	assert.True(t, st.Grounded)
	assert.Greater(t, st.Position.Z(), 10.0)
	assert.Equal(t, k.Stats().StraightLineSpeed, st.Speed)
}

func TestKart_PublishesAtInterval(t *testing.T) {
	k := newTestKart(t)

	var got []core.VehicleSnapshot
	k.AddSink(SnapshotSinkFunc(func(vs core.VehicleSnapshot) error {
		got = append(got, vs)
		return nil
	}))

	run(k, 10)

	require.Len(t, got, 3)
	assert.Equal(t, []uint64{4, 7, 10}, []uint64{got[0].Tick, got[1].Tick, got[2].Tick})
	assert.Equal(t, uint16(7), got[0].VehicleID)
	assert.Equal(t, uint64(3), k.Status().Published)
}

func TestKart_SinkErrorDoesNotStopOthers(t *testing.T) {
	k := newTestKart(t)
	calls := 0
	k.AddSink(SnapshotSinkFunc(func(core.VehicleSnapshot) error { return errors.New("boom") }))
	k.AddSink(SnapshotSinkFunc(func(core.VehicleSnapshot) error { calls++; return nil }))

	run(k, 4)
	assert.Equal(t, 1, calls)
}

func TestKart_EnqueueRunsOnNextTick(t *testing.T) {
	k := newTestKart(t)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			k.Enqueue(func(k *Kart) { k.Activate() })
		}()
	}
	wg.Wait()

	assert.Equal(t, core.Stopped, k.State())
	run(k, 1)
	assert.Equal(t, core.Forward, k.State())
}

func TestKart_StunAndRecover(t *testing.T) {
	k := newTestKart(t)
	l := &recordingListener{}
	k.SetListener(l)
	k.Activate()
	run(k, 50)

	_, err := k.Stun(500 * time.Millisecond)
	require.NoError(t, err)
	assert.Zero(t, k.Stats().StraightLineSpeed)
	require.Len(t, k.Effects(), 1)

	run(k, 25)
	assert.Equal(t, k.stats.Baseline(), k.Stats())
	assert.Empty(t, k.Effects())

	require.Len(t, l.effects, 2)
	assert.Equal(t, "stun", l.effects[0].Name)
	assert.False(t, l.effects[0].Reverted)
	assert.True(t, l.effects[1].Reverted)
}

func TestKart_SpeedBoost(t *testing.T) {
	k := newTestKart(t)
	k.Activate()
	run(k, 10)
	before := k.Kinematics().Speed

	k.SpeedBoost(20)
	run(k, 1)
	assert.InDelta(t, before+20+k.Stats().StraightLineAcceleration, k.Kinematics().Speed, 1e-9)
}

func TestKart_StateChangesReported(t *testing.T) {
	k := newTestKart(t)
	l := &recordingListener{}
	k.SetListener(l)

	k.Activate()
	k.SetMoveIntent(drive.Intent{TurnLeft: true, DriftHeld: true}, false)
	k.Finish()

	require.Len(t, l.states, 3)
	assert.Equal(t, core.Stopped, l.states[0].From)
	assert.Equal(t, core.DriftLeft, l.states[1].To)
	assert.Equal(t, core.Finished, l.states[2].To)
	assert.Equal(t, uint16(7), l.states[2].VehicleID)
}

func TestKart_UnlockFliesThenRelocks(t *testing.T) {
	k := newTestKart(t)
	k.Activate()
	run(k, 5)

	k.CustomJump(mgl64.QuatIdent(), mgl64.Vec3{0, 20, 10}, 500*time.Millisecond)
	assert.Equal(t, core.AirLocked, k.State())

	run(k, 5)
	assert.False(t, k.Status().Grounded)
	assert.Greater(t, k.Body().Position.Y(), 1.5)

	run(k, 25)
	assert.Equal(t, core.Forward, k.State())
	assert.True(t, k.Kinematics().GroundLock)
}

func TestKart_SetCanCalculate(t *testing.T) {
	k := newTestKart(t)
	k.Activate()
	k.SetCanCalculate(false)
	run(k, 20)
	assert.Zero(t, k.Body().Speed())

	k.SetCanCalculate(true)
	run(k, 5)
	assert.Greater(t, k.Body().Speed(), 0.0)
}

func TestKart_SnapshotMirrorsBody(t *testing.T) {
	k := newTestKart(t)
	k.Teleport(mgl64.Vec3{5, 1, 5}, mgl64.QuatRotate(1, physics.AxisUp))

	s := k.Snapshot()
	assert.Equal(t, mgl64.Vec3{5, 1, 5}, s.Position)
	assert.Equal(t, k.Body().Rotation, s.Orientation)
	assert.False(t, s.Drift)
}
