package modifier

import (
	"testing"
	"time"

	"github.com/kartracer/kartsim/internal/scheduler"
	"github.com/kartracer/kartsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	applied  []Effect
	reverted []Effect
}

func (r *recordingObserver) EffectApplied(e Effect)  { r.applied = append(r.applied, e) }
func (r *recordingObserver) EffectReverted(e Effect) { r.reverted = append(r.reverted, e) }

func newTestLayer(t *testing.T) (*Layer, *scheduler.Scheduler) {
	t.Helper()
	sched := scheduler.New()
	return New(core.DefaultHandlingProfile(), sched), sched
}

func TestLayer_ApplyDeltaAndReset(t *testing.T) {
	l, _ := newTestLayer(t)

	require.NoError(t, l.ApplyDelta(core.StatStraightLineSpeed, -30))
	require.NoError(t, l.ApplyDelta(core.StatStraightLineSpeed, -10))
	assert.Equal(t, 60.0, l.Active().StraightLineSpeed)
	assert.Equal(t, 100.0, l.Baseline().StraightLineSpeed)

	require.NoError(t, l.ResetField(core.StatStraightLineSpeed))
	assert.Equal(t, 100.0, l.Active().StraightLineSpeed)

	assert.ErrorIs(t, l.ApplyDelta(core.Stat(250), 1), core.ErrUnknownStat)
	assert.ErrorIs(t, l.ResetField(core.Stat(250)), core.ErrUnknownStat)
}

func TestLayer_TimedEffectRestoresBaseline(t *testing.T) {
	l, sched := newTestLayer(t)
	obs := &recordingObserver{}
	l.SetObserver(obs)

	_, err := l.ApplyTimedEffect("slow", []core.Stat{core.StatStraightLineSpeed}, []float64{-40}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 60.0, l.Active().StraightLineSpeed)
	assert.Len(t, l.Pending(), 1)

	sched.Advance(999 * time.Millisecond)
	assert.Equal(t, 60.0, l.Active().StraightLineSpeed)

	sched.Advance(time.Millisecond)
	assert.Equal(t, 100.0, l.Active().StraightLineSpeed)
	assert.Empty(t, l.Pending())

	require.Len(t, obs.applied, 1)
	require.Len(t, obs.reverted, 1)
	assert.Equal(t, "slow", obs.reverted[0].Name)
}

func TestLayer_OverlappingEffectsHardReset(t *testing.T) {
	l, sched := newTestLayer(t)

	_, err := l.ApplyTimedEffect("first", []core.Stat{core.StatStraightLineSpeed}, []float64{-20}, time.Second)
	require.NoError(t, err)
	sched.Advance(500 * time.Millisecond)
	_, err = l.ApplyTimedEffect("second", []core.Stat{core.StatStraightLineSpeed}, []float64{-30}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 50.0, l.Active().StraightLineSpeed)

	// first effect ends and wipes the second one's delta too
	sched.Advance(500 * time.Millisecond)
	assert.Equal(t, 100.0, l.Active().StraightLineSpeed)

	sched.Advance(500 * time.Millisecond)
	assert.Equal(t, 100.0, l.Active().StraightLineSpeed)
	assert.Empty(t, l.Pending())
}

func TestLayer_TimedEffectRejectsBadInput(t *testing.T) {
	l, sched := newTestLayer(t)

	_, err := l.ApplyTimedEffect("bad", []core.Stat{core.StatTurningSpeed, core.StatDriftSpeed}, []float64{-1}, time.Second)
	assert.ErrorIs(t, err, ErrDeltaMismatch)

	_, err = l.ApplyTimedEffect("bad", []core.Stat{core.StatTurningSpeed, core.Stat(99)}, []float64{-1, -1}, time.Second)
	assert.ErrorIs(t, err, core.ErrUnknownStat)

	assert.Equal(t, l.Baseline(), l.Active())
	assert.Equal(t, 0, sched.Pending())
}

func TestLayer_Stun(t *testing.T) {
	l, sched := newTestLayer(t)
	base := l.Baseline()

	_, err := l.Stun(2 * time.Second)
	require.NoError(t, err)

	a := l.Active()
	assert.Zero(t, a.StraightLineSpeed)
	assert.Zero(t, a.TurningSpeed)
	assert.Zero(t, a.DriftSpeed)
	assert.Zero(t, a.FeatherSpeed)
	assert.Zero(t, a.MaxTurnRate)
	assert.Zero(t, a.DriftMaxTurnRate)
	assert.Zero(t, a.FeatherMaxTurnRate)
	assert.Equal(t, base.SlowingDeceleration+10, a.SlowingDeceleration)
	assert.Equal(t, base.DriftAntiAcceleration+10, a.DriftAntiAcceleration)

	sched.Advance(2 * time.Second)
	assert.Equal(t, base, l.Active())
}

func TestLayer_InstantSpeedDelta(t *testing.T) {
	l, _ := newTestLayer(t)
	obs := &recordingObserver{}
	l.SetObserver(obs)

	l.ApplyInstantSpeedDelta(15)
	l.ApplyInstantSpeedDelta(5)
	assert.Equal(t, 20.0, l.PendingSpeedDelta())
	assert.Equal(t, 100.0, l.Active().StraightLineSpeed)

	assert.Equal(t, 20.0, l.ConsumeInstantSpeedDelta())
	assert.Zero(t, l.ConsumeInstantSpeedDelta())
	assert.Len(t, obs.applied, 2)
}

func TestLayer_SetInitialValuesCancelsEffects(t *testing.T) {
	l, sched := newTestLayer(t)
	_, err := l.Stun(time.Second)
	require.NoError(t, err)
	l.ApplyInstantSpeedDelta(10)

	p := core.DefaultHandlingProfile()
	p.StraightLineSpeed = 120
	l.SetInitialValues(p)

	assert.Equal(t, p, l.Active())
	assert.Equal(t, p, l.Baseline())
	assert.Empty(t, l.Pending())
	assert.Equal(t, 0, sched.Pending())
	assert.Zero(t, l.PendingSpeedDelta())
}
