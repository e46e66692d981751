// Package modifier holds a vehicle's handling baseline and the active values
// derived from it by transient effects.
package modifier

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kartracer/kartsim/internal/scheduler"
	"github.com/kartracer/kartsim/pkg/core"
)

// ErrDeltaMismatch is returned when an effect has a different number of stats and deltas.
var ErrDeltaMismatch = errors.New("stats and deltas differ in length")

// stunDecelerationPenalty is added to every deceleration while stunned.
const stunDecelerationPenalty = 10

// Effect is an entry of the modifier log.
type Effect struct {
	ID        scheduler.TaskID
	Name      string
	Stats     []core.Stat
	Deltas    []float64
	Duration  time.Duration
	StartedAt time.Duration
}

// Observer is notified when effects are applied and reverted.
type Observer interface {
	EffectApplied(e Effect)
	EffectReverted(e Effect)
}

// Layer owns the active handling values of one vehicle.
//
// Resets are hard: reverting an effect restores the baseline for its fields
// regardless of other effects still in flight on the same fields.
type Layer struct {
	baseline core.HandlingProfile
	active   core.HandlingProfile

	pendingSpeed float64

	sched    *scheduler.Scheduler
	effects  map[scheduler.TaskID]Effect
	observer Observer
}

// New creates a layer whose active values equal profile.
func New(profile core.HandlingProfile, sched *scheduler.Scheduler) *Layer {
	return &Layer{
		baseline: profile,
		active:   profile,
		sched:    sched,
		effects:  make(map[scheduler.TaskID]Effect),
	}
}

// SetObserver registers the effect observer. Pass nil to remove it.
func (l *Layer) SetObserver(o Observer) {
	l.observer = o
}

// Baseline returns the unmodified profile.
func (l *Layer) Baseline() core.HandlingProfile {
	return l.baseline
}

// Active returns the values the state machine and integrator consult.
func (l *Layer) Active() core.HandlingProfile {
	return l.active
}

// ApplyDelta adds delta to the active value of stat.
func (l *Layer) ApplyDelta(stat core.Stat, delta float64) error {
	if !stat.Valid() {
		return fmt.Errorf("apply delta: %w: %d", core.ErrUnknownStat, uint8(stat))
	}
	_ = l.active.Set(stat, l.active.Get(stat)+delta)
	return nil
}

// ResetField restores the active value of stat to the baseline.
func (l *Layer) ResetField(stat core.Stat) error {
	if !stat.Valid() {
		return fmt.Errorf("reset field: %w: %d", core.ErrUnknownStat, uint8(stat))
	}
	_ = l.active.Set(stat, l.baseline.Get(stat))
	return nil
}

// ApplyTimedEffect applies every delta at once and schedules a hard reset of
// the affected stats after duration. Nothing is applied when the input is
// invalid.
func (l *Layer) ApplyTimedEffect(name string, stats []core.Stat, deltas []float64, duration time.Duration) (scheduler.TaskID, error) {
	if len(stats) != len(deltas) {
		return 0, fmt.Errorf("effect %s: %w (%d stats, %d deltas)", name, ErrDeltaMismatch, len(stats), len(deltas))
	}
	for _, s := range stats {
		if !s.Valid() {
			return 0, fmt.Errorf("effect %s: %w: %d", name, core.ErrUnknownStat, uint8(s))
		}
	}

	for i, s := range stats {
		_ = l.ApplyDelta(s, deltas[i])
	}

	e := Effect{
		Name:      name,
		Stats:     append([]core.Stat(nil), stats...),
		Deltas:    append([]float64(nil), deltas...),
		Duration:  duration,
		StartedAt: l.sched.Now(),
	}

	var id scheduler.TaskID
	id = l.sched.After(name, duration, func() {
		l.revert(id)
	})
	e.ID = id
	l.effects[id] = e

	if l.observer != nil {
		l.observer.EffectApplied(e)
	}
	return id, nil
}

func (l *Layer) revert(id scheduler.TaskID) {
	e, ok := l.effects[id]
	if !ok {
		return
	}
	delete(l.effects, id)
	for _, s := range e.Stats {
		_ = l.ResetField(s)
	}
	if l.observer != nil {
		l.observer.EffectReverted(e)
	}
}

// Stun zeroes the vehicle's speeds and turn rates and raises its
// decelerations for duration.
func (l *Layer) Stun(duration time.Duration) (scheduler.TaskID, error) {
	b := l.baseline
	stats := []core.Stat{
		core.StatStraightLineSpeed,
		core.StatTurningSpeed,
		core.StatDriftSpeed,
		core.StatFeatherSpeed,
		core.StatSlowingDeceleration,
		core.StatTurningAntiAcceleration,
		core.StatDriftAntiAcceleration,
		core.StatFeatherAntiAcceleration,
		core.StatMaxTurnRate,
		core.StatDriftMaxTurnRate,
		core.StatFeatherMaxTurnRate,
	}
	deltas := []float64{
		-b.StraightLineSpeed,
		-b.TurningSpeed,
		-b.DriftSpeed,
		-b.FeatherSpeed,
		stunDecelerationPenalty,
		stunDecelerationPenalty,
		stunDecelerationPenalty,
		stunDecelerationPenalty,
		-b.MaxTurnRate,
		-b.DriftMaxTurnRate,
		-b.FeatherMaxTurnRate,
	}
	return l.ApplyTimedEffect("stun", stats, deltas, duration)
}

// ApplyInstantSpeedDelta queues a one-shot change to the current speed. The
// next rate computation consumes it.
func (l *Layer) ApplyInstantSpeedDelta(delta float64) {
	l.pendingSpeed += delta
	if l.observer != nil {
		l.observer.EffectApplied(Effect{
			Name:      "speed_boost",
			Deltas:    []float64{delta},
			StartedAt: l.sched.Now(),
		})
	}
}

// ConsumeInstantSpeedDelta returns the queued speed change and clears it.
func (l *Layer) ConsumeInstantSpeedDelta() float64 {
	d := l.pendingSpeed
	l.pendingSpeed = 0
	return d
}

// PendingSpeedDelta returns the queued speed change without consuming it.
func (l *Layer) PendingSpeedDelta() float64 {
	return l.pendingSpeed
}

// SetInitialValues replaces the baseline, cancels in-flight effects and
// resets every active value.
func (l *Layer) SetInitialValues(profile core.HandlingProfile) {
	for id := range l.effects {
		l.sched.Cancel(id)
	}
	clear(l.effects)
	l.baseline = profile
	l.ResetAll()
}

// ResetAll restores every active value to the baseline and drops any queued
// instant delta. Scheduled reverts stay scheduled.
func (l *Layer) ResetAll() {
	l.active = l.baseline
	l.pendingSpeed = 0
}

// Pending returns the effects in flight ordered by start time.
func (l *Layer) Pending() []Effect {
	out := make([]Effect, 0, len(l.effects))
	for _, e := range l.effects {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
