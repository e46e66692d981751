// Package drive turns discrete movement intents into driving states and the
// per-tick speed and turn-rate targets that follow from them.
package drive

import (
	"math"
	"time"

	"github.com/kartracer/kartsim/internal/modifier"
	"github.com/kartracer/kartsim/internal/scheduler"
	"github.com/kartracer/kartsim/pkg/core"
)

// DefaultDebounce delays intents that arrive over the network.
const DefaultDebounce = 100 * time.Millisecond

// Intent is one sample of player input.
type Intent struct {
	TurnRight bool
	TurnLeft  bool
	Slow      bool
	DriftHeld bool
	DoubleTap bool
}

// StateChangeFunc is called after every transition.
type StateChangeFunc func(from, to core.DrivingState)

// Machine is the driving state machine of one vehicle. It mutates the
// vehicle's TickKinematics and is driven exclusively by the vehicle tick.
type Machine struct {
	state    core.DrivingState
	kin      *core.TickKinematics
	stats    *modifier.Layer
	sched    *scheduler.Scheduler
	debounce time.Duration

	held     Intent
	relock   scheduler.TaskID
	onChange StateChangeFunc
}

// New creates a machine in the Stopped state.
func New(kin *core.TickKinematics, stats *modifier.Layer, sched *scheduler.Scheduler, debounce time.Duration) *Machine {
	return &Machine{
		state:    core.Stopped,
		kin:      kin,
		stats:    stats,
		sched:    sched,
		debounce: debounce,
	}
}

// OnStateChange registers a transition callback.
func (m *Machine) OnStateChange(fn StateChangeFunc) {
	m.onChange = fn
}

// State returns the active driving state.
func (m *Machine) State() core.DrivingState {
	return m.state
}

func (m *Machine) setState(s core.DrivingState) {
	if s == m.state {
		return
	}
	from := m.state
	m.state = s
	if m.onChange != nil {
		m.onChange(from, s)
	}
}

// SetMoveIntent applies an input sample. Remote samples wait out the
// debounce first; a later sample never cancels an earlier pending one.
func (m *Machine) SetMoveIntent(in Intent, remote bool) {
	if remote && m.debounce > 0 {
		m.sched.After("intent", m.debounce, func() { m.applyIntent(in) })
		return
	}
	m.applyIntent(in)
}

func (m *Machine) applyIntent(in Intent) {
	m.held = in
	if !m.state.AcceptsIntent() {
		return
	}
	k := m.kin

	k.Slowing = in.Slow && !k.Drifting

	switch {
	case in.TurnRight != in.TurnLeft:
		turn, drift := core.TurnLeft, core.DriftLeft
		if in.TurnRight {
			turn, drift = core.TurnRight, core.DriftRight
		}
		switch {
		case in.DriftHeld:
			m.setState(drift)
			k.Drifting = true
			k.Slowing = false
		case m.state == drift:
			k.Drifting = true
			k.HoldDrift = false
		default:
			m.setState(turn)
			k.Drifting = false
			k.HoldDrift = false
		}
	case in.TurnRight && in.TurnLeft:
		if k.Drifting && m.state.IsDrift() {
			k.HoldDrift = true
		}
	default:
		m.setState(core.Forward)
		k.Drifting = false
		k.HoldDrift = false
	}
}

// Activate starts driving.
func (m *Machine) Activate() {
	m.setState(core.Forward)
}

// Deactivate stops the vehicle.
func (m *Machine) Deactivate() {
	m.setState(core.Stopped)
}

// Finish marks the race as over for this vehicle.
func (m *Machine) Finish() {
	m.setState(core.Finished)
}

// Reset stops the vehicle and reports whether it was moving.
func (m *Machine) Reset() bool {
	if m.state == core.Stopped {
		return false
	}
	m.setState(core.Stopped)
	return true
}

// LockInAir releases the vehicle from the track for duration. Ground lock is
// restored afterwards; a vehicle still AirLocked then returns to Forward and
// re-applies the last intent it was given. A second call replaces the
// pending re-lock.
func (m *Machine) LockInAir(duration time.Duration) scheduler.TaskID {
	if m.relock != 0 {
		m.sched.Cancel(m.relock)
	}
	m.kin.GroundLock = false
	m.kin.Drifting = false
	m.kin.HoldDrift = false
	if m.state != core.Stopped && m.state != core.Finished {
		m.setState(core.AirLocked)
	}
	m.relock = m.sched.After("relock", duration, func() {
		m.relock = 0
		m.kin.GroundLock = true
		if m.state == core.AirLocked {
			m.setState(core.Forward)
			m.applyIntent(m.held)
		}
	})
	return m.relock
}

// ComputeRates runs one tick of rate shaping. It consumes any pending
// instant speed delta, applies the braking floor and the off-track ceiling,
// and writes the result to the kinematics. The returned drag is the ground
// drag for the active state.
func (m *Machine) ComputeRates() Rates {
	k := m.kin
	stats := m.stats.Active()

	speed := k.Speed + m.stats.ConsumeInstantSpeedDelta()

	r := shape(m.state, shapeInput{
		speed:     speed,
		turnRate:  k.TurnRate,
		slowing:   k.Slowing,
		onTerrain: k.OnTerrain,
		holdDrift: k.HoldDrift,
		stats:     stats,
	})

	if m.state != core.Stopped {
		if k.Slowing && r.Speed > stats.BrakingSpeed {
			r.Speed = math.Max(r.Speed-stats.BrakingDeceleration, stats.BrakingSpeed)
		}

		if k.OnTerrain {
			if r.Speed > stats.OffTrackSpeed {
				r.Speed = math.Max(r.Speed-k.OffTrackDeceleration, stats.OffTrackSpeed)
			}
			k.OffTrackDeceleration += stats.OffTrackDecelerationGrowth
		} else {
			k.OffTrackDeceleration = stats.OffTrackDeceleration
		}
	}

	k.Speed = r.Speed
	k.TurnRate = r.TurnRate
	return r
}
