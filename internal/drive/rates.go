package drive

import (
	"math"

	"github.com/kartracer/kartsim/pkg/core"
)

// Multipliers applied to the turn ramp while the turn rate still points the
// other way.
const (
	turnReverseFactor  = 6
	driftReverseFactor = 3
	forwardDecayFactor = 2
)

// shapeInput is everything a rate shaper may read. dir is -1 for left states,
// +1 for right states and 0 otherwise.
type shapeInput struct {
	speed     float64
	turnRate  float64
	dir       float64
	slowing   bool
	onTerrain bool
	holdDrift bool
	stats     core.HandlingProfile
}

// Rates is the output of one rate computation.
type Rates struct {
	Speed    float64
	TurnRate float64
	Drag     float64
}

type shaper func(in shapeInput) Rates

var shapers = map[core.DrivingState]shaper{
	core.Stopped:    shapeStopped,
	core.Forward:    shapeForward,
	core.TurnLeft:   shapeTurn,
	core.TurnRight:  shapeTurn,
	core.DriftLeft:  shapeDrift,
	core.DriftRight: shapeDrift,
	core.AirLocked:  shapeHold,
	core.Finished:   shapeHold,
}

func shape(state core.DrivingState, in shapeInput) Rates {
	fn, ok := shapers[state]
	if !ok {
		fn = shapeHold
	}
	in.dir = state.Direction()
	return fn(in)
}

func shapeStopped(in shapeInput) Rates {
	return Rates{Drag: in.stats.GroundDrag}
}

func shapeHold(in shapeInput) Rates {
	return Rates{Speed: in.speed, TurnRate: in.turnRate, Drag: in.stats.GroundDrag}
}

func shapeForward(in shapeInput) Rates {
	s := in.stats
	out := Rates{
		TurnRate: approachTurn(in.turnRate, 0, s.TurnRateAcceleration*forwardDecayFactor, 1),
		Speed:    in.speed,
		Drag:     s.GroundDrag,
	}
	switch {
	case in.speed < s.StraightLineSpeed && !in.slowing && !in.onTerrain:
		out.Speed = math.Min(in.speed+s.StraightLineAcceleration, s.StraightLineSpeed)
	case in.speed > s.StraightLineSpeed:
		out.Speed = math.Max(in.speed-s.SlowingDeceleration, s.StraightLineSpeed)
	}
	return out
}

func shapeTurn(in shapeInput) Rates {
	s := in.stats
	out := Rates{
		TurnRate: clampMagnitude(
			approachTurn(in.turnRate, in.dir*s.MaxTurnRate, s.TurnRateAcceleration, turnReverseFactor),
			s.MaxTurnRate+s.TurnRateAcceleration,
		),
		Speed: in.speed,
		Drag:  s.GroundDrag,
	}
	if !in.onTerrain {
		out.Speed = approachSpeed(in.speed, s.TurningSpeed, s.StraightLineAcceleration, s.TurningAntiAcceleration)
	}
	return out
}

func shapeDrift(in shapeInput) Rates {
	s := in.stats
	maxRate, ramp := s.DriftMaxTurnRate, s.DriftTurnRateAcceleration
	target, anti, drag := s.DriftSpeed, s.DriftAntiAcceleration, s.DriftGroundDrag
	if in.holdDrift {
		maxRate, ramp = s.FeatherMaxTurnRate, s.FeatherTurnRateAcceleration
		target, anti, drag = s.FeatherSpeed, s.FeatherAntiAcceleration, s.FeatherGroundDrag
	}

	out := Rates{
		TurnRate: clampMagnitude(
			approachTurn(in.turnRate, in.dir*maxRate, ramp, driftReverseFactor),
			maxRate+ramp,
		),
		Speed: in.speed,
		Drag:  drag,
	}
	if !in.onTerrain {
		out.Speed = approachSpeed(in.speed, target, s.StraightLineAcceleration, anti)
	}
	return out
}

// approachTurn moves current toward target by step, snapping once within one
// step. While current and target have opposite signs the step is scaled by
// reverseFactor but never carries past the target.
func approachTurn(current, target, step, reverseFactor float64) float64 {
	step = math.Abs(step)
	if current*target < 0 {
		step *= reverseFactor
	}
	if math.Abs(target-current) <= step {
		return target
	}
	if current < target {
		return current + step
	}
	return current - step
}

// approachSpeed accelerates toward target from below and decelerates from
// above, never passing it.
func approachSpeed(current, target, accel, decel float64) float64 {
	switch {
	case current < target:
		return math.Min(current+accel, target)
	case current > target:
		return math.Max(current-decel, target)
	}
	return current
}

// clampMagnitude limits |v| to limit.
func clampMagnitude(v, limit float64) float64 {
	limit = math.Abs(limit)
	return math.Max(-limit, math.Min(v, limit))
}
