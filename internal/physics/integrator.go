package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/kartracer/kartsim/pkg/core"
)

// Config holds the probe geometry and the constants of the airborne model.
type Config struct {
	GroundProbeOffset      float64 `mapstructure:"groundProbeOffset"`
	GroundProbeLength      float64 `mapstructure:"groundProbeLength"`
	OrientationProbeLength float64 `mapstructure:"orientationProbeLength"`
	RecoveryProbeLength    float64 `mapstructure:"recoveryProbeLength"`
	LiftForce              float64 `mapstructure:"liftForce"`
	RecoveryRate           float64 `mapstructure:"recoveryRate"`
	LevelRate              float64 `mapstructure:"levelRate"`
	RideHeight             float64 `mapstructure:"rideHeight"`
	Mass                   float64 `mapstructure:"mass"`
	Gravity                float64 `mapstructure:"gravity"`
}

// DefaultConfig returns the stock probe and airborne settings.
func DefaultConfig() Config {
	return Config{
		GroundProbeOffset:      2,
		GroundProbeLength:      4.5,
		OrientationProbeLength: 3,
		RecoveryProbeLength:    35,
		LiftForce:              30,
		RecoveryRate:           5,
		LevelRate:              2.5,
		RideHeight:             1,
		Mass:                   1,
		Gravity:                -9.81,
	}
}

// StepInput is what the integrator reads from the rest of the vehicle.
type StepInput struct {
	State core.DrivingState
	Stats core.HandlingProfile
	// Drag is the ground drag chosen by rate shaping for the active state.
	Drag float64
	Dt   float64
}

// StepResult describes the contact situation after a step.
type StepResult struct {
	Grounded   bool
	Recovering bool
	Surface    Surface
}

// Integrator advances one vehicle body per tick.
type Integrator struct {
	cfg      Config
	contacts ContactQuery
}

// NewIntegrator creates an integrator probing against contacts.
func NewIntegrator(cfg Config, contacts ContactQuery) *Integrator {
	return &Integrator{cfg: cfg, contacts: contacts}
}

// Config returns the integrator settings.
func (ig *Integrator) Config() Config {
	return ig.cfg
}

// Step runs ground contact, the airborne model, yaw and drive force, then
// integrates the body. k is updated in place.
func (ig *Integrator) Step(b *Body, k *core.TickKinematics, in StepInput) StepResult {
	var res StepResult
	stats := in.Stats

	ig.orient(b, k)

	turnRate := k.TurnRate
	up := b.Up()
	hit, ok := ig.contacts.Cast(b.Position.Add(up.Mul(ig.cfg.GroundProbeOffset)), up.Mul(-1), ig.cfg.GroundProbeLength, LayerDrivable)

	if ok && k.GroundLock {
		res.Grounded = true
		res.Surface = hit.Surface

		k.OnTerrain = hit.Surface == SurfaceGrass
		k.ApplyDrive = true
		k.DownForce = 0
		k.DownForceAcceleration = stats.InitialDownForceAcceleration

		b.Position = hit.Point.Add(hit.Normal.Mul(ig.cfg.RideHeight))
		if into := b.Velocity.Dot(hit.Normal); into < 0 {
			b.Velocity = b.Velocity.Sub(hit.Normal.Mul(into))
		}
		// the surface carries the body, so gravity only acts off the ground
		b.AddForce(b.Gravity.Mul(-b.Mass))
		b.Drag = in.Drag
	} else {
		k.Drifting = false
		k.ApplyDrive = false

		if stats.InAirTurningModifier != 0 {
			turnRate /= stats.InAirTurningModifier
		}
		switch {
		case turnRate < 0:
			b.AddRelativeForce(mgl64.Vec3{-stats.SideAirForce, 0, 0})
		case turnRate > 0:
			b.AddRelativeForce(mgl64.Vec3{stats.SideAirForce, 0, 0})
		}

		b.Drag = stats.AirDrag
		b.AddRelativeForce(mgl64.Vec3{0, ig.cfg.LiftForce, 0})

		if rh, found := ig.contacts.Cast(b.Position, b.Up().Mul(-1), ig.cfg.RecoveryProbeLength, LayerRecovery); found {
			res.Recovering = true
			target := lookRotation(b.Right().Cross(rh.Normal), rh.Normal)
			b.Rotation = mgl64.QuatNlerp(b.Rotation, target, clamp01(ig.cfg.RecoveryRate*in.Dt))
			b.AddRelativeForce(mgl64.Vec3{0, -k.DownForce, 0})
		} else {
			b.Rotation = mgl64.QuatNlerp(b.Rotation, levelRotation(b.Rotation), clamp01(ig.cfg.LevelRate*in.Dt))
			b.AddForce(mgl64.Vec3{0, -k.DownForce, 0})
		}

		if k.DownForce < stats.DownForceMax {
			k.DownForce = math.Min(k.DownForce+k.DownForceAcceleration, stats.DownForceMax)
			k.DownForceAcceleration += stats.DownForceJerk
		}
	}

	// a finished kart is out of the race: it coasts on drag alone
	finished := in.State == core.Finished
	if k.CanCalculate && !finished {
		b.Yaw(turnRate)
	}

	if b.Speed() < k.Speed && in.State != core.Stopped && !finished && k.ApplyDrive && k.CanCalculate {
		b.AddRelativeForce(mgl64.Vec3{0, 0, stats.DrivingForce})
	}

	b.Step(in.Dt)
	return res
}

// orient aligns the body's up with the surface below it.
func (ig *Integrator) orient(b *Body, k *core.TickKinematics) {
	if !k.GroundLock {
		return
	}
	hit, ok := ig.contacts.Cast(b.Position, b.Up().Mul(-1), ig.cfg.OrientationProbeLength, LayerDrivable)
	if !ok {
		return
	}
	b.Rotation = lookRotation(b.Right().Cross(hit.Normal), hit.Normal)
}

// CustomJump sets the body's rotation and velocity directly.
func CustomJump(b *Body, rotation mgl64.Quat, velocity mgl64.Vec3) {
	b.Rotation = rotation.Normalize()
	b.Velocity = velocity
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
