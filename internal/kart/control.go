package kart

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/kartracer/kartsim/internal/drive"
	"github.com/kartracer/kartsim/internal/physics"
	"github.com/kartracer/kartsim/internal/scheduler"
	"github.com/kartracer/kartsim/pkg/core"
)

// SetMoveIntent forwards an input sample to the state machine. Remote
// samples are debounced.
func (k *Kart) SetMoveIntent(in drive.Intent, remote bool) {
	k.machine.SetMoveIntent(in, remote)
}

// Activate starts the kart driving when the race begins.
func (k *Kart) Activate() {
	k.machine.Activate()
}

// Deactivate stops the kart.
func (k *Kart) Deactivate() {
	k.machine.Deactivate()
}

// Finish marks the kart as having finished the race.
func (k *Kart) Finish() {
	k.machine.Finish()
}

// Reset stops the kart and reports whether it was moving.
func (k *Kart) Reset() bool {
	return k.machine.Reset()
}

// Unlock releases the kart from the track for duration.
func (k *Kart) Unlock(duration time.Duration) scheduler.TaskID {
	return k.machine.LockInAir(duration)
}

// CustomJump launches the kart with an explicit orientation and velocity,
// released from the track for duration.
func (k *Kart) CustomJump(rotation mgl64.Quat, velocity mgl64.Vec3, duration time.Duration) scheduler.TaskID {
	id := k.machine.LockInAir(duration)
	physics.CustomJump(k.body, rotation, velocity)
	return id
}

// Stun applies the stun effect for duration.
func (k *Kart) Stun(duration time.Duration) (scheduler.TaskID, error) {
	return k.stats.Stun(duration)
}

// SpeedBoost adds delta to the current speed on the next tick.
func (k *Kart) SpeedBoost(delta float64) {
	k.stats.ApplyInstantSpeedDelta(delta)
}

// ApplyTimedEffect applies a named set of stat deltas for duration.
func (k *Kart) ApplyTimedEffect(name string, stats []core.Stat, deltas []float64, duration time.Duration) (scheduler.TaskID, error) {
	return k.stats.ApplyTimedEffect(name, stats, deltas, duration)
}

// SetInitialValues replaces the handling baseline and clears all effects.
func (k *Kart) SetInitialValues(p core.HandlingProfile) {
	k.stats.SetInitialValues(p)
}

// SetCanCalculate toggles local yaw and drive integration. Observers turn it
// off while interpolating toward an authoritative snapshot.
func (k *Kart) SetCanCalculate(v bool) {
	k.kin.CanCalculate = v
}

// Teleport places the kart at pose and clears its velocity.
func (k *Kart) Teleport(position mgl64.Vec3, rotation mgl64.Quat) {
	k.body.Position = position
	k.body.Rotation = rotation.Normalize()
	k.body.Velocity = mgl64.Vec3{}
}

// Place moves the kart to pose without touching its velocity.
func (k *Kart) Place(position mgl64.Vec3, rotation mgl64.Quat) {
	k.body.Position = position
	k.body.Rotation = rotation
}

// Pose returns the body's pose.
func (k *Kart) Pose() core.Pose {
	return core.Pose{Position: k.body.Position, Orientation: k.body.Rotation}
}
