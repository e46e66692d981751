// Package physics is the minimal ground-following movement model: a point
// body with orientation, contact probes against the track and a downforce
// ramp while airborne.
package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Local axes. Y is up, Z is forward and X is right.
var (
	AxisRight   = mgl64.Vec3{1, 0, 0}
	AxisUp      = mgl64.Vec3{0, 1, 0}
	AxisForward = mgl64.Vec3{0, 0, 1}
)

// Body is a rigid body with frozen angular dynamics. Rotation is only ever
// set directly.
type Body struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
	Velocity mgl64.Vec3

	Mass    float64
	Drag    float64
	Gravity mgl64.Vec3

	force mgl64.Vec3
}

// NewBody places a unit-mass body at pose with the given gravity.
func NewBody(position mgl64.Vec3, rotation mgl64.Quat, gravity float64) *Body {
	return &Body{
		Position: position,
		Rotation: rotation.Normalize(),
		Mass:     1,
		Gravity:  mgl64.Vec3{0, gravity, 0},
	}
}

func (b *Body) Right() mgl64.Vec3   { return b.Rotation.Rotate(AxisRight) }
func (b *Body) Up() mgl64.Vec3      { return b.Rotation.Rotate(AxisUp) }
func (b *Body) Forward() mgl64.Vec3 { return b.Rotation.Rotate(AxisForward) }

// AddForce accumulates a world-space force for the next Step.
func (b *Body) AddForce(f mgl64.Vec3) {
	b.force = b.force.Add(f)
}

// AddRelativeForce accumulates a force given in local axes.
func (b *Body) AddRelativeForce(f mgl64.Vec3) {
	b.AddForce(b.Rotation.Rotate(f))
}

// Yaw rotates the body about its local up axis. Positive degrees turn right.
func (b *Body) Yaw(degrees float64) {
	b.Rotation = b.Rotation.Mul(mgl64.QuatRotate(mgl64.DegToRad(degrees), AxisUp)).Normalize()
}

// Speed returns the magnitude of the velocity.
func (b *Body) Speed() float64 {
	return b.Velocity.Len()
}

// Step integrates accumulated forces, gravity and drag over dt and clears
// the force accumulator.
func (b *Body) Step(dt float64) {
	mass := b.Mass
	if mass <= 0 {
		mass = 1
	}
	accel := b.force.Mul(1 / mass).Add(b.Gravity)
	b.Velocity = b.Velocity.Add(accel.Mul(dt))
	b.Velocity = b.Velocity.Mul(math.Max(0, 1-b.Drag*dt))
	b.Position = b.Position.Add(b.Velocity.Mul(dt))
	b.force = mgl64.Vec3{}
}

// lookRotation builds the rotation whose local forward and up map to the
// given directions. up is re-orthogonalised against forward.
func lookRotation(forward, up mgl64.Vec3) mgl64.Quat {
	f := forward.Normalize()
	r := up.Cross(f)
	if r.Len() < 1e-9 {
		return mgl64.QuatIdent()
	}
	r = r.Normalize()
	u := f.Cross(r)
	return mgl64.Mat4ToQuat(mgl64.Mat3FromCols(r, u, f).Mat4()).Normalize()
}

// levelRotation keeps the yaw of q and drops its pitch and roll.
func levelRotation(q mgl64.Quat) mgl64.Quat {
	f := q.Rotate(AxisForward)
	yaw := math.Atan2(f.X(), f.Z())
	return mgl64.QuatRotate(yaw, AxisUp)
}
