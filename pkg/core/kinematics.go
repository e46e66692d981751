// pkg/core/kinematics.go
package core

// TickKinematics is the per-tick scalar state of one vehicle. It is owned by
// the vehicle's tick and never shared.
type TickKinematics struct {
	Speed    float64
	TurnRate float64

	DownForce             float64
	DownForceAcceleration float64

	OnTerrain    bool
	GroundLock   bool
	Drifting     bool
	HoldDrift    bool
	Slowing      bool
	ApplyDrive   bool
	CanCalculate bool

	OffTrackDeceleration float64
}

// NewTickKinematics returns kinematics for a freshly spawned vehicle.
func NewTickKinematics(p HandlingProfile) TickKinematics {
	return TickKinematics{
		DownForceAcceleration: p.InitialDownForceAcceleration,
		GroundLock:            true,
		CanCalculate:          true,
		OffTrackDeceleration:  p.OffTrackDeceleration,
	}
}
