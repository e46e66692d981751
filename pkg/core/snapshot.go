// pkg/core/snapshot.go
package core

import "github.com/go-gl/mathgl/mgl64"

// Pose is a world-space position and orientation.
type Pose struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
}

// IdentityPose is the pose at the origin with no rotation.
func IdentityPose() Pose {
	return Pose{Orientation: mgl64.QuatIdent()}
}

// Snapshot is the authoritative state published to observers each publish
// interval.
type Snapshot struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
	TurnRate    float64
	Drift       bool
}

// Pose returns the positional part of the snapshot.
func (s Snapshot) Pose() Pose {
	return Pose{Position: s.Position, Orientation: s.Orientation}
}
