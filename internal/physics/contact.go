package physics

import "github.com/go-gl/mathgl/mgl64"

// Surface classifies what a probe hit.
type Surface uint8

const (
	SurfaceTrack Surface = iota
	SurfaceGrass
	SurfaceRecovery
)

func (s Surface) String() string {
	switch s {
	case SurfaceTrack:
		return "track"
	case SurfaceGrass:
		return "grass"
	case SurfaceRecovery:
		return "recovery"
	}
	return "unknown"
}

// LayerMask filters which surfaces a probe may hit.
type LayerMask uint32

const (
	LayerTrack LayerMask = 1 << iota
	LayerGrass
	LayerRecovery

	// LayerDrivable is every surface the ground probes lock onto.
	LayerDrivable = LayerTrack | LayerGrass
)

// Hit is the result of a successful probe.
type Hit struct {
	Point    mgl64.Vec3
	Normal   mgl64.Vec3
	Distance float64
	Surface  Surface
}

// ContactQuery answers ray probes against the world.
type ContactQuery interface {
	Cast(origin, direction mgl64.Vec3, maxDistance float64, mask LayerMask) (Hit, bool)
}

// ContactFunc adapts a function to ContactQuery.
type ContactFunc func(origin, direction mgl64.Vec3, maxDistance float64, mask LayerMask) (Hit, bool)

func (f ContactFunc) Cast(origin, direction mgl64.Vec3, maxDistance float64, mask LayerMask) (Hit, bool) {
	return f(origin, direction, maxDistance, mask)
}
