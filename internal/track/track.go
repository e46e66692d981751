// Package track answers contact probes against a set of planar surfaces
// whose footprints are polygons in the XZ plane.
package track

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/kartracer/kartsim/internal/physics"
	"github.com/peterstace/simplefeatures/geom"
)

var ErrInvalidSurface = errors.New("invalid surface")

// Surface is a plane y = Height + GradX*x + GradZ*z limited to a footprint.
type Surface struct {
	Name      string
	Tag       physics.Surface
	Layer     physics.LayerMask
	Height    float64
	GradX     float64
	GradZ     float64
	Footprint geom.Polygon
}

// Normal returns the unit normal of the surface plane.
func (s *Surface) Normal() mgl64.Vec3 {
	return mgl64.Vec3{-s.GradX, 1, -s.GradZ}.Normalize()
}

// HeightAt returns the plane height at x, z.
func (s *Surface) HeightAt(x, z float64) float64 {
	return s.Height + s.GradX*x + s.GradZ*z
}

// Contains reports whether the footprint covers x, z.
func (s *Surface) Contains(x, z float64) bool {
	pt := geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: x, Y: z},
		Type: geom.DimXY,
	})
	return geom.Intersects(s.Footprint.AsGeometry(), pt.AsGeometry())
}

// Track is a named collection of surfaces with spawn information.
type Track struct {
	Name         string
	Spawn        mgl64.Vec3
	SpawnHeading float64
	Surfaces     []*Surface
}

// Cast implements physics.ContactQuery. The nearest surface wins; on a tie
// the surface listed first wins.
func (t *Track) Cast(origin, direction mgl64.Vec3, maxDistance float64, mask physics.LayerMask) (physics.Hit, bool) {
	dir := direction.Normalize()

	var (
		best  physics.Hit
		found bool
	)
	for _, s := range t.Surfaces {
		if s.Layer&mask == 0 {
			continue
		}
		denom := dir.Y() - s.GradX*dir.X() - s.GradZ*dir.Z()
		if math.Abs(denom) < 1e-9 {
			continue
		}
		dist := (s.HeightAt(origin.X(), origin.Z()) - origin.Y()) / denom
		if dist < 0 || dist > maxDistance {
			continue
		}
		if found && dist >= best.Distance {
			continue
		}
		p := origin.Add(dir.Mul(dist))
		if !s.Contains(p.X(), p.Z()) {
			continue
		}
		best = physics.Hit{
			Point:    p,
			Normal:   s.Normal(),
			Distance: dist,
			Surface:  s.Tag,
		}
		found = true
	}
	return best, found
}

// SpawnPose returns the grid slot for the n-th kart: two columns behind the
// start line, facing the spawn heading.
func (t *Track) SpawnPose(n int) (mgl64.Vec3, mgl64.Quat) {
	rot := mgl64.QuatRotate(mgl64.DegToRad(t.SpawnHeading), physics.AxisUp)
	column := float64(n%2)*2 - 1
	row := float64(n / 2)
	offset := rot.Rotate(mgl64.Vec3{column * 3, 0, -row * 6})
	return t.Spawn.Add(offset), rot
}

func polygonFromRings(rings [][][2]float64) (geom.Polygon, error) {
	if len(rings) == 0 {
		return geom.Polygon{}, fmt.Errorf("%w: no rings", ErrInvalidSurface)
	}
	ls := make([]geom.LineString, 0, len(rings))
	for i, ring := range rings {
		if len(ring) < 3 {
			return geom.Polygon{}, fmt.Errorf("%w: ring %d has %d points", ErrInvalidSurface, i, len(ring))
		}
		flat := make([]float64, 0, 2*len(ring)+2)
		for _, pt := range ring {
			flat = append(flat, pt[0], pt[1])
		}
		if ring[0] != ring[len(ring)-1] {
			flat = append(flat, ring[0][0], ring[0][1])
		}
		ls = append(ls, geom.NewLineString(geom.NewSequence(flat, geom.DimXY)))
	}
	poly := geom.NewPolygon(ls)
	if err := poly.Validate(); err != nil {
		return geom.Polygon{}, fmt.Errorf("%w: %v", ErrInvalidSurface, err)
	}
	return poly, nil
}
