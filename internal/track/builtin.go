package track

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/kartracer/kartsim/internal/physics"
)

// StadiumConfig shapes the built-in oval: two straights joined by half
// circles.
type StadiumConfig struct {
	StraightLength float64 `mapstructure:"straightLength"`
	Radius         float64 `mapstructure:"radius"`
	Width          float64 `mapstructure:"width"`
	Segments       int     `mapstructure:"segments"`
}

// DefaultStadium is the stock oval.
func DefaultStadium() StadiumConfig {
	return StadiumConfig{StraightLength: 400, Radius: 120, Width: 30, Segments: 24}
}

// Stadium builds an oval track with grass inside and around it and a
// recovery plane below everything.
func Stadium(cfg StadiumConfig) (*Track, error) {
	if cfg.Segments < 4 {
		cfg.Segments = 4
	}
	outerR := cfg.Radius + cfg.Width/2
	innerR := cfg.Radius - cfg.Width/2
	outer := stadiumRing(cfg.StraightLength, outerR, cfg.Segments)
	inner := stadiumRing(cfg.StraightLength, innerR, cfg.Segments)

	roadPoly, err := polygonFromRings([][][2]float64{outer, reverse(inner)})
	if err != nil {
		return nil, err
	}
	infieldPoly, err := polygonFromRings([][][2]float64{inner})
	if err != nil {
		return nil, err
	}

	margin := outerR + 200
	halfLen := cfg.StraightLength/2 + margin
	bounds := [][2]float64{{-margin, -halfLen}, {margin, -halfLen}, {margin, halfLen}, {-margin, halfLen}}
	outfieldPoly, err := polygonFromRings([][][2]float64{bounds, reverse(outer)})
	if err != nil {
		return nil, err
	}
	recoveryPoly, err := polygonFromRings([][][2]float64{bounds})
	if err != nil {
		return nil, err
	}

	return &Track{
		Name:  "stadium",
		Spawn: mgl64.Vec3{cfg.Radius, 1, 0},
		Surfaces: []*Surface{
			{Name: "road", Tag: physics.SurfaceTrack, Layer: physics.LayerTrack, Footprint: roadPoly},
			{Name: "infield", Tag: physics.SurfaceGrass, Layer: physics.LayerGrass, Footprint: infieldPoly},
			{Name: "outfield", Tag: physics.SurfaceGrass, Layer: physics.LayerGrass, Footprint: outfieldPoly},
			{Name: "recovery", Tag: physics.SurfaceRecovery, Layer: physics.LayerRecovery, Height: -10, Footprint: recoveryPoly},
		},
	}, nil
}

// stadiumRing walks the oval counter-clockwise in the XZ plane, centred on
// the origin with the straights parallel to Z.
func stadiumRing(length, r float64, segments int) [][2]float64 {
	half := length / 2
	ring := make([][2]float64, 0, 2*segments+2)
	for i := 0; i <= segments; i++ {
		a := math.Pi * float64(i) / float64(segments)
		ring = append(ring, [2]float64{r * math.Cos(a), half + r*math.Sin(a)})
	}
	for i := 0; i <= segments; i++ {
		a := math.Pi + math.Pi*float64(i)/float64(segments)
		ring = append(ring, [2]float64{r * math.Cos(a), -half + r*math.Sin(a)})
	}
	return ring
}

func reverse(ring [][2]float64) [][2]float64 {
	out := make([][2]float64, len(ring))
	for i, p := range ring {
		out[len(ring)-1-i] = p
	}
	return out
}
