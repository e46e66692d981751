package track

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/kartracer/kartsim/internal/physics"
)

type fileSurface struct {
	Name   string         `json:"name"`
	Tag    string         `json:"tag"`
	Height float64        `json:"height"`
	GradX  float64        `json:"gradX"`
	GradZ  float64        `json:"gradZ"`
	Rings  [][][2]float64 `json:"rings"`
}

type fileTrack struct {
	Name         string        `json:"name"`
	Spawn        [3]float64    `json:"spawn"`
	SpawnHeading float64       `json:"spawnHeading"`
	Surfaces     []fileSurface `json:"surfaces"`
}

// Parse builds a track from its JSON description. Each surface has a tag of
// "track", "grass" or "recovery" and one or more rings, the first being the
// shell and the rest holes.
func Parse(data []byte) (*Track, error) {
	var ft fileTrack
	if err := json.Unmarshal(data, &ft); err != nil {
		return nil, fmt.Errorf("failed to parse track JSON: %w", err)
	}
	if len(ft.Surfaces) == 0 {
		return nil, fmt.Errorf("track %q has no surfaces", ft.Name)
	}

	t := &Track{
		Name:         ft.Name,
		Spawn:        mgl64.Vec3{ft.Spawn[0], ft.Spawn[1], ft.Spawn[2]},
		SpawnHeading: ft.SpawnHeading,
	}
	for i, fs := range ft.Surfaces {
		tag, layer, err := parseTag(fs.Tag)
		if err != nil {
			return nil, fmt.Errorf("surface %d (%s): %w", i, fs.Name, err)
		}
		poly, err := polygonFromRings(fs.Rings)
		if err != nil {
			return nil, fmt.Errorf("surface %d (%s): %w", i, fs.Name, err)
		}
		t.Surfaces = append(t.Surfaces, &Surface{
			Name:      fs.Name,
			Tag:       tag,
			Layer:     layer,
			Height:    fs.Height,
			GradX:     fs.GradX,
			GradZ:     fs.GradZ,
			Footprint: poly,
		})
	}
	return t, nil
}

// LoadFile reads and parses a track file.
func LoadFile(path string) (*Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading track file: %w", err)
	}
	return Parse(data)
}

func parseTag(tag string) (physics.Surface, physics.LayerMask, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "track", "":
		return physics.SurfaceTrack, physics.LayerTrack, nil
	case "grass":
		return physics.SurfaceGrass, physics.LayerGrass, nil
	case "recovery":
		return physics.SurfaceRecovery, physics.LayerRecovery, nil
	}
	return 0, 0, fmt.Errorf("%w: unknown tag %q", ErrInvalidSurface, tag)
}
