// pkg/core/handling.go
package core

import (
	"errors"
	"fmt"
	"strings"
)

// HandlingProfile is the per-vehicle handling baseline. All rates are per tick.
type HandlingProfile struct {
	StraightLineSpeed float64 `json:"straightLineSpeed" mapstructure:"straightLineSpeed"`
	TurningSpeed      float64 `json:"turningSpeed" mapstructure:"turningSpeed"`
	DriftSpeed        float64 `json:"driftSpeed" mapstructure:"driftSpeed"`
	FeatherSpeed      float64 `json:"featherSpeed" mapstructure:"featherSpeed"`
	OffTrackSpeed     float64 `json:"offTrackSpeed" mapstructure:"offTrackSpeed"`
	BrakingSpeed      float64 `json:"brakingSpeed" mapstructure:"brakingSpeed"`

	StraightLineAcceleration   float64 `json:"straightLineAcceleration" mapstructure:"straightLineAcceleration"`
	SlowingDeceleration        float64 `json:"slowingDeceleration" mapstructure:"slowingDeceleration"`
	TurningAntiAcceleration    float64 `json:"turningAntiAcceleration" mapstructure:"turningAntiAcceleration"`
	DriftAntiAcceleration      float64 `json:"driftAntiAcceleration" mapstructure:"driftAntiAcceleration"`
	FeatherAntiAcceleration    float64 `json:"featherAntiAcceleration" mapstructure:"featherAntiAcceleration"`
	BrakingDeceleration        float64 `json:"brakingDeceleration" mapstructure:"brakingDeceleration"`
	OffTrackDeceleration       float64 `json:"offTrackDeceleration" mapstructure:"offTrackDeceleration"`
	OffTrackDecelerationGrowth float64 `json:"offTrackDecelerationGrowth" mapstructure:"offTrackDecelerationGrowth"`

	MaxTurnRate                 float64 `json:"maxTurnRate" mapstructure:"maxTurnRate"`
	TurnRateAcceleration        float64 `json:"turnRateAcceleration" mapstructure:"turnRateAcceleration"`
	DriftMaxTurnRate            float64 `json:"driftMaxTurnRate" mapstructure:"driftMaxTurnRate"`
	DriftTurnRateAcceleration   float64 `json:"driftTurnRateAcceleration" mapstructure:"driftTurnRateAcceleration"`
	FeatherMaxTurnRate          float64 `json:"featherMaxTurnRate" mapstructure:"featherMaxTurnRate"`
	FeatherTurnRateAcceleration float64 `json:"featherTurnRateAcceleration" mapstructure:"featherTurnRateAcceleration"`

	GroundDrag        float64 `json:"groundDrag" mapstructure:"groundDrag"`
	DriftGroundDrag   float64 `json:"driftGroundDrag" mapstructure:"driftGroundDrag"`
	FeatherGroundDrag float64 `json:"featherGroundDrag" mapstructure:"featherGroundDrag"`
	AirDrag           float64 `json:"airDrag" mapstructure:"airDrag"`

	DrivingForce         float64 `json:"drivingForce" mapstructure:"drivingForce"`
	InAirTurningModifier float64 `json:"inAirTurningModifier" mapstructure:"inAirTurningModifier"`
	SideAirForce         float64 `json:"sideAirForce" mapstructure:"sideAirForce"`

	InitialDownForceAcceleration float64 `json:"initialDownForceAcceleration" mapstructure:"initialDownForceAcceleration"`
	DownForceJerk                float64 `json:"downForceJerk" mapstructure:"downForceJerk"`
	DownForceMax                 float64 `json:"downForceMax" mapstructure:"downForceMax"`

	VisualTurnModifier float64 `json:"visualTurnModifier" mapstructure:"visualTurnModifier"`
	TurnTiltFactor     float64 `json:"turnTiltFactor" mapstructure:"turnTiltFactor"`
}

// DefaultHandlingProfile returns the stock kart tuning.
func DefaultHandlingProfile() HandlingProfile {
	return HandlingProfile{
		StraightLineSpeed: 100,
		TurningSpeed:      50,
		DriftSpeed:        50,
		FeatherSpeed:      90,
		OffTrackSpeed:     20,
		BrakingSpeed:      50,

		StraightLineAcceleration:   0.75,
		SlowingDeceleration:        1,
		TurningAntiAcceleration:    0.5,
		DriftAntiAcceleration:      0.5,
		FeatherAntiAcceleration:    0.5,
		BrakingDeceleration:        1,
		OffTrackDeceleration:       2,
		OffTrackDecelerationGrowth: 0.1,

		MaxTurnRate:                 1.5,
		TurnRateAcceleration:        0.055,
		DriftMaxTurnRate:            1.5,
		DriftTurnRateAcceleration:   0.055,
		FeatherMaxTurnRate:          0.4,
		FeatherTurnRateAcceleration: 0.055,

		GroundDrag:        2,
		DriftGroundDrag:   2,
		FeatherGroundDrag: 0.5,
		AirDrag:           0.05,

		DrivingForce:         400,
		InAirTurningModifier: 2.5,
		SideAirForce:         15,

		InitialDownForceAcceleration: 0.75,
		DownForceJerk:                0.1,
		DownForceMax:                 100,

		VisualTurnModifier: 8,
		TurnTiltFactor:     0,
	}
}

// Stat names a single HandlingProfile field.
type Stat uint8

const (
	StatStraightLineSpeed Stat = iota
	StatTurningSpeed
	StatDriftSpeed
	StatFeatherSpeed
	StatOffTrackSpeed
	StatBrakingSpeed
	StatStraightLineAcceleration
	StatSlowingDeceleration
	StatTurningAntiAcceleration
	StatDriftAntiAcceleration
	StatFeatherAntiAcceleration
	StatBrakingDeceleration
	StatOffTrackDeceleration
	StatOffTrackDecelerationGrowth
	StatMaxTurnRate
	StatTurnRateAcceleration
	StatDriftMaxTurnRate
	StatDriftTurnRateAcceleration
	StatFeatherMaxTurnRate
	StatFeatherTurnRateAcceleration
	StatGroundDrag
	StatDriftGroundDrag
	StatFeatherGroundDrag
	StatAirDrag
	StatDrivingForce
	StatInAirTurningModifier
	StatSideAirForce
	StatInitialDownForceAcceleration
	StatDownForceJerk
	StatDownForceMax
	StatVisualTurnModifier
	StatTurnTiltFactor

	statCount
)

var statNames = [statCount]string{
	"straightLineSpeed",
	"turningSpeed",
	"driftSpeed",
	"featherSpeed",
	"offTrackSpeed",
	"brakingSpeed",
	"straightLineAcceleration",
	"slowingDeceleration",
	"turningAntiAcceleration",
	"driftAntiAcceleration",
	"featherAntiAcceleration",
	"brakingDeceleration",
	"offTrackDeceleration",
	"offTrackDecelerationGrowth",
	"maxTurnRate",
	"turnRateAcceleration",
	"driftMaxTurnRate",
	"driftTurnRateAcceleration",
	"featherMaxTurnRate",
	"featherTurnRateAcceleration",
	"groundDrag",
	"driftGroundDrag",
	"featherGroundDrag",
	"airDrag",
	"drivingForce",
	"inAirTurningModifier",
	"sideAirForce",
	"initialDownForceAcceleration",
	"downForceJerk",
	"downForceMax",
	"visualTurnModifier",
	"turnTiltFactor",
}

// ErrUnknownStat is returned when a stat name or index does not map to a field.
var ErrUnknownStat = errors.New("unknown stat")

// AllStats returns every addressable stat in declaration order.
func AllStats() []Stat {
	out := make([]Stat, statCount)
	for i := range out {
		out[i] = Stat(i)
	}
	return out
}

func (s Stat) String() string {
	if s >= statCount {
		return fmt.Sprintf("Stat(%d)", uint8(s))
	}
	return statNames[s]
}

// Valid reports whether s addresses a HandlingProfile field.
func (s Stat) Valid() bool {
	return s < statCount
}

// ParseStat resolves a stat by its config name, case-insensitively.
func ParseStat(name string) (Stat, error) {
	name = strings.TrimSpace(name)
	for i, n := range statNames {
		if strings.EqualFold(n, name) {
			return Stat(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStat, name)
}

// Get returns the value of the given field. Unknown stats read as zero.
func (p *HandlingProfile) Get(s Stat) float64 {
	f := p.field(s)
	if f == nil {
		return 0
	}
	return *f
}

// Set overwrites the given field.
func (p *HandlingProfile) Set(s Stat, v float64) error {
	f := p.field(s)
	if f == nil {
		return fmt.Errorf("%w: %d", ErrUnknownStat, uint8(s))
	}
	*f = v
	return nil
}

func (p *HandlingProfile) field(s Stat) *float64 {
	switch s {
	case StatStraightLineSpeed:
		return &p.StraightLineSpeed
	case StatTurningSpeed:
		return &p.TurningSpeed
	case StatDriftSpeed:
		return &p.DriftSpeed
	case StatFeatherSpeed:
		return &p.FeatherSpeed
	case StatOffTrackSpeed:
		return &p.OffTrackSpeed
	case StatBrakingSpeed:
		return &p.BrakingSpeed
	case StatStraightLineAcceleration:
		return &p.StraightLineAcceleration
	case StatSlowingDeceleration:
		return &p.SlowingDeceleration
	case StatTurningAntiAcceleration:
		return &p.TurningAntiAcceleration
	case StatDriftAntiAcceleration:
		return &p.DriftAntiAcceleration
	case StatFeatherAntiAcceleration:
		return &p.FeatherAntiAcceleration
	case StatBrakingDeceleration:
		return &p.BrakingDeceleration
	case StatOffTrackDeceleration:
		return &p.OffTrackDeceleration
	case StatOffTrackDecelerationGrowth:
		return &p.OffTrackDecelerationGrowth
	case StatMaxTurnRate:
		return &p.MaxTurnRate
	case StatTurnRateAcceleration:
		return &p.TurnRateAcceleration
	case StatDriftMaxTurnRate:
		return &p.DriftMaxTurnRate
	case StatDriftTurnRateAcceleration:
		return &p.DriftTurnRateAcceleration
	case StatFeatherMaxTurnRate:
		return &p.FeatherMaxTurnRate
	case StatFeatherTurnRateAcceleration:
		return &p.FeatherTurnRateAcceleration
	case StatGroundDrag:
		return &p.GroundDrag
	case StatDriftGroundDrag:
		return &p.DriftGroundDrag
	case StatFeatherGroundDrag:
		return &p.FeatherGroundDrag
	case StatAirDrag:
		return &p.AirDrag
	case StatDrivingForce:
		return &p.DrivingForce
	case StatInAirTurningModifier:
		return &p.InAirTurningModifier
	case StatSideAirForce:
		return &p.SideAirForce
	case StatInitialDownForceAcceleration:
		return &p.InitialDownForceAcceleration
	case StatDownForceJerk:
		return &p.DownForceJerk
	case StatDownForceMax:
		return &p.DownForceMax
	case StatVisualTurnModifier:
		return &p.VisualTurnModifier
	case StatTurnTiltFactor:
		return &p.TurnTiltFactor
	}
	return nil
}
