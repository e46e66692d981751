// pkg/core/session.go
package core

import "time"

// Session is a single simulated race session.
type Session struct {
	ID              string
	Name            string
	TrackName       string
	StartTime       time.Time
	TickInterval    time.Duration
	PublishInterval time.Duration
}

// Vehicle is a kart taking part in a session.
type Vehicle struct {
	ID          uint16
	Name        string
	ProfileName string
	JoinTime    time.Time
	JoinTick    uint64
}

// VehicleSnapshot is a published snapshot with the authority's bookkeeping.
type VehicleSnapshot struct {
	VehicleID uint16
	Tick      uint64
	Time      time.Time
	Snapshot  Snapshot
	Speed     float64
	State     DrivingState
	OnTerrain bool
	DownForce float64
}

// EffectEvent records a timed or instant stat effect.
type EffectEvent struct {
	VehicleID uint16
	EffectID  uint64
	Name      string
	Stats     []Stat
	Deltas    []float64
	Duration  time.Duration
	Tick      uint64
	Time      time.Time
	Reverted  bool
}

// StateChangeEvent records a DrivingState transition.
type StateChangeEvent struct {
	VehicleID uint16
	Tick      uint64
	Time      time.Time
	From      DrivingState
	To        DrivingState
}

// UploadMetadata describes an exported replay for the results server.
type UploadMetadata struct {
	SessionName string
	TrackName   string
	Duration    time.Duration
	Karts       int
	Tag         string
}
