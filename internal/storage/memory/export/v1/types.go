// Package v1 contains the v1 replay format for recorded kart sessions.
package v1

import "time"

// FormatVersion is written into every export.
const FormatVersion = 1

// Export is the root JSON structure for the v1 replay format.
type Export struct {
	Version           int       `json:"version"`
	SessionID         string    `json:"sessionId"`
	SessionName       string    `json:"sessionName"`
	TrackName         string    `json:"trackName"`
	StartTime         time.Time `json:"startTime"`
	EndTime           time.Time `json:"endTime"`
	TickIntervalMs    int64     `json:"tickIntervalMs"`
	PublishIntervalMs int64     `json:"publishIntervalMs"`
	EndTick           uint64    `json:"endTick"`
	Vehicles          []Vehicle `json:"vehicles"`
	Events            [][]any   `json:"events"`
}

// Vehicle is one kart with its snapshot track.
//
// Each snapshot is [tick, [x, y, z], [x, y, z, w], turnRate, drift, speed, state].
type Vehicle struct {
	ID        uint16  `json:"id"`
	Name      string  `json:"name"`
	Profile   string  `json:"profile"`
	JoinTick  uint64  `json:"joinTick"`
	Snapshots [][]any `json:"snapshots"`
}
