package model

import (
	"time"

	"gorm.io/datatypes"
)

// DatabaseModels lists every table in the schema, in migration order.
var DatabaseModels = []any{
	&Session{},
	&Vehicle{},
	&VehicleSnapshot{},
	&EffectEvent{},
	&StateChange{},
	&SessionPerformance{},
}

// Session is one simulated race session.
type Session struct {
	ID                uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	UUID              string     `json:"uuid" gorm:"size:36;uniqueIndex:idx_session_uuid"`
	Name              string     `json:"name" gorm:"size:128"`
	TrackName         string     `json:"trackName" gorm:"size:128"`
	StartTime         time.Time  `json:"startTime"`
	EndTime           *time.Time `json:"endTime"`
	TickIntervalMs    int64      `json:"tickIntervalMs"`
	PublishIntervalMs int64      `json:"publishIntervalMs"`
	EndTick           uint64     `json:"endTick"`
}

func (*Session) TableName() string {
	return "sessions"
}

// Vehicle is a kart registered in a session.
// VehicleID is the in-session id carried on the wire.
type Vehicle struct {
	ID          uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID   uint      `json:"sessionId" gorm:"index:idx_vehicle_session_vehicle"`
	Session     Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	VehicleID   uint16    `json:"vehicleId" gorm:"index:idx_vehicle_session_vehicle"`
	Name        string    `json:"name" gorm:"size:64"`
	ProfileName string    `json:"profileName" gorm:"size:64"`
	JoinTime    time.Time `json:"joinTime"`
	JoinTick    uint64    `json:"joinTick"`
}

func (*Vehicle) TableName() string {
	return "vehicles"
}

// VehicleSnapshot is one published authoritative snapshot.
type VehicleSnapshot struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_snapshot_session_vehicle_tick,priority:1"`
	Session   Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	VehicleID uint16    `json:"vehicleId" gorm:"index:idx_snapshot_session_vehicle_tick,priority:2"`
	Tick      uint64    `json:"tick" gorm:"index:idx_snapshot_session_vehicle_tick,priority:3"`
	Time      time.Time `json:"time"`

	PosX float64 `json:"posX"`
	PosY float64 `json:"posY"`
	PosZ float64 `json:"posZ"`
	RotX float64 `json:"rotX"`
	RotY float64 `json:"rotY"`
	RotZ float64 `json:"rotZ"`
	RotW float64 `json:"rotW"`

	TurnRate  float64 `json:"turnRate"`
	Drift     bool    `json:"drift"`
	Speed     float64 `json:"speed"`
	State     string  `json:"state" gorm:"size:16"`
	OnTerrain bool    `json:"onTerrain"`
	DownForce float64 `json:"downForce"`
}

func (*VehicleSnapshot) TableName() string {
	return "vehicle_snapshots"
}

// EffectEvent records a stat effect being applied or reverted.
// Deltas maps stat names to the applied delta.
type EffectEvent struct {
	ID         uint              `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID  uint              `json:"sessionId" gorm:"index:idx_effect_session_id"`
	Session    Session           `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	VehicleID  uint16            `json:"vehicleId"`
	EffectID   uint64            `json:"effectId"`
	Name       string            `json:"name" gorm:"size:64"`
	Deltas     datatypes.JSONMap `json:"deltas"`
	DurationMs int64             `json:"durationMs"`
	Tick       uint64            `json:"tick"`
	Time       time.Time         `json:"time"`
	Reverted   bool              `json:"reverted"`
}

func (*EffectEvent) TableName() string {
	return "effect_events"
}

// StateChange records a driving state transition.
type StateChange struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_statechange_session_id"`
	Session   Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	VehicleID uint16    `json:"vehicleId"`
	Tick      uint64    `json:"tick"`
	Time      time.Time `json:"time"`
	FromState string    `json:"fromState" gorm:"size:16"`
	ToState   string    `json:"toState" gorm:"size:16"`
}

func (*StateChange) TableName() string {
	return "state_changes"
}

// SessionPerformance is one monitor sample.
type SessionPerformance struct {
	ID                  uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID           uint      `json:"sessionId" gorm:"index:idx_performance_session_id"`
	Session             Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Time                time.Time `json:"time" gorm:"index:idx_performance_time"`
	Tick                uint64    `json:"tick"`
	Karts               int       `json:"karts"`
	PendingTasks        int       `json:"pendingTasks"`
	InboxDepth          int       `json:"inboxDepth"`
	InboxDropped        uint64    `json:"inboxDropped"`
	LastTickDurationMs  float64   `json:"lastTickDurationMs"`
	LastWriteDurationMs float64   `json:"lastWriteDurationMs"`
}

func (*SessionPerformance) TableName() string {
	return "session_performances"
}
