// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"github.com/kartracer/kartsim/internal/model"
	"github.com/kartracer/kartsim/pkg/core"
	"gorm.io/datatypes"
)

// SessionToGorm converts a core.Session to a GORM Session.
func SessionToGorm(s core.Session) model.Session {
	return model.Session{
		UUID:              s.ID,
		Name:              s.Name,
		TrackName:         s.TrackName,
		StartTime:         s.StartTime,
		TickIntervalMs:    s.TickInterval.Milliseconds(),
		PublishIntervalMs: s.PublishInterval.Milliseconds(),
	}
}

// VehicleToGorm converts a core.Vehicle to a GORM Vehicle.
// Core Vehicle.ID maps to GORM VehicleID; the row ID is left for the database.
func VehicleToGorm(sessionID uint, v core.Vehicle) model.Vehicle {
	return model.Vehicle{
		SessionID:   sessionID,
		VehicleID:   v.ID,
		Name:        v.Name,
		ProfileName: v.ProfileName,
		JoinTime:    v.JoinTime,
		JoinTick:    v.JoinTick,
	}
}

// SnapshotToGorm converts a core.VehicleSnapshot to a GORM VehicleSnapshot.
func SnapshotToGorm(sessionID uint, s core.VehicleSnapshot) model.VehicleSnapshot {
	p, q := s.Snapshot.Position, s.Snapshot.Orientation
	return model.VehicleSnapshot{
		SessionID: sessionID,
		VehicleID: s.VehicleID,
		Tick:      s.Tick,
		Time:      s.Time,
		PosX:      p.X(),
		PosY:      p.Y(),
		PosZ:      p.Z(),
		RotX:      q.X(),
		RotY:      q.Y(),
		RotZ:      q.Z(),
		RotW:      q.W,
		TurnRate:  s.Snapshot.TurnRate,
		Drift:     s.Snapshot.Drift,
		Speed:     s.Speed,
		State:     s.State.String(),
		OnTerrain: s.OnTerrain,
		DownForce: s.DownForce,
	}
}

// EffectToGorm converts a core.EffectEvent to a GORM EffectEvent.
// Stats and Deltas are zipped into a name-keyed map.
func EffectToGorm(sessionID uint, e core.EffectEvent) model.EffectEvent {
	deltas := make(datatypes.JSONMap, len(e.Stats))
	for i, s := range e.Stats {
		if i < len(e.Deltas) {
			deltas[s.String()] = e.Deltas[i]
		}
	}
	return model.EffectEvent{
		SessionID:  sessionID,
		VehicleID:  e.VehicleID,
		EffectID:   e.EffectID,
		Name:       e.Name,
		Deltas:     deltas,
		DurationMs: e.Duration.Milliseconds(),
		Tick:       e.Tick,
		Time:       e.Time,
		Reverted:   e.Reverted,
	}
}

// StateChangeToGorm converts a core.StateChangeEvent to a GORM StateChange.
func StateChangeToGorm(sessionID uint, e core.StateChangeEvent) model.StateChange {
	return model.StateChange{
		SessionID: sessionID,
		VehicleID: e.VehicleID,
		Tick:      e.Tick,
		Time:      e.Time,
		FromState: e.From.String(),
		ToState:   e.To.String(),
	}
}
