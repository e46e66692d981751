package convert

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/kartracer/kartsim/internal/model"
	"github.com/kartracer/kartsim/pkg/core"
)

// SessionToCore converts a GORM Session to a core.Session.
func SessionToCore(s model.Session) core.Session {
	return core.Session{
		ID:              s.UUID,
		Name:            s.Name,
		TrackName:       s.TrackName,
		StartTime:       s.StartTime,
		TickInterval:    time.Duration(s.TickIntervalMs) * time.Millisecond,
		PublishInterval: time.Duration(s.PublishIntervalMs) * time.Millisecond,
	}
}

// VehicleToCore converts a GORM Vehicle to a core.Vehicle.
func VehicleToCore(v model.Vehicle) core.Vehicle {
	return core.Vehicle{
		ID:          v.VehicleID,
		Name:        v.Name,
		ProfileName: v.ProfileName,
		JoinTime:    v.JoinTime,
		JoinTick:    v.JoinTick,
	}
}

// SnapshotToCore converts a GORM VehicleSnapshot to a core.VehicleSnapshot.
// An unrecognised state name reads as Stopped.
func SnapshotToCore(s model.VehicleSnapshot) core.VehicleSnapshot {
	state, _ := core.ParseDrivingState(s.State)
	return core.VehicleSnapshot{
		VehicleID: s.VehicleID,
		Tick:      s.Tick,
		Time:      s.Time,
		Snapshot: core.Snapshot{
			Position:    mgl64.Vec3{s.PosX, s.PosY, s.PosZ},
			Orientation: mgl64.Quat{W: s.RotW, V: mgl64.Vec3{s.RotX, s.RotY, s.RotZ}},
			TurnRate:    s.TurnRate,
			Drift:       s.Drift,
		},
		Speed:     s.Speed,
		State:     state,
		OnTerrain: s.OnTerrain,
		DownForce: s.DownForce,
	}
}

// EffectToCore converts a GORM EffectEvent to a core.EffectEvent.
// Stats come back in stat order; unknown names and non-numeric deltas are skipped.
func EffectToCore(e model.EffectEvent) core.EffectEvent {
	values := make(map[core.Stat]float64, len(e.Deltas))
	stats := make([]core.Stat, 0, len(e.Deltas))
	for name, raw := range e.Deltas {
		s, err := core.ParseStat(name)
		if err != nil {
			continue
		}
		v, ok := toFloat(raw)
		if !ok {
			continue
		}
		values[s] = v
		stats = append(stats, s)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i] < stats[j] })

	deltas := make([]float64, len(stats))
	for i, s := range stats {
		deltas[i] = values[s]
	}

	return core.EffectEvent{
		VehicleID: e.VehicleID,
		EffectID:  e.EffectID,
		Name:      e.Name,
		Stats:     stats,
		Deltas:    deltas,
		Duration:  time.Duration(e.DurationMs) * time.Millisecond,
		Tick:      e.Tick,
		Time:      e.Time,
		Reverted:  e.Reverted,
	}
}

// StateChangeToCore converts a GORM StateChange to a core.StateChangeEvent.
func StateChangeToCore(e model.StateChange) core.StateChangeEvent {
	from, _ := core.ParseDrivingState(e.FromState)
	to, _ := core.ParseDrivingState(e.ToState)
	return core.StateChangeEvent{
		VehicleID: e.VehicleID,
		Tick:      e.Tick,
		Time:      e.Time,
		From:      from,
		To:        to,
	}
}

// toFloat reads a JSON map value, which is json.Number after a database scan.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
