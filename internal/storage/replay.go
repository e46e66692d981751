package storage

import (
	"fmt"
	"sort"

	v1 "github.com/kartracer/kartsim/internal/storage/memory/export/v1"
)

// Replay writes recorded session data into dst as if it were happening
// live: the session, its vehicles, every snapshot in tick order, then the
// events, and finally the session end.
func Replay(data *v1.SessionData, dst Backend) error {
	session := data.Session
	if err := dst.StartSession(&session); err != nil {
		return fmt.Errorf("starting session %s: %w", session.ID, err)
	}

	ids := make([]uint16, 0, len(data.Vehicles))
	for id := range data.Vehicles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		rec := data.Vehicles[id]
		v := rec.Vehicle
		if err := dst.AddVehicle(&v); err != nil {
			return fmt.Errorf("adding vehicle %d: %w", id, err)
		}
		for i := range rec.Snapshots {
			if err := dst.RecordSnapshot(&rec.Snapshots[i]); err != nil {
				return fmt.Errorf("recording snapshot for vehicle %d: %w", id, err)
			}
		}
	}

	for i := range data.StateChanges {
		if err := dst.RecordStateChange(&data.StateChanges[i]); err != nil {
			return fmt.Errorf("recording state change: %w", err)
		}
	}
	for i := range data.Effects {
		if err := dst.RecordEffect(&data.Effects[i]); err != nil {
			return fmt.Errorf("recording effect: %w", err)
		}
	}

	endTick := data.EndTick
	for _, rec := range data.Vehicles {
		if n := len(rec.Snapshots); n > 0 && rec.Snapshots[n-1].Tick > endTick {
			endTick = rec.Snapshots[n-1].Tick
		}
	}
	return dst.EndSession(data.EndTime, endTick)
}
