package v1

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/kartracer/kartsim/pkg/core"
)

// SessionData contains all the data needed to build an export
type SessionData struct {
	Session      core.Session
	EndTime      time.Time
	EndTick      uint64
	Vehicles     map[uint16]*VehicleRecord
	Effects      []core.EffectEvent
	StateChanges []core.StateChangeEvent
}

// VehicleRecord groups a vehicle with its published snapshots
type VehicleRecord struct {
	Vehicle   core.Vehicle
	Snapshots []core.VehicleSnapshot
}

// NewSessionData returns empty session data for s.
func NewSessionData(s core.Session) *SessionData {
	return &SessionData{Session: s, Vehicles: make(map[uint16]*VehicleRecord)}
}

// Build creates an Export from the session data.
//
// Vehicles are ordered by id. Events are ordered by tick, with state
// changes before effects on the same tick. Event rows are
//
//	[tick, "state", vehicleID, from, to]
//	[tick, "effect", vehicleID, name, durationMs, reverted, {stat: delta}]
func Build(data *SessionData) Export {
	export := Export{
		Version:           FormatVersion,
		SessionID:         data.Session.ID,
		SessionName:       data.Session.Name,
		TrackName:         data.Session.TrackName,
		StartTime:         data.Session.StartTime,
		EndTime:           data.EndTime,
		TickIntervalMs:    data.Session.TickInterval.Milliseconds(),
		PublishIntervalMs: data.Session.PublishInterval.Milliseconds(),
		EndTick:           data.EndTick,
		Vehicles:          make([]Vehicle, 0, len(data.Vehicles)),
		Events:            make([][]any, 0, len(data.Effects)+len(data.StateChanges)),
	}

	ids := make([]uint16, 0, len(data.Vehicles))
	for id := range data.Vehicles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var maxTick uint64
	for _, id := range ids {
		record := data.Vehicles[id]
		v := Vehicle{
			ID:        record.Vehicle.ID,
			Name:      record.Vehicle.Name,
			Profile:   record.Vehicle.ProfileName,
			JoinTick:  record.Vehicle.JoinTick,
			Snapshots: make([][]any, 0, len(record.Snapshots)),
		}
		for _, s := range record.Snapshots {
			v.Snapshots = append(v.Snapshots, snapshotRow(s))
			if s.Tick > maxTick {
				maxTick = s.Tick
			}
		}
		export.Vehicles = append(export.Vehicles, v)
	}
	if export.EndTick == 0 {
		export.EndTick = maxTick
	}

	type row struct {
		tick  uint64
		order int
		data  []any
	}
	rows := make([]row, 0, cap(export.Events))
	for _, e := range data.StateChanges {
		rows = append(rows, row{e.Tick, 0, []any{e.Tick, "state", e.VehicleID, e.From.String(), e.To.String()}})
	}
	for _, e := range data.Effects {
		deltas := make(map[string]float64, len(e.Stats))
		for i, s := range e.Stats {
			if i < len(e.Deltas) {
				deltas[s.String()] = e.Deltas[i]
			}
		}
		rows = append(rows, row{e.Tick, 1, []any{e.Tick, "effect", e.VehicleID, e.Name, e.Duration.Milliseconds(), e.Reverted, deltas}})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].tick != rows[j].tick {
			return rows[i].tick < rows[j].tick
		}
		return rows[i].order < rows[j].order
	})
	for _, r := range rows {
		export.Events = append(export.Events, r.data)
	}

	return export
}

func snapshotRow(s core.VehicleSnapshot) []any {
	p, q := s.Snapshot.Position, s.Snapshot.Orientation
	return []any{
		s.Tick,
		[]float64{p.X(), p.Y(), p.Z()},
		[]float64{q.X(), q.Y(), q.Z(), q.W},
		s.Snapshot.TurnRate,
		s.Snapshot.Drift,
		s.Speed,
		s.State.String(),
	}
}

// Metadata summarises an export for upload.
func (e Export) Metadata() core.UploadMetadata {
	return core.UploadMetadata{
		SessionName: e.SessionName,
		TrackName:   e.TrackName,
		Duration:    time.Duration(e.EndTick) * time.Duration(e.TickIntervalMs) * time.Millisecond,
		Karts:       len(e.Vehicles),
	}
}

// FileName returns the replay file name for the export.
func FileName(sessionName string, start time.Time, compress bool) string {
	name := strings.NewReplacer(" ", "_", ":", "_", "/", "_").Replace(sessionName)
	if name == "" {
		name = "session"
	}
	ext := ".json"
	if compress {
		ext = ".json.gz"
	}
	return fmt.Sprintf("%s_%s%s", name, start.Format("20060102_150405"), ext)
}

// WriteFile encodes the export to path, gzipped when compress is set.
func WriteFile(path string, e Export, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if !compress {
		return json.NewEncoder(f).Encode(e)
	}

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(e); err != nil {
		gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}

// ReadFile decodes an export written by WriteFile. Gzip is detected by the
// .gz suffix.
func ReadFile(path string) (Export, error) {
	var e Export
	f, err := os.Open(path)
	if err != nil {
		return e, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return e, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	if err := json.NewDecoder(r).Decode(&e); err != nil {
		return e, fmt.Errorf("failed to decode replay: %w", err)
	}
	return e, nil
}
