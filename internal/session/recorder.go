package session

import (
	"log/slog"

	"github.com/kartracer/kartsim/internal/storage"
	"github.com/kartracer/kartsim/pkg/core"
)

// Recorder forwards a kart's snapshots and events to the storage backend.
// It runs on the tick goroutine; backends only queue.
type Recorder struct {
	backend storage.Backend
	log     *slog.Logger
}

// NewRecorder creates a recorder writing to backend.
func NewRecorder(backend storage.Backend, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{backend: backend, log: logger}
}

func (r *Recorder) PublishSnapshot(vs core.VehicleSnapshot) error {
	return r.backend.RecordSnapshot(&vs)
}

func (r *Recorder) StateChanged(e core.StateChangeEvent) {
	if err := r.backend.RecordStateChange(&e); err != nil {
		r.log.Warn("Failed to record state change", "vehicle", e.VehicleID, "error", err)
	}
}

func (r *Recorder) EffectChanged(e core.EffectEvent) {
	if err := r.backend.RecordEffect(&e); err != nil {
		r.log.Warn("Failed to record effect", "vehicle", e.VehicleID, "effect", e.Name, "error", err)
	}
}
