// Package memory implements a storage backend that keeps the session in
// memory and exports a JSON replay when the session ends.
package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kartracer/kartsim/internal/config"
	v1 "github.com/kartracer/kartsim/internal/storage/memory/export/v1"
	"github.com/kartracer/kartsim/pkg/core"
)

// Backend stores session data in memory and exports to JSON
type Backend struct {
	cfg  config.MemoryConfig
	data *v1.SessionData

	lastExportPath     string
	lastExportMetadata core.UploadMetadata

	mu sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session, discarding anything recorded before.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = v1.NewSessionData(*s)
	return nil
}

// EndSession exports the session to the output directory.
func (b *Backend) EndSession(end time.Time, endTick uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.data == nil {
		return fmt.Errorf("no session started")
	}
	b.data.EndTime = end
	b.data.EndTick = endTick
	return b.exportJSON()
}

func (b *Backend) exportJSON() error {
	export := v1.Build(b.data)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(b.cfg.OutputDir, v1.FileName(export.SessionName, export.StartTime, b.cfg.CompressOutput))
	if err := v1.WriteFile(outputPath, export, b.cfg.CompressOutput); err != nil {
		return err
	}

	b.lastExportPath = outputPath
	b.lastExportMetadata = export.Metadata()
	return nil
}

// AddVehicle registers a vehicle. Registering the same id again replaces
// the vehicle record but keeps its snapshots.
func (b *Backend) AddVehicle(v *core.Vehicle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.data == nil {
		return fmt.Errorf("no session started")
	}
	if r, ok := b.data.Vehicles[v.ID]; ok {
		r.Vehicle = *v
		return nil
	}
	b.data.Vehicles[v.ID] = &v1.VehicleRecord{Vehicle: *v}
	return nil
}

// RecordSnapshot appends a snapshot to its vehicle's track.
func (b *Backend) RecordSnapshot(s *core.VehicleSnapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.data == nil {
		return fmt.Errorf("no session started")
	}
	r, ok := b.data.Vehicles[s.VehicleID]
	if !ok {
		return fmt.Errorf("vehicle %d not registered", s.VehicleID)
	}
	r.Snapshots = append(r.Snapshots, *s)
	return nil
}

// RecordEffect records an effect being applied or reverted.
func (b *Backend) RecordEffect(e *core.EffectEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.data == nil {
		return fmt.Errorf("no session started")
	}
	b.data.Effects = append(b.data.Effects, *e)
	return nil
}

// RecordStateChange records a driving state transition.
func (b *Backend) RecordStateChange(e *core.StateChangeEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.data == nil {
		return fmt.Errorf("no session started")
	}
	b.data.StateChanges = append(b.data.StateChanges, *e)
	return nil
}

// GetExportedFilePath returns the path of the last exported file.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata returns metadata about the last export.
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportMetadata
}
