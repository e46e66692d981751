// Package storage defines the recording backends a session writes to.
package storage

import (
	"time"

	"github.com/kartracer/kartsim/pkg/core"
)

// Backend is the interface all storage implementations must satisfy.
// Record methods are called from the tick goroutine and must not block on I/O.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *core.Session) error
	EndSession(end time.Time, endTick uint64) error

	// Vehicle registration
	AddVehicle(v *core.Vehicle) error

	// Recording
	RecordSnapshot(s *core.VehicleSnapshot) error
	RecordEffect(e *core.EffectEvent) error
	RecordStateChange(e *core.StateChangeEvent) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to the results server.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}
