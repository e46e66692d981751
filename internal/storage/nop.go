package storage

import (
	"time"

	"github.com/kartracer/kartsim/pkg/core"
)

// Nop discards everything.
type Nop struct{}

func (Nop) Init() error                                    { return nil }
func (Nop) Close() error                                   { return nil }
func (Nop) StartSession(*core.Session) error               { return nil }
func (Nop) EndSession(time.Time, uint64) error             { return nil }
func (Nop) AddVehicle(*core.Vehicle) error                 { return nil }
func (Nop) RecordSnapshot(*core.VehicleSnapshot) error     { return nil }
func (Nop) RecordEffect(*core.EffectEvent) error           { return nil }
func (Nop) RecordStateChange(*core.StateChangeEvent) error { return nil }
