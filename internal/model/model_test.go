package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name     string
		model    interface{ TableName() string }
		expected string
	}{
		{"Session", &Session{}, "sessions"},
		{"Vehicle", &Vehicle{}, "vehicles"},
		{"VehicleSnapshot", &VehicleSnapshot{}, "vehicle_snapshots"},
		{"EffectEvent", &EffectEvent{}, "effect_events"},
		{"StateChange", &StateChange{}, "state_changes"},
		{"SessionPerformance", &SessionPerformance{}, "session_performances"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.model.TableName())
		})
	}
}

func TestDatabaseModels_AllHaveTableNames(t *testing.T) {
	for _, m := range DatabaseModels {
		_, ok := m.(interface{ TableName() string })
		assert.True(t, ok, "%T", m)
	}
}
