package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Stat
		wantErr bool
	}{
		{name: "exact", input: "straightLineSpeed", want: StatStraightLineSpeed},
		{name: "case insensitive", input: "DRIFTMAXTURNRATE", want: StatDriftMaxTurnRate},
		{name: "surrounding space", input: "  airDrag ", want: StatAirDrag},
		{name: "unknown", input: "boostPower", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStat(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownStat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHandlingProfile_EveryStatAddressable(t *testing.T) {
	var p HandlingProfile
	for i, s := range AllStats() {
		require.NoError(t, p.Set(s, float64(i+1)), s.String())
	}
	for i, s := range AllStats() {
		assert.Equal(t, float64(i+1), p.Get(s), s.String())

		parsed, err := ParseStat(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
}

func TestHandlingProfile_UnknownStat(t *testing.T) {
	p := DefaultHandlingProfile()
	bogus := Stat(200)

	assert.False(t, bogus.Valid())
	assert.Equal(t, 0.0, p.Get(bogus))
	assert.ErrorIs(t, p.Set(bogus, 1), ErrUnknownStat)
	assert.Equal(t, "Stat(200)", bogus.String())
}

func TestDefaultHandlingProfile(t *testing.T) {
	p := DefaultHandlingProfile()

	assert.Equal(t, 100.0, p.StraightLineSpeed)
	assert.Equal(t, 0.75, p.StraightLineAcceleration)
	assert.Equal(t, 1.5, p.MaxTurnRate)
	assert.Equal(t, 0.4, p.FeatherMaxTurnRate)
	assert.Equal(t, 90.0, p.FeatherSpeed)
	assert.Equal(t, 400.0, p.DrivingForce)
}

func TestDrivingState(t *testing.T) {
	assert.Equal(t, "drift_left", DriftLeft.String())
	assert.Equal(t, "DrivingState(42)", DrivingState(42).String())

	assert.True(t, DriftRight.IsDrift())
	assert.False(t, TurnRight.IsDrift())
	assert.True(t, TurnLeft.IsTurn())

	assert.Equal(t, -1.0, DriftLeft.Direction())
	assert.Equal(t, 1.0, TurnRight.Direction())
	assert.Equal(t, 0.0, Forward.Direction())

	assert.True(t, Forward.AcceptsIntent())
	assert.False(t, Stopped.AcceptsIntent())
	assert.False(t, Finished.AcceptsIntent())
	assert.True(t, AirLocked.AcceptsIntent())

	s, err := ParseDrivingState("air_locked")
	require.NoError(t, err)
	assert.Equal(t, AirLocked, s)
	_, err = ParseDrivingState("flying")
	assert.Error(t, err)
}

func TestNewTickKinematics(t *testing.T) {
	p := DefaultHandlingProfile()
	k := NewTickKinematics(p)

	assert.True(t, k.GroundLock)
	assert.True(t, k.CanCalculate)
	assert.Equal(t, p.InitialDownForceAcceleration, k.DownForceAcceleration)
	assert.Equal(t, p.OffTrackDeceleration, k.OffTrackDeceleration)
	assert.Zero(t, k.Speed)
}
