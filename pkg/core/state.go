// pkg/core/state.go
package core

import "fmt"

// DrivingState is the active driving mode of a vehicle. Exactly one is
// active at a time.
type DrivingState uint8

const (
	Stopped DrivingState = iota
	Forward
	TurnLeft
	TurnRight
	DriftLeft
	DriftRight
	AirLocked
	Finished
)

var drivingStateNames = [...]string{
	Stopped:    "stopped",
	Forward:    "forward",
	TurnLeft:   "turn_left",
	TurnRight:  "turn_right",
	DriftLeft:  "drift_left",
	DriftRight: "drift_right",
	AirLocked:  "air_locked",
	Finished:   "finished",
}

func (s DrivingState) String() string {
	if int(s) < len(drivingStateNames) {
		return drivingStateNames[s]
	}
	return fmt.Sprintf("DrivingState(%d)", uint8(s))
}

// IsDrift reports whether s is one of the drift states.
func (s DrivingState) IsDrift() bool {
	return s == DriftLeft || s == DriftRight
}

// IsTurn reports whether s is one of the non-drift turn states.
func (s DrivingState) IsTurn() bool {
	return s == TurnLeft || s == TurnRight
}

// Direction returns -1 for left states, +1 for right states and 0 otherwise.
func (s DrivingState) Direction() float64 {
	switch s {
	case TurnLeft, DriftLeft:
		return -1
	case TurnRight, DriftRight:
		return 1
	}
	return 0
}

// AcceptsIntent reports whether movement intents may change the state.
// An unlocked vehicle keeps steering.
func (s DrivingState) AcceptsIntent() bool {
	return s != Stopped && s != Finished
}

// ParseDrivingState returns the state with the given name.
func ParseDrivingState(name string) (DrivingState, error) {
	for i, n := range drivingStateNames {
		if n == name {
			return DrivingState(i), nil
		}
	}
	return 0, fmt.Errorf("unknown driving state %q", name)
}
