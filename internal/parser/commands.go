package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/kartracer/kartsim/internal/drive"
	"github.com/kartracer/kartsim/pkg/core"
)

// Command names understood by the session.
const (
	CmdIntent     = ":INTENT:"
	CmdActivate   = ":ACTIVATE:"
	CmdDeactivate = ":DEACTIVATE:"
	CmdFinish     = ":FINISH:"
	CmdReset      = ":RESET:"
	CmdUnlock     = ":UNLOCK:"
	CmdJump       = ":JUMP:"
	CmdEffect     = ":EFFECT:"
	CmdStun       = ":STUN:"
	CmdBoost      = ":BOOST:"
)

// IntentCommand carries one input sample.
type IntentCommand struct {
	VehicleID uint16
	Intent    drive.Intent
	Remote    bool
}

// VehicleCommand addresses a kart with no further arguments.
type VehicleCommand struct {
	VehicleID uint16
}

// TimedCommand addresses a kart with a duration (unlock, stun).
type TimedCommand struct {
	VehicleID uint16
	Duration  time.Duration
}

// JumpCommand launches a kart with a fixed velocity and relocks it later.
type JumpCommand struct {
	VehicleID uint16
	Velocity  mgl64.Vec3
	Duration  time.Duration
}

// EffectCommand is a named timed stat modification.
type EffectCommand struct {
	VehicleID uint16
	Name      string
	Duration  time.Duration
	Stats     []core.Stat
	Deltas    []float64
}

// BoostCommand is an instant speed delta.
type BoostCommand struct {
	VehicleID uint16
	Delta     float64
}

// ParseIntent parses [vehicleID, right, left, slow, drift, doubleTap, remote].
// Trailing flags may be omitted and read as false.
func (p *Parser) ParseIntent(args []string) (IntentCommand, error) {
	var cmd IntentCommand
	if err := needArgs(CmdIntent, args, 1); err != nil {
		return cmd, err
	}
	id, err := parseVehicleID(args[0])
	if err != nil {
		return cmd, err
	}
	cmd.VehicleID = id

	flags := make([]bool, 6)
	for i := range flags {
		if i+1 >= len(args) {
			break
		}
		if flags[i], err = parseFlag(args[i+1]); err != nil {
			return cmd, fmt.Errorf("error parsing intent flag %d: %w", i, err)
		}
	}
	cmd.Intent = drive.Intent{
		TurnRight: flags[0],
		TurnLeft:  flags[1],
		Slow:      flags[2],
		DriftHeld: flags[3],
		DoubleTap: flags[4],
	}
	cmd.Remote = flags[5]

	p.logger.Debug("Parsed intent", "vehicle", id, "intent", cmd.Intent, "remote", cmd.Remote)
	return cmd, nil
}

// ParseVehicle parses [vehicleID] for activate, deactivate, finish and reset.
func (p *Parser) ParseVehicle(command string, args []string) (VehicleCommand, error) {
	if err := needArgs(command, args, 1); err != nil {
		return VehicleCommand{}, err
	}
	id, err := parseVehicleID(args[0])
	return VehicleCommand{VehicleID: id}, err
}

// ParseTimed parses [vehicleID, seconds] for unlock and stun.
func (p *Parser) ParseTimed(command string, args []string) (TimedCommand, error) {
	var cmd TimedCommand
	if err := needArgs(command, args, 2); err != nil {
		return cmd, err
	}
	var err error
	if cmd.VehicleID, err = parseVehicleID(args[0]); err != nil {
		return cmd, err
	}
	cmd.Duration, err = parseSeconds(args[1])
	return cmd, err
}

// ParseJump parses [vehicleID, vx, vy, vz, seconds].
func (p *Parser) ParseJump(args []string) (JumpCommand, error) {
	var cmd JumpCommand
	if err := needArgs(CmdJump, args, 5); err != nil {
		return cmd, err
	}
	var err error
	if cmd.VehicleID, err = parseVehicleID(args[0]); err != nil {
		return cmd, err
	}
	for i := 0; i < 3; i++ {
		if cmd.Velocity[i], err = parseFinite(args[i+1]); err != nil {
			return cmd, fmt.Errorf("error parsing velocity: %w", err)
		}
	}
	cmd.Duration, err = parseSeconds(args[4])
	return cmd, err
}

// ParseEffect parses [vehicleID, name, seconds, stat=delta...]. At least
// one stat is required and every stat name must be known.
func (p *Parser) ParseEffect(args []string) (EffectCommand, error) {
	var cmd EffectCommand
	if err := needArgs(CmdEffect, args, 4); err != nil {
		return cmd, err
	}
	var err error
	if cmd.VehicleID, err = parseVehicleID(args[0]); err != nil {
		return cmd, err
	}
	cmd.Name = strings.TrimSpace(args[1])
	if cmd.Duration, err = parseSeconds(args[2]); err != nil {
		return cmd, err
	}

	for _, pair := range args[3:] {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return cmd, fmt.Errorf("error parsing effect term %q: want stat=delta", pair)
		}
		stat, err := core.ParseStat(name)
		if err != nil {
			return cmd, err
		}
		delta, err := parseFinite(value)
		if err != nil {
			return cmd, fmt.Errorf("error parsing delta for %s: %w", stat, err)
		}
		cmd.Stats = append(cmd.Stats, stat)
		cmd.Deltas = append(cmd.Deltas, delta)
	}

	p.logger.Debug("Parsed effect", "vehicle", cmd.VehicleID, "name", cmd.Name, "stats", len(cmd.Stats))
	return cmd, nil
}

// ParseBoost parses [vehicleID, delta].
func (p *Parser) ParseBoost(args []string) (BoostCommand, error) {
	var cmd BoostCommand
	if err := needArgs(CmdBoost, args, 2); err != nil {
		return cmd, err
	}
	var err error
	if cmd.VehicleID, err = parseVehicleID(args[0]); err != nil {
		return cmd, err
	}
	if cmd.Delta, err = parseFinite(args[1]); err != nil {
		return cmd, fmt.Errorf("error parsing boost delta: %w", err)
	}
	return cmd, nil
}
