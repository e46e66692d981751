package worker

import (
	"fmt"

	"github.com/kartracer/kartsim/internal/dispatcher"
	"github.com/kartracer/kartsim/internal/kart"
	"github.com/kartracer/kartsim/internal/parser"
)

// RegisterHandlers registers all command handlers with the dispatcher.
// Handlers only parse and enqueue, so they run synchronously and keep the
// arrival order of commands for the same kart.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(parser.CmdIntent, m.handleIntent)

	d.Register(parser.CmdActivate, m.handleActivate, dispatcher.Logged())
	d.Register(parser.CmdDeactivate, m.handleDeactivate, dispatcher.Logged())
	d.Register(parser.CmdFinish, m.handleFinish, dispatcher.Logged())
	d.Register(parser.CmdReset, m.handleReset, dispatcher.Logged())

	d.Register(parser.CmdUnlock, m.handleUnlock, dispatcher.Logged())
	d.Register(parser.CmdJump, m.handleJump, dispatcher.Logged())

	d.Register(parser.CmdEffect, m.handleEffect, dispatcher.Logged())
	d.Register(parser.CmdStun, m.handleStun, dispatcher.Logged())
	d.Register(parser.CmdBoost, m.handleBoost, dispatcher.Logged())
}

func (m *Manager) enqueue(id uint16, cmd kart.Command) error {
	k, err := m.deps.Karts.MustGet(id)
	if err != nil {
		return err
	}
	k.Enqueue(cmd)
	return nil
}

func (m *Manager) handleIntent(e dispatcher.Event) (any, error) {
	cmd, err := m.deps.Parser.ParseIntent(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse intent: %w", err)
	}
	remote := cmd.Remote || e.Source == dispatcher.SourceRemote
	return nil, m.enqueue(cmd.VehicleID, func(k *kart.Kart) {
		k.SetMoveIntent(cmd.Intent, remote)
	})
}

func (m *Manager) vehicleCommand(e dispatcher.Event, apply kart.Command) (any, error) {
	cmd, err := m.deps.Parser.ParseVehicle(e.Command, e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", e.Command, err)
	}
	return nil, m.enqueue(cmd.VehicleID, apply)
}

func (m *Manager) handleActivate(e dispatcher.Event) (any, error) {
	return m.vehicleCommand(e, (*kart.Kart).Activate)
}

func (m *Manager) handleDeactivate(e dispatcher.Event) (any, error) {
	return m.vehicleCommand(e, (*kart.Kart).Deactivate)
}

func (m *Manager) handleFinish(e dispatcher.Event) (any, error) {
	return m.vehicleCommand(e, (*kart.Kart).Finish)
}

func (m *Manager) handleReset(e dispatcher.Event) (any, error) {
	return m.vehicleCommand(e, func(k *kart.Kart) {
		if k.Reset() {
			m.log.Debug("Kart reset while moving", "vehicle", k.ID())
		}
	})
}

func (m *Manager) handleUnlock(e dispatcher.Event) (any, error) {
	cmd, err := m.deps.Parser.ParseTimed(e.Command, e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse unlock: %w", err)
	}
	return nil, m.enqueue(cmd.VehicleID, func(k *kart.Kart) {
		k.Unlock(cmd.Duration)
	})
}

func (m *Manager) handleJump(e dispatcher.Event) (any, error) {
	cmd, err := m.deps.Parser.ParseJump(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jump: %w", err)
	}
	return nil, m.enqueue(cmd.VehicleID, func(k *kart.Kart) {
		k.CustomJump(k.Pose().Orientation, cmd.Velocity, cmd.Duration)
	})
}

func (m *Manager) handleEffect(e dispatcher.Event) (any, error) {
	cmd, err := m.deps.Parser.ParseEffect(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse effect: %w", err)
	}
	return nil, m.enqueue(cmd.VehicleID, func(k *kart.Kart) {
		if _, err := k.ApplyTimedEffect(cmd.Name, cmd.Stats, cmd.Deltas, cmd.Duration); err != nil {
			m.log.Warn("Effect rejected", "vehicle", k.ID(), "effect", cmd.Name, "error", err)
		}
	})
}

func (m *Manager) handleStun(e dispatcher.Event) (any, error) {
	cmd, err := m.deps.Parser.ParseTimed(e.Command, e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stun: %w", err)
	}
	return nil, m.enqueue(cmd.VehicleID, func(k *kart.Kart) {
		if _, err := k.Stun(cmd.Duration); err != nil {
			m.log.Warn("Stun rejected", "vehicle", k.ID(), "error", err)
		}
	})
}

func (m *Manager) handleBoost(e dispatcher.Event) (any, error) {
	cmd, err := m.deps.Parser.ParseBoost(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse boost: %w", err)
	}
	return nil, m.enqueue(cmd.VehicleID, func(k *kart.Kart) {
		k.SpeedBoost(cmd.Delta)
	})
}
