// Package kart composes the handling layer, the driving state machine and the
// movement integrator into one authoritative vehicle.
package kart

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/kartracer/kartsim/internal/drive"
	"github.com/kartracer/kartsim/internal/modifier"
	"github.com/kartracer/kartsim/internal/physics"
	"github.com/kartracer/kartsim/internal/queue"
	"github.com/kartracer/kartsim/internal/scheduler"
	"github.com/kartracer/kartsim/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Config describes one kart at spawn.
type Config struct {
	ID              uint16
	Name            string
	ProfileName     string
	Profile         core.HandlingProfile
	Physics         physics.Config
	Debounce        time.Duration
	PublishInterval time.Duration
	Position        mgl64.Vec3
	Rotation        mgl64.Quat
}

// InboxLimit bounds the commands waiting for the next tick. Older commands
// are dropped first.
const InboxLimit = 256

// Command is work queued for the kart's own tick.
type Command func(k *Kart)

// Listener receives the kart's events on the tick goroutine.
type Listener interface {
	StateChanged(e core.StateChangeEvent)
	EffectChanged(e core.EffectEvent)
}

// Status is a read-only summary safe to read from any goroutine.
type Status struct {
	ID           uint16
	Name         string
	Tick         uint64
	State        core.DrivingState
	Speed        float64
	BodySpeed    float64
	TurnRate     float64
	Drifting     bool
	OnTerrain    bool
	Grounded     bool
	Position     mgl64.Vec3
	PendingTasks int
	Effects      int
	Published    uint64
	InboxDepth   int
	InboxDropped uint64
}

// Kart is one authoritative vehicle. Everything except Enqueue and Status
// must be called from the goroutine driving Tick.
type Kart struct {
	id      uint16
	name    string
	profile string

	sched     *scheduler.Scheduler
	stats     *modifier.Layer
	machine   *drive.Machine
	integ     *physics.Integrator
	body      *physics.Body
	kin       core.TickKinematics
	publisher *Publisher

	inbox    *queue.Queue[Command]
	listener Listener
	log      *slog.Logger

	tick     uint64
	now      time.Time
	grounded bool
	status   atomic.Pointer[Status]

	attrs         metric.MeasurementOption
	ticks         metric.Int64Counter
	published     metric.Int64Counter
	effectsMetric metric.Int64Counter
}

// New spawns a kart probing against contacts. The kart starts Stopped.
func New(cfg Config, contacts physics.ContactQuery, logger *slog.Logger) (*Kart, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Rotation == (mgl64.Quat{}) {
		cfg.Rotation = mgl64.QuatIdent()
	}

	sched := scheduler.New()
	k := &Kart{
		id:        cfg.ID,
		name:      cfg.Name,
		profile:   cfg.ProfileName,
		sched:     sched,
		stats:     modifier.New(cfg.Profile, sched),
		integ:     physics.NewIntegrator(cfg.Physics, contacts),
		body:      physics.NewBody(cfg.Position, cfg.Rotation, cfg.Physics.Gravity),
		kin:       core.NewTickKinematics(cfg.Profile),
		publisher: NewPublisher(cfg.PublishInterval),
		inbox:     queue.NewBounded[Command](InboxLimit),
		log:       logger.With("vehicle", cfg.ID),
		attrs:     metric.WithAttributes(attribute.Int("vehicle", int(cfg.ID))),
	}
	if cfg.Physics.Mass > 0 {
		k.body.Mass = cfg.Physics.Mass
	}
	k.machine = drive.New(&k.kin, k.stats, sched, cfg.Debounce)
	k.machine.OnStateChange(k.stateChanged)
	k.stats.SetObserver(effectObserver{k})

	m := meter()
	var err error
	if k.ticks, err = m.Int64Counter("kart.ticks", metric.WithDescription("Simulation ticks run")); err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}
	if k.published, err = m.Int64Counter("kart.snapshots.published", metric.WithDescription("Authoritative snapshots published")); err != nil {
		return nil, fmt.Errorf("creating snapshot counter: %w", err)
	}
	if k.effectsMetric, err = m.Int64Counter("kart.effects.applied", metric.WithDescription("Stat effects applied")); err != nil {
		return nil, fmt.Errorf("creating effect counter: %w", err)
	}

	k.storeStatus()
	return k, nil
}

func (k *Kart) ID() uint16   { return k.id }
func (k *Kart) Name() string { return k.name }

// Vehicle returns the kart's session record.
func (k *Kart) Vehicle() core.Vehicle {
	return core.Vehicle{ID: k.id, Name: k.name, ProfileName: k.profile, JoinTime: k.now, JoinTick: k.tick}
}

// SetListener registers the event listener.
func (k *Kart) SetListener(l Listener) {
	k.listener = l
}

// AddSink adds a snapshot sink to the kart's publisher.
func (k *Kart) AddSink(s SnapshotSink) {
	k.publisher.AddSink(s)
}

// Enqueue schedules cmd to run at the start of the next tick. Safe for
// concurrent use.
func (k *Kart) Enqueue(cmd Command) {
	k.inbox.Push(cmd)
}

// Status returns the summary stored at the end of the last tick.
func (k *Kart) Status() Status {
	return *k.status.Load()
}

// Tick runs one fixed simulation step: queued commands, due tasks, rate
// shaping, integration and, when due, snapshot publication.
func (k *Kart) Tick(ctx context.Context, dt time.Duration, now time.Time) {
	k.now = now
	for _, cmd := range k.inbox.Drain() {
		cmd(k)
	}
	k.sched.Advance(dt)

	rates := k.machine.ComputeRates()
	res := k.integ.Step(k.body, &k.kin, physics.StepInput{
		State: k.machine.State(),
		Stats: k.stats.Active(),
		Drag:  rates.Drag,
		Dt:    dt.Seconds(),
	})
	k.grounded = res.Grounded
	k.tick++
	k.ticks.Add(ctx, 1, k.attrs)

	ok, errs := k.publisher.Advance(dt, k.VehicleSnapshot)
	if ok {
		k.published.Add(ctx, 1, k.attrs)
	}
	for _, err := range errs {
		k.log.Warn("Snapshot sink failed", "tick", k.tick, "error", err)
	}

	k.storeStatus()
}

// Snapshot returns the current authoritative snapshot.
func (k *Kart) Snapshot() core.Snapshot {
	return core.Snapshot{
		Position:    k.body.Position,
		Orientation: k.body.Rotation,
		TurnRate:    k.kin.TurnRate,
		Drift:       k.kin.Drifting,
	}
}

// VehicleSnapshot returns the snapshot with tick bookkeeping.
func (k *Kart) VehicleSnapshot() core.VehicleSnapshot {
	return core.VehicleSnapshot{
		VehicleID: k.id,
		Tick:      k.tick,
		Time:      k.now,
		Snapshot:  k.Snapshot(),
		Speed:     k.kin.Speed,
		State:     k.machine.State(),
		OnTerrain: k.kin.OnTerrain,
		DownForce: k.kin.DownForce,
	}
}

// Kinematics returns a copy of the per-tick state.
func (k *Kart) Kinematics() core.TickKinematics {
	return k.kin
}

// State returns the driving state.
func (k *Kart) State() core.DrivingState {
	return k.machine.State()
}

// Stats returns the active handling values.
func (k *Kart) Stats() core.HandlingProfile {
	return k.stats.Active()
}

// Body exposes the physics body.
func (k *Kart) Body() *physics.Body {
	return k.body
}

// Effects returns the timed effects in flight.
func (k *Kart) Effects() []modifier.Effect {
	return k.stats.Pending()
}

func (k *Kart) storeStatus() {
	k.status.Store(&Status{
		ID:           k.id,
		Name:         k.name,
		Tick:         k.tick,
		State:        k.machine.State(),
		Speed:        k.kin.Speed,
		BodySpeed:    k.body.Speed(),
		TurnRate:     k.kin.TurnRate,
		Drifting:     k.kin.Drifting,
		OnTerrain:    k.kin.OnTerrain,
		Grounded:     k.grounded,
		Position:     k.body.Position,
		PendingTasks: k.sched.Pending(),
		Effects:      len(k.stats.Pending()),
		Published:    k.publisher.Published(),
		InboxDepth:   k.inbox.Len(),
		InboxDropped: k.inbox.Dropped(),
	})
}

func (k *Kart) stateChanged(from, to core.DrivingState) {
	k.log.Debug("Driving state changed", "tick", k.tick, "from", from.String(), "to", to.String())
	if k.listener != nil {
		k.listener.StateChanged(core.StateChangeEvent{
			VehicleID: k.id,
			Tick:      k.tick,
			Time:      k.now,
			From:      from,
			To:        to,
		})
	}
}

type effectObserver struct{ k *Kart }

func (o effectObserver) EffectApplied(e modifier.Effect) {
	o.k.effectsMetric.Add(context.Background(), 1, o.k.attrs, metric.WithAttributes(attribute.String("effect", e.Name)))
	o.k.log.Debug("Effect applied", "tick", o.k.tick, "effect", e.Name, "duration", e.Duration)
	o.notify(e, false)
}

func (o effectObserver) EffectReverted(e modifier.Effect) {
	o.k.log.Debug("Effect reverted", "tick", o.k.tick, "effect", e.Name)
	o.notify(e, true)
}

func (o effectObserver) notify(e modifier.Effect, reverted bool) {
	if o.k.listener == nil {
		return
	}
	o.k.listener.EffectChanged(core.EffectEvent{
		VehicleID: o.k.id,
		EffectID:  uint64(e.ID),
		Name:      e.Name,
		Stats:     e.Stats,
		Deltas:    e.Deltas,
		Duration:  e.Duration,
		Tick:      o.k.tick,
		Time:      o.k.now,
		Reverted:  reverted,
	})
}
