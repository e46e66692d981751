package observer

import (
	"log/slog"
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/kartracer/kartsim/internal/queue"
	"github.com/kartracer/kartsim/pkg/core"
)

// Replica is a locally integrated copy of an observed vehicle. While a
// window is interpolating the replica is placed on the interpolated pose and
// its own yaw and drive are suspended.
type Replica interface {
	SetCanCalculate(v bool)
	Place(position mgl64.Vec3, rotation mgl64.Quat)
	Pose() core.Pose
}

// Update is a snapshot addressed to one vehicle.
type Update struct {
	VehicleID uint16
	Tick      uint64
	Snapshot  core.Snapshot
}

// Peer reconciles every vehicle seen by one observer. Deliver may be called
// from any goroutine; everything else belongs to the render loop.
type Peer struct {
	visuals     Visuals
	inbox       *queue.Queue[Update]
	reconcilers map[uint16]*Reconciler
	replicas    map[uint16]Replica
	now         time.Duration
	log         *slog.Logger
}

// NewPeer creates a peer rendering with visuals.
func NewPeer(visuals Visuals, logger *slog.Logger) *Peer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Peer{
		visuals:     visuals,
		inbox:       queue.New[Update](),
		reconcilers: make(map[uint16]*Reconciler),
		replicas:    make(map[uint16]Replica),
		log:         logger,
	}
}

// Deliver queues a snapshot for the next frame.
func (p *Peer) Deliver(u Update) {
	p.inbox.Push(u)
}

// Pending returns the number of snapshots waiting for the next frame.
func (p *Peer) Pending() int {
	return p.inbox.Len()
}

// AttachReplica links a local replica to a vehicle.
func (p *Peer) AttachReplica(id uint16, r Replica) {
	p.replicas[id] = r
}

// Reconciler returns the reconciler for a vehicle, if one exists.
func (p *Peer) Reconciler(id uint16) (*Reconciler, bool) {
	r, ok := p.reconcilers[id]
	return r, ok
}

// Vehicles returns the ids of every vehicle seen so far in ascending order.
func (p *Peer) Vehicles() []uint16 {
	ids := make([]uint16, 0, len(p.reconcilers))
	for id := range p.reconcilers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Frame applies queued snapshots and advances every vehicle by dt. Only the
// newest snapshot queued for a vehicle since the last frame is applied; the
// others would open windows of zero length.
func (p *Peer) Frame(dt time.Duration) map[uint16]RenderState {
	p.now += dt

	for _, u := range latestPerVehicle(p.inbox.Drain()) {
		rec, ok := p.reconcilers[u.VehicleID]
		if !ok {
			rec = NewReconciler(u.Snapshot.Pose(), p.visuals)
			p.reconcilers[u.VehicleID] = rec
			p.log.Debug("Observing new vehicle", "vehicle", u.VehicleID, "tick", u.Tick)
		}
		if rep, ok := p.replicas[u.VehicleID]; ok {
			rec.SetRenderedPose(rep.Pose())
		}
		rec.ReceiveSnapshot(p.now, u.Snapshot)
	}

	out := make(map[uint16]RenderState, len(p.reconcilers))
	for id, rec := range p.reconcilers {
		rs := rec.Frame(dt)
		if rep, ok := p.replicas[id]; ok {
			rep.SetCanCalculate(rec.CanCalculate())
			if rs.Interpolating {
				rep.Place(rs.Position, rs.Orientation)
			}
		}
		out[id] = rs
	}
	return out
}

// latestPerVehicle keeps the last update of each vehicle, in the order the
// vehicles first appear.
func latestPerVehicle(updates []Update) []Update {
	if len(updates) < 2 {
		return updates
	}
	index := make(map[uint16]int, len(updates))
	out := make([]Update, 0, len(updates))
	for _, u := range updates {
		if i, ok := index[u.VehicleID]; ok {
			out[i] = u
			continue
		}
		index[u.VehicleID] = len(out)
		out = append(out, u)
	}
	return out
}
