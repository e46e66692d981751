package observer

import (
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/kartracer/kartsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReplica struct {
	pose         core.Pose
	canCalculate bool
	placed       int
}

func (f *fakeReplica) SetCanCalculate(v bool) { f.canCalculate = v }
func (f *fakeReplica) Place(p mgl64.Vec3, r mgl64.Quat) {
	f.pose = core.Pose{Position: p, Orientation: r}
	f.placed++
}
func (f *fakeReplica) Pose() core.Pose { return f.pose }

func TestPeer_RoutesPerVehicle(t *testing.T) {
	p := NewPeer(visuals, nil)

	var wg sync.WaitGroup
	for _, id := range []uint16{3, 1, 2} {
		wg.Add(1)
		go func(id uint16) {
			defer wg.Done()
			p.Deliver(Update{VehicleID: id, Tick: 1, Snapshot: snap(float64(id), 0, 0, 0, false)})
		}(id)
	}
	wg.Wait()
	assert.Equal(t, 3, p.Pending())

	out := p.Frame(16 * ms)
	assert.Equal(t, 0, p.Pending())
	require.Len(t, out, 3)
	assert.Equal(t, []uint16{1, 2, 3}, p.Vehicles())
	assert.Equal(t, 2.0, out[2].Position.X())

	_, ok := p.Reconciler(9)
	assert.False(t, ok)
}

func TestPeer_DrivesReplica(t *testing.T) {
	p := NewPeer(visuals, nil)
	rep := &fakeReplica{pose: core.IdentityPose(), canCalculate: true}
	p.AttachReplica(1, rep)

	p.Deliver(Update{VehicleID: 1, Snapshot: snap(0, 0, 0, 0, false)})
	p.Frame(16 * ms)
	assert.True(t, rep.canCalculate)

	// replica drifted away locally; the next window starts from it
	rep.pose = core.Pose{Position: mgl64.Vec3{1, 1, 1}, Orientation: mgl64.QuatIdent()}
	p.Deliver(Update{VehicleID: 1, Snapshot: snap(10, 10, 0, 0, false)})
	rs := p.Frame(16 * ms)[1]

	assert.True(t, rs.Interpolating)
	assert.False(t, rep.canCalculate)
	assert.Equal(t, 1, rep.placed)

	rec, ok := p.Reconciler(1)
	require.True(t, ok)
	assert.Equal(t, mgl64.Vec3{1, 1, 1}, rec.Window().Start.Position)

	p.Frame(32 * ms)
	assert.True(t, rep.canCalculate)
}

func TestPeer_BurstKeepsNewestSnapshot(t *testing.T) {
	p := NewPeer(visuals, nil)
	p.Deliver(Update{VehicleID: 1, Tick: 1, Snapshot: snap(0, 0, 0, 0, false)})
	p.Frame(16 * ms)

	// two packets for vehicle 1 land in the same frame
	p.Deliver(Update{VehicleID: 1, Tick: 2, Snapshot: snap(4, 0, 0, 0, false)})
	p.Deliver(Update{VehicleID: 2, Tick: 2, Snapshot: snap(9, 0, 0, 0, false)})
	p.Deliver(Update{VehicleID: 1, Tick: 3, Snapshot: snap(8, 0, 0, 0, false)})
	p.Frame(50 * ms)

	rec, ok := p.Reconciler(1)
	require.True(t, ok)
	w := rec.Window()
	assert.Equal(t, 50*ms, w.Interval, "no zero-length window")
	assert.Equal(t, 8.0, w.End.Position.X())
	assert.Equal(t, 0.0, w.Start.Position.X())
	assert.Equal(t, uint64(2), rec.Stats().Updates)
	assert.Equal(t, 50*ms, rec.Stats().AverageInterval)
	assert.Equal(t, []uint16{1, 2}, p.Vehicles())
}

func TestLatestPerVehicle(t *testing.T) {
	in := []Update{{VehicleID: 2, Tick: 1}, {VehicleID: 1, Tick: 1}, {VehicleID: 2, Tick: 2}}
	out := latestPerVehicle(in)
	require.Len(t, out, 2)
	assert.Equal(t, Update{VehicleID: 2, Tick: 2}, out[0])
	assert.Equal(t, Update{VehicleID: 1, Tick: 1}, out[1])
}
