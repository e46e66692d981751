package session

import (
	"context"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/kartracer/kartsim/internal/dispatcher"
	"github.com/kartracer/kartsim/internal/kart"
	"github.com/kartracer/kartsim/internal/parser"
	"github.com/kartracer/kartsim/internal/physics"
	"github.com/kartracer/kartsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDispatcher struct {
	events []dispatcher.Event
}

func (d *recordingDispatcher) Dispatch(e dispatcher.Event) (any, error) {
	d.events = append(d.events, e)
	return nil, nil
}

// road only on the negative X half, which is the left of an unrotated kart
func leftRoad(origin, _ mgl64.Vec3, _ float64, _ physics.LayerMask) (physics.Hit, bool) {
	surface := physics.SurfaceGrass
	if origin.X() < 0 {
		surface = physics.SurfaceTrack
	}
	return physics.Hit{Point: mgl64.Vec3{origin.X(), 0, origin.Z()}, Normal: mgl64.Vec3{0, 1, 0}, Surface: surface}, true
}

func newBotKart(t *testing.T) *kart.Kart {
	t.Helper()
	k, err := kart.New(kart.Config{
		ID:       7,
		Name:     "bot",
		Profile:  core.DefaultHandlingProfile(),
		Physics:  physics.DefaultConfig(),
		Rotation: mgl64.QuatIdent(),
	}, physics.ContactFunc(leftRoad), nil)
	require.NoError(t, err)
	return k
}

func TestBot_DecideSteersTowardRoad(t *testing.T) {
	k := newBotKart(t)
	b := NewBot(DefaultBotConfig(), k, physics.ContactFunc(leftRoad), &recordingDispatcher{})

	right, left := b.Decide()
	assert.False(t, right)
	assert.True(t, left)
}

func TestBot_DecideStraightWhenBothSidesMatch(t *testing.T) {
	k := newBotKart(t)
	everywhere := physics.ContactFunc(func(origin, _ mgl64.Vec3, _ float64, _ physics.LayerMask) (physics.Hit, bool) {
		return physics.Hit{Surface: physics.SurfaceTrack}, true
	})
	b := NewBot(DefaultBotConfig(), k, everywhere, &recordingDispatcher{})

	right, left := b.Decide()
	assert.False(t, right)
	assert.False(t, left)
}

func TestBot_OnTickDispatchesChanges(t *testing.T) {
	k := newBotKart(t)
	d := &recordingDispatcher{}
	b := NewBot(BotConfig{Lookahead: 10, Spread: 4, Every: 1}, k, physics.ContactFunc(leftRoad), d)
	ctx := context.Background()
	now := time.Now()

	b.OnTick(ctx, 1, now)
	assert.Empty(t, d.events, "stopped karts are not steered")

	k.Activate()
	b.OnTick(ctx, 2, now)
	b.OnTick(ctx, 3, now)

	require.Len(t, d.events, 1, "unchanged decisions are not resent")
	e := d.events[0]
	assert.Equal(t, parser.CmdIntent, e.Command)
	assert.Equal(t, []string{"7", "false", "true"}, e.Args)
	assert.Equal(t, dispatcher.SourceLocal, e.Source)
}

func TestBot_EverySkipsTicks(t *testing.T) {
	k := newBotKart(t)
	k.Activate()
	d := &recordingDispatcher{}
	b := NewBot(BotConfig{Lookahead: 10, Spread: 4, Every: 4}, k, physics.ContactFunc(leftRoad), d)

	for n := uint64(1); n < 4; n++ {
		b.OnTick(context.Background(), n, time.Now())
	}
	assert.Empty(t, d.events)
	b.OnTick(context.Background(), 4, time.Now())
	assert.Len(t, d.events, 1)
}
