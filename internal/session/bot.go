package session

import (
	"context"
	"strconv"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/kartracer/kartsim/internal/dispatcher"
	"github.com/kartracer/kartsim/internal/kart"
	"github.com/kartracer/kartsim/internal/parser"
	"github.com/kartracer/kartsim/internal/physics"
	"github.com/kartracer/kartsim/pkg/core"
)

// Intent dispatcher used by bots. *dispatcher.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(e dispatcher.Event) (any, error)
}

// BotConfig tunes the road-following driver.
type BotConfig struct {
	// Lookahead is how far in front of the kart the probes sample.
	Lookahead float64
	// Spread is the sideways offset of the left and right probes.
	Spread float64
	// Every is the number of ticks between decisions.
	Every uint64
}

// DefaultBotConfig suits the stock stadium.
func DefaultBotConfig() BotConfig {
	return BotConfig{Lookahead: 14, Spread: 5, Every: 3}
}

// Bot drives one kart by sampling the surface ahead of it and steering
// toward whichever side is still road. Decisions go through the command
// dispatcher like any other input.
type Bot struct {
	cfg      BotConfig
	kart     *kart.Kart
	contacts physics.ContactQuery
	d        Dispatcher
	last     [2]bool
	sent     bool
}

// NewBot creates a bot for k.
func NewBot(cfg BotConfig, k *kart.Kart, contacts physics.ContactQuery, d Dispatcher) *Bot {
	if cfg.Every == 0 {
		cfg.Every = 1
	}
	return &Bot{cfg: cfg, kart: k, contacts: contacts, d: d}
}

// Decide returns the turn inputs for the kart's current pose.
func (b *Bot) Decide() (right, left bool) {
	body := b.kart.Body()
	ahead := body.Position.Add(body.Forward().Mul(b.cfg.Lookahead))
	side := body.Right().Mul(b.cfg.Spread)

	onRight := b.onRoad(ahead.Add(side))
	onLeft := b.onRoad(ahead.Sub(side))
	switch {
	case onRight && !onLeft:
		return true, false
	case onLeft && !onRight:
		return false, true
	}
	return false, false
}

func (b *Bot) onRoad(p mgl64.Vec3) bool {
	hit, ok := b.contacts.Cast(p.Add(mgl64.Vec3{0, 20, 0}), mgl64.Vec3{0, -1, 0}, 40, physics.LayerDrivable)
	return ok && hit.Surface == physics.SurfaceTrack
}

// OnTick is a TickFunc. It only dispatches when the decision changes.
func (b *Bot) OnTick(_ context.Context, tick uint64, now time.Time) {
	if tick%b.cfg.Every != 0 {
		return
	}
	switch b.kart.State() {
	case core.Stopped, core.Finished:
		return
	}
	right, left := b.Decide()
	if b.sent && b.last == [2]bool{right, left} {
		return
	}
	b.last, b.sent = [2]bool{right, left}, true

	_, _ = b.d.Dispatch(dispatcher.Event{
		Command: parser.CmdIntent,
		Args: []string{
			strconv.Itoa(int(b.kart.ID())),
			strconv.FormatBool(right),
			strconv.FormatBool(left),
		},
		Source:    dispatcher.SourceLocal,
		Timestamp: now,
	})
}
