// Package session runs every kart of a race on one fixed-interval tick.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kartracer/kartsim/internal/cache"
	"github.com/kartracer/kartsim/internal/kart"
	"github.com/kartracer/kartsim/internal/logging"
	"github.com/kartracer/kartsim/internal/physics"
	"github.com/kartracer/kartsim/internal/storage"
	"github.com/kartracer/kartsim/internal/track"
	"github.com/kartracer/kartsim/pkg/core"
)

// ErrNotStarted is returned when stepping a session before Start.
var ErrNotStarted = errors.New("session not started")

// Config describes a session.
type Config struct {
	Name            string
	TickInterval    time.Duration
	PublishInterval time.Duration
	Debounce        time.Duration
	Profile         core.HandlingProfile
	ProfileName     string
	Physics         physics.Config
}

// TickFunc runs after every kart has ticked.
type TickFunc func(ctx context.Context, tick uint64, now time.Time)

// Status is a point-in-time summary of the session.
type Status struct {
	SessionID        string
	Tick             uint64
	Karts            []kart.Status
	LastTickDuration time.Duration
}

// Session owns the karts of one race and the storage they record to.
type Session struct {
	info    core.Session
	cfg     Config
	track   *track.Track
	karts   *cache.KartCache
	backend storage.Backend
	rec     *Recorder
	log     *slog.Logger

	mu      sync.Mutex
	sinks   []kart.SnapshotSink
	hooks   []TickFunc
	nextID  uint16
	started bool
	ended   bool

	tick     atomic.Uint64
	lastTick atomic.Int64
	now      time.Time
}

// New creates a session on tr. A nil backend records nothing.
func New(cfg Config, tr *track.Track, karts *cache.KartCache, backend storage.Backend, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if backend == nil {
		backend = storage.Nop{}
	}
	if karts == nil {
		karts = cache.NewKartCache()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 20 * time.Millisecond
	}
	return &Session{
		info: core.Session{
			ID:              uuid.NewString(),
			Name:            cfg.Name,
			TrackName:       tr.Name,
			TickInterval:    cfg.TickInterval,
			PublishInterval: cfg.PublishInterval,
		},
		cfg:     cfg,
		track:   tr,
		karts:   karts,
		backend: backend,
		rec:     NewRecorder(backend, logger),
		log:     logger.With("session", cfg.Name),
		nextID:  1,
	}
}

// Info returns the session record.
func (s *Session) Info() core.Session {
	return s.info
}

// Karts returns the session's kart index.
func (s *Session) Karts() *cache.KartCache {
	return s.karts
}

// Tick returns the number of completed ticks.
func (s *Session) Tick() uint64 {
	return s.tick.Load()
}

// Context attaches the session id and live tick to ctx for logging.
func (s *Session) Context(ctx context.Context) context.Context {
	return logging.WithSession(ctx, logging.SessionAttrs{SessionID: s.info.ID, Tick: s.Tick})
}

// AddSink sends every kart's published snapshots to sink, including karts
// added later.
func (s *Session) AddSink(sink kart.SnapshotSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
	for _, k := range s.karts.All() {
		k.AddSink(sink)
	}
}

// OnTick registers fn to run after each tick.
func (s *Session) OnTick(fn TickFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// AddKart spawns a kart on the next grid slot. Karts added after Start
// join at the current tick. Must not be called concurrently with Step.
func (s *Session) AddKart(name string) (*kart.Kart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	pos, rot := s.track.SpawnPose(int(id - 1))
	k, err := kart.New(kart.Config{
		ID:              id,
		Name:            name,
		ProfileName:     s.cfg.ProfileName,
		Profile:         s.cfg.Profile,
		Physics:         s.cfg.Physics,
		Debounce:        s.cfg.Debounce,
		PublishInterval: s.cfg.PublishInterval,
		Position:        pos,
		Rotation:        rot,
	}, s.track, s.log)
	if err != nil {
		return nil, fmt.Errorf("creating kart %q: %w", name, err)
	}
	if err := s.karts.Add(k); err != nil {
		return nil, err
	}
	s.nextID++

	k.SetListener(s.rec)
	k.AddSink(s.rec)
	for _, sink := range s.sinks {
		k.AddSink(sink)
	}

	if s.started {
		if err := s.register(k); err != nil {
			return nil, err
		}
	}
	return k, nil
}

func (s *Session) register(k *kart.Kart) error {
	v := k.Vehicle()
	v.JoinTime = s.now
	v.JoinTick = s.tick.Load()
	if err := s.backend.AddVehicle(&v); err != nil {
		return fmt.Errorf("registering kart %d: %w", v.ID, err)
	}
	return nil
}

// Start opens the session in storage and registers the karts added so far.
func (s *Session) Start(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	s.info.StartTime = now
	s.now = now
	if err := s.backend.StartSession(&s.info); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	s.started = true

	for _, k := range s.karts.All() {
		if err := s.register(k); err != nil {
			return err
		}
	}
	s.log.Info("Session started", "id", s.info.ID, "track", s.info.TrackName, "karts", s.karts.Len())
	return nil
}

// Step advances every kart by one tick in id order, then runs the tick hooks.
func (s *Session) Step(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	if !s.started || s.ended {
		s.mu.Unlock()
		return ErrNotStarted
	}
	hooks := s.hooks
	s.now = now
	s.mu.Unlock()

	start := time.Now()
	for _, k := range s.karts.All() {
		k.Tick(ctx, s.cfg.TickInterval, now)
	}
	tick := s.tick.Add(1)
	s.lastTick.Store(int64(time.Since(start)))

	for _, fn := range hooks {
		fn(ctx, tick, now)
	}
	return nil
}

// Run ticks the session at its fixed interval until ctx is done or, when
// duration is positive, until duration of simulated time has passed. The
// session is ended before Run returns.
func (s *Session) Run(ctx context.Context, duration time.Duration) error {
	if err := s.Start(time.Now()); err != nil {
		return err
	}
	ctx = s.Context(ctx)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	var maxTicks uint64
	if duration > 0 {
		maxTicks = uint64(duration / s.cfg.TickInterval)
	}

	for {
		select {
		case <-ctx.Done():
			s.log.InfoContext(ctx, "Session interrupted")
			return s.End(time.Now())
		case now := <-ticker.C:
			if err := s.Step(ctx, now); err != nil {
				return err
			}
			if maxTicks > 0 && s.Tick() >= maxTicks {
				return s.End(now)
			}
		}
	}
}

// End closes the session in storage. Ending twice is a no-op.
func (s *Session) End(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.ended {
		return nil
	}
	s.ended = true

	tick := s.tick.Load()
	s.log.Info("Session ended", "id", s.info.ID, "ticks", tick)
	if err := s.backend.EndSession(now, tick); err != nil {
		return fmt.Errorf("ending session: %w", err)
	}
	return nil
}

// Status summarises the session and every kart. Safe for concurrent use.
func (s *Session) Status() Status {
	karts := s.karts.All()
	st := Status{
		SessionID:        s.info.ID,
		Tick:             s.tick.Load(),
		Karts:            make([]kart.Status, 0, len(karts)),
		LastTickDuration: time.Duration(s.lastTick.Load()),
	}
	for _, k := range karts {
		st.Karts = append(st.Karts, k.Status())
	}
	return st
}
