// Package observer rebuilds smooth motion from sparse authoritative
// snapshots. It interpolates between the rendered pose and the latest
// snapshot and never extrapolates past it.
package observer

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/kartracer/kartsim/pkg/core"
)

// driftLeanFactor scales the lean target while drifting.
const driftLeanFactor = 2

// Visuals converts the lean angle into local body rotation.
type Visuals struct {
	VisualTurnModifier float64
	TurnTiltFactor     float64
}

// VisualsFromProfile takes the visual factors of a handling profile.
func VisualsFromProfile(p core.HandlingProfile) Visuals {
	return Visuals{VisualTurnModifier: p.VisualTurnModifier, TurnTiltFactor: p.TurnTiltFactor}
}

// Window is the interpolation between two poses.
type Window struct {
	Start      core.Pose
	End        core.Pose
	StartAngle float64
	EndAngle   float64
	Interval   time.Duration
	Elapsed    time.Duration
}

// Progress is elapsed/interval. A non-positive interval counts as complete.
func (w Window) Progress() float64 {
	if w.Interval <= 0 {
		return math.Inf(1)
	}
	return float64(w.Elapsed) / float64(w.Interval)
}

// RenderState is the output of one render frame.
type RenderState struct {
	Position      mgl64.Vec3
	Orientation   mgl64.Quat
	LeanAngle     float64
	BodyYaw       float64
	BodyRoll      float64
	Drift         bool
	Interpolating bool
}

// Stats summarises snapshot arrivals. AverageInterval ignores arrivals at
// the same instant.
type Stats struct {
	Updates         uint64
	AverageInterval time.Duration
	LastInterval    time.Duration
}

// Reconciler owns the rendered pose of one observed vehicle. It is driven by
// a single render loop and is not safe for concurrent use.
//
// Snapshots are taken in arrival order. An older snapshot arriving after a
// newer one replaces the window like any other.
type Reconciler struct {
	visuals Visuals

	pose   core.Pose
	angle  float64
	drift  bool
	window Window
	active bool

	lastSync  time.Duration
	synced    bool
	updates   uint64
	intervals uint64
	total     time.Duration

	canCalculate bool
}

// NewReconciler starts rendering at initial.
func NewReconciler(initial core.Pose, visuals Visuals) *Reconciler {
	return &Reconciler{
		visuals:      visuals,
		pose:         initial,
		canCalculate: true,
	}
}

// ReceiveSnapshot opens a new window from the rendered pose to s. now is the
// arrival time on the render clock. A snapshot with no measurable interval,
// such as the first one, is applied immediately.
func (r *Reconciler) ReceiveSnapshot(now time.Duration, s core.Snapshot) {
	var interval time.Duration
	r.updates++
	if r.synced {
		interval = now - r.lastSync
		if interval > 0 {
			r.intervals++
			r.total += interval
		}
	}
	r.lastSync = now
	r.synced = true

	factor := 1.0
	if s.Drift {
		factor = driftLeanFactor
	}
	r.drift = s.Drift

	r.window = Window{
		Start:      r.pose,
		End:        s.Pose(),
		StartAngle: r.angle,
		EndAngle:   factor * s.TurnRate,
		Interval:   interval,
	}
	if interval <= 0 {
		r.pose = r.window.End
		r.window.Start = r.window.End
	}
	r.active = true
}

// SetRenderedPose overrides the rendered pose, for instance with the pose of
// a locally integrated replica.
func (r *Reconciler) SetRenderedPose(p core.Pose) {
	r.pose = p
}

// Pose returns the rendered pose.
func (r *Reconciler) Pose() core.Pose {
	return r.pose
}

// Window returns the current interpolation window.
func (r *Reconciler) Window() Window {
	return r.window
}

// CanCalculate reports whether local integration may run. It is false while
// a window is being interpolated.
func (r *Reconciler) CanCalculate() bool {
	return r.canCalculate
}

// Frame advances the window by dt and returns the pose to render.
func (r *Reconciler) Frame(dt time.Duration) RenderState {
	if !r.active {
		r.canCalculate = true
		return r.render(false)
	}

	r.window.Elapsed += dt
	t := r.window.Progress()

	interpolating := t <= 1
	if interpolating {
		r.pose = interpolatePose(r.window.Start, r.window.End, t)
	}
	r.canCalculate = !interpolating
	r.angle = LerpAngle(r.window.StartAngle, r.window.EndAngle, t)

	return r.render(interpolating)
}

func (r *Reconciler) render(interpolating bool) RenderState {
	return RenderState{
		Position:      r.pose.Position,
		Orientation:   r.pose.Orientation,
		LeanAngle:     r.angle,
		BodyYaw:       r.angle * r.visuals.VisualTurnModifier,
		BodyRoll:      -r.angle * r.visuals.TurnTiltFactor,
		Drift:         r.drift,
		Interpolating: interpolating,
	}
}

// Stats returns arrival statistics.
func (r *Reconciler) Stats() Stats {
	s := Stats{Updates: r.updates, LastInterval: r.window.Interval}
	if r.intervals > 0 {
		s.AverageInterval = r.total / time.Duration(r.intervals)
	}
	return s
}

func interpolatePose(start, end core.Pose, t float64) core.Pose {
	switch {
	case t <= 0:
		return start
	case t >= 1:
		return end
	}
	to := end.Orientation
	if start.Orientation.Dot(to) < 0 {
		to = to.Scale(-1)
	}
	return core.Pose{
		Position:    start.Position.Add(end.Position.Sub(start.Position).Mul(t)),
		Orientation: mgl64.QuatSlerp(start.Orientation, to, t).Normalize(),
	}
}

// LerpAngle interpolates between two angles in degrees along the shortest
// arc. t is clamped to [0, 1].
func LerpAngle(a, b, t float64) float64 {
	t = math.Max(0, math.Min(1, t))
	delta := math.Mod(b-a, 360)
	if delta < 0 {
		delta += 360
	}
	if delta > 180 {
		delta -= 360
	}
	return a + delta*t
}
