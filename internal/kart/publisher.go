package kart

import (
	"time"

	"github.com/kartracer/kartsim/pkg/core"
)

// DefaultPublishInterval is how often a kart publishes its authoritative
// snapshot, independent of the tick rate.
const DefaultPublishInterval = 66 * time.Millisecond

// SnapshotSink receives published snapshots.
type SnapshotSink interface {
	PublishSnapshot(vs core.VehicleSnapshot) error
}

// SnapshotSinkFunc adapts a function to SnapshotSink.
type SnapshotSinkFunc func(vs core.VehicleSnapshot) error

func (f SnapshotSinkFunc) PublishSnapshot(vs core.VehicleSnapshot) error {
	return f(vs)
}

// Publisher decides when a snapshot is due and hands it to every sink.
type Publisher struct {
	interval time.Duration
	elapsed  time.Duration
	sinks    []SnapshotSink
	seq      uint64
}

// NewPublisher creates a publisher firing every interval. A non-positive
// interval publishes on every tick.
func NewPublisher(interval time.Duration, sinks ...SnapshotSink) *Publisher {
	return &Publisher{interval: interval, sinks: sinks}
}

// AddSink registers another sink.
func (p *Publisher) AddSink(s SnapshotSink) {
	p.sinks = append(p.sinks, s)
}

// Interval returns the publish interval.
func (p *Publisher) Interval() time.Duration {
	return p.interval
}

// Published returns how many snapshots have been published.
func (p *Publisher) Published() uint64 {
	return p.seq
}

// Advance accounts for dt of simulated time. When a publish is due, build is
// called once and the result is sent to every sink. A failing sink does not
// stop delivery to the others; all sink errors are returned.
func (p *Publisher) Advance(dt time.Duration, build func() core.VehicleSnapshot) (bool, []error) {
	p.elapsed += dt
	if p.elapsed < p.interval {
		return false, nil
	}
	if p.interval > 0 {
		p.elapsed -= p.interval
		if p.elapsed >= p.interval {
			// fell behind by more than a whole interval, do not burst
			p.elapsed = 0
		}
	} else {
		p.elapsed = 0
	}

	vs := build()
	p.seq++

	var errs []error
	for _, s := range p.sinks {
		if err := s.PublishSnapshot(vs); err != nil {
			errs = append(errs, err)
		}
	}
	return true, errs
}
