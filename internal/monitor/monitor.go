// Package monitor samples a running session and reports its health.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kartracer/kartsim/internal/model"
	"github.com/kartracer/kartsim/internal/session"
	"github.com/kartracer/kartsim/internal/storage"
)

// DefaultInterval is how often the monitor samples.
const DefaultInterval = time.Second

// StatusSource is the session being monitored.
type StatusSource interface {
	Status() session.Status
}

// PerformanceWriter receives every sample. Both the influx manager and the
// gorm backend implement one of these.
type PerformanceWriter interface {
	WritePerformance(p model.SessionPerformance) error
}

// PerformanceWriterFunc adapts a function to PerformanceWriter.
type PerformanceWriterFunc func(p model.SessionPerformance) error

func (f PerformanceWriterFunc) WritePerformance(p model.SessionPerformance) error {
	return f(p)
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Session   StatusSource
	Writers   []PerformanceWriter
	Storage   storage.Backend
	Logger    *slog.Logger
	StatusDir string
	Interval  time.Duration
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Sample reads the session status once. The returned lines are what the
// status file holds.
func (s *Service) Sample(now time.Time) (lines []string, perf model.SessionPerformance) {
	st := s.deps.Session.Status()

	perf = model.SessionPerformance{
		Time:               now,
		Tick:               st.Tick,
		Karts:              len(st.Karts),
		LastTickDurationMs: float64(st.LastTickDuration) / float64(time.Millisecond),
	}
	for _, k := range st.Karts {
		perf.PendingTasks += k.PendingTasks
		perf.InboxDepth += k.InboxDepth
		perf.InboxDropped += k.InboxDropped
	}
	if f, ok := s.deps.Storage.(storage.Flusher); ok {
		perf.LastWriteDurationMs = float64(f.GetLastDBWriteDuration()) / float64(time.Millisecond)
	}

	summary, err := json.MarshalIndent(perf, "", "  ")
	if err != nil {
		summary = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
	}
	lines = append(lines, string(summary))

	for _, k := range st.Karts {
		lines = append(lines, fmt.Sprintf("kart %d %s: %s speed=%.2f effects=%d published=%d",
			k.ID, k.Name, k.State, k.Speed, k.Effects, k.Published))
	}
	return lines, perf
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	var statusFile *os.File
	if s.deps.StatusDir != "" {
		f, err := os.Create(filepath.Join(s.deps.StatusDir, "status.txt"))
		if err != nil {
			s.deps.Logger.Error("Error creating status file", "error", err)
		} else {
			statusFile = f
		}
	}

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()
		if statusFile != nil {
			defer statusFile.Close()
		}

		logger := s.deps.Logger
		logger.Debug("Starting status monitor", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				s.report(now, statusFile)
			}
		}
	}()

	return nil
}

func (s *Service) report(now time.Time, statusFile *os.File) {
	logger := s.deps.Logger
	lines, perf := s.Sample(now)

	logger.Debug("Session status",
		"tick", perf.Tick,
		"karts", perf.Karts,
		"pendingTasks", perf.PendingTasks,
		"inboxDepth", perf.InboxDepth,
		"lastTickMs", perf.LastTickDurationMs)

	if statusFile != nil {
		if err := writeStatus(statusFile, lines); err != nil {
			logger.Error("Error writing status file", "error", err)
		}
	}

	for _, w := range s.deps.Writers {
		if err := w.WritePerformance(perf); err != nil {
			logger.Error("Error writing performance sample", "error", err)
		}
	}
}

func writeStatus(f *os.File, lines []string) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	for _, line := range lines {
		if _, err := f.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Stop stops the status monitor and waits for the goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.isRunning = false
	s.mu.Unlock()
	<-done
}
