// Package worker turns dispatcher events into commands queued on karts.
package worker

import (
	"log/slog"

	"github.com/kartracer/kartsim/internal/cache"
	"github.com/kartracer/kartsim/internal/parser"
)

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Karts  *cache.KartCache
	Parser *parser.Parser
	Logger *slog.Logger
}

// Manager routes parsed commands to the karts they address.
type Manager struct {
	deps Dependencies
	log  *slog.Logger
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) *Manager {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	if deps.Parser == nil {
		deps.Parser = parser.NewParser(log)
	}
	return &Manager{deps: deps, log: log}
}
