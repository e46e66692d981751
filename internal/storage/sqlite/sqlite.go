// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend; the only SQLite-specific concerns are creating
// the in-memory DB and dumping it to disk.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kartracer/kartsim/internal/database"
	gormstorage "github.com/kartracer/kartsim/internal/storage/gorm"
	"github.com/kartracer/kartsim/pkg/core"
	"gorm.io/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	DumpInterval time.Duration
	OutputDir    string
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	cfg      Config
	log      *slog.Logger
	dumpPath string

	mu       sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new SQLite storage backend.
func New(cfg Config, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := database.OpenSqlite("")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{DB: db, Logger: logger}),
		db:      db,
		cfg:     cfg,
		log:     logger,
	}, nil
}

// DumpPath returns the file the current session is dumped to.
func (b *Backend) DumpPath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dumpPath
}

// StartSession records the session and starts the periodic dump to
// <OutputDir>/<session uuid>.db.
func (b *Backend) StartSession(s *core.Session) error {
	if err := b.Backend.StartSession(s); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopDumpLocked()
	if b.cfg.OutputDir == "" {
		return nil
	}
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	b.dumpPath = filepath.Join(b.cfg.OutputDir, s.ID+".db")
	if b.cfg.DumpInterval > 0 {
		b.stopChan = make(chan struct{})
		b.done = make(chan struct{})
		go b.dumpLoop(b.dumpPath, b.stopChan, b.done)
	}
	return nil
}

// EndSession stamps the session and writes a final dump.
func (b *Backend) EndSession(end time.Time, endTick uint64) error {
	if err := b.Backend.EndSession(end, endTick); err != nil {
		return err
	}

	b.mu.Lock()
	b.stopDumpLocked()
	path := b.dumpPath
	b.mu.Unlock()

	if path == "" {
		return nil
	}
	return b.dump(path)
}

// Close stops the dump goroutine and closes the embedded GORM backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	b.stopDumpLocked()
	b.mu.Unlock()
	return b.Backend.Close()
}

func (b *Backend) stopDumpLocked() {
	if b.stopChan == nil {
		return
	}
	close(b.stopChan)
	<-b.done
	b.stopChan, b.done = nil, nil
}

func (b *Backend) dump(path string) error {
	if err := b.Backend.Flush(); err != nil {
		b.log.Warn("Flush before dump failed", "error", err)
	}
	d, err := database.DumpMemoryDBToDisk(b.db, path)
	if err != nil {
		b.log.Error("Error dumping to disk", "path", path, "error", err)
		return err
	}
	b.log.Debug("Dumped to disk", "path", path, "duration", d)
	return nil
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop(path string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			_ = b.dump(path)
		}
	}
}
