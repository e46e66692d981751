package storage

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kartracer/kartsim/internal/config"
	gormstorage "github.com/kartracer/kartsim/internal/storage/gorm"
	"github.com/kartracer/kartsim/internal/storage/memory"
	"github.com/kartracer/kartsim/internal/storage/postgres"
	sqlitestorage "github.com/kartracer/kartsim/internal/storage/sqlite"
)

// Backend types accepted in storage.type.
const (
	TypeMemory   = "memory"
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
	TypeNone     = "none"
)

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, logger *slog.Logger) (Backend, error) {
	switch cfg.Type {
	case TypePostgres:
		b, err := postgres.New(cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case TypeSQLite:
		b, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: cfg.SQLite.DumpInterval,
			OutputDir:    cfg.SQLite.OutputDir,
		}, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case TypeMemory, "":
		return memory.New(cfg.Memory), nil
	case TypeNone:
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// Flusher is implemented by backends that batch writes.
type Flusher interface {
	Flush() error
	GetLastDBWriteDuration() time.Duration
}

var (
	_ Backend    = (*memory.Backend)(nil)
	_ Uploadable = (*memory.Backend)(nil)
	_ Backend    = (*gormstorage.Backend)(nil)
	_ Backend    = (*sqlitestorage.Backend)(nil)
	_ Backend    = (*postgres.Backend)(nil)
	_ Flusher    = (*gormstorage.Backend)(nil)
)
