// Package postgres implements the storage.Backend interface on PostgreSQL
// through the shared GORM batch writer.
package postgres

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kartracer/kartsim/internal/config"
	"github.com/kartracer/kartsim/internal/database"
	gormstorage "github.com/kartracer/kartsim/internal/storage/gorm"
	"gorm.io/gorm"
)

// MaxOpenConns caps the connection pool.
const MaxOpenConns = 10

// Backend is the GORM backend bound to a Postgres connection.
type Backend struct {
	*gormstorage.Backend
}

// New connects to Postgres and validates the connection.
func New(cfg config.PostgresConfig, logger *slog.Logger) (*Backend, error) {
	db, err := database.OpenPostgres(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := configurePool(db); err != nil {
		return nil, err
	}
	return NewWithDB(db, logger), nil
}

// NewWithDB wraps an existing connection.
func NewWithDB(db *gorm.DB, logger *slog.Logger) *Backend {
	return &Backend{Backend: gormstorage.New(gormstorage.Dependencies{DB: db, Logger: logger})}
}

func configurePool(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to validate connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(MaxOpenConns)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	return nil
}
