package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kartracer/kartsim/internal/config"
	"github.com/kartracer/kartsim/internal/database"
	"github.com/kartracer/kartsim/internal/storage"
	gormstorage "github.com/kartracer/kartsim/internal/storage/gorm"
	"github.com/kartracer/kartsim/internal/storage/postgres"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate-backups",
		Short: "Import SQLite session dumps into Postgres",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setupRuntime("migrate")
			if err != nil {
				return err
			}
			defer rt.Close()
			logger := rt.logs.Component("migrate")

			if dir == "" {
				dir = config.GetStorageConfig().SQLite.OutputDir
			}
			paths, err := database.GetBackupDBPaths(dir)
			if err != nil {
				return fmt.Errorf("failed to list dumps in %s: %w", dir, err)
			}
			if len(paths) == 0 {
				fmt.Println("no dumps found")
				return nil
			}

			mgr := database.NewManager(rt.zerolog("database"))
			if err := mgr.Connect(config.GetStorageConfig().Postgres.DSN()); err != nil {
				return err
			}
			if mgr.ShouldSaveLocal {
				return fmt.Errorf("postgres is not reachable, refusing to migrate into a local database")
			}
			if err := mgr.Setup(); err != nil {
				return err
			}

			migrated := 0
			for _, path := range paths {
				if err := migrateDump(path, postgres.NewWithDB(mgr.DB, logger)); err != nil {
					logger.Error("Failed to migrate dump", "path", path, "error", err)
					continue
				}
				if err := os.Rename(path, path+".migrated"); err != nil {
					logger.Warn("Failed to mark dump as migrated", "path", path, "error", err)
				}
				logger.Info("Migrated dump", "path", path)
				migrated++
			}
			fmt.Printf("migrated %d of %d dumps from %s\n", migrated, len(paths), filepath.Clean(dir))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory holding .db dumps (default storage.sqlite.outputDir)")
	return cmd
}

func migrateDump(path string, dst *postgres.Backend) error {
	src, err := database.OpenSqlite(path)
	if err != nil {
		return err
	}
	if sqlDB, err := src.DB(); err == nil {
		defer sqlDB.Close()
	}

	data, err := gormstorage.LoadSession(src, "")
	if err != nil {
		return err
	}
	if err := dst.Init(); err != nil {
		return err
	}
	defer dst.Close()
	return storage.Replay(data, dst)
}
