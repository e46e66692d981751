package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kartracer/kartsim/internal/api"
	"github.com/kartracer/kartsim/internal/database"
	gormstorage "github.com/kartracer/kartsim/internal/storage/gorm"
	v1 "github.com/kartracer/kartsim/internal/storage/memory/export/v1"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newUploadCmd() *cobra.Command {
	var tag string
	cmd := &cobra.Command{
		Use:   "upload <replay.json.gz>",
		Short: "Upload an exported replay to the results server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setupRuntime("upload")
			if err != nil {
				return err
			}
			defer rt.Close()

			export, err := v1.ReadFile(args[0])
			if err != nil {
				return err
			}
			meta := export.Metadata()
			meta.Tag = tag

			client := api.New(viper.GetString("api.serverUrl"), viper.GetString("api.apiKey"))
			if err := client.Healthcheck(cmd.Context()); err != nil {
				return err
			}
			if err := client.Upload(cmd.Context(), args[0], meta); err != nil {
				return err
			}
			rt.logger.Info("Replay uploaded", "path", args[0], "session", meta.SessionName)
			fmt.Printf("uploaded %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "tag sent with the upload")
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		sessionUUID string
		outDir      string
		compress    bool
	)
	cmd := &cobra.Command{
		Use:   "export <dump.db>",
		Short: "Convert a SQLite session dump into a JSON replay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := exportDump(cmd.Context(), args[0], sessionUUID, outDir, compress)
			if err != nil {
				return err
			}
			fmt.Printf("replay written to %s\n", path)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&sessionUUID, "session", "", "session id to export (default latest)")
	f.StringVarP(&outDir, "out", "o", ".", "output directory")
	f.BoolVar(&compress, "compress", true, "gzip the replay")
	return cmd
}

func exportDump(_ context.Context, dbPath, sessionUUID, outDir string, compress bool) (string, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return "", err
	}
	db, err := database.OpenSqlite(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", dbPath, err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	data, err := gormstorage.LoadSession(db, sessionUUID)
	if err != nil {
		return "", err
	}
	export := v1.Build(data)

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(outDir, v1.FileName(export.SessionName, export.StartTime, compress))
	if err := v1.WriteFile(path, export, compress); err != nil {
		return "", err
	}
	return path, nil
}
