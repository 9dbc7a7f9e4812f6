package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/rewind/internal/db"
	"github.com/ALT-F4-LLC/rewind/internal/output"
)

type initResult struct {
	Path          string `json:"path"`
	DBPath        string `json:"db_path"`
	SchemaVersion int    `json:"schema_version"`
	Created       bool   `json:"created"`
}

var initCmd = &cobra.Command{
	Use:         "init",
	Short:       "Initialize a new rewind workspace",
	Annotations: map[string]string{"skipDB": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)

		exists, err := cfg.Exists()
		if err != nil {
			return cmdErr(fmt.Errorf("checking database: %w", err), output.ErrGeneral)
		}

		if !exists {
			if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
				return cmdErr(fmt.Errorf("creating directory: %w", err), output.ErrGeneral)
			}
		}

		conn, err := db.Open(cfg.DBPath)
		if err != nil {
			return cmdErr(fmt.Errorf("opening database: %w", err), output.ErrBackend)
		}
		defer conn.Close()

		if err := db.Initialize(conn); err != nil {
			return cmdErr(fmt.Errorf("initializing schema: %w", err), output.ErrBackend)
		}
		if err := db.Migrate(conn); err != nil {
			return cmdErr(fmt.Errorf("migrating schema: %w", err), output.ErrBackend)
		}

		schemaVersion, err := db.SchemaVersion(conn)
		if err != nil {
			return cmdErr(fmt.Errorf("reading schema version: %w", err), output.ErrBackend)
		}

		res := initResult{
			Path:          cfg.Dir,
			DBPath:        cfg.DBPath,
			SchemaVersion: schemaVersion,
			Created:       !exists,
		}
		if exists {
			w.Warn("Database already exists at %s", cfg.DBPath)
			w.Success(res, "Database already initialized")
			return nil
		}

		w.Success(res, "Initialized rewind workspace")
		w.Info("Settings are read from %s when present", cfg.SettingsPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
