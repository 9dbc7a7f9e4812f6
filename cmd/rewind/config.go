package main

import (
	"fmt"
	"os"
	"strings"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/rewind/internal/config"
	"github.com/ALT-F4-LLC/rewind/internal/db"
	"github.com/ALT-F4-LLC/rewind/internal/output"
)

type configInfo struct {
	DBPath        string           `json:"db_path"`
	DBSizeBytes   int64            `json:"db_size_bytes"`
	SchemaVersion int              `json:"schema_version"`
	IndexPath     string           `json:"index_path"`
	SettingsPath  string           `json:"settings_path"`
	RewindPathEnv string           `json:"rewind_path_env"`
	RewindPathSet bool             `json:"rewind_path_set"`
	Settings      *config.Settings `json:"settings"`
}

var configCmd = &cobra.Command{
	Use:         "config",
	Short:       "Display rewind configuration",
	Annotations: map[string]string{"skipDB": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)

		info := configInfo{
			DBPath:        cfg.DBPath,
			IndexPath:     cfg.IndexPath,
			SettingsPath:  cfg.SettingsPath,
			RewindPathEnv: os.Getenv("REWIND_PATH"),
			RewindPathSet: cfg.EnvVarSet,
			Settings:      getSettings(cmd),
		}

		exists, err := cfg.Exists()
		if err != nil {
			return cmdErr(fmt.Errorf("checking database: %w", err), output.ErrGeneral)
		}

		if !exists {
			w.Warn("No rewind database found. Run 'rewind init' to create one.")
			w.Success(info, formatConfigHuman(info, true))
			return nil
		}

		conn, err := db.Open(cfg.DBPath)
		if err != nil {
			return cmdErr(fmt.Errorf("opening database: %w", err), output.ErrBackend)
		}
		defer conn.Close()

		info.SchemaVersion, err = db.SchemaVersion(conn)
		if err != nil {
			return cmdErr(fmt.Errorf("reading schema version: %w", err), output.ErrBackend)
		}

		stat, err := os.Stat(cfg.DBPath)
		if err != nil {
			return cmdErr(fmt.Errorf("reading database file: %w", err), output.ErrGeneral)
		}
		info.DBSizeBytes = stat.Size()

		w.Success(info, formatConfigHuman(info, false))
		return nil
	},
}

func formatEnvValue(val string) string {
	if val == "" {
		return "(not set)"
	}
	return val
}

func formatConfigHuman(info configInfo, notFound bool) string {
	dbPath := info.DBPath
	if notFound {
		dbPath = fmt.Sprintf("%s (not found)", info.DBPath)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Database path:      %s\n", dbPath)
	if !notFound {
		fmt.Fprintf(&b, "Database size:      %s\n", humanize.IBytes(uint64(info.DBSizeBytes)))
		fmt.Fprintf(&b, "Schema version:     %d\n", info.SchemaVersion)
	}
	fmt.Fprintf(&b, "Index path:         %s\n", info.IndexPath)
	fmt.Fprintf(&b, "Settings file:      %s\n", info.SettingsPath)
	fmt.Fprintf(&b, "REWIND_PATH:        %s\n", formatEnvValue(info.RewindPathEnv))

	s := info.Settings
	fmt.Fprintf(&b, "Log level:          %s\n", s.Log.Level)
	fmt.Fprintf(&b, "Max simultaneous:   %d\n", s.Rebuild.MaxSimultaneous)
	fmt.Fprintf(&b, "Safety delta:       %s\n", s.Rebuild.SafetyDelta)
	fmt.Fprintf(&b, "Automation account: %s\n", s.Rebuild.AutomationAccount)
	fmt.Fprintf(&b, "Workers:            %d\n", s.Rebuild.Workers)
	fmt.Fprintf(&b, "Open statuses:      %s\n", strings.Join(s.Statuses.Open, ", "))
	fmt.Fprintf(&b, "Closed statuses:    %s\n", strings.Join(s.Statuses.Closed, ", "))
	fmt.Fprintf(&b, "Status exceptions:  %d\n", len(s.Statuses.Exceptions))
	fmt.Fprintf(&b, "Cache size:         %s\n", humanize.Comma(int64(s.Cache.Size)))
	fmt.Fprintf(&b, "Search index:       %t", s.Index.Enabled)

	return b.String()
}

func init() {
	rootCmd.AddCommand(configCmd)
}
