package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/rewind/internal/config"
	"github.com/ALT-F4-LLC/rewind/internal/db"
	"github.com/ALT-F4-LLC/rewind/internal/logger"
	"github.com/ALT-F4-LLC/rewind/internal/output"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

type contextKey string

const (
	dbKey       contextKey = "db"
	cfgKey      contextKey = "cfg"
	settingsKey contextKey = "settings"
	loggerKey   contextKey = "logger"
)

// CmdError wraps an error with a machine-readable error code for structured output.
type CmdError struct {
	Err  error
	Code output.ErrorCode
}

func (e *CmdError) Error() string { return e.Err.Error() }

func (e *CmdError) Unwrap() error { return e.Err }

func cmdErr(err error, code output.ErrorCode) *CmdError {
	return &CmdError{Err: err, Code: code}
}

var rootCmd = &cobra.Command{
	Use:     "rewind",
	Short:   "Rebuild the version history of issues and attachments from their activity log",
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Resolve()
		if err != nil {
			return err
		}

		settings, err := config.Load(cfg.SettingsPath)
		if err != nil {
			return cmdErr(err, output.ErrValidation)
		}

		level := settings.Log.Level
		if cmd.Flags().Changed("log-level") {
			level, _ = cmd.Flags().GetString("log-level")
		}
		logJSON, _ := cmd.Flags().GetBool("log-json")
		log, err := logger.New(logger.Config{Level: level, Pretty: settings.Log.Pretty && !logJSON})
		if err != nil {
			return cmdErr(err, output.ErrValidation)
		}

		ctx := context.WithValue(cmd.Context(), cfgKey, cfg)
		ctx = context.WithValue(ctx, settingsKey, settings)
		ctx = context.WithValue(ctx, loggerKey, log)

		if _, ok := cmd.Annotations["skipDB"]; ok {
			cmd.SetContext(ctx)
			return nil
		}

		if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
			return cmdErr(
				fmt.Errorf("no rewind database found, run 'rewind init' to create one"),
				output.ErrNotFound,
			)
		}

		conn, err := db.Open(cfg.DBPath)
		if err != nil {
			return cmdErr(fmt.Errorf("failed to open database: %w", err), output.ErrBackend)
		}
		if err := db.Migrate(conn); err != nil {
			conn.Close()
			return cmdErr(err, output.ErrBackend)
		}

		cmd.SetContext(context.WithValue(ctx, dbKey, conn))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		conn, ok := cmd.Context().Value(dbKey).(*sql.DB)
		if ok && conn != nil {
			return conn.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().String("log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON lines instead of console output")
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

func getWriter(cmd *cobra.Command) *output.Writer {
	jsonMode, _ := cmd.Flags().GetBool("json")
	quietMode, _ := cmd.Flags().GetBool("quiet")
	return output.New(jsonMode, quietMode)
}

func getCfg(cmd *cobra.Command) *config.Config {
	cfg, _ := cmd.Context().Value(cfgKey).(*config.Config)
	return cfg
}

func getSettings(cmd *cobra.Command) *config.Settings {
	s, _ := cmd.Context().Value(settingsKey).(*config.Settings)
	if s == nil {
		return config.Defaults()
	}
	return s
}

func getLogger(cmd *cobra.Command) zerolog.Logger {
	l, ok := cmd.Context().Value(loggerKey).(zerolog.Logger)
	if !ok {
		return zerolog.Nop()
	}
	return l
}

func getDB(cmd *cobra.Command) *sql.DB {
	conn, _ := cmd.Context().Value(dbKey).(*sql.DB)
	return conn
}

// Execute runs the root command and returns an exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		jsonMode, _ := rootCmd.PersistentFlags().GetBool("json")
		quietMode, _ := rootCmd.PersistentFlags().GetBool("quiet")
		w := output.New(jsonMode, quietMode)

		var ce *CmdError
		if errors.As(err, &ce) {
			return w.Error(ce.Err, ce.Code)
		}
		return w.Error(err, output.ErrGeneral)
	}
	return 0
}
