// Package logger provides structured logging for rewind.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	Level  string // debug, info, warn, error
	Pretty bool   // human-readable console output
	Output io.Writer
}

// ParseLevel maps a level name to a zerolog level. The empty string means info.
func ParseLevel(name string) (zerolog.Level, error) {
	switch name {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled":
		return zerolog.Disabled, nil
	}
	return zerolog.NoLevel, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error, disabled", name)
}

// New creates a structured logger. Output defaults to stderr so logs never mix
// with command output on stdout.
func New(cfg Config) (zerolog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("service", "rewind").
		Logger(), nil
}

// Component returns a sub-logger tagged with a component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// LogRunStart logs the start of a rebuild run.
func LogRunStart(l zerolog.Logger, runID, kind string, since time.Time) {
	event := l.Info().
		Str("event", "run_start").
		Str("run", runID).
		Str("kind", kind)
	if !since.IsZero() {
		event = event.Time("since", since)
	}
	event.Msg("rebuild starting")
}

// LogRunFinished logs the outcome of a rebuild run.
func LogRunFinished(l zerolog.Logger, runID, kind string, entities, failures int, duration time.Duration, err error) {
	event := l.Info()
	if err != nil {
		event = l.Error().Err(err)
	}
	event.
		Str("event", "run_finished").
		Str("run", runID).
		Str("kind", kind).
		Int("entities", entities).
		Int("failures", failures).
		Dur("duration_ms", duration).
		Msg("rebuild finished")
}
