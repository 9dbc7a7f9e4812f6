package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ALT-F4-LLC/rewind/internal/history"
	"github.com/ALT-F4-LLC/rewind/internal/logger"
	"github.com/ALT-F4-LLC/rewind/internal/model"
)

// envPrefix is the environment variable prefix for rewind settings.
const envPrefix = "REWIND"

// Defaults for Settings.
const (
	DefaultLogLevel  = "info"
	DefaultLogPretty = true
	DefaultWorkers   = 1
	DefaultBatchSize = 500
	DefaultKeepGoing = false
	DefaultCacheSize = 4096
	DefaultIndexOn   = true
	DefaultTextfile  = ""
)

// Validation errors.
var (
	ErrInvalidMaxSimultaneous = errors.New("rebuild.max_simultaneous must be positive")
	ErrInvalidSafetyDelta     = errors.New("rebuild.safety_delta must be positive")
	ErrInvalidWorkers         = errors.New("rebuild.workers must be positive")
	ErrInvalidBatchSize       = errors.New("rebuild.batch_size must be positive")
	ErrInvalidCacheSize       = errors.New("cache.size must not be negative")
	ErrMissingReopened        = errors.New("statuses.reopened must be one of statuses.open")
	ErrOverlappingStatuses    = errors.New("a status cannot be both open and closed")
)

// Settings is the content of a workspace's config.yaml.
// Field tags use mapstructure for viper unmarshalling.
type Settings struct {
	Log      LogSettings     `mapstructure:"log" json:"log"`
	Rebuild  RebuildSettings `mapstructure:"rebuild" json:"rebuild"`
	Statuses StatusSettings  `mapstructure:"statuses" json:"statuses"`
	Cache    CacheSettings   `mapstructure:"cache" json:"cache"`
	Index    IndexSettings   `mapstructure:"index" json:"index"`
	Metrics  MetricsSettings `mapstructure:"metrics" json:"metrics"`
}

// LogSettings configures logging.
type LogSettings struct {
	Level  string `mapstructure:"level" json:"level"`
	Pretty bool   `mapstructure:"pretty" json:"pretty"`
}

// RebuildSettings holds the rebuilder knobs.
type RebuildSettings struct {
	MaxSimultaneous   int           `mapstructure:"max_simultaneous" json:"max_simultaneous"`
	SafetyDelta       time.Duration `mapstructure:"safety_delta" json:"safety_delta"`
	AutomationAccount string        `mapstructure:"automation_account" json:"automation_account"`
	Workers           int           `mapstructure:"workers" json:"workers"`
	BatchSize         int           `mapstructure:"batch_size" json:"batch_size"`
	KeepGoing         bool          `mapstructure:"keep_going" json:"keep_going"`
}

// StatusSettings maps issue statuses to the open and closed major statuses.
type StatusSettings struct {
	Open       []string          `mapstructure:"open" json:"open"`
	Closed     []string          `mapstructure:"closed" json:"closed"`
	Reopened   string            `mapstructure:"reopened" json:"reopened"`
	Exceptions []StatusException `mapstructure:"exceptions" json:"exceptions"`
}

// StatusException fixes the status of a known broken issue.
type StatusException struct {
	ID     int64  `mapstructure:"id" json:"id"`
	Status string `mapstructure:"status" json:"status"`
	Major  string `mapstructure:"major" json:"major"`
}

// CacheSettings sizes the persisted-history cache used by repeated rebuilds.
type CacheSettings struct {
	Size int `mapstructure:"size" json:"size"`
}

// IndexSettings toggles the search index.
type IndexSettings struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
}

// MetricsSettings configures the Prometheus textfile written after each run.
type MetricsSettings struct {
	Textfile string `mapstructure:"textfile" json:"textfile"`
}

// Load reads settings from the given file, environment variables prefixed
// with REWIND_ and defaults. A missing file is not an error.
func Load(path string) (*Settings, error) {
	v := viper.New()
	applyDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &s, nil
}

// Defaults returns the settings used when nothing is configured.
func Defaults() *Settings {
	s, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("default settings are invalid: %v", err))
	}
	return s
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.pretty", DefaultLogPretty)

	v.SetDefault("rebuild.max_simultaneous", history.DefaultMaxSimultaneous)
	v.SetDefault("rebuild.safety_delta", history.DefaultSafetyDelta)
	v.SetDefault("rebuild.automation_account", history.DefaultAutomationAccount)
	v.SetDefault("rebuild.workers", DefaultWorkers)
	v.SetDefault("rebuild.batch_size", DefaultBatchSize)
	v.SetDefault("rebuild.keep_going", DefaultKeepGoing)

	table := history.DefaultStatusTable()
	var open, closed []string
	for status, major := range table.Major {
		if major == model.MajorStatusOpen {
			open = append(open, status)
		} else {
			closed = append(closed, status)
		}
	}
	sort.Strings(open)
	sort.Strings(closed)
	v.SetDefault("statuses.open", open)
	v.SetDefault("statuses.closed", closed)
	v.SetDefault("statuses.reopened", table.Reopened)
	exceptions := make([]map[string]any, 0, len(table.Exceptions))
	for id, fix := range table.Exceptions {
		exceptions = append(exceptions, map[string]any{"id": id, "status": fix.Status, "major": fix.Major})
	}
	v.SetDefault("statuses.exceptions", exceptions)

	v.SetDefault("cache.size", DefaultCacheSize)
	v.SetDefault("index.enabled", DefaultIndexOn)
	v.SetDefault("metrics.textfile", DefaultTextfile)
}

// Validate checks the settings for values the rebuilder cannot work with.
func (s *Settings) Validate() error {
	if _, err := logger.ParseLevel(s.Log.Level); err != nil {
		return err
	}
	if s.Rebuild.MaxSimultaneous <= 0 {
		return ErrInvalidMaxSimultaneous
	}
	if s.Rebuild.SafetyDelta <= 0 {
		return ErrInvalidSafetyDelta
	}
	if s.Rebuild.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if s.Rebuild.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if s.Cache.Size < 0 {
		return ErrInvalidCacheSize
	}
	for _, st := range s.Statuses.Open {
		for _, c := range s.Statuses.Closed {
			if st == c {
				return fmt.Errorf("%w: %s", ErrOverlappingStatuses, st)
			}
		}
	}
	found := false
	for _, st := range s.Statuses.Open {
		found = found || st == s.Statuses.Reopened
	}
	if !found {
		return ErrMissingReopened
	}
	return nil
}

// StatusTable builds the status mapping used by the measurement pass.
func (s *Settings) StatusTable() *history.StatusTable {
	t := &history.StatusTable{
		Major:      make(map[string]string),
		Exceptions: make(map[int64]history.StatusFix),
		Reopened:   s.Statuses.Reopened,
		Open:       model.MajorStatusOpen,
	}
	for _, st := range s.Statuses.Open {
		t.Major[st] = model.MajorStatusOpen
	}
	for _, st := range s.Statuses.Closed {
		t.Major[st] = model.MajorStatusClosed
	}
	for _, e := range s.Statuses.Exceptions {
		t.Exceptions[e.ID] = history.StatusFix{Status: e.Status, Major: e.Major}
	}
	return t
}

// RebuildOptions converts the rebuild settings into rebuilder options.
func (s *Settings) RebuildOptions() history.Options {
	opts := history.DefaultOptions()
	opts.MaxSimultaneous = s.Rebuild.MaxSimultaneous
	opts.SafetyDelta = s.Rebuild.SafetyDelta
	opts.AutomationAccount = s.Rebuild.AutomationAccount
	return opts
}
