package config

import (
	"os"
	"path/filepath"
)

const (
	dbFileName       = "history.db"
	indexDirName     = "index.bleve"
	settingsFileName = "config.yaml"
)

// Config holds the resolved paths of a rewind workspace.
type Config struct {
	Dir          string // resolved .rewind directory path
	DBPath       string // full path to history.db
	IndexPath    string // full path to the search index directory
	SettingsPath string // full path to config.yaml
	EnvVarSet    bool   // whether REWIND_PATH was used
}

// Resolve returns the current configuration by checking REWIND_PATH first,
// then falling back to $PWD/.rewind.
func Resolve() (*Config, error) {
	var dir string
	var envVarSet bool

	if envPath := os.Getenv("REWIND_PATH"); envPath != "" {
		dir = envPath
		envVarSet = true
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(cwd, ".rewind")
	}

	return &Config{
		Dir:          dir,
		DBPath:       filepath.Join(dir, dbFileName),
		IndexPath:    filepath.Join(dir, indexDirName),
		SettingsPath: filepath.Join(dir, settingsFileName),
		EnvVarSet:    envVarSet,
	}, nil
}

// Exists checks if the workspace directory and DB file both exist.
// It returns an error for non-existence failures (e.g. permission errors).
func (c *Config) Exists() (bool, error) {
	for _, p := range []string{c.Dir, c.DBPath} {
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}
			return false, err
		}
	}
	return true, nil
}
