package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// StoreConfig controls the WAL database itself.
type StoreConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string `yaml:"db_path"`

	// StrictSession requires a session row to exist before AppendEvent
	// will accept an event for it.
	StrictSession bool `yaml:"strict_session"`

	// BusyTimeout is passed to SQLite's busy_timeout pragma.
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// LogConfig controls the walog sink.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Dir is the directory rotating log files are written to.
	Dir string `yaml:"dir"`

	// Color enables ANSI color on TTY writers.
	Color bool `yaml:"color"`
}

// ConsolidationConfig controls the background consolidation sweep.
type ConsolidationConfig struct {
	// BackgroundInterval is how often the writer scans for
	// consolidatable runs.
	BackgroundInterval time.Duration `yaml:"background_interval"`

	// MinRunLength is the minimum number of events a run must have
	// before it is worth consolidating.
	MinRunLength int `yaml:"min_run_length"`
}

// Config represents sessionwal configuration options.
type Config struct {
	Store         StoreConfig         `yaml:"store"`
	Log           LogConfig           `yaml:"log"`
	Consolidation ConsolidationConfig `yaml:"consolidation"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			DBPath:        ".sessionwal/sessions.db",
			StrictSession: false,
			BusyTimeout:   5 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   ".sessionwal/logs",
			Color: true,
		},
		Consolidation: ConsolidationConfig{
			BackgroundInterval: 30 * time.Second,
			MinRunLength:       2,
		},
	}
}

// applyLogEnvOverrides applies environment variable overrides to log
// configuration. Environment variables take precedence over config
// file values.
//
// Recognized variables:
//   - SESSIONWAL_LOG_LEVEL
//   - SESSIONWAL_LOG_COLOR (only "true" or "1" are recognized as true)
//   - SESSIONWAL_LOG_DIR
func applyLogEnvOverrides(cfg *LogConfig) {
	if val := os.Getenv("SESSIONWAL_LOG_LEVEL"); val != "" {
		cfg.Level = val
	}
	if val := os.Getenv("SESSIONWAL_LOG_COLOR"); val != "" {
		cfg.Color = val == "true" || val == "1"
	}
	if val := os.Getenv("SESSIONWAL_LOG_DIR"); val != "" {
		cfg.Dir = val
	}
}

// applyStoreEnvOverrides applies environment variable overrides to
// store configuration.
//
// Recognized variables:
//   - SESSIONWAL_DB_PATH
//   - SESSIONWAL_STRICT_SESSION (only "true" or "1" are recognized as true)
func applyStoreEnvOverrides(cfg *StoreConfig) {
	if val := os.Getenv("SESSIONWAL_DB_PATH"); val != "" {
		cfg.DBPath = val
	}
	if val := os.Getenv("SESSIONWAL_STRICT_SESSION"); val != "" {
		cfg.StrictSession = val == "true" || val == "1"
	}
}

// yamlConfig mirrors Config but with durations as strings, so
// time.ParseDuration can be applied explicitly with a useful error
// message on failure.
type yamlConfig struct {
	Store struct {
		DBPath        string `yaml:"db_path"`
		StrictSession bool   `yaml:"strict_session"`
		BusyTimeout   string `yaml:"busy_timeout"`
	} `yaml:"store"`
	Log struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
		Color bool   `yaml:"color"`
	} `yaml:"log"`
	Consolidation struct {
		BackgroundInterval string `yaml:"background_interval"`
		MinRunLength       int    `yaml:"min_run_length"`
	} `yaml:"consolidation"`
}

// LoadConfig loads configuration from the specified file path. If the
// file doesn't exist, returns default configuration (with env
// overrides applied) without error. If the file exists but is
// malformed, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		applyStoreEnvOverrides(&cfg.Store)
		applyLogEnvOverrides(&cfg.Log)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// rawMap lets us tell "field absent" apart from "field present but
	// zero value", the same way the teacher's section-merge does.
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if section, ok := sectionMap(rawMap, "store"); ok {
		if _, present := section["db_path"]; present {
			cfg.Store.DBPath = yamlCfg.Store.DBPath
		}
		if _, present := section["strict_session"]; present {
			cfg.Store.StrictSession = yamlCfg.Store.StrictSession
		}
		if raw, present := section["busy_timeout"]; present && yamlCfg.Store.BusyTimeout != "" {
			d, err := time.ParseDuration(yamlCfg.Store.BusyTimeout)
			if err != nil {
				return nil, fmt.Errorf("invalid store.busy_timeout %q: %w", raw, err)
			}
			cfg.Store.BusyTimeout = d
		}
	}

	if section, ok := sectionMap(rawMap, "log"); ok {
		if _, present := section["level"]; present {
			cfg.Log.Level = yamlCfg.Log.Level
		}
		if _, present := section["dir"]; present {
			cfg.Log.Dir = yamlCfg.Log.Dir
		}
		if _, present := section["color"]; present {
			cfg.Log.Color = yamlCfg.Log.Color
		}
	}

	if section, ok := sectionMap(rawMap, "consolidation"); ok {
		if raw, present := section["background_interval"]; present && yamlCfg.Consolidation.BackgroundInterval != "" {
			d, err := time.ParseDuration(yamlCfg.Consolidation.BackgroundInterval)
			if err != nil {
				return nil, fmt.Errorf("invalid consolidation.background_interval %q: %w", raw, err)
			}
			cfg.Consolidation.BackgroundInterval = d
		}
		if _, present := section["min_run_length"]; present {
			cfg.Consolidation.MinRunLength = yamlCfg.Consolidation.MinRunLength
		}
	}

	applyStoreEnvOverrides(&cfg.Store)
	applyLogEnvOverrides(&cfg.Log)

	return cfg, nil
}

func sectionMap(rawMap map[string]interface{}, key string) (map[string]interface{}, bool) {
	section, exists := rawMap[key]
	if !exists || section == nil {
		return nil, false
	}
	m, ok := section.(map[string]interface{})
	return m, ok
}

// MergeWithFlags merges CLI flags into the configuration. Non-nil
// flag values override configuration values.
func (c *Config) MergeWithFlags(dbPath *string, logLevel *string, strictSession *bool) {
	if dbPath != nil {
		c.Store.DBPath = *dbPath
	}
	if logLevel != nil {
		c.Log.Level = *logLevel
	}
	if strictSession != nil {
		c.Store.StrictSession = *strictSession
	}
}

// Validate validates the configuration values. Returns an error if
// any values are invalid.
func (c *Config) Validate() error {
	if c.Store.DBPath == "" {
		return fmt.Errorf("store.db_path cannot be empty")
	}
	if c.Store.BusyTimeout < 0 {
		return fmt.Errorf("store.busy_timeout must be >= 0, got %v", c.Store.BusyTimeout)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log.level %q, must be one of: debug, info, warn, error", c.Log.Level)
	}

	if c.Consolidation.BackgroundInterval < 0 {
		return fmt.Errorf("consolidation.background_interval must be >= 0, got %v", c.Consolidation.BackgroundInterval)
	}
	if c.Consolidation.MinRunLength < 2 {
		return fmt.Errorf("consolidation.min_run_length must be >= 2, got %d", c.Consolidation.MinRunLength)
	}

	return nil
}
