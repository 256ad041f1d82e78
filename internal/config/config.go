// Package config provides application settings and per-source correlation configuration.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

const (
	// DefaultWorkerPort is the default HTTP port for the worker service.
	DefaultWorkerPort = 37790

	// DefaultMaxBodyBytes caps correlation request bodies (activities + messages).
	DefaultMaxBodyBytes = 16 << 20

	// DefaultJobTTL is how long finished background jobs stay pollable.
	DefaultJobTTL = 30 * time.Minute
)

// Config holds the application configuration.
type Config struct {
	// Worker settings
	WorkerPort   int    `json:"worker_port"`
	SourcesDir   string `json:"sources_dir"`
	LogLevel     string `json:"log_level"`
	WatchSources bool   `json:"watch_sources"`

	// Engine settings
	Workers int `json:"workers"` // Parallel activities per correlation call

	// Request limits
	MaxBodyBytes int64   `json:"max_body_bytes"`
	RateLimit    float64 `json:"rate_limit"` // Correlation requests per second
	RateBurst    int     `json:"rate_burst"`

	// Background jobs
	JobTTL time.Duration `json:"job_ttl"`
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// DataDir returns the data directory path (~/.remote-correlate).
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".remote-correlate")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		WorkerPort:   DefaultWorkerPort,
		SourcesDir:   filepath.Join(DataDir(), "sources"),
		LogLevel:     "info",
		WatchSources: true,
		Workers:      runtime.GOMAXPROCS(0),
		MaxBodyBytes: DefaultMaxBodyBytes,
		RateLimit:    10,
		RateBurst:    20,
		JobTTL:       DefaultJobTTL,
	}
}

// Load loads configuration from the settings file and environment, merging with defaults.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		var settings map[string]interface{}
		if err := json.Unmarshal(data, &settings); err == nil {
			applySettings(cfg, settings)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applySettings(cfg *Config, settings map[string]interface{}) {
	if v, ok := settings["REMOTE_WORKER_PORT"].(float64); ok && v > 0 {
		cfg.WorkerPort = int(v)
	}
	if v, ok := settings["REMOTE_SOURCES_DIR"].(string); ok && v != "" {
		cfg.SourcesDir = v
	}
	if v, ok := settings["REMOTE_LOG_LEVEL"].(string); ok && v != "" {
		cfg.LogLevel = v
	}
	if v, ok := settings["REMOTE_WATCH_SOURCES"].(bool); ok {
		cfg.WatchSources = v
	}
	if v, ok := settings["REMOTE_WORKERS"].(float64); ok && v > 0 {
		cfg.Workers = int(v)
	}
	if v, ok := settings["REMOTE_MAX_BODY_BYTES"].(float64); ok && v > 0 {
		cfg.MaxBodyBytes = int64(v)
	}
	if v, ok := settings["REMOTE_RATE_LIMIT"].(float64); ok && v > 0 {
		cfg.RateLimit = v
	}
	if v, ok := settings["REMOTE_RATE_BURST"].(float64); ok && v > 0 {
		cfg.RateBurst = int(v)
	}
	if v, ok := settings["REMOTE_JOB_TTL"].(string); ok {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.JobTTL = d
		}
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("REMOTE_WORKER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			cfg.WorkerPort = p
		}
	}
	if v := os.Getenv("REMOTE_SOURCES_DIR"); v != "" {
		cfg.SourcesDir = v
	}
	if v := os.Getenv("REMOTE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("REMOTE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
}

// Get returns the global configuration, loading it if necessary.
func Get() *Config {
	configOnce.Do(func() {
		var err error
		globalConfig, err = Load()
		if err != nil {
			globalConfig = Default()
		}
	})

	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
