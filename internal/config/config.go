// Package config provides configuration management for the rule intelligence platform.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

const (
	// DefaultWorkerPort is the default HTTP port for the worker service.
	DefaultWorkerPort = 38800

	// DefaultPersistTimeout bounds the durable write performed during
	// feedback ingestion. Failures are surfaced, never dropped.
	DefaultPersistTimeout = 5 * time.Second
)

// Config holds the application configuration.
type Config struct {
	// Worker settings
	WorkerPort int `json:"worker_port"`

	// Database settings. When DatabaseDSN is empty the embedded SQLite
	// store at SQLitePath is used instead of PostgreSQL.
	DatabaseDSN string `json:"database_dsn"`
	SQLitePath  string `json:"sqlite_path"`
	MaxConns    int    `json:"max_conns"`

	// Redis cache settings. Empty address disables the cache.
	RedisAddr string `json:"redis_addr"`

	// Policy artifact settings
	PolicyPath string `json:"policy_path"`

	// Rule pack directory used by the ingestion CLI.
	RulePackDir string `json:"rule_pack_dir"`

	// PersistTimeout bounds feedback persistence writes.
	PersistTimeout time.Duration `json:"persist_timeout_ns"`
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// DataDir returns the data directory path (~/.rule-intelligence).
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".rule-intelligence")
}

// DBPath returns the embedded database file path.
func DBPath() string {
	return filepath.Join(DataDir(), "rules.db")
}

// PolicyPath returns the default policy artifact path.
func PolicyPath() string {
	return filepath.Join(DataDir(), "policy.json")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		WorkerPort:     DefaultWorkerPort,
		SQLitePath:     DBPath(),
		MaxConns:       4,
		PolicyPath:     PolicyPath(),
		PersistTimeout: DefaultPersistTimeout,
	}
}

// Load loads configuration from the settings file, merging with defaults,
// then applies RULEINTEL_* environment overrides.
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
	if v, ok := settings["RULEINTEL_WORKER_PORT"].(float64); ok && v > 0 {
		cfg.WorkerPort = int(v)
	}
	if v, ok := settings["RULEINTEL_DATABASE_DSN"].(string); ok {
		cfg.DatabaseDSN = v
	}
	if v, ok := settings["RULEINTEL_SQLITE_PATH"].(string); ok && v != "" {
		cfg.SQLitePath = v
	}
	if v, ok := settings["RULEINTEL_MAX_CONNS"].(float64); ok && v > 0 {
		cfg.MaxConns = int(v)
	}
	if v, ok := settings["RULEINTEL_REDIS_ADDR"].(string); ok {
		cfg.RedisAddr = v
	}
	if v, ok := settings["RULEINTEL_POLICY_PATH"].(string); ok && v != "" {
		cfg.PolicyPath = v
	}
	if v, ok := settings["RULEINTEL_RULE_PACK_DIR"].(string); ok {
		cfg.RulePackDir = v
	}
	if v, ok := settings["RULEINTEL_PERSIST_TIMEOUT_MS"].(float64); ok && v > 0 {
		cfg.PersistTimeout = time.Duration(v) * time.Millisecond
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("RULEINTEL_WORKER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			cfg.WorkerPort = p
		}
	}
	if v := os.Getenv("RULEINTEL_DATABASE_DSN"); v != "" {
		cfg.DatabaseDSN = v
	}
	if v := os.Getenv("RULEINTEL_SQLITE_PATH"); v != "" {
		cfg.SQLitePath = v
	}
	if v := os.Getenv("RULEINTEL_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("RULEINTEL_POLICY_PATH"); v != "" {
		cfg.PolicyPath = v
	}
	if v := os.Getenv("RULEINTEL_RULE_PACK_DIR"); v != "" {
		cfg.RulePackDir = v
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
