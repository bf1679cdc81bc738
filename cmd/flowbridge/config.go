package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds all flowbridge server configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	ListenAddr      string `json:"listen_addr"`
	DBPath          string `json:"db_path"`
	Repository      string `json:"repository"`      // memory | sql
	SessionBackend  string `json:"session_backend"` // memory | sql | redis
	RedisAddr       string `json:"redis_addr"`
	RedisPassword   string `json:"redis_password,omitempty"`
	SessionTTL      string `json:"session_ttl"`
	FlowsDir        string `json:"flows_dir"`
	LogLevel        string `json:"log_level"`
	SweepSchedule   string `json:"sweep_schedule"`
	ExecutionTTL    string `json:"execution_ttl"`
	EngineBinding   string `json:"engine_binding"`
	TokenSessionKey string `json:"token_session_key"`
	ScopeKeys       string `json:"scope_keys"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:     ":4200",
		DBPath:         filepath.Join(flowbridgeDir(), "flowbridge.db"),
		Repository:     "memory",
		SessionBackend: "memory",
		RedisAddr:      "localhost:6379",
		SessionTTL:     "24h",
		FlowsDir:       "flows",
		LogLevel:       "info",
		SweepSchedule:  "*/5 * * * *",
		ExecutionTTL:   "30m",
		ScopeKeys:      "cart,total",
	}
}

func flowbridgeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flowbridge"
	}
	return filepath.Join(home, ".flowbridge")
}

func settingsPath() string {
	return filepath.Join(flowbridgeDir(), "settings.json")
}

func pidPath() string {
	return filepath.Join(flowbridgeDir(), "flowbridge.pid")
}

func loadConfig() Config {
	return loadConfigFile(settingsPath())
}

func loadConfigFile(path string) Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	for env, field := range map[string]*string{
		"FLOWBRIDGE_LISTEN_ADDR":       &cfg.ListenAddr,
		"FLOWBRIDGE_DB_PATH":           &cfg.DBPath,
		"FLOWBRIDGE_REPOSITORY":        &cfg.Repository,
		"FLOWBRIDGE_SESSION_BACKEND":   &cfg.SessionBackend,
		"FLOWBRIDGE_REDIS_ADDR":        &cfg.RedisAddr,
		"FLOWBRIDGE_REDIS_PASSWORD":    &cfg.RedisPassword,
		"FLOWBRIDGE_SESSION_TTL":       &cfg.SessionTTL,
		"FLOWBRIDGE_FLOWS_DIR":         &cfg.FlowsDir,
		"FLOWBRIDGE_LOG_LEVEL":         &cfg.LogLevel,
		"FLOWBRIDGE_SWEEP_SCHEDULE":    &cfg.SweepSchedule,
		"FLOWBRIDGE_EXECUTION_TTL":     &cfg.ExecutionTTL,
		"FLOWBRIDGE_ENGINE_BINDING":    &cfg.EngineBinding,
		"FLOWBRIDGE_TOKEN_SESSION_KEY": &cfg.TokenSessionKey,
		"FLOWBRIDGE_SCOPE_KEYS":        &cfg.ScopeKeys,
	} {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}

	return cfg
}

// check rejects unknown backends and malformed durations.
func (c Config) check() error {
	switch c.Repository {
	case "memory", "sql":
	default:
		return fmt.Errorf("repository must be memory or sql, got %q", c.Repository)
	}
	switch c.SessionBackend {
	case "memory", "sql", "redis":
	default:
		return fmt.Errorf("session_backend must be memory, sql or redis, got %q", c.SessionBackend)
	}
	if _, err := c.executionTTL(); err != nil {
		return err
	}
	if _, err := c.sessionTTL(); err != nil {
		return err
	}
	return nil
}

func (c Config) executionTTL() (time.Duration, error) {
	d, err := time.ParseDuration(c.ExecutionTTL)
	if err != nil {
		return 0, fmt.Errorf("execution_ttl: %w", err)
	}
	return d, nil
}

func (c Config) sessionTTL() (time.Duration, error) {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil {
		return 0, fmt.Errorf("session_ttl: %w", err)
	}
	return d, nil
}

func (c Config) needsDB() bool {
	return c.Repository == "sql" || c.SessionBackend == "sql"
}

// configDiff describes what changed between two configurations.
type configDiff struct {
	LogLevelChanged bool
	RestartNeeded   []string // fields that require a server restart
}

func diffConfigs(old, new Config) configDiff {
	var d configDiff
	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
	}
	restart := []struct {
		name     string
		old, new string
	}{
		{"listen_addr", old.ListenAddr, new.ListenAddr},
		{"db_path", old.DBPath, new.DBPath},
		{"repository", old.Repository, new.Repository},
		{"session_backend", old.SessionBackend, new.SessionBackend},
		{"redis_addr", old.RedisAddr, new.RedisAddr},
		{"flows_dir", old.FlowsDir, new.FlowsDir},
		{"sweep_schedule", old.SweepSchedule, new.SweepSchedule},
		{"execution_ttl", old.ExecutionTTL, new.ExecutionTTL},
		{"engine_binding", old.EngineBinding, new.EngineBinding},
		{"token_session_key", old.TokenSessionKey, new.TokenSessionKey},
		{"scope_keys", old.ScopeKeys, new.ScopeKeys},
	}
	for _, f := range restart {
		if f.old != f.new {
			d.RestartNeeded = append(d.RestartNeeded, f.name)
		}
	}
	return d
}
