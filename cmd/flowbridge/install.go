package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newInstallCommand() *cobra.Command {
	cfg := defaultConfig()
	var noSignal bool
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Write ~/.flowbridge/settings.json and signal a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.check(); err != nil {
				return err
			}
			path, err := writeSettings(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config written to %s\n", path)
			if !noSignal {
				signalRunningServer(out)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.ListenAddr, "listen-addr", cfg.ListenAddr, "TCP listen address")
	f.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "libsql database path")
	f.StringVar(&cfg.Repository, "repository", cfg.Repository, "execution repository: memory or sql")
	f.StringVar(&cfg.SessionBackend, "session-backend", cfg.SessionBackend, "session store: memory, sql or redis")
	f.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "redis address for the redis session backend")
	f.StringVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "session cookie lifetime")
	f.StringVar(&cfg.FlowsDir, "flows-dir", cfg.FlowsDir, "flow definitions directory")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	f.StringVar(&cfg.SweepSchedule, "sweep-schedule", cfg.SweepSchedule, "cron schedule for purging idle executions")
	f.StringVar(&cfg.ExecutionTTL, "execution-ttl", cfg.ExecutionTTL, "idle time before a paused execution is purged")
	f.StringVar(&cfg.EngineBinding, "engine-binding", cfg.EngineBinding, "registry name of the flow executor")
	f.StringVar(&cfg.TokenSessionKey, "token-session-key", cfg.TokenSessionKey, "session key holding the resume token")
	f.StringVar(&cfg.ScopeKeys, "scope-keys", cfg.ScopeKeys, "comma-separated keys synced by the keys interceptor")
	f.BoolVar(&noSignal, "no-signal", false, "do not signal a running server")
	return cmd
}

// writeSettings persists cfg without the redis password, which stays env-only.
func writeSettings(cfg Config) (string, error) {
	if err := os.MkdirAll(flowbridgeDir(), 0o700); err != nil {
		return "", fmt.Errorf("cannot create %s: %w", flowbridgeDir(), err)
	}
	cfg.RedisPassword = ""
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", err
	}
	path := settingsPath()
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("cannot write %s: %w", path, err)
	}
	return path, nil
}
