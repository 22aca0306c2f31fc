// Package config loads process configuration from the environment, applying
// defaults and validating bounds once at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every environment-tunable knob named in SPEC_FULL.md §10.3/§6.
type Config struct {
	ListenAddr string
	LogLevel   string

	SessionIdleTimeout time.Duration

	SSHHostKeyPolicy   string // "insecure" | "known_hosts"
	SSHKnownHostsFile  string

	OutputBufferCapacity int
	AIContextCapacity    int

	AICLICommand string
	AICLIArgs    []string
}

const (
	PolicyInsecure   = "insecure"
	PolicyKnownHosts = "known_hosts"
)

// Load builds a Config from the process environment, matching the
// defaults-and-override idiom of the realtime server's loadConfig().
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:           getEnv("LISTEN_ADDR", "0.0.0.0:3000"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		SSHHostKeyPolicy:     getEnv("SSH_HOST_KEY_POLICY", PolicyInsecure),
		SSHKnownHostsFile:    getEnv("SSH_KNOWN_HOSTS_FILE", ""),
		OutputBufferCapacity: 64 * 1024,
		AIContextCapacity:    100,
		AICLICommand:         getEnv("AI_CLI_COMMAND", "bash"),
		AICLIArgs:            getEnvList("AI_CLI_ARGS"),
	}

	idle, err := getDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.SessionIdleTimeout = idle

	if v := os.Getenv("OUTPUT_BUFFER_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("OUTPUT_BUFFER_CAPACITY: %w", err)
		}
		cfg.OutputBufferCapacity = n
	}
	if v := os.Getenv("AI_CONTEXT_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("AI_CONTEXT_CAPACITY: %w", err)
		}
		cfg.AIContextCapacity = n
	}

	if cfg.SSHHostKeyPolicy != PolicyInsecure && cfg.SSHHostKeyPolicy != PolicyKnownHosts {
		return nil, fmt.Errorf("SSH_HOST_KEY_POLICY must be %q or %q, got %q", PolicyInsecure, PolicyKnownHosts, cfg.SSHHostKeyPolicy)
	}
	if cfg.SSHHostKeyPolicy == PolicyKnownHosts && cfg.SSHKnownHostsFile == "" {
		return nil, fmt.Errorf("SSH_KNOWN_HOSTS_FILE is required when SSH_HOST_KEY_POLICY=known_hosts")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvList reads a comma-separated list, e.g. AI_CLI_ARGS="--flag,value",
// trimming surrounding whitespace from each element. Absent or empty yields
// nil, matching AICLIArgs' prior zero-value default.
func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
