package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultBackendURL    = "ws://127.0.0.1:80/ws"
	defaultRPCTimeout    = 5 * time.Second
	defaultRecordTimeout = 20 * time.Second
	defaultResetTimeout  = 10 * time.Second
)

// Config stores runtime configuration for the speech panel.
type Config struct {
	Backend  BackendConfig
	Timeouts TimeoutConfig
	Log      LogConfig
}

type BackendConfig struct {
	URL        string
	RPCTimeout time.Duration
}

type TimeoutConfig struct {
	Record time.Duration
	Reset  time.Duration
}

type LogConfig struct {
	Level string
}

// Load preloads the given .env files, then resolves configuration from
// environment variables and defaults. Variables already set in the
// environment win over .env values. Missing files are skipped.
func Load(envFiles ...string) (Config, error) {
	for _, path := range envFiles {
		if strings.TrimSpace(path) == "" {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("load env file %s: %w", path, err)
		}
	}

	cfg := Config{
		Backend: BackendConfig{
			URL:        envOrDefault("SPEECHPANEL_BACKEND_URL", defaultBackendURL),
			RPCTimeout: envOrDefaultMillis("SPEECHPANEL_RPC_TIMEOUT_MS", defaultRPCTimeout),
		},
		Timeouts: TimeoutConfig{
			Record: envOrDefaultMillis("SPEECHPANEL_RECORD_TIMEOUT_MS", defaultRecordTimeout),
			Reset:  envOrDefaultMillis("SPEECHPANEL_RESET_TIMEOUT_MS", defaultResetTimeout),
		},
		Log: LogConfig{
			Level: strings.ToLower(envOrDefault("SPEECHPANEL_LOG_LEVEL", "info")),
		},
	}

	return cfg, nil
}

// SlogLevel maps the configured level name, defaulting to info.
func (c LogConfig) SlogLevel() slog.Level {
	return ParseLevel(c.Level)
}

func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultMillis(key string, fallback time.Duration) time.Duration {
	ms := envOrDefaultInt(key, -1)
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
