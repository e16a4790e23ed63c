package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration for puzzle-sync.
type Config struct {
	// Environment controls log format.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// LogLevel overrides the environment's default level when set.
	LogLevel string `env:"LOG_LEVEL"`

	// StatePath is the local device store. Defaults to
	// ~/.puzzle-sync/state.db when empty.
	StatePath string `env:"STATE_PATH"`

	// Remote backend. DatabaseType is one of postgres, mysql or sqlite.
	// Postgres and MySQL read DatabaseURL; SQLite reads DatabasePath.
	DatabaseType string `env:"DATABASE_TYPE" envDefault:"postgres"`
	DatabaseURL  string `env:"DATABASE_URL"`
	DatabasePath string `env:"DATABASE_PATH"`

	// RedisURL enables the view cache. Empty disables caching.
	RedisURL     string        `env:"REDIS_URL"`
	ViewCacheTTL time.Duration `env:"VIEW_CACHE_TTL" envDefault:"10m"`

	// JWTSecret verifies backend access tokens. SessionToken is the
	// signed-in user's current token; the CLI flag overrides it.
	JWTSecret    string `env:"JWT_SECRET"`
	SessionToken string `env:"SESSION_TOKEN"`

	// AtomicWrites wraps the multi-step remote writes of one game in a
	// single transaction.
	AtomicWrites bool `env:"ATOMIC_WRITES" envDefault:"false"`

	// WatchInterval is how often the watch loop probes the backend.
	WatchInterval time.Duration `env:"WATCH_INTERVAL" envDefault:"30s"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing the JWT secret to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.DatabaseType = strings.ToLower(strings.TrimSpace(cfg.DatabaseType))

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if cfg.StatePath == "" {
		path, err := DefaultStatePath()
		if err != nil {
			return nil, err
		}

		cfg.StatePath = path
	}

	absPath, err := filepath.Abs(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("resolving state path to absolute path: %w", err)
	}

	cfg.StatePath = absPath

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DatabaseType {
	case "postgres", "postgresql", "mysql":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DATABASE_TYPE is %s", c.DatabaseType)
		}
	case "sqlite", "sqlite3":
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH is required when DATABASE_TYPE is %s", c.DatabaseType)
		}
	default:
		return fmt.Errorf("unsupported DATABASE_TYPE %q", c.DatabaseType)
	}

	if c.ViewCacheTTL < 0 {
		return fmt.Errorf("VIEW_CACHE_TTL must not be negative")
	}

	if c.WatchInterval <= 0 {
		return fmt.Errorf("WATCH_INTERVAL must be positive")
	}

	return nil
}

// RequireSession reports an error when token-authenticated commands
// cannot verify a session.
func (c *Config) RequireSession() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required for signed-in commands")
	}

	return nil
}

// DefaultStatePath returns ~/.puzzle-sync/state.db.
func DefaultStatePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(home, ".puzzle-sync", "state.db"), nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
