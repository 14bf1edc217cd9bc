package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// LookupFunc reads an environment variable.
type LookupFunc func(key string) (string, bool)

// Load reads configuration from a YAML file, then applies environment
// overrides. A missing file is not an error; the process may be configured
// through the environment alone.
func Load(path string) (*AppConfig, error) {
	_ = godotenv.Load()
	return load(path, os.LookupEnv)
}

// Retry settings are seeded before parsing because zero is a valid value.
const (
	defaultMaxRetries = 5
	defaultRetryDelay = 1 * time.Second
)

func load(path string, lookup LookupFunc) (*AppConfig, error) {
	var cfg AppConfig
	cfg.Database.MaxRetries = defaultMaxRetries
	cfg.Database.RetryDelay = defaultRetryDelay

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			// Expand environment variables in the YAML content
			expandedData := os.Expand(string(data), func(key string) string {
				v, _ := lookup(key)
				return v
			})
			if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	applyEnv(&cfg, lookup)
	applyDefaults(&cfg)
	return &cfg, nil
}

// applyEnv overrides file values with the process environment and records
// what the boot checks should validate.
func applyEnv(cfg *AppConfig, lookup LookupFunc) {
	if v, ok := lookup("DATABASE_URL"); ok {
		cfg.Database.URL = v
	}
	if v, ok := lookup("NEXTAUTH_URL"); ok {
		cfg.Auth.URL = v
	}
	if v, ok := lookup("NEXTAUTH_SECRET"); ok {
		cfg.Auth.Secret = v
	}
	if v, ok := lookup("NODE_ENV"); ok {
		cfg.Mode = Mode(v)
	}
	if v, ok := lookup("REDIS_URL"); ok {
		cfg.Redis.URL = v
	}

	env := &cfg.Environment
	if v, ok := lookup("DB_MAX_RETRIES"); ok {
		env.MaxRetries = v
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Database.MaxRetries = n
		}
	}
	if v, ok := lookup("DB_RETRY_DELAY"); ok {
		env.RetryDelay = v
		if d, err := ParseDelay(v); err == nil {
			cfg.Database.RetryDelay = d
		}
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Mode == "" {
		cfg.Mode = ModeDevelopment
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.HealthCacheTTL == 0 {
		cfg.Server.HealthCacheTTL = 5 * time.Second
	}

	db := &cfg.Database
	if db.Driver == "" {
		db.Driver = "pgx"
	}
	if db.MaxRetries < 0 {
		db.MaxRetries = 0
	}
	if db.HealthCheckInterval == 0 {
		db.HealthCheckInterval = 30 * time.Second
	}
	if db.ProbeTimeout == 0 {
		db.ProbeTimeout = 5 * time.Second
	}
	if db.SlowQueryThreshold == 0 {
		db.SlowQueryThreshold = 1 * time.Second
	}

	if cfg.Publisher.Interval == 0 {
		cfg.Publisher.Interval = 15 * time.Second
	}
	if cfg.Startup.CheckTimeout == 0 {
		cfg.Startup.CheckTimeout = 10 * time.Second
	}
	if cfg.Startup.SchemaTable == "" {
		cfg.Startup.SchemaTable = "users"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	env := &cfg.Environment
	env.DatabaseURL = db.URL
	env.AuthURL = cfg.Auth.URL
	env.AuthSecret = cfg.Auth.Secret
	env.Mode = string(cfg.Mode)
	env.RedisURL = cfg.Redis.URL
}

// ParseDelay accepts a whole number of milliseconds ("1000") or a Go
// duration ("1s").
func ParseDelay(s string) (time.Duration, error) {
	if ms, err := strconv.Atoi(s); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("negative delay %q", s)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid delay %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative delay %q", s)
	}
	return d, nil
}
