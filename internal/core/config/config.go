package config

import (
	"time"

	redisclient "github.com/G0th1/brandsphere1-sub001/internal/infra/redis"
	"github.com/G0th1/brandsphere1-sub001/internal/infra/storage/postgres"
)

// Mode is the runtime mode the process was started in.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeTest        Mode = "test"
	ModeProduction  Mode = "production"
)

// IsProduction reports whether failures must block startup.
func (m Mode) IsProduction() bool {
	return m == ModeProduction
}

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Mode      Mode               `yaml:"mode"`
	Server    ServerConfig       `yaml:"server"`
	Database  postgres.Config    `yaml:"database"`
	Auth      AuthConfig         `yaml:"auth"`
	Redis     redisclient.Config `yaml:"redis"`
	Publisher PublisherConfig    `yaml:"publisher"`
	Startup   StartupConfig      `yaml:"startup"`
	Logging   LoggingConfig      `yaml:"logging"`

	// Environment is what the boot checks validate.
	Environment Environment `yaml:"-"`
}

// ServerConfig holds health server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	GRPCPort        int           `yaml:"grpc_port"` // 0 = disabled
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	HealthCacheTTL  time.Duration `yaml:"health_cache_ttl"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

// AuthConfig holds the session settings shared with the web app.
type AuthConfig struct {
	URL    string `yaml:"url"`
	Secret string `yaml:"secret"`
}

// PublisherConfig holds settings for publishing health snapshots to Redis.
type PublisherConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// StartupConfig holds boot check settings.
type StartupConfig struct {
	CheckTimeout time.Duration `yaml:"check_timeout"`
	SchemaTable  string        `yaml:"schema_table"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Environment holds settings as raw strings so malformed values survive
// loading and can be reported by the boot checks.
type Environment struct {
	DatabaseURL string `env:"DATABASE_URL" validate:"required,url"`
	MaxRetries  string `env:"DB_MAX_RETRIES" validate:"omitempty,number"`
	RetryDelay  string `env:"DB_RETRY_DELAY" validate:"omitempty,delay"`
	AuthURL     string `env:"NEXTAUTH_URL" validate:"required,url"`
	AuthSecret  string `env:"NEXTAUTH_SECRET" validate:"required,min=32"`
	Mode        string `env:"NODE_ENV" validate:"required,oneof=development test production"`
	RedisURL    string `env:"REDIS_URL" validate:"omitempty,url"`
}
