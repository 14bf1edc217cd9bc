package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // registers the "postgres" driver
)

// Config holds PostgreSQL connection configuration.
type Config struct {
	URL                 string        `yaml:"url"`
	Driver              string        `yaml:"driver"` // pgx, postgres
	MaxConns            int           `yaml:"max_conns"`
	MinConns            int           `yaml:"min_conns"`
	MaxRetries          int           `yaml:"max_retries"`
	RetryDelay          time.Duration `yaml:"retry_delay"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
	ProbeTimeout        time.Duration `yaml:"probe_timeout"`
	SlowQueryThreshold  time.Duration `yaml:"slow_query_threshold"`
	AutoMigrate         bool          `yaml:"auto_migrate"`
}

// ManagerConfig extracts the connection lifecycle settings.
func (c Config) ManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxRetries:          c.MaxRetries,
		InitialDelay:        c.RetryDelay,
		HealthCheckInterval: c.HealthCheckInterval,
		ProbeTimeout:        c.ProbeTimeout,
		SlowQueryThreshold:  c.SlowQueryThreshold,
	}
}

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// DB wraps the PostgreSQL connection pool.
type DB struct {
	*sqlx.DB
}

// Open creates a connection pool. No connection is made until first use.
func Open(cfg Config) (*DB, error) {
	if cfg.URL == "" {
		return nil, &ConfigError{Key: "DATABASE_URL", Reason: "not set"}
	}

	driver := cfg.Driver
	switch driver {
	case "":
		driver = "pgx"
	case "pgx", "postgres":
	default:
		return nil, &ConfigError{Key: "database.driver", Reason: fmt.Sprintf("unsupported driver %q", driver)}
	}

	db, err := sqlx.Open(driver, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set pool configuration
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	} else {
		db.SetMaxOpenConns(10)
	}

	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(cfg.MinConns)
	} else {
		db.SetMaxIdleConns(2)
	}

	// Serverless Postgres drops idle connections aggressively.
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &DB{DB: db}, nil
}

// NewOpener returns an Opener that builds a fresh pool from cfg.
func NewOpener(cfg Config) Opener[*DB] {
	return func(ctx context.Context) (*DB, error) {
		return Open(cfg)
	}
}

// Probe runs SELECT 1.
func (db *DB) Probe(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("liveness query failed: %w", err)
	}
	return nil
}

// CountTable returns the number of rows in table.
func (db *DB) CountTable(ctx context.Context, table string) (int64, error) {
	if !identifier.MatchString(table) {
		return 0, fmt.Errorf("invalid table name %q", table)
	}

	var count int64
	if err := db.GetContext(ctx, &count, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count, nil
}
