package startup

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/G0th1/brandsphere1-sub001/internal/core/config"
)

// Check names.
const (
	NameEnvironment = "Environment Variables"
	NameDatabase    = "Database Connection"
	NameSchema      = "Database Schema"
	NameAuth        = "Auth Configuration"
	NameCache       = "Cache Connection"
)

const minSecretLength = 32

// Prober runs a liveness query.
type Prober interface {
	Probe(ctx context.Context) error
}

// TableCounter counts rows in a table.
type TableCounter interface {
	CountTable(ctx context.Context, table string) (int64, error)
}

// Pinger checks a cache connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EnvCheck validates the raw environment.
type EnvCheck struct {
	env      config.Environment
	validate *validator.Validate
}

// NewEnvCheck creates an environment check.
func NewEnvCheck(env config.Environment) *EnvCheck {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("env"); name != "" {
			return name
		}
		return fld.Name
	})
	_ = v.RegisterValidation("delay", func(fl validator.FieldLevel) bool {
		_, err := config.ParseDelay(fl.Field().String())
		return err == nil
	})
	return &EnvCheck{env: env, validate: v}
}

func (c *EnvCheck) Name() string { return NameEnvironment }

func (c *EnvCheck) Run(_ context.Context, mode config.Mode) Result {
	err := c.validate.Struct(c.env)
	if err == nil {
		return outcome(c.Name(), mode, true, "all required variables are set", nil)
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return outcome(c.Name(), mode, true, "", err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, describe(fe))
	}
	return outcome(c.Name(), mode, true, "", errors.New(strings.Join(problems, "; ")))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is not set"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "url":
		return fe.Field() + " is not a valid URL"
	case "number":
		return fe.Field() + " must be a whole number"
	case "delay":
		return fe.Field() + " must be milliseconds or a duration"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

// DatabaseCheck runs a liveness query.
type DatabaseCheck struct {
	db Prober
}

// NewDatabaseCheck creates a database connection check. A nil prober means
// the database could not be configured.
func NewDatabaseCheck(db Prober) *DatabaseCheck {
	return &DatabaseCheck{db: db}
}

func (c *DatabaseCheck) Name() string { return NameDatabase }

func (c *DatabaseCheck) Run(ctx context.Context, mode config.Mode) Result {
	if c.db == nil {
		return outcome(c.Name(), mode, true, "", errors.New("database is not configured"))
	}
	if err := c.db.Probe(ctx); err != nil {
		return outcome(c.Name(), mode, true, "", fmt.Errorf("database unreachable: %w", err))
	}
	return outcome(c.Name(), mode, true, "database responded", nil)
}

// SchemaCheck counts rows in a known table to prove migrations ran.
type SchemaCheck struct {
	db    TableCounter
	table string
}

// NewSchemaCheck creates a schema check against table.
func NewSchemaCheck(db TableCounter, table string) *SchemaCheck {
	return &SchemaCheck{db: db, table: table}
}

func (c *SchemaCheck) Name() string { return NameSchema }

func (c *SchemaCheck) Run(ctx context.Context, mode config.Mode) Result {
	if c.db == nil {
		return outcome(c.Name(), mode, true, "", errors.New("database is not configured"))
	}
	n, err := c.db.CountTable(ctx, c.table)
	if err != nil {
		return outcome(c.Name(), mode, true, "", fmt.Errorf("table %s not accessible: %w", c.table, err))
	}
	return outcome(c.Name(), mode, true, fmt.Sprintf("table %s accessible (%d rows)", c.table, n), nil)
}

// AuthCheck validates the session settings.
type AuthCheck struct {
	auth config.AuthConfig
}

// NewAuthCheck creates an auth configuration check.
func NewAuthCheck(auth config.AuthConfig) *AuthCheck {
	return &AuthCheck{auth: auth}
}

func (c *AuthCheck) Name() string { return NameAuth }

func (c *AuthCheck) Run(_ context.Context, mode config.Mode) Result {
	var problems []string

	if c.auth.URL == "" {
		problems = append(problems, "NEXTAUTH_URL is not set")
	} else if u, err := url.Parse(c.auth.URL); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, "NEXTAUTH_URL must be an absolute URL")
	}

	switch {
	case c.auth.Secret == "":
		problems = append(problems, "NEXTAUTH_SECRET is not set")
	case utf8.RuneCountInString(c.auth.Secret) < minSecretLength:
		problems = append(problems, fmt.Sprintf("NEXTAUTH_SECRET must be at least %d characters", minSecretLength))
	}

	if len(problems) > 0 {
		return outcome(c.Name(), mode, true, "", errors.New(strings.Join(problems, "; ")))
	}
	return outcome(c.Name(), mode, true, "auth settings valid", nil)
}

// CacheCheck pings Redis. It never blocks startup.
type CacheCheck struct {
	cache Pinger
}

// NewCacheCheck creates a cache check. A nil pinger means no cache is
// configured and the check passes.
func NewCacheCheck(cache Pinger) *CacheCheck {
	return &CacheCheck{cache: cache}
}

func (c *CacheCheck) Name() string { return NameCache }

func (c *CacheCheck) Run(ctx context.Context, mode config.Mode) Result {
	if c.cache == nil {
		return outcome(c.Name(), mode, false, "skipped, no cache configured", nil)
	}
	if err := c.cache.Ping(ctx); err != nil {
		return outcome(c.Name(), mode, false, "", err)
	}
	return outcome(c.Name(), mode, false, "cache responded", nil)
}
