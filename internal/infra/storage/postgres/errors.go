package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/G0th1/brandsphere1-sub001/internal/core/retry"
)

var (
	// ErrNotConnected is returned when an operation runs while the manager holds no connection.
	ErrNotConnected = errors.New("database not connected")

	// ErrConnectExhausted is returned when every connect attempt has failed.
	ErrConnectExhausted = errors.New("database connect attempts exhausted")
)

// ErrorKind classifies database failures.
type ErrorKind int

const (
	// KindTerminal errors are returned to the caller on first occurrence.
	KindTerminal ErrorKind = iota
	// KindTransient errors are expected to clear up on retry.
	KindTransient
	// KindConfiguration errors come from missing or malformed settings.
	KindConfiguration
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindConfiguration:
		return "configuration"
	default:
		return "terminal"
	}
}

// ConfigError reports an unusable setting.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Key, e.Reason)
}

// transientClasses are SQLSTATE classes that signal a broken or overloaded server.
var transientClasses = map[string]bool{
	"08": true, // connection exception
	"53": true, // insufficient resources (too_many_connections, out_of_memory)
}

// transientCodes are individual SQLSTATE codes worth retrying.
var transientCodes = map[string]bool{
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
}

// Classify maps an error to its kind using driver error codes and typed
// network errors. Message text is never inspected.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindTerminal
	}

	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return KindConfiguration
	}

	if errors.Is(err, ErrNotConnected) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}

	if code, ok := sqlState(err); ok {
		if transientCodes[code] || transientClasses[code[:2]] {
			return KindTransient
		}
		return KindTerminal
	}

	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return KindTransient
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return KindTransient
	}

	if retry.IsTransient(err) {
		return KindTransient
	}

	return KindTerminal
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return Classify(err) == KindTransient
}

// sqlState extracts the SQLSTATE code from either driver's error type.
func sqlState(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) == 5 {
		return pgErr.Code, true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && len(pqErr.Code) == 5 {
		return string(pqErr.Code), true
	}

	return "", false
}
