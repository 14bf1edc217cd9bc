package postgres

import (
	"time"

	"github.com/G0th1/brandsphere1-sub001/internal/core/domain"
)

// maxConnectionErrors bounds the connection error log.
const maxConnectionErrors = 10

// ConnectionStats counts connection lifecycle events.
type ConnectionStats struct {
	Total  int64 `json:"total"`
	Active int64 `json:"active"`
	Idle   int64 `json:"idle"`
	Failed int64 `json:"failed"`
}

// QueryStats counts executed queries.
type QueryStats struct {
	Total  int64 `json:"total"`
	Failed int64 `json:"failed"`
	Slow   int64 `json:"slow"`
}

// ConnectionError is one entry of the connection error log.
type ConnectionError struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// MetricsSnapshot is a point-in-time copy of the manager's metrics.
type MetricsSnapshot struct {
	Connections          ConnectionStats     `json:"connections"`
	Queries              QueryStats          `json:"queries"`
	LastReconnectAttempt *time.Time          `json:"lastReconnectAttempt,omitempty"`
	ConnectionErrors     []ConnectionError   `json:"connectionErrors"`
	HealthStatus         domain.HealthStatus `json:"healthStatus"`
	LastHealthCheck      *time.Time          `json:"lastHealthCheck,omitempty"`
}

// connectionMetrics is the live, mutable state behind MetricsSnapshot.
// Callers hold the manager's mutex.
type connectionMetrics struct {
	connections          ConnectionStats
	queries              QueryStats
	lastReconnectAttempt time.Time
	errors               []ConnectionError // ring buffer, oldest first
	status               domain.HealthStatus
	lastHealthCheck      time.Time
}

func newConnectionMetrics() connectionMetrics {
	return connectionMetrics{
		errors: make([]ConnectionError, 0, maxConnectionErrors),
		status: domain.HealthHealthy,
	}
}

// recordError appends to the error log, dropping the oldest entry when full.
func (m *connectionMetrics) recordError(at time.Time, err error) {
	entry := ConnectionError{Time: at, Message: err.Error()}
	if len(m.errors) >= maxConnectionErrors {
		copy(m.errors, m.errors[1:])
		m.errors[len(m.errors)-1] = entry
		return
	}
	m.errors = append(m.errors, entry)
}

func (m *connectionMetrics) snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Connections:      m.connections,
		Queries:          m.queries,
		ConnectionErrors: append([]ConnectionError(nil), m.errors...),
		HealthStatus:     m.status,
	}
	if !m.lastReconnectAttempt.IsZero() {
		t := m.lastReconnectAttempt
		s.LastReconnectAttempt = &t
	}
	if !m.lastHealthCheck.IsZero() {
		t := m.lastHealthCheck
		s.LastHealthCheck = &t
	}
	return s
}
