package domain

import "time"

// HealthStatus is the serviceability of the database connection.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// ValidHealthTransitions defines allowed status changes.
// Key is the current status, value is the list of valid next statuses.
// An unhealthy connection only leaves that state through a successful probe.
var ValidHealthTransitions = map[HealthStatus][]HealthStatus{
	HealthHealthy:   {HealthDegraded, HealthUnhealthy},
	HealthDegraded:  {HealthHealthy, HealthUnhealthy},
	HealthUnhealthy: {HealthHealthy},
}

// CanTransitionHealth reports whether a status change from one value to another is allowed.
func CanTransitionHealth(from, to HealthStatus) bool {
	for _, target := range ValidHealthTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// Gauge maps the status to the value exported on the health gauge.
func (s HealthStatus) Gauge() float64 {
	switch s {
	case HealthHealthy:
		return 0
	case HealthDegraded:
		return 1
	default:
		return 2
	}
}

// HealthTransition records a status change.
type HealthTransition struct {
	From      HealthStatus
	To        HealthStatus
	Reason    string
	Timestamp time.Time
}
