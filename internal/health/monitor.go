// Package health exposes database health over HTTP and gRPC.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/G0th1/brandsphere1-sub001/internal/infra/storage/postgres"
)

// Reporter produces an on-demand health report.
type Reporter interface {
	CheckHealth(ctx context.Context) postgres.HealthReport
}

// Monitor caches health reports so frequent probes do not each hit the
// database.
type Monitor struct {
	reporter Reporter
	ttl      time.Duration
	now      func() time.Time

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport *postgres.HealthReport
}

// NewMonitor creates a new health monitor. A zero ttl disables caching.
func NewMonitor(reporter Reporter, ttl time.Duration) *Monitor {
	return &Monitor{
		reporter: reporter,
		ttl:      ttl,
		now:      time.Now,
	}
}

// CheckHealth returns the cached report while it is fresh, otherwise probes.
func (m *Monitor) CheckHealth(ctx context.Context) postgres.HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && m.now().Sub(m.lastCheck) < m.ttl {
		return *m.lastReport
	}

	report := m.reporter.CheckHealth(ctx)
	m.lastCheck = m.now()
	m.lastReport = &report
	return report
}
