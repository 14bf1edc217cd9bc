package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/G0th1/brandsphere1-sub001/internal/core/domain"
	"github.com/G0th1/brandsphere1-sub001/internal/core/metrics"
)

// Client is a database handle kept alive by a Manager.
type Client interface {
	// Probe runs a trivial liveness query.
	Probe(ctx context.Context) error
	Close() error
}

// Opener creates a fresh client. It is called lazily by Connect and again
// after every Disconnect.
type Opener[C Client] func(ctx context.Context) (C, error)

// ManagerConfig holds connection lifecycle settings.
type ManagerConfig struct {
	MaxRetries          int
	InitialDelay        time.Duration
	HealthCheckInterval time.Duration
	ProbeTimeout        time.Duration
	SlowQueryThreshold  time.Duration
}

// DefaultManagerConfig provides sensible defaults.
var DefaultManagerConfig = ManagerConfig{
	MaxRetries:          5,
	InitialDelay:        1 * time.Second,
	HealthCheckInterval: 30 * time.Second,
	ProbeTimeout:        5 * time.Second,
	SlowQueryThreshold:  1 * time.Second,
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = DefaultManagerConfig.InitialDelay
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = DefaultManagerConfig.ProbeTimeout
	}
	return c
}

// ManagerOption customizes a Manager.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	log      *slog.Logger
	onStatus func(domain.HealthTransition)
	after    func(time.Duration) <-chan time.Time
	now      func() time.Time
}

// WithLogger sets the manager's logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(o *managerOptions) { o.log = l }
}

// WithStatusListener registers a callback invoked after every health status change.
func WithStatusListener(fn func(domain.HealthTransition)) ManagerOption {
	return func(o *managerOptions) { o.onStatus = fn }
}

// Manager owns a single long-lived database client. It connects with
// exponential backoff, probes the connection periodically and reconnects
// when a probe fails.
type Manager[C Client] struct {
	open Opener[C]
	cfg  ManagerConfig
	opts managerOptions

	// connectSem serializes Connect; acquiring it honors context cancellation.
	connectSem chan struct{}

	mu              sync.Mutex
	client          C
	hasClient       bool
	connected       bool
	attempts        int
	metrics         connectionMetrics
	reconnectCancel context.CancelFunc
	healthCancel    context.CancelFunc
	healthDone      chan struct{}
}

// NewManager creates a disconnected manager. Call Connect to open the client.
func NewManager[C Client](open Opener[C], cfg ManagerConfig, opts ...ManagerOption) *Manager[C] {
	o := managerOptions{
		log:   slog.Default(),
		after: time.After,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	metrics.HealthStatus.Set(domain.HealthHealthy.Gauge())

	return &Manager[C]{
		open:       open,
		cfg:        cfg.withDefaults(),
		opts:       o,
		connectSem: make(chan struct{}, 1),
		metrics:    newConnectionMetrics(),
	}
}

// IsConnected reports whether the last connect or health check succeeded.
func (m *Manager[C]) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Status returns the current health status.
func (m *Manager[C]) Status() domain.HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metrics.status
}

// Client returns the open client, or ErrNotConnected if none has been opened.
func (m *Manager[C]) Client() (C, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hasClient {
		var zero C
		return zero, ErrNotConnected
	}
	return m.client, nil
}

// Metrics returns a copy of the current connection metrics.
func (m *Manager[C]) Metrics() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metrics.snapshot()
}

// Connect probes the database, retrying up to MaxRetries attempts with a
// delay of InitialDelay * 2^(attempt-1) between them. It is a no-op when
// already connected. When every attempt fails the status becomes unhealthy
// and the last error is returned wrapped in ErrConnectExhausted.
func (m *Manager[C]) Connect(ctx context.Context) error {
	select {
	case m.connectSem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-m.connectSem }()

	if m.IsConnected() {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.reconnectCancel = cancel
	m.attempts = 0
	m.mu.Unlock()
	defer func() {
		cancel()
		m.mu.Lock()
		m.reconnectCancel = nil
		m.mu.Unlock()
	}()

	maxAttempts := max(m.cfg.MaxRetries, 1)
	for {
		err := m.attempt(ctx)
		if err == nil {
			return nil
		}

		m.mu.Lock()
		attempts := m.attempts
		m.mu.Unlock()

		if attempts >= maxAttempts {
			m.setStatus(domain.HealthUnhealthy, "connect attempts exhausted")
			m.opts.log.Error("Database connection failed, giving up",
				"attempts", attempts,
				"error", err,
			)
			return fmt.Errorf("%w after %d attempts: %w", ErrConnectExhausted, attempts, err)
		}

		delay := connectDelay(m.cfg.InitialDelay, attempts)
		m.opts.log.Warn("Database connection failed, retrying",
			"attempt", attempts,
			"max_attempts", maxAttempts,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return errors.Join(ctx.Err(), err)
		case <-m.opts.after(delay):
		}
	}
}

// maxConnectDelay caps the wait between connect attempts.
const maxConnectDelay = 5 * time.Minute

// connectDelay returns initial * 2^(attempt-1), capped at maxConnectDelay.
func connectDelay(initial time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := initial
	for i := 1; i < attempt; i++ {
		if d >= maxConnectDelay/2 {
			return maxConnectDelay
		}
		d *= 2
	}
	return min(d, maxConnectDelay)
}

// attempt opens the client if needed and probes it once.
func (m *Manager[C]) attempt(ctx context.Context) error {
	m.mu.Lock()
	m.attempts++
	m.metrics.connections.Total++
	m.metrics.lastReconnectAttempt = m.opts.now()
	client, has := m.client, m.hasClient
	m.mu.Unlock()

	if !has {
		c, err := m.open(ctx)
		if err != nil {
			return m.connectFailed(fmt.Errorf("failed to open database: %w", err))
		}
		m.mu.Lock()
		m.client, m.hasClient = c, true
		m.mu.Unlock()
		client = c
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()
	if err := client.Probe(probeCtx); err != nil {
		return m.connectFailed(err)
	}

	m.markConnected()
	metrics.ConnectionAttempts.WithLabelValues("success").Inc()
	m.setStatus(domain.HealthHealthy, "connected")
	m.startHealthLoop()
	m.opts.log.Info("Database connected")
	return nil
}

func (m *Manager[C]) markConnected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	m.attempts = 0
	m.metrics.connections.Active = 1
}

func (m *Manager[C]) connectFailed(err error) error {
	m.mu.Lock()
	m.metrics.connections.Failed++
	m.metrics.recordError(m.opts.now(), err)
	m.mu.Unlock()

	metrics.ConnectionAttempts.WithLabelValues("failure").Inc()
	return err
}

// setStatus applies a health transition if the state machine allows it.
func (m *Manager[C]) setStatus(to domain.HealthStatus, reason string) {
	m.mu.Lock()
	from := m.metrics.status
	if from == to || !domain.CanTransitionHealth(from, to) {
		m.mu.Unlock()
		return
	}
	m.metrics.status = to
	listener := m.opts.onStatus
	m.mu.Unlock()

	metrics.HealthStatus.Set(to.Gauge())
	if to == domain.HealthHealthy {
		m.opts.log.Info("Database health changed", "from", from, "to", to, "reason", reason)
	} else {
		m.opts.log.Error("Database health changed", "from", from, "to", to, "reason", reason)
	}

	if listener != nil {
		listener(domain.HealthTransition{
			From:      from,
			To:        to,
			Reason:    reason,
			Timestamp: m.opts.now(),
		})
	}
}

// startHealthLoop launches the periodic probe unless one is already running.
func (m *Manager[C]) startHealthLoop() {
	m.mu.Lock()
	if m.healthCancel != nil || m.cfg.HealthCheckInterval <= 0 {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.healthCancel, m.healthDone = cancel, done
	m.mu.Unlock()

	go func() {
		defer close(done)

		ticker := time.NewTicker(m.cfg.HealthCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.runHealthCheck(ctx)
			}
		}
	}()
}

// stopHealthLoop cancels the periodic probe and waits for it to exit.
func (m *Manager[C]) stopHealthLoop(ctx context.Context) {
	m.mu.Lock()
	cancel, done := m.healthCancel, m.healthDone
	m.healthCancel, m.healthDone = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (m *Manager[C]) runHealthCheck(ctx context.Context) {
	err := m.probe(ctx)

	m.mu.Lock()
	m.metrics.lastHealthCheck = m.opts.now()
	m.mu.Unlock()

	if err == nil {
		if !m.IsConnected() {
			m.markConnected()
		}
		m.setStatus(domain.HealthHealthy, "health check passed")
		return
	}
	if ctx.Err() != nil {
		return
	}

	m.opts.log.Error("Database health check failed", "error", err)
	m.mu.Lock()
	m.connected = false
	m.metrics.connections.Active = 0
	m.mu.Unlock()
	m.setStatus(domain.HealthDegraded, "health check failed")

	if err := m.Connect(ctx); err != nil && ctx.Err() == nil {
		m.opts.log.Error("Database reconnect after failed health check did not succeed", "error", err)
	}
}

func (m *Manager[C]) probe(ctx context.Context) error {
	client, err := m.Client()
	if err != nil {
		return err
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()
	return client.Probe(probeCtx)
}

// Disconnect cancels any pending reconnect and the health loop, then closes
// the client. It is safe to call more than once; only a failing Close
// produces an error.
func (m *Manager[C]) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	if m.reconnectCancel != nil {
		m.reconnectCancel()
	}
	m.mu.Unlock()
	m.stopHealthLoop(ctx)

	select {
	case m.connectSem <- struct{}{}:
		defer func() { <-m.connectSem }()
	case <-ctx.Done():
		m.opts.log.Warn("Timed out waiting for in-flight connect, closing anyway")
	}
	// A Connect that finished in the meantime may have started a new loop.
	m.stopHealthLoop(ctx)

	m.mu.Lock()
	client, has := m.client, m.hasClient
	var zero C
	m.client, m.hasClient, m.connected = zero, false, false
	m.metrics.connections.Active = 0
	m.metrics.connections.Idle = 0
	m.mu.Unlock()

	if !has {
		return nil
	}
	if err := client.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	m.opts.log.Info("Database disconnected")
	return nil
}

// RecordQuery accounts one executed query.
func (m *Manager[C]) RecordQuery(d time.Duration, err error) {
	m.mu.Lock()
	m.metrics.queries.Total++
	if err != nil {
		m.metrics.queries.Failed++
	}
	slow := m.cfg.SlowQueryThreshold > 0 && d > m.cfg.SlowQueryThreshold
	if slow {
		m.metrics.queries.Slow++
	}
	m.mu.Unlock()

	if err != nil {
		metrics.QueriesTotal.WithLabelValues("failure").Inc()
	} else {
		metrics.QueriesTotal.WithLabelValues("success").Inc()
	}
	if slow {
		metrics.SlowQueries.Inc()
		m.opts.log.Warn("Slow database query", "duration", d)
	}
}

// HealthReport is the result of an on-demand health probe.
type HealthReport struct {
	OK             bool                `json:"ok"`
	ResponseTimeMs int64               `json:"responseTimeMs"`
	Status         domain.HealthStatus `json:"status"`
	Metrics        MetricsSnapshot     `json:"metrics"`
	Error          string              `json:"error,omitempty"`
}

// CheckHealth probes the database once and reports latency and metrics.
// It does not change the manager's status.
func (m *Manager[C]) CheckHealth(ctx context.Context) HealthReport {
	start := m.opts.now()
	err := m.probe(ctx)
	elapsed := m.opts.now().Sub(start)

	report := HealthReport{
		OK:             err == nil,
		ResponseTimeMs: elapsed.Milliseconds(),
		Status:         m.Status(),
		Metrics:        m.Metrics(),
	}
	if err != nil {
		report.Status = domain.HealthUnhealthy
		report.Error = err.Error()
	}
	return report
}

// statsProvider is implemented by clients backed by a database/sql pool.
type statsProvider interface {
	Stats() sql.DBStats
}

// StartPoolStatsCollector samples pool statistics until ctx is done.
func (m *Manager[C]) StartPoolStatsCollector(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.samplePoolStats()
			}
		}
	}()
}

func (m *Manager[C]) samplePoolStats() {
	client, err := m.Client()
	if err != nil {
		return
	}
	sp, ok := any(client).(statsProvider)
	if !ok {
		return
	}

	stats := sp.Stats()
	m.mu.Lock()
	m.metrics.connections.Idle = int64(stats.Idle)
	if m.connected {
		m.metrics.connections.Active = int64(stats.InUse)
	}
	m.mu.Unlock()

	// MaxOpenConnections is 0 when the pool is unlimited.
	if stats.MaxOpenConnections > 0 {
		usage := float64(stats.OpenConnections) / float64(stats.MaxOpenConnections) * 100
		metrics.PoolUsage.Set(usage)
	}
}
