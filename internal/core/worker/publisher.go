package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/G0th1/brandsphere1-sub001/internal/infra/storage/postgres"
)

// Snapshot is what one instance publishes about its database connection.
type Snapshot struct {
	InstanceID  string                `json:"instanceId"`
	Hostname    string                `json:"hostname"`
	PublishedAt time.Time             `json:"publishedAt"`
	Report      postgres.HealthReport `json:"report"`
}

// HealthSource produces the report to publish.
type HealthSource interface {
	CheckHealth(ctx context.Context) postgres.HealthReport
}

// SnapshotWriter stores a snapshot with a TTL.
type SnapshotWriter interface {
	PutHealth(ctx context.Context, instanceID string, v any, ttl time.Duration) error
	DeleteHealth(ctx context.Context, instanceID string) error
}

// Publisher periodically writes this instance's health snapshot so other
// instances and the status command can see it.
type Publisher struct {
	instanceID string
	hostname   string
	interval   time.Duration
	source     HealthSource
	writer     SnapshotWriter
	log        *slog.Logger
	now        func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// NewPublisher creates a new Publisher worker.
func NewPublisher(interval time.Duration, source HealthSource, writer SnapshotWriter, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	host, _ := os.Hostname()
	return &Publisher{
		instanceID: uuid.NewString(),
		hostname:   host,
		interval:   interval,
		source:     source,
		writer:     writer,
		log:        log,
		now:        time.Now,
	}
}

// InstanceID identifies this process in published keys.
func (p *Publisher) InstanceID() string {
	return p.instanceID
}

// TTL is how long a snapshot outlives a missed publish.
func (p *Publisher) TTL() time.Duration {
	return 3 * p.interval
}

// Start publishes once, then on every interval until Stop.
func (p *Publisher) Start(ctx context.Context) error {
	if p.interval <= 0 {
		return fmt.Errorf("publisher interval must be positive, got %s", p.interval)
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", p.interval), func() { p.Publish(ctx) }); err != nil {
		return fmt.Errorf("schedule publisher: %w", err)
	}

	p.mu.Lock()
	p.cron = c
	p.mu.Unlock()

	// Initial publish
	p.Publish(ctx)
	c.Start()
	p.log.Info("Health publisher started", "instance", p.instanceID, "interval", p.interval)
	return nil
}

// Stop halts the schedule, waits for a running publish and removes this
// instance's snapshot.
func (p *Publisher) Stop(ctx context.Context) {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}

	if err := p.writer.DeleteHealth(ctx, p.instanceID); err != nil {
		p.log.Warn("Failed to remove health snapshot", "instance", p.instanceID, "error", err)
	}
}

// Publish writes one snapshot.
func (p *Publisher) Publish(ctx context.Context) {
	snap := Snapshot{
		InstanceID:  p.instanceID,
		Hostname:    p.hostname,
		PublishedAt: p.now().UTC(),
		Report:      p.source.CheckHealth(ctx),
	}
	if err := p.writer.PutHealth(ctx, p.instanceID, snap, p.TTL()); err != nil {
		p.log.Error("Failed to publish health snapshot", "instance", p.instanceID, "error", err)
		return
	}
	p.log.Debug("Published health snapshot", "status", snap.Report.Status)
}
