package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/G0th1/brandsphere1-sub001/internal/core/metrics"
	"github.com/G0th1/brandsphere1-sub001/internal/core/retry"
)

// Store runs application queries against a managed client, retrying
// transient failures and accounting every execution in the manager's metrics.
type Store[C Client] struct {
	mgr       *Manager[C]
	policy    retry.Policy
	log       *slog.Logger
	retryOpts []retry.Option
}

// NewStore creates a store. A nil IsTransient in policy defaults to IsTransient.
func NewStore[C Client](mgr *Manager[C], policy retry.Policy, log *slog.Logger, opts ...retry.Option) *Store[C] {
	if policy.IsTransient == nil {
		policy.IsTransient = IsTransient
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store[C]{
		mgr:       mgr,
		policy:    policy,
		log:       log,
		retryOpts: opts,
	}
}

// Manager returns the connection manager behind the store.
func (s *Store[C]) Manager() *Manager[C] {
	return s.mgr
}

// Query runs fn with retries. label names the operation in logs and metrics.
func Query[T any, C Client](
	ctx context.Context,
	s *Store[C],
	label string,
	fn func(ctx context.Context, client C) (T, error),
) (T, error) {
	p := s.policy
	p.Label = label
	p.OnRetry = func(attempt int, err error) {
		metrics.RetriesTotal.WithLabelValues(label).Inc()
		s.log.Warn("Retrying database operation",
			"label", label,
			"attempt", attempt,
			"max_retries", p.MaxRetries,
			"error", err,
		)
	}

	opts := append([]retry.Option{
		retry.WithReconnector(s.mgr),
		retry.WithLogger(s.log),
	}, s.retryOpts...)

	return retry.Do(ctx, p, func(ctx context.Context) (T, error) {
		client, err := s.mgr.Client()
		if err != nil {
			var zero T
			return zero, err
		}

		start := time.Now()
		result, err := fn(ctx, client)
		elapsed := time.Since(start)

		s.mgr.RecordQuery(elapsed, err)
		metrics.QueryDuration.WithLabelValues(label).Observe(elapsed.Seconds())
		return result, err
	}, opts...)
}

// Exec runs fn with retries for operations without a result.
func (s *Store[C]) Exec(ctx context.Context, label string, fn func(ctx context.Context, client C) error) error {
	_, err := Query(ctx, s, label, func(ctx context.Context, client C) (struct{}, error) {
		return struct{}{}, fn(ctx, client)
	})
	return err
}
