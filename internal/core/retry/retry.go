// Package retry runs operations that may fail transiently, backing off
// exponentially with jitter between attempts.
package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// Policy defines retry behavior for one operation.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt. Zero means a single attempt.
	MaxRetries int
	// InitialDelay is the base of the exponential backoff.
	InitialDelay time.Duration
	// IsTransient reports whether an error is worth retrying. Defaults to IsTransient.
	IsTransient func(error) bool
	// OnRetry is called before every attempt after the first.
	OnRetry func(attempt int, err error)
	// Label names the operation in logs.
	Label string
}

// DefaultPolicy provides sensible defaults.
var DefaultPolicy = Policy{
	MaxRetries:   3,
	InitialDelay: 1 * time.Second,
}

// Reconnector is consulted after a failed attempt. When it reports itself
// disconnected, Do asks it to connect before deciding whether to retry.
type Reconnector interface {
	IsConnected() bool
	Connect(ctx context.Context) error
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Option customizes a Do call.
type Option func(*runner)

type runner struct {
	reconnector Reconnector
	sleep       Sleeper
	rand        func() float64
	log         *slog.Logger
}

// WithReconnector sets the connection owner consulted after failures.
func WithReconnector(r Reconnector) Option {
	return func(rn *runner) { rn.reconnector = r }
}

// WithSleeper replaces the backoff sleep.
func WithSleeper(s Sleeper) Option {
	return func(rn *runner) { rn.sleep = s }
}

// WithRand replaces the jitter source. f must return values in [0, 1).
func WithRand(f func() float64) Option {
	return func(rn *runner) { rn.rand = f }
}

// WithLogger sets the logger used by the default retry observer.
func WithLogger(l *slog.Logger) Option {
	return func(rn *runner) { rn.log = l }
}

// Do runs op until it succeeds, fails with a non-transient error, or the
// policy's retries are used up. It makes at most MaxRetries+1 attempts and
// returns the last error unchanged when it gives up.
func Do[T any](
	ctx context.Context,
	p Policy,
	op func(ctx context.Context) (T, error),
	opts ...Option,
) (T, error) {
	rn := runner{
		sleep: Sleep,
		rand:  rand.Float64,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&rn)
	}

	maxRetries := max(p.MaxRetries, 0)
	isTransient := p.IsTransient
	if isTransient == nil {
		isTransient = IsTransient
	}
	onRetry := p.OnRetry
	if onRetry == nil {
		opID := uuid.NewString()
		onRetry = func(attempt int, err error) {
			rn.log.Warn("Retrying operation",
				"label", p.Label,
				"op_id", opID,
				"attempt", attempt,
				"max_retries", maxRetries,
				"error", err,
			)
		}
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			onRetry(attempt, lastErr)
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if rn.reconnector != nil && !rn.reconnector.IsConnected() {
			if cerr := rn.reconnector.Connect(ctx); cerr != nil {
				rn.log.Debug("Reconnect before retry failed", "label", p.Label, "error", cerr)
			}
		}

		if attempt == maxRetries || !isTransient(err) {
			return zero, err
		}

		if serr := rn.sleep(ctx, Backoff(p.InitialDelay, attempt, rn.rand())); serr != nil {
			return zero, errors.Join(serr, lastErr)
		}
	}

	return zero, lastErr
}

// MaxBackoff caps a single retry delay.
const MaxBackoff = time.Hour

// Backoff returns initial * 2^attempt scaled by a jitter factor in [0.5, 1.0),
// where r is a random value in [0, 1). The result never exceeds MaxBackoff.
func Backoff(initial time.Duration, attempt int, r float64) time.Duration {
	base := float64(initial) * math.Pow(2, float64(attempt))
	d := base * (0.5 + r*0.5)
	if d >= float64(MaxBackoff) {
		return MaxBackoff
	}
	return time.Duration(d)
}

// Sleep waits for d, returning early with ctx.Err() if ctx is done first.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var transientErrs = []error{
	syscall.ECONNRESET,
	syscall.ECONNREFUSED,
	syscall.ECONNABORTED,
	syscall.ETIMEDOUT,
	syscall.EPIPE,
	io.EOF,
	io.ErrUnexpectedEOF,
	context.DeadlineExceeded,
}

// IsTransient recognizes network-level failures: resets, refusals, timeouts
// and unexpected EOFs. Callers with richer error types layer their own
// classification on top.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	for _, target := range transientErrs {
		if errors.Is(err, target) {
			return true
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}
