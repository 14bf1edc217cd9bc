package retry

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTerminal = errors.New("duplicate key value violates unique constraint")

// flakyOp fails with err for the first failures calls, then returns "ok".
type flakyOp struct {
	failures int
	err      error
	calls    int
}

func (f *flakyOp) run(ctx context.Context) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", fmt.Errorf("call %d: %w", f.calls, f.err)
	}
	return "ok", nil
}

type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

type stubReconnector struct {
	connected bool
	connects  int
	err       error
}

func (s *stubReconnector) IsConnected() bool { return s.connected }

func (s *stubReconnector) Connect(ctx context.Context) error {
	s.connects++
	if s.err == nil {
		s.connected = true
	}
	return s.err
}

func TestDo_TransientFailuresWithinBudget(t *testing.T) {
	for n := 0; n <= 4; n++ {
		for k := 0; k <= 5; k++ {
			t.Run(fmt.Sprintf("retries=%d failures=%d", n, k), func(t *testing.T) {
				op := &flakyOp{failures: k, err: syscall.ECONNRESET}
				sleeper := &recordingSleeper{}

				got, err := Do(context.Background(), Policy{MaxRetries: n, InitialDelay: time.Millisecond}, op.run,
					WithSleeper(sleeper.sleep))

				if k <= n {
					require.NoError(t, err)
					assert.Equal(t, "ok", got)
					assert.Equal(t, k+1, op.calls)
					return
				}
				require.Error(t, err)
				assert.ErrorIs(t, err, syscall.ECONNRESET)
				assert.Contains(t, err.Error(), fmt.Sprintf("call %d", n+1))
				assert.Equal(t, n+1, op.calls)
			})
		}
	}
}

func TestDo_TerminalErrorIsNotRetried(t *testing.T) {
	op := &flakyOp{failures: 10, err: errTerminal}
	sleeper := &recordingSleeper{}

	_, err := Do(context.Background(), Policy{MaxRetries: 5, InitialDelay: time.Millisecond}, op.run,
		WithSleeper(sleeper.sleep))

	assert.ErrorIs(t, err, errTerminal)
	assert.Equal(t, 1, op.calls)
	assert.Empty(t, sleeper.delays)
}

func TestDo_ZeroRetriesMeansOneAttempt(t *testing.T) {
	op := &flakyOp{failures: 1, err: syscall.ETIMEDOUT}
	observed := 0

	_, err := Do(context.Background(), Policy{
		MaxRetries:   0,
		InitialDelay: time.Second,
		OnRetry:      func(int, error) { observed++ },
	}, op.run)

	assert.ErrorIs(t, err, syscall.ETIMEDOUT)
	assert.Equal(t, 1, op.calls)
	assert.Zero(t, observed)
}

func TestDo_ObserverSeesEveryRetry(t *testing.T) {
	op := &flakyOp{failures: 2, err: syscall.ECONNREFUSED}
	var attempts []int

	_, err := Do(context.Background(), Policy{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		OnRetry: func(attempt int, err error) {
			assert.ErrorIs(t, err, syscall.ECONNREFUSED)
			attempts = append(attempts, attempt)
		},
	}, op.run, WithSleeper((&recordingSleeper{}).sleep))

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDo_BackoffScheduleWithinJitterBounds(t *testing.T) {
	for _, r := range []float64{0, 0.25, 0.5, 0.999} {
		op := &flakyOp{failures: 4, err: syscall.ECONNRESET}
		sleeper := &recordingSleeper{}
		initial := 100 * time.Millisecond

		_, err := Do(context.Background(), Policy{MaxRetries: 4, InitialDelay: initial}, op.run,
			WithSleeper(sleeper.sleep), WithRand(func() float64 { return r }))
		require.NoError(t, err)
		require.Len(t, sleeper.delays, 4)

		for i, d := range sleeper.delays {
			base := initial * time.Duration(1<<i)
			assert.GreaterOrEqual(t, d, base/2, "delay %d", i)
			assert.LessOrEqual(t, d, base, "delay %d", i)
		}
	}
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 50*time.Millisecond, Backoff(100*time.Millisecond, 0, 0))
	assert.Equal(t, 150*time.Millisecond, Backoff(100*time.Millisecond, 1, 0.5))
	assert.Equal(t, 400*time.Millisecond, Backoff(100*time.Millisecond, 3, 0))
}

func TestBackoff_CappedForLargeAttempts(t *testing.T) {
	for _, attempt := range []int{40, 63, 64, 1000} {
		d := Backoff(time.Second, attempt, 0.99)
		assert.Equal(t, MaxBackoff, d, "attempt %d", attempt)
	}
}

func TestDo_ReconnectsWhenDisconnected(t *testing.T) {
	op := &flakyOp{failures: 1, err: syscall.ECONNRESET}
	rc := &stubReconnector{connected: false}

	got, err := Do(context.Background(), Policy{MaxRetries: 2, InitialDelay: time.Millisecond}, op.run,
		WithSleeper((&recordingSleeper{}).sleep), WithReconnector(rc))

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, rc.connects)
}

func TestDo_ReconnectFailureIsSwallowed(t *testing.T) {
	op := &flakyOp{failures: 1, err: errTerminal}
	rc := &stubReconnector{err: errors.New("connection refused")}

	_, err := Do(context.Background(), Policy{MaxRetries: 2, InitialDelay: time.Millisecond}, op.run,
		WithReconnector(rc))

	assert.ErrorIs(t, err, errTerminal)
	assert.Equal(t, 1, rc.connects)
}

func TestDo_ContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	op := &flakyOp{failures: 5, err: syscall.ECONNRESET}

	_, err := Do(ctx, Policy{MaxRetries: 5, InitialDelay: time.Hour}, op.run,
		WithSleeper(func(ctx context.Context, d time.Duration) error {
			cancel()
			return Sleep(ctx, d)
		}))

	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, syscall.ECONNRESET)
	assert.Equal(t, 1, op.calls)
}

func TestDo_RealSleepElapsed(t *testing.T) {
	op := &flakyOp{failures: 2, err: syscall.ECONNRESET}
	initial := 20 * time.Millisecond

	start := time.Now()
	got, err := Do(context.Background(), Policy{MaxRetries: 3, InitialDelay: initial}, op.run)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, op.calls)
	// jitter floor: half of 20ms + 40ms
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err    error
		expect bool
	}{
		{nil, false},
		{syscall.ECONNRESET, true},
		{fmt.Errorf("read: %w", syscall.ECONNREFUSED), true},
		{context.DeadlineExceeded, true},
		{context.Canceled, false},
		{errTerminal, false},
		{errors.New("timeout"), false},
	}

	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.expect {
			t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.expect)
		}
	}
}
