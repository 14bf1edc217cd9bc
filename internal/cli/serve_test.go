package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G0th1/brandsphere1-sub001/internal/control"
	"github.com/G0th1/brandsphere1-sub001/internal/core/config"
)

type recordingRunner struct {
	startErr error
	calls    []string
	stopCtx  context.Context
}

func (r *recordingRunner) Start(ctx context.Context) error {
	r.calls = append(r.calls, "start")
	return r.startErr
}

func (r *recordingRunner) Stop(ctx context.Context) error {
	r.calls = append(r.calls, "stop")
	r.stopCtx = ctx
	return nil
}

func TestServeUntilDone_StopsAfterCancel(t *testing.T) {
	r := &recordingRunner{}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	require.NoError(t, serveUntilDone(ctx, r, time.Second))

	assert.Equal(t, []string{"start", "stop"}, r.calls)
	deadline, ok := r.stopCtx.Deadline()
	require.True(t, ok, "stop runs under the shutdown timeout")
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, time.Second)
}

func TestServeUntilDone_StartFailureStillStops(t *testing.T) {
	r := &recordingRunner{startErr: errors.New("migrate failed")}

	err := serveUntilDone(context.Background(), r, time.Second)

	assert.ErrorContains(t, err, "migrate failed")
	assert.Equal(t, []string{"start", "stop"}, r.calls)
}

func TestServeUntilDone_CancelAbortsInitialConnectBackoff(t *testing.T) {
	cfg := &config.AppConfig{Mode: config.ModeDevelopment}
	cfg.Database.MaxRetries = 10
	cfg.Database.RetryDelay = time.Hour
	cfg.Database.ProbeTimeout = 100 * time.Millisecond
	cfg.Startup.CheckTimeout = time.Second

	app, err := control.NewApp(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	done := make(chan error, 1)
	go func() { done <- serveUntilDone(ctx, app, time.Second) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown blocked behind the connect backoff")
	}
	assert.False(t, app.Manager().IsConnected())
}
