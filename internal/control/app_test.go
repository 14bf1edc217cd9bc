package control

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G0th1/brandsphere1-sub001/internal/core/config"
	"github.com/G0th1/brandsphere1-sub001/internal/startup"
)

var quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))

func testConfig(mode config.Mode) *config.AppConfig {
	cfg := &config.AppConfig{
		Mode: mode,
		Auth: config.AuthConfig{
			URL:    "https://app.example.com",
			Secret: "0123456789abcdef0123456789abcdef",
		},
	}
	cfg.Server.Port = 0
	cfg.Server.HealthCacheTTL = time.Second
	cfg.Database.MaxRetries = 1
	cfg.Database.RetryDelay = time.Millisecond
	cfg.Database.ProbeTimeout = 100 * time.Millisecond
	cfg.Startup.CheckTimeout = time.Second
	cfg.Startup.SchemaTable = "users"
	cfg.Environment = config.Environment{
		AuthURL:    cfg.Auth.URL,
		AuthSecret: cfg.Auth.Secret,
		Mode:       string(mode),
	}
	return cfg
}

func TestApp_VerifyMissingDatabaseInProductionAborts(t *testing.T) {
	app, err := NewApp(testConfig(config.ModeProduction), quietLog)
	require.NoError(t, err)

	boot := app.Verify(context.Background())

	assert.False(t, boot.Success)
	assert.True(t, boot.ShouldAbort)

	last, ok := app.verifier.Last()
	require.True(t, ok, "health endpoint sees the boot result")
	assert.True(t, last.ShouldAbort)

	for _, r := range boot.Results {
		if r.Name == startup.NameCache {
			assert.True(t, r.Success, "cache skipped when not configured")
		}
	}
}

func TestApp_VerifyMissingDatabaseInDevelopmentContinues(t *testing.T) {
	app, err := NewApp(testConfig(config.ModeDevelopment), quietLog)
	require.NoError(t, err)

	boot := app.Verify(context.Background())

	assert.False(t, boot.Success)
	assert.False(t, boot.ShouldAbort)
}

func TestApp_RepositoriesWired(t *testing.T) {
	app, err := NewApp(testConfig(config.ModeTest), quietLog)
	require.NoError(t, err)

	assert.NotNil(t, app.Users)
	assert.NotNil(t, app.Posts)
	assert.NotNil(t, app.Manager())
	assert.Nil(t, app.grpcServer)
	assert.Nil(t, app.publisher)
}

func TestApp_GRPCAndPublisherWiredWhenConfigured(t *testing.T) {
	cfg := testConfig(config.ModeTest)
	cfg.Server.GRPCPort = 50099
	cfg.Redis.URL = "redis://127.0.0.1:6379/0"
	cfg.Publisher.Interval = time.Second

	app, err := NewApp(cfg, quietLog)
	require.NoError(t, err)

	assert.NotNil(t, app.grpcServer)
	assert.NotNil(t, app.publisher)
	assert.NotNil(t, app.redis)
}

func TestApp_StopWithoutStartIsSafe(t *testing.T) {
	app, err := NewApp(testConfig(config.ModeTest), quietLog)
	require.NoError(t, err)

	assert.NoError(t, app.Stop(context.Background()))
	assert.NoError(t, app.Stop(context.Background()))
}
