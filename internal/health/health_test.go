package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/G0th1/brandsphere1-sub001/internal/core/domain"
	"github.com/G0th1/brandsphere1-sub001/internal/infra/storage/postgres"
	"github.com/G0th1/brandsphere1-sub001/internal/startup"
)

type stubReporter struct {
	report postgres.HealthReport
	calls  int
}

func (s *stubReporter) CheckHealth(context.Context) postgres.HealthReport {
	s.calls++
	return s.report
}

type stubBoot struct {
	result startup.BootResult
	ok     bool
}

func (s stubBoot) Last() (startup.BootResult, bool) { return s.result, s.ok }

func TestMonitor_CachesWithinTTL(t *testing.T) {
	rep := &stubReporter{report: postgres.HealthReport{OK: true, Status: domain.HealthHealthy}}
	m := NewMonitor(rep, 5*time.Second)

	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }

	m.CheckHealth(context.Background())
	m.CheckHealth(context.Background())
	assert.Equal(t, 1, rep.calls)

	now = now.Add(6 * time.Second)
	m.CheckHealth(context.Background())
	assert.Equal(t, 2, rep.calls)
}

func TestMonitor_ZeroTTLAlwaysProbes(t *testing.T) {
	rep := &stubReporter{report: postgres.HealthReport{OK: true}}
	m := NewMonitor(rep, 0)

	m.CheckHealth(context.Background())
	m.CheckHealth(context.Background())
	assert.Equal(t, 2, rep.calls)
}

func TestServer_HealthOK(t *testing.T) {
	rep := &stubReporter{report: postgres.HealthReport{
		OK:             true,
		ResponseTimeMs: 3,
		Status:         domain.HealthHealthy,
		Metrics:        postgres.MetricsSnapshot{HealthStatus: domain.HealthHealthy},
	}}
	srv := NewServer(NewMonitor(rep, 0), nil, 0, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, float64(3), body["responseTimeMs"])
	assert.Equal(t, "healthy", body["status"])
	assert.Contains(t, body, "metrics")
}

func TestServer_HealthUnavailable(t *testing.T) {
	rep := &stubReporter{report: postgres.HealthReport{OK: false, Status: domain.HealthUnhealthy, Error: "connection refused"}}
	srv := NewServer(NewMonitor(rep, 0), nil, 0, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestServer_Startup(t *testing.T) {
	tests := []struct {
		name string
		boot BootReporter
		want int
	}{
		{"disabled", nil, http.StatusNotFound},
		{"pending", stubBoot{}, http.StatusServiceUnavailable},
		{"passed", stubBoot{ok: true, result: startup.BootResult{Success: true}}, http.StatusOK},
		{"aborting", stubBoot{ok: true, result: startup.BootResult{ShouldAbort: true}}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(NewMonitor(&stubReporter{}, 0), tt.boot, 0, nil)

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/startup", nil))

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestServer_MetricsAndCORS(t *testing.T) {
	srv := NewServer(NewMonitor(&stubReporter{report: postgres.HealthReport{OK: true}}, 0), nil, 0,
		[]string{"https://app.example.com"})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestGRPCServer_TracksTransitions(t *testing.T) {
	g := NewGRPCServer(0)
	ctx := context.Background()
	req := &healthpb.HealthCheckRequest{Service: ServiceName}

	resp, err := g.Health().Check(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	g.OnTransition(domain.HealthTransition{From: domain.HealthHealthy, To: domain.HealthDegraded})
	resp, err = g.Health().Check(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	g.OnTransition(domain.HealthTransition{From: domain.HealthDegraded, To: domain.HealthUnhealthy})
	resp, err = g.Health().Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}
