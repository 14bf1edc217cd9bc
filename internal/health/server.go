package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/G0th1/brandsphere1-sub001/internal/startup"
)

// BootReporter exposes the most recent startup check outcome.
type BootReporter interface {
	Last() (startup.BootResult, bool)
}

// Server provides HTTP endpoints for health monitoring.
type Server struct {
	monitor *Monitor
	boot    BootReporter
	server  *http.Server
}

// NewServer creates a new health server. boot may be nil.
func NewServer(monitor *Monitor, boot BootReporter, port int, origins []string) *Server {
	s := &Server{
		monitor: monitor,
		boot:    boot,
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/health/startup", s.handleStartup).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckHealth(r.Context())

	code := http.StatusOK
	if !report.OK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, report)
}

func (s *Server) handleStartup(w http.ResponseWriter, r *http.Request) {
	if s.boot == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"status": "disabled"})
		return
	}
	boot, ok := s.boot.Last()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "pending"})
		return
	}

	code := http.StatusOK
	if boot.ShouldAbort {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, boot)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write health response", "error", err)
	}
}
