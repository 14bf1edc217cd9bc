// Package startup runs the boot checks that decide whether the process may
// serve traffic.
package startup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/G0th1/brandsphere1-sub001/internal/core/config"
	"github.com/G0th1/brandsphere1-sub001/internal/core/metrics"
)

// Result is the outcome of one check.
type Result struct {
	Name     string `json:"name"`
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Critical bool   `json:"critical"`
}

// BootResult aggregates every check. ShouldAbort is the entry point's cue
// to exit before accepting traffic.
type BootResult struct {
	Success     bool      `json:"success"`
	ShouldAbort bool      `json:"shouldAbort"`
	Results     []Result  `json:"results"`
	CheckedAt   time.Time `json:"checkedAt"`
}

// CriticalFailures returns the failed checks that block startup.
func (b BootResult) CriticalFailures() []Result {
	var out []Result
	for _, r := range b.Results {
		if !r.Success && r.Critical {
			out = append(out, r)
		}
	}
	return out
}

// Check is a single boot check.
type Check interface {
	Name() string
	Run(ctx context.Context, mode config.Mode) Result
}

// outcome builds a Result. Foundational checks are critical when they fail
// in production.
func outcome(name string, mode config.Mode, foundational bool, msg string, err error) Result {
	if err != nil {
		return Result{
			Name:     name,
			Success:  false,
			Message:  err.Error(),
			Critical: foundational && mode.IsProduction(),
		}
	}
	return Result{Name: name, Success: true, Message: msg}
}

// Verifier runs boot checks concurrently.
type Verifier struct {
	mode    config.Mode
	timeout time.Duration
	checks  []Check
	log     *slog.Logger

	mu   sync.RWMutex
	last *BootResult
}

// NewVerifier creates a verifier. A zero timeout leaves checks bounded only
// by the caller's context.
func NewVerifier(mode config.Mode, timeout time.Duration, log *slog.Logger, checks ...Check) *Verifier {
	if log == nil {
		log = slog.Default()
	}
	return &Verifier{
		mode:    mode,
		timeout: timeout,
		checks:  checks,
		log:     log,
	}
}

// SetChecks replaces the checks run by the next Run.
func (v *Verifier) SetChecks(checks ...Check) {
	v.mu.Lock()
	v.checks = checks
	v.mu.Unlock()
}

// Run executes every check and never returns an error for a failing
// check; the outcome is in the BootResult.
func (v *Verifier) Run(ctx context.Context) BootResult {
	v.mu.RLock()
	checks := v.checks
	v.mu.RUnlock()

	results := make([]Result, len(checks))

	var g errgroup.Group
	for i, c := range checks {
		g.Go(func() error {
			results[i] = v.runOne(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	boot := BootResult{
		Success:   true,
		Results:   results,
		CheckedAt: time.Now(),
	}
	for _, r := range results {
		v.logResult(r)
		if !r.Success {
			boot.Success = false
		}
		val := 0.0
		if r.Success {
			val = 1
		}
		metrics.StartupCheckSuccess.WithLabelValues(r.Name).Set(val)
	}

	critical := boot.CriticalFailures()
	boot.ShouldAbort = v.mode.IsProduction() && len(critical) > 0

	switch {
	case boot.ShouldAbort:
		v.log.Error("Startup checks failed, refusing to start",
			"mode", v.mode,
			"critical_failures", len(critical),
		)
	case !boot.Success:
		v.log.Warn("Startup completed with warnings, some features may not work",
			"mode", v.mode,
		)
	default:
		v.log.Info("All startup checks passed", "mode", v.mode, "checks", len(results))
	}

	v.mu.Lock()
	v.last = &boot
	v.mu.Unlock()

	return boot
}

// Last returns the most recent BootResult.
func (v *Verifier) Last() (BootResult, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.last == nil {
		return BootResult{}, false
	}
	return *v.last, true
}

func (v *Verifier) runOne(ctx context.Context, c Check) (res Result) {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			res = outcome(c.Name(), v.mode, true, "", fmt.Errorf("check panicked: %v", r))
		}
	}()
	return c.Run(ctx, v.mode)
}

func (v *Verifier) logResult(r Result) {
	switch {
	case r.Success:
		v.log.Info(fmt.Sprintf("✅ %s", r.Name), "message", r.Message)
	case r.Critical:
		v.log.Error(fmt.Sprintf("❌ %s", r.Name), "message", r.Message)
	default:
		v.log.Warn(fmt.Sprintf("⚠️ %s", r.Name), "message", r.Message)
	}
}
