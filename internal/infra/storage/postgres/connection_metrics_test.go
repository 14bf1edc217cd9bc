package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestConnectionMetrics_RecordErrorEvictsOldest(t *testing.T) {
	m := newConnectionMetrics()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 15; i++ {
		m.recordError(base.Add(time.Duration(i)*time.Second), fmt.Errorf("failure %d", i))
	}

	if len(m.errors) != maxConnectionErrors {
		t.Fatalf("expected %d errors, got %d", maxConnectionErrors, len(m.errors))
	}
	if m.errors[0].Message != "failure 5" {
		t.Errorf("expected oldest retained to be failure 5, got %s", m.errors[0].Message)
	}
	if m.errors[9].Message != "failure 14" {
		t.Errorf("expected newest to be failure 14, got %s", m.errors[9].Message)
	}
}

func TestConnectionMetrics_SnapshotOmitsUnsetTimes(t *testing.T) {
	m := newConnectionMetrics()
	s := m.snapshot()

	if s.LastReconnectAttempt != nil || s.LastHealthCheck != nil {
		t.Error("expected unset timestamps to be nil")
	}

	m.recordError(time.Now(), errors.New("boom"))
	m.lastHealthCheck = time.Now()
	s = m.snapshot()
	if s.LastHealthCheck == nil {
		t.Error("expected last health check to be set")
	}
	if len(s.ConnectionErrors) != 1 {
		t.Errorf("expected 1 error, got %d", len(s.ConnectionErrors))
	}
}
