package server

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.jobCreated()
	m.jobStarted()
	m.progress("job", 3, 1.5)
	m.checkpointSaved()
	m.jobFinished("job", StateCompleted)
}

func TestMetrics_JobLifecycle(t *testing.T) {
	m := NewMetrics()

	m.jobCreated()
	m.jobStarted()
	m.progress("job-1", 5, 12.5)
	m.progress("job-1", 5, 11)

	if got := testutil.ToFloat64(m.steps); got != 10 {
		t.Errorf("steps = %v, want 10", got)
	}
	if got := testutil.ToFloat64(m.bestLength.WithLabelValues("job-1")); got != 11 {
		t.Errorf("best length = %v, want 11", got)
	}
	if got := testutil.ToFloat64(m.jobsRunning); got != 1 {
		t.Errorf("running = %v, want 1", got)
	}

	m.jobFinished("job-1", StateCancelled)
	if got := testutil.ToFloat64(m.jobsRunning); got != 0 {
		t.Errorf("running = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.jobsFinished.WithLabelValues("cancelled")); got != 1 {
		t.Errorf("cancelled = %v, want 1", got)
	}
	// Finished jobs drop their per-job series.
	if n := testutil.CollectAndCount(m.bestLength); n != 0 {
		t.Errorf("expected no best_length series, got %d", n)
	}

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected registered metric families")
	}
}
