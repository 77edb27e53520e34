package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/Tech-Reformist/update-manager/pkg/engine"
)

func enabledMetrics(t *testing.T) *Metrics {
	t.Helper()

	cfg := DefaultConfig().Metrics
	cfg.Enabled = true
	m, err := NewMetrics(cfg)
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	return m
}

func gatherCount(t *testing.T, m *Metrics) int {
	t.Helper()

	families, err := m.registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	total := 0
	for _, f := range families {
		total += len(f.GetMetric())
	}
	return total
}

func TestDisabledMetricsAreNoop(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	// None of these must panic on a no-op instance.
	m.RecordUpdateStarted("myos")
	m.RecordUpdateCompleted("succeeded", time.Second)
	m.RecordStage("pull", "succeeded", time.Second)
	m.RecordStageError("pull")
	m.RecordRefResolved("acme")
}

func TestMetricsRecordUpdateLifecycle(t *testing.T) {
	m := enabledMetrics(t)

	before := gatherCount(t, m)
	m.RecordUpdateStarted("myos")
	m.RecordStage("pull", "succeeded", 2*time.Second)
	m.RecordUpdateCompleted("succeeded", 5*time.Second)
	after := gatherCount(t, m)

	if after <= before {
		t.Errorf("expected new series after recording, got %d -> %d", before, after)
	}
}

func TestObserverRecordsStages(t *testing.T) {
	m := enabledMetrics(t)
	obs := NewObserver(m)

	req := engine.Request{
		OSName:    "myos",
		Remote:    engine.Remote{Name: "acme", URL: "https://acme.example/repo"},
		Refs:      []string{"stable/amd64"},
		TargetRef: "stable/amd64",
	}

	obs.TransactionStarted("tx-1", req)
	obs.StageStarted("tx-1", engine.StagePull)
	obs.StageCompleted("tx-1", engine.StagePull, nil)
	obs.StageStarted("tx-1", engine.StageStage)
	obs.StageCompleted("tx-1", engine.StageStage, errors.New("boom"))
	obs.TransactionCompleted("tx-1", engine.Result{
		Status:   engine.StatusFailed,
		Duration: 3 * time.Second,
	})

	// Per-transaction bookkeeping must not leak.
	obs.mu.Lock()
	pending := len(obs.stageTimers)
	remotes := len(obs.remotes)
	obs.mu.Unlock()
	if pending != 0 {
		t.Errorf("expected no pending stage timers, got %d", pending)
	}
	if remotes != 0 {
		t.Errorf("expected no retained remotes, got %d", remotes)
	}

	if gatherCount(t, m) == 0 {
		t.Error("expected recorded series")
	}
}

func TestObserverCountsResolvedRefs(t *testing.T) {
	m := enabledMetrics(t)
	obs := NewObserver(m)

	req := engine.Request{
		OSName:    "myos",
		Remote:    engine.Remote{Name: "acme", URL: "https://acme.example/repo"},
		Refs:      []string{"stable/amd64"},
		TargetRef: "stable/amd64",
	}

	obs.TransactionStarted("tx-2", req)
	obs.StageStarted("tx-2", engine.StageResolve)
	obs.StageCompleted("tx-2", engine.StageResolve, nil)

	families, err := m.registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() != "updatemgr_refs_resolved_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "remote" && label.GetValue() == "acme" {
					found = true
					if got := metric.GetCounter().GetValue(); got != 1 {
						t.Errorf("refs_resolved_total = %v, want 1", got)
					}
				}
			}
		}
	}
	if !found {
		t.Error("expected a refs_resolved_total series for remote acme")
	}

	// A failed resolve must not count.
	obs.StageStarted("tx-2", engine.StageResolve)
	obs.StageCompleted("tx-2", engine.StageResolve, errors.New("unknown ref"))

	families, err = m.registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, f := range families {
		if f.GetName() != "updatemgr_refs_resolved_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			if got := metric.GetCounter().GetValue(); got != 1 {
				t.Errorf("refs_resolved_total after failed resolve = %v, want 1", got)
			}
		}
	}
}

func TestObserverHandlesCompletionWithoutStart(t *testing.T) {
	m := enabledMetrics(t)
	obs := NewObserver(m)

	// A completion without a matching start must not panic.
	obs.StageCompleted("tx-x", engine.StageResolve, nil)
}
