package jobs

import (
	"errors"
	"testing"

	"video-transcriber/internal/domain"
)

// TestManagerLifecycle verifies normal progression to completed state.
func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	if m.IsRunning() {
		t.Fatal("new manager should be idle")
	}

	if err := m.Start("run-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !m.IsRunning() {
		t.Fatal("expected running after start")
	}
	if err := m.Start("run-2"); !errors.Is(err, ErrJobAlreadyRunning) {
		t.Fatalf("second start error = %v, want %v", err, ErrJobAlreadyRunning)
	}

	if err := m.Transition(domain.JobStatusCompleted); err != nil {
		t.Fatalf("transition to completed: %v", err)
	}
	if m.Current().Status != domain.JobStatusCompleted {
		t.Fatalf("status = %s, want completed", m.Current().Status)
	}
	if err := m.Start("run-2"); err != nil {
		t.Fatalf("restart after completion: %v", err)
	}
}

// TestManagerRejectsInvalidTransition checks state machine constraints.
func TestManagerRejectsInvalidTransition(t *testing.T) {
	m := NewManager()
	if err := m.Transition(domain.JobStatusCompleted); err == nil {
		t.Fatal("expected error without active batch")
	}
	if err := m.Start("run-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Transition(domain.JobStatusIdle); err == nil {
		t.Fatal("expected invalid transition error")
	}
}

// TestManagerCancel verifies cancel is cooperative and idempotent while winding down.
func TestManagerCancel(t *testing.T) {
	m := NewManager()
	if err := m.Cancel(); !errors.Is(err, ErrNoRunningJob) {
		t.Fatalf("idle cancel error = %v, want %v", err, ErrNoRunningJob)
	}
	if err := m.Start("run-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := m.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if m.Current().Status != domain.JobStatusCancelling {
		t.Fatalf("status = %s, want cancelling", m.Current().Status)
	}
	if !m.IsRunning() {
		t.Fatal("cancelling batch still occupies the slot")
	}
	if err := m.Cancel(); err != nil {
		t.Fatalf("repeated cancel: %v", err)
	}

	if err := m.Transition(domain.JobStatusCancelled); err != nil {
		t.Fatalf("transition to cancelled: %v", err)
	}
	if err := m.Cancel(); !errors.Is(err, ErrNoRunningJob) {
		t.Fatalf("cancel after stop error = %v, want %v", err, ErrNoRunningJob)
	}
}
