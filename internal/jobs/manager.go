package jobs

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"video-transcriber/internal/domain"
)

// ErrJobAlreadyRunning is returned by Start while a batch is active.
var ErrJobAlreadyRunning = errors.New("a batch is already running")

// ErrNoRunningJob is returned by Cancel when nothing is running.
var ErrNoRunningJob = errors.New("no running batch")

// transitions lists the allowed next states for each batch state.
var transitions = map[domain.JobStatus][]domain.JobStatus{
	domain.JobStatusIdle:    {domain.JobStatusRunning},
	domain.JobStatusRunning: {domain.JobStatusCancelling, domain.JobStatusCompleted, domain.JobStatusCancelled, domain.JobStatusFailed},
	// A cancel that lands after the last item still completes.
	domain.JobStatusCancelling: {domain.JobStatusCancelled, domain.JobStatusCompleted, domain.JobStatusFailed},
	domain.JobStatusCompleted:  {domain.JobStatusRunning, domain.JobStatusIdle},
	domain.JobStatusCancelled:  {domain.JobStatusRunning, domain.JobStatusIdle},
	domain.JobStatusFailed:     {domain.JobStatusRunning, domain.JobStatusIdle},
}

// Manager guards the single batch allowed to run at a time.
type Manager struct {
	mu  sync.RWMutex
	job domain.Job
}

// NewManager returns an idle manager.
func NewManager() *Manager {
	return &Manager{job: domain.Job{Status: domain.JobStatusIdle}}
}

// Start claims the manager for runID. It fails while another batch is
// running or cancelling.
func (m *Manager) Start(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if active(m.job.Status) {
		return ErrJobAlreadyRunning
	}
	m.job = domain.Job{ID: runID, Status: domain.JobStatusRunning}
	return nil
}

// Transition moves the current batch to status. Repeating the current
// status is a no-op.
func (m *Manager) Transition(status domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.job.Status
	switch {
	case m.job.ID == "" && status != domain.JobStatusIdle:
		return fmt.Errorf("cannot move to %s: no batch has started", status)
	case status == from:
		return nil
	case !slices.Contains(transitions[from], status):
		return fmt.Errorf("invalid transition: %s -> %s", from, status)
	}
	m.job.Status = status
	return nil
}

// Current returns a copy of the current batch.
func (m *Manager) Current() domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.job
}

// Reset forgets the last batch.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.job = domain.Job{Status: domain.JobStatusIdle}
	m.mu.Unlock()
}

// IsRunning reports whether a batch is running or winding down.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return active(m.job.Status)
}

// Cancel flags the running batch. The runner finishes the item in flight
// and then moves the batch to cancelled. Cancelling twice is allowed.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !active(m.job.Status) {
		return ErrNoRunningJob
	}
	m.job.Status = domain.JobStatusCancelling
	return nil
}

func active(status domain.JobStatus) bool {
	return status == domain.JobStatusRunning || status == domain.JobStatusCancelling
}
