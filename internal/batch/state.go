package batch

import (
	"sync"

	"video-transcriber/internal/domain"
)

// State is the shared run state of one batch. All access goes through the
// mutex; the worker is the only writer of counters, Cancel only clears the
// active flag.
type State struct {
	mu        sync.Mutex
	runID     string
	active    bool
	canceled  bool
	processed int
	total     int
	status    string
	log       []string
}

// NewState returns an idle state.
func NewState() *State {
	return &State{status: "Ready for batch processing"}
}

// begin resets the state for a new run. It fails when a run is active.
func (s *State) begin(runID string, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return ErrAlreadyRunning
	}
	s.runID = runID
	s.active = true
	s.canceled = false
	s.processed = 0
	s.total = total
	s.status = "Starting batch processing..."
	s.log = nil
	return nil
}

// Active reports whether the loop may start another item.
func (s *State) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Cancel clears the active flag. The item in flight still completes. It
// returns false when no run is active.
func (s *State) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	s.active = false
	s.canceled = true
	s.status = "Canceling batch processing..."
	return true
}

func (s *State) finish(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.status = status
}

func (s *State) appendLog(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, line)
}

func (s *State) setStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// advance increments the processed counter and returns the new counts.
func (s *State) advance() (processed, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed++
	return s.processed, s.total
}

func (s *State) counts() (processed, total int, canceled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed, s.total, s.canceled
}

// Snapshot copies the state.
func (s *State) Snapshot() domain.BatchSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.BatchSnapshot{
		RunID:     s.runID,
		Active:    s.active,
		Canceled:  s.canceled,
		Processed: s.processed,
		Total:     s.total,
		Status:    s.status,
		Log:       append([]string(nil), s.log...),
	}
}
