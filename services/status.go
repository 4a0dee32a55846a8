package services

import (
	"sync"

	"ev-price-tracker/models"
)

// StatusTracker is the process-wide run state. Writes are confined to
// the orchestrator; Snapshot may be called concurrently from the status
// endpoint while a run is mutating state.
type StatusTracker struct {
	mu       sync.Mutex
	running  bool
	current  string
	progress int
	total    int
	errors   []string
}

// NewStatusTracker creates an idle tracker.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{}
}

// Begin transitions Idle → Running and resets counters and errors.
// Returns false, leaving the in-flight run untouched, when already
// running. This is the single-flight gate.
func (t *StatusTracker) Begin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return false
	}
	t.running = true
	t.current = ""
	t.progress = 0
	t.total = 0
	t.errors = nil
	return true
}

// SetTotal records the number of (model, source) pairs the run covers.
func (t *StatusTracker) SetTotal(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = total
}

// SetCurrent records the model label being scraped.
func (t *StatusTracker) SetCurrent(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = label
}

// Advance increments progress by one attempted (model, source) pair.
func (t *StatusTracker) Advance() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress++
}

// AddError appends one run-level error string, preserving order.
func (t *StatusTracker) AddError(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errors = append(t.errors, msg)
}

// Finish transitions back to Idle: progress forced to total, label
// cleared. Runs unconditionally on every run exit path.
func (t *StatusTracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	t.current = ""
	t.progress = t.total
}

// Snapshot returns a point-in-time copy of the run state.
func (t *StatusTracker) Snapshot() models.StatusSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	errs := make([]string, len(t.errors))
	copy(errs, t.errors)

	return models.StatusSnapshot{
		IsRunning:    t.running,
		CurrentModel: t.current,
		Progress:     t.progress,
		Total:        t.total,
		Errors:       errs,
	}
}
