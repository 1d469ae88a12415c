package jobs

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/saru2020/ClipsExtractor/internal/models"
)

var (
	// ErrNotFound is returned when a job id is not in the registry.
	ErrNotFound = errors.New("job not found")
	// ErrTerminal is returned when mutating a job that already completed or failed.
	ErrTerminal = errors.New("job is in a terminal state")
	// ErrInvalidTransition is returned for a status edge the state machine does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Observer receives a fresh view after every change to a job.
type Observer func(models.JobView)

// Tracker owns one job record and is its only writer. Reads return copies.
type Tracker struct {
	mu     sync.RWMutex
	job    models.Job
	now    func() time.Time
	notify Observer
}

func newTracker(job models.Job, now func() time.Time, notify Observer) *Tracker {
	return &Tracker{job: job, now: now, notify: notify}
}

// ID returns the immutable job identifier.
func (t *Tracker) ID() string {
	return t.job.ID
}

// Transition moves the job to status and refreshes updated_at. errorMessage, when non-empty,
// replaces the stored error message. Terminal jobs reject every call and stay untouched.
func (t *Tracker) Transition(status models.JobStatus, errorMessage string) error {
	t.mu.Lock()
	from := t.job.Status
	if from.Terminal() {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrTerminal, from, status)
	}
	if status != from && !isValidTransition(from, status) {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, status)
	}
	t.job.Status = status
	t.job.UpdatedAt = t.stamp()
	if errorMessage != "" {
		t.job.ErrorMessage = errorMessage
	}
	view := t.job.View()
	t.mu.Unlock()

	t.publish(view)
	return nil
}

// Fail moves the job to failed with message.
func (t *Tracker) Fail(message string) error {
	return t.Transition(models.JobStatusFailed, message)
}

// SetClips replaces the clip list. The slice is copied.
func (t *Tracker) SetClips(clips []models.Clip) error {
	stored := make([]models.Clip, len(clips))
	copy(stored, clips)
	return t.update(func(j *models.Job) { j.Clips = stored })
}

// SetInputPath records where the fetched source media lives.
func (t *Tracker) SetInputPath(path string) error {
	return t.update(func(j *models.Job) { j.InputMediaPath = path })
}

// SetOutputPath records the combined output artifact.
func (t *Tracker) SetOutputPath(path string) error {
	return t.update(func(j *models.Job) { j.OutputMediaPath = path })
}

// SetOutputURL records the published access URL for the combined output.
func (t *Tracker) SetOutputURL(url string) error {
	return t.update(func(j *models.Job) { j.OutputMediaURL = url })
}

// Snapshot returns a consistent copy of the job.
func (t *Tracker) Snapshot() models.Job {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job := t.job
	job.Clips = make([]models.Clip, len(t.job.Clips))
	copy(job.Clips, t.job.Clips)
	return job
}

// View returns the polling representation of the job.
func (t *Tracker) View() models.JobView {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.job.View()
}

// Status returns the current status.
func (t *Tracker) Status() models.JobStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.job.Status
}

func (t *Tracker) update(fn func(*models.Job)) error {
	t.mu.Lock()
	if t.job.Status.Terminal() {
		t.mu.Unlock()
		return ErrTerminal
	}
	fn(&t.job)
	view := t.job.View()
	t.mu.Unlock()

	t.publish(view)
	return nil
}

// stamp keeps updated_at >= created_at even if the wall clock steps back.
func (t *Tracker) stamp() time.Time {
	now := t.now()
	if now.Before(t.job.CreatedAt) {
		return t.job.CreatedAt
	}
	return now
}

func (t *Tracker) publish(view models.JobView) {
	if t.notify != nil {
		t.notify(view)
	}
}

// isValidTransition enforces the allowed job state machine edges.
func isValidTransition(from, to models.JobStatus) bool {
	switch from {
	case models.JobStatusPending:
		return to == models.JobStatusDownloading || to == models.JobStatusFailed
	case models.JobStatusDownloading:
		return to == models.JobStatusProcessing || to == models.JobStatusFailed
	case models.JobStatusProcessing:
		return to == models.JobStatusExtracting || to == models.JobStatusCompleted || to == models.JobStatusFailed
	case models.JobStatusExtracting:
		return to == models.JobStatusCompleted || to == models.JobStatusFailed
	default:
		return false
	}
}
