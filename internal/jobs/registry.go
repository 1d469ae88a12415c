package jobs

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saru2020/ClipsExtractor/internal/models"
)

// Registry maps job ids to their trackers (thread-safe). Records live for the process lifetime
// unless removed.
type Registry struct {
	mu       sync.RWMutex
	jobs     map[string]*Tracker
	now      func() time.Time
	observer Observer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*Tracker),
		now:  time.Now,
	}
}

// SetObserver sets the callback invoked with a job view after every change. Applies to jobs created afterwards.
func (r *Registry) SetObserver(fn Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = fn
}

// Create registers a new pending job and returns its tracker.
func (r *Registry) Create(url, prompt string) *Tracker {
	now := r.now()
	job := models.Job{
		ID:        uuid.New().String(),
		URL:       strings.TrimSpace(url),
		Prompt:    strings.TrimSpace(prompt),
		Status:    models.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Clips:     []models.Clip{},
	}

	r.mu.Lock()
	tracker := newTracker(job, r.now, r.observer)
	r.jobs[job.ID] = tracker
	r.mu.Unlock()
	return tracker
}

// Get returns the tracker for id or ErrNotFound.
func (r *Registry) Get(id string) (*Tracker, error) {
	r.mu.RLock()
	tracker, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return tracker, nil
}

// View returns the polling view for id or ErrNotFound.
func (r *Registry) View(id string) (models.JobView, error) {
	tracker, err := r.Get(id)
	if err != nil {
		return models.JobView{}, err
	}
	return tracker.View(), nil
}

// Remove evicts the record for id. Returns false when it was not present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return false
	}
	delete(r.jobs, id)
	return true
}

// Len returns the number of tracked jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
