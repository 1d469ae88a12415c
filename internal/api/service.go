package api

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/saru2020/ClipsExtractor/internal/jobs"
	"github.com/saru2020/ClipsExtractor/internal/models"
)

var (
	// ErrInvalidInput is returned for a blank prompt or a URL that is not http(s).
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnavailable is returned when the dispatcher no longer accepts jobs.
	ErrUnavailable = errors.New("job processing unavailable")
)

// Submitter hands a created job to background processing.
type Submitter interface {
	Submit(tr *jobs.Tracker) error
}

// Service is the boundary between transport and the job core: submission and status polling.
type Service struct {
	registry   *jobs.Registry
	dispatcher Submitter
	logger     *zap.Logger
}

// NewService creates the job service.
func NewService(registry *jobs.Registry, dispatcher Submitter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{registry: registry, dispatcher: dispatcher, logger: logger}
}

// Submit validates the request, registers a pending job and starts it in the background.
// It returns the job's initial view.
func (s *Service) Submit(rawURL, prompt string) (models.JobView, error) {
	if err := validate(rawURL, prompt); err != nil {
		return models.JobView{}, err
	}
	tr := s.registry.Create(rawURL, prompt)
	view := tr.View()
	if err := s.dispatcher.Submit(tr); err != nil {
		s.registry.Remove(tr.ID())
		s.logger.Warn("job rejected", zap.String("job_id", tr.ID()), zap.Error(err))
		return models.JobView{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.logger.Info("job submitted", zap.String("job_id", tr.ID()), zap.String("url", tr.Snapshot().URL))
	return view, nil
}

// Status returns the current view of a job, or jobs.ErrNotFound.
func (s *Service) Status(id string) (models.JobView, error) {
	return s.registry.View(id)
}

// Count returns the number of job records held.
func (s *Service) Count() int {
	return s.registry.Len()
}

func validate(rawURL, prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("%w: prompt is required", ErrInvalidInput)
	}
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidInput)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be an http or https URL", ErrInvalidInput)
	}
	return nil
}
