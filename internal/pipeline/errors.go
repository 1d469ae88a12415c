package pipeline

import (
	"errors"
	"fmt"
)

// Stage names one pipeline step.
type Stage string

const (
	StageDownload   Stage = "download"
	StageTranscribe Stage = "transcribe"
	StageSelect     Stage = "select"
	StageExtract    Stage = "extract"
	StageCombine    Stage = "combine"
	StagePublish    Stage = "publish"
)

// Severity decides whether a stage failure fails the job.
type Severity int

const (
	// SeverityFatal halts the pipeline and marks the job failed.
	SeverityFatal Severity = iota
	// SeveritySoft is logged; the job still completes.
	SeveritySoft
)

func (s Severity) String() string {
	if s == SeveritySoft {
		return "soft"
	}
	return "fatal"
}

var (
	// ErrNoClips is the business failure when no candidate survives validation.
	ErrNoClips = errors.New("No clips could be found for the given prompt")
	// ErrCancelled is returned when the job's context ends between stages.
	ErrCancelled = errors.New("cancelled")
	// ErrAlreadyStarted is returned when a job is handed to the orchestrator twice.
	ErrAlreadyStarted = errors.New("job already started")
)

// StageError is a classified stage failure.
type StageError struct {
	Stage    Stage
	Severity Severity
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func fatal(stage Stage, err error) error {
	return &StageError{Stage: stage, Severity: SeverityFatal, Err: err}
}

func soft(stage Stage, err error) error {
	return &StageError{Stage: stage, Severity: SeveritySoft, Err: err}
}

// IsFatal reports whether err must fail the job. Unclassified errors are fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var se *StageError
	if errors.As(err, &se) {
		return se.Severity == SeverityFatal
	}
	return true
}

// failureMessage renders the error message stored on a failed job.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, ErrNoClips):
		return ErrNoClips.Error()
	case errors.Is(err, ErrCancelled):
		return "Job processing failed: " + ErrCancelled.Error()
	default:
		return "Job processing failed: " + err.Error()
	}
}
