// Package pipeline runs one extraction job through download, transcription, selection, extraction
// and publishing, and decides which failures fail the job.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/saru2020/ClipsExtractor/internal/jobs"
	"github.com/saru2020/ClipsExtractor/internal/models"
	"github.com/saru2020/ClipsExtractor/internal/selection"
	"github.com/saru2020/ClipsExtractor/internal/transcription"
	"github.com/saru2020/ClipsExtractor/pkg/storage"
)

// Fetcher downloads a source URL into a directory.
type Fetcher interface {
	Fetch(ctx context.Context, url, dir string) (string, error)
}

// Scheduler runs fire-and-forget tasks after a delay.
type Scheduler interface {
	After(delay time.Duration, name string, fn func())
}

// Config holds orchestrator settings.
type Config struct {
	// WorkDir holds one working directory per job.
	WorkDir string
	// CleanupDelay is how long a job's working directory outlives the pipeline.
	CleanupDelay time.Duration
	// Retention evicts the job record this long after the pipeline ends. Zero keeps it.
	Retention time.Duration
	// PresignTTL is the lifetime of the published output URL.
	PresignTTL        time.Duration
	ExtractionEnabled bool
}

// Deps are the collaborators the orchestrator drives. Store may be nil to skip publishing;
// Registry may be nil when records are never evicted.
type Deps struct {
	Fetcher     Fetcher
	Toolkit     Toolkit
	Transcriber transcription.Service
	Selector    selection.Service
	Store       storage.ObjectStore
	Scheduler   Scheduler
	Registry    *jobs.Registry
}

// Orchestrator sequences the stages for a job and applies the partial-failure policy.
type Orchestrator struct {
	cfg       Config
	deps      Deps
	extractor *Extractor
	active    sync.Map
	logger    *zap.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(cfg Config, deps Deps, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 24 * time.Hour
	}
	return &Orchestrator{
		cfg:       cfg,
		deps:      deps,
		extractor: NewExtractor(deps.Toolkit, logger),
		logger:    logger,
	}
}

// Run drives the job to COMPLETED or FAILED. The returned error is the fatal failure, if any;
// soft failures are only logged. Cleanup is scheduled on every path.
func (o *Orchestrator) Run(ctx context.Context, tr *jobs.Tracker) error {
	jobID := tr.ID()
	log := o.logger.With(zap.String("job_id", jobID))

	if _, loaded := o.active.LoadOrStore(jobID, struct{}{}); loaded {
		log.Warn("job handed to orchestrator more than once")
		return ErrAlreadyStarted
	}
	defer o.active.Delete(jobID)
	if tr.Status() != models.JobStatusPending {
		log.Warn("job handed to orchestrator more than once", zap.String("status", string(tr.Status())))
		return ErrAlreadyStarted
	}

	dir := filepath.Join(o.cfg.WorkDir, jobID)
	defer o.scheduleCleanup(jobID, dir, log)

	started := time.Now()
	err := o.run(ctx, tr, dir, log)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, ErrNoClips) {
			err = ErrCancelled
		}
		msg := failureMessage(err)
		log.Error("job failed", zap.String("error_message", msg), zap.Error(err))
		if ferr := tr.Fail(msg); ferr != nil {
			log.Warn("could not mark job failed", zap.Error(ferr))
		}
		return err
	}
	log.Info("job completed", zap.Duration("elapsed", time.Since(started)))
	return nil
}

func (o *Orchestrator) run(ctx context.Context, tr *jobs.Tracker, dir string, log *zap.Logger) error {
	job := tr.Snapshot()

	// Download.
	if err := o.enter(ctx, tr, models.JobStatusDownloading, StageDownload, log); err != nil {
		return err
	}
	input, err := o.deps.Fetcher.Fetch(ctx, job.URL, dir)
	if err != nil {
		return fatal(StageDownload, err)
	}
	if err := tr.SetInputPath(input); err != nil {
		return fatal(StageDownload, err)
	}

	// Transcribe.
	if err := o.enter(ctx, tr, models.JobStatusProcessing, StageTranscribe, log); err != nil {
		return err
	}
	transcript, err := o.transcribe(ctx, input, log)
	if err != nil {
		return err
	}

	// Select.
	if err := checkCancel(ctx); err != nil {
		return err
	}
	log.Info("stage started", zap.String("stage", string(StageSelect)))
	cands, err := o.deps.Selector.Select(ctx, transcript, job.Prompt)
	if err != nil {
		return fatal(StageSelect, err)
	}
	clips, rejected := selection.Accept(cands, log)
	log.Info("clip candidates validated",
		zap.Int("candidates", len(cands)), zap.Int("accepted", len(clips)), zap.Int("rejected", len(rejected)))
	if len(clips) == 0 {
		return fatal(StageSelect, ErrNoClips)
	}
	if err := tr.SetClips(clips); err != nil {
		return fatal(StageSelect, err)
	}

	// Extract, combine and publish are best-effort.
	if o.cfg.ExtractionEnabled {
		if err := o.enter(ctx, tr, models.JobStatusExtracting, StageExtract, log); err != nil {
			return err
		}
		if err := o.extractAndPublish(ctx, tr, input, clips, dir, log); err != nil {
			log.Warn("best-effort stage failed, completing with partial output", zap.Error(err))
		}
	}

	if err := tr.Transition(models.JobStatusCompleted, ""); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// enter checks for cancellation and moves the job into the status that announces stage.
func (o *Orchestrator) enter(ctx context.Context, tr *jobs.Tracker, status models.JobStatus, stage Stage, log *zap.Logger) error {
	if err := checkCancel(ctx); err != nil {
		return err
	}
	if err := tr.Transition(status, ""); err != nil {
		return fatal(stage, err)
	}
	log.Info("stage started", zap.String("stage", string(stage)))
	return nil
}

func (o *Orchestrator) transcribe(ctx context.Context, input string, log *zap.Logger) (transcription.Transcript, error) {
	audio, err := o.deps.Toolkit.ExtractAudio(ctx, input)
	if err != nil {
		return transcription.Transcript{}, fatal(StageTranscribe, fmt.Errorf("extract audio: %w", err))
	}
	defer func() {
		if err := os.Remove(audio); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to remove extracted audio", zap.String("path", audio), zap.Error(err))
		}
	}()

	t, err := o.deps.Transcriber.Transcribe(ctx, audio)
	if err != nil {
		return transcription.Transcript{}, fatal(StageTranscribe, err)
	}
	log.Info("transcription finished", zap.Int("segments", len(t.Segments)), zap.Int("chars", len(t.Text)))
	return t, nil
}

func (o *Orchestrator) extractAndPublish(ctx context.Context, tr *jobs.Tracker, input string, clips []models.Clip, dir string, log *zap.Logger) error {
	combined, err := o.extractor.Extract(ctx, input, clips, dir)
	if err != nil {
		return err
	}
	if combined == "" {
		log.Info("no combined output produced")
		return nil
	}
	if err := tr.SetOutputPath(combined); err != nil {
		return soft(StageCombine, err)
	}
	return o.publish(ctx, tr, combined, log)
}

func (o *Orchestrator) publish(ctx context.Context, tr *jobs.Tracker, combined string, log *zap.Logger) error {
	if o.deps.Store == nil {
		return nil
	}
	key := storage.OutputKey(tr.ID())
	if _, err := o.deps.Store.Upload(ctx, combined, key); err != nil {
		return soft(StagePublish, err)
	}
	url, err := o.deps.Store.PresignedURL(ctx, key, o.cfg.PresignTTL)
	if err != nil {
		return soft(StagePublish, err)
	}
	if err := tr.SetOutputURL(url); err != nil {
		return soft(StagePublish, err)
	}
	log.Info("output published", zap.String("key", key))
	return nil
}

func (o *Orchestrator) scheduleCleanup(jobID, dir string, log *zap.Logger) {
	if o.deps.Scheduler == nil {
		return
	}
	o.deps.Scheduler.After(o.cfg.CleanupDelay, "cleanup:"+jobID, func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Error("job cleanup failed", zap.String("dir", dir), zap.Error(err))
			return
		}
		log.Info("job files cleaned up", zap.String("dir", dir))
	})
	if o.cfg.Retention > 0 && o.deps.Registry != nil {
		reg := o.deps.Registry
		o.deps.Scheduler.After(o.cfg.Retention, "evict:"+jobID, func() {
			if reg.Remove(jobID) {
				log.Info("job record evicted")
			}
		})
	}
}

func checkCancel(ctx context.Context) error {
	if ctx.Err() != nil {
		return ErrCancelled
	}
	return nil
}
