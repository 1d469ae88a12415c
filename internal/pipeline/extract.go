package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/saru2020/ClipsExtractor/internal/models"
)

// Toolkit is the media toolkit the pipeline drives.
type Toolkit interface {
	ExtractAudio(ctx context.Context, videoPath string) (string, error)
	Duration(ctx context.Context, path string) (float64, error)
	Cut(ctx context.Context, path string, start, end float64, outPath string) (string, error)
	Concat(ctx context.Context, clips []string, outPath string) (string, error)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Bounds returns the effective range of clip inside a source of the given duration.
// The stored clip is not modified.
func Bounds(clip models.Clip, duration float64) (start, end float64) {
	start = clamp(clip.Start, 0, duration)
	end = clamp(clip.End, start, duration)
	return start, end
}

// Extractor cuts validated clips out of the source and joins them.
type Extractor struct {
	toolkit Toolkit
	logger  *zap.Logger
}

// NewExtractor creates an extractor over toolkit.
func NewExtractor(toolkit Toolkit, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{toolkit: toolkit, logger: logger}
}

// Extract cuts each clip into dir/clips and concatenates the successful cuts into dir/output.mp4.
// Individual cut failures are skipped. It returns "" when no combined file was produced.
func (e *Extractor) Extract(ctx context.Context, input string, clips []models.Clip, dir string) (string, error) {
	duration, err := e.toolkit.Duration(ctx, input)
	if err != nil {
		return "", soft(StageExtract, fmt.Errorf("probe duration: %w", err))
	}

	cuts := make([]string, 0, len(clips))
	for i, c := range clips {
		start, end := Bounds(c, duration)
		if end <= start {
			e.logger.Warn("clip empty after clamping to source duration",
				zap.Int("clip", i), zap.Float64("start", c.Start), zap.Float64("end", c.End), zap.Float64("duration", duration))
			continue
		}
		out := filepath.Join(dir, "clips", fmt.Sprintf("clip_%d.mp4", i))
		p, err := e.toolkit.Cut(ctx, input, start, end, out)
		if err != nil {
			e.logger.Warn("clip cut failed, skipping", zap.Int("clip", i), zap.Error(err))
			continue
		}
		cuts = append(cuts, p)
	}
	e.logger.Info("clips cut", zap.Int("requested", len(clips)), zap.Int("succeeded", len(cuts)))
	if len(cuts) == 0 {
		return "", nil
	}

	combined, err := e.toolkit.Concat(ctx, cuts, filepath.Join(dir, "output.mp4"))
	if err != nil {
		return "", soft(StageCombine, err)
	}
	return combined, nil
}
