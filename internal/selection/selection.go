// Package selection picks prompt-relevant time ranges from a transcript and validates them into clips.
package selection

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/saru2020/ClipsExtractor/internal/models"
	"github.com/saru2020/ClipsExtractor/internal/transcription"
)

// Accepted clip duration window, in seconds, inclusive on both ends.
const (
	MinClipSeconds = 1.0
	MaxClipSeconds = 30.0
)

// Candidate is an unvalidated time range proposed by a selection backend.
// Nil fields were absent from the backend's answer.
type Candidate struct {
	Start *float64
	End   *float64
	Text  *string
}

// Service proposes candidate clips for a prompt. An empty result is not an error.
type Service interface {
	Select(ctx context.Context, t transcription.Transcript, prompt string) ([]Candidate, error)
}

// Rejection records why a candidate was dropped.
type Rejection struct {
	Index  int
	Reason string
}

func (r Rejection) String() string {
	return fmt.Sprintf("candidate %d: %s", r.Index, r.Reason)
}

// Accept validates candidates in the order given and returns the surviving clips.
// Candidates are dropped, never corrected.
func Accept(cands []Candidate, logger *zap.Logger) ([]models.Clip, []Rejection) {
	if logger == nil {
		logger = zap.NewNop()
	}
	clips := make([]models.Clip, 0, len(cands))
	var rejected []Rejection
	for i, c := range cands {
		clip, reason := check(c)
		if reason != "" {
			rejected = append(rejected, Rejection{Index: i, Reason: reason})
			logger.Info("dropping clip candidate", zap.Int("index", i), zap.String("reason", reason))
			continue
		}
		clips = append(clips, clip)
	}
	return clips, rejected
}

func check(c Candidate) (models.Clip, string) {
	if c.Start == nil || c.End == nil || c.Text == nil {
		return models.Clip{}, "missing required field"
	}
	start, end := *c.Start, *c.End
	if math.IsNaN(start) || math.IsInf(start, 0) || math.IsNaN(end) || math.IsInf(end, 0) {
		return models.Clip{}, "non-finite timestamp"
	}
	if end <= start {
		return models.Clip{}, fmt.Sprintf("end %.2f not after start %.2f", end, start)
	}
	if d := end - start; d < MinClipSeconds || d > MaxClipSeconds {
		return models.Clip{}, fmt.Sprintf("duration %.2fs outside [%.1f, %.1f]", d, MinClipSeconds, MaxClipSeconds)
	}
	return models.Clip{Start: start, End: end, Text: strings.TrimSpace(*c.Text)}, ""
}
