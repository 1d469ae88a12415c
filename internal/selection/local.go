package selection

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/saru2020/ClipsExtractor/internal/transcription"
)

// LocalService returns two fixed development clips.
type LocalService struct {
	logger *zap.Logger
}

// NewLocalService creates the development stub.
func NewLocalService(logger *zap.Logger) *LocalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalService{logger: logger}
}

// Select returns clips at 10-20s and 35-45s.
func (s *LocalService) Select(ctx context.Context, _ transcription.Transcript, prompt string) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.logger.Info("using local selection stub", zap.String("prompt", prompt))
	return []Candidate{
		fixed(10, 20, fmt.Sprintf("Development clip 1 for: %s", prompt)),
		fixed(35, 45, fmt.Sprintf("Development clip 2 for: %s", prompt)),
	}, nil
}

func fixed(start, end float64, text string) Candidate {
	return Candidate{Start: &start, End: &end, Text: &text}
}
