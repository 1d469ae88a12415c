package transcription

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// LocalService returns a fixed transcript. Used for development without cloud credentials.
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

// Transcribe checks the audio exists and returns the stub transcript.
func (s *LocalService) Transcribe(ctx context.Context, audioPath string) (Transcript, error) {
	if err := ctx.Err(); err != nil {
		return Transcript{}, err
	}
	if _, err := os.Stat(audioPath); err != nil {
		return Transcript{}, fmt.Errorf("local transcription: %w", err)
	}
	s.logger.Info("using local transcription stub", zap.String("audio", audioPath))
	return Transcript{
		Text: "This is a local development transcript. The real transcription service is not configured.",
		Segments: []Segment{
			{Start: 0, End: 30, Text: "This is a local development transcript."},
			{Start: 30, End: 60, Text: "The real transcription service is not configured."},
		},
	}, nil
}
