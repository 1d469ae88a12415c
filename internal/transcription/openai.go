package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// OpenAIConfig configures the Whisper backend.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIService transcribes with the OpenAI audio API in verbose_json mode to get segment timestamps.
type OpenAIService struct {
	client openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIService creates the Whisper backend.
func NewOpenAIService(cfg OpenAIConfig, logger *zap.Logger) *OpenAIService {
	if logger == nil {
		logger = zap.NewNop()
	}
	clientOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = string(openai.AudioModelWhisper1)
	}
	return &OpenAIService{
		client: openai.NewClient(clientOpts...),
		model:  model,
		logger: logger,
	}
}

// Transcribe uploads the audio file and parses the segments from the verbose response.
func (s *OpenAIService) Transcribe(ctx context.Context, audioPath string) (Transcript, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return Transcript{}, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	resp, err := s.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:           f,
		Model:          openai.AudioModel(s.model),
		ResponseFormat: openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return Transcript{}, fmt.Errorf("openai transcription: %w", err)
	}
	t, err := parseVerboseJSON([]byte(resp.RawJSON()))
	if err != nil {
		return Transcript{}, err
	}
	if t.Text == "" {
		t.Text = strings.TrimSpace(resp.Text)
	}
	s.logger.Info("openai transcription finished", zap.Int("segments", len(t.Segments)))
	return t, nil
}

type verboseTranscription struct {
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func parseVerboseJSON(raw []byte) (Transcript, error) {
	if len(raw) == 0 {
		return Transcript{}, nil
	}
	var v verboseTranscription
	if err := json.Unmarshal(raw, &v); err != nil {
		return Transcript{}, fmt.Errorf("decode verbose transcription: %w", err)
	}
	t := Transcript{Text: v.Text, Segments: make([]Segment, 0, len(v.Segments))}
	for _, seg := range v.Segments {
		t.Segments = append(t.Segments, Segment{Start: seg.Start, End: seg.End, Text: seg.Text})
	}
	return normalize(t), nil
}
