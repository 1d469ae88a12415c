package selection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"

	"github.com/saru2020/ClipsExtractor/internal/transcription"
)

// DefaultOpenAIModel is the chat model used when none is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIConfig configures the OpenAI selector.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIService asks an OpenAI chat model for relevant sections in JSON mode.
type OpenAIService struct {
	client openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIService creates the OpenAI selector.
func NewOpenAIService(cfg OpenAIConfig, logger *zap.Logger, opts ...option.RequestOption) *OpenAIService {
	if logger == nil {
		logger = zap.NewNop()
	}
	clientOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	clientOpts = append(clientOpts, opts...)
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIService{
		client: openai.NewClient(clientOpts...),
		model:  model,
		logger: logger,
	}
}

// Select requests a {"clips": [...]} object and parses it.
func (s *OpenAIService) Select(ctx context.Context, t transcription.Transcript, prompt string) ([]Candidate, error) {
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt(t, prompt)),
		},
		Model:       openai.ChatModel(s.model),
		Temperature: openai.Float(0.2),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai returned no choices")
	}
	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	cands, err := parseCandidates(raw)
	if err != nil {
		s.logger.Error("failed to parse openai response", zap.String("raw", raw), zap.Error(err))
		return nil, err
	}
	s.logger.Info("openai selection finished", zap.String("model", s.model), zap.Int("candidates", len(cands)))
	return cands, nil
}
