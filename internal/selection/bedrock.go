package selection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/saru2020/ClipsExtractor/internal/transcription"
)

// DefaultBedrockModel is the Claude model used when none is configured.
const DefaultBedrockModel = "anthropic.claude-3-sonnet-20240229-v1:0"

type bedrockAPI interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type claudeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	System           string          `json:"system,omitempty"`
	Messages         []claudeMessage `json:"messages"`
	Temperature      float64         `json:"temperature"`
}

type claudeMessage struct {
	Role    string          `json:"role"`
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

// BedrockService asks a Claude model on Amazon Bedrock for relevant sections.
type BedrockService struct {
	api     bedrockAPI
	modelID string
	logger  *zap.Logger
}

// NewBedrockService creates the Bedrock selector from an AWS config.
func NewBedrockService(awsCfg aws.Config, modelID string, logger *zap.Logger) *BedrockService {
	return newBedrockService(bedrockruntime.NewFromConfig(awsCfg), modelID, logger)
}

func newBedrockService(api bedrockAPI, modelID string, logger *zap.Logger) *BedrockService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if modelID == "" {
		modelID = DefaultBedrockModel
	}
	return &BedrockService{api: api, modelID: modelID, logger: logger}
}

// Select sends the timestamped transcript and prompt to Claude and parses the returned clip list.
func (s *BedrockService) Select(ctx context.Context, t transcription.Transcript, prompt string) ([]Candidate, error) {
	body, err := json.Marshal(claudeRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        1000,
		System:           systemPrompt,
		Messages: []claudeMessage{{
			Role:    "user",
			Content: []claudeContent{{Type: "text", Text: userPrompt(t, prompt)}},
		}},
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("encode bedrock request: %w", err)
	}

	out, err := s.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(s.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock invoke model: %w", err)
	}

	var resp claudeResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("decode bedrock response: %w", err)
	}
	if len(resp.Content) == 0 {
		return nil, errors.New("no content in bedrock response")
	}
	cands, err := parseCandidates(resp.Content[0].Text)
	if err != nil {
		s.logger.Error("failed to parse bedrock response", zap.String("raw", resp.Content[0].Text), zap.Error(err))
		return nil, err
	}
	s.logger.Info("bedrock selection finished", zap.String("model", s.modelID), zap.Int("candidates", len(cands)))
	return cands, nil
}
