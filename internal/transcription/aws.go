package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/aws/aws-sdk-go-v2/service/transcribe/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saru2020/ClipsExtractor/pkg/storage"
)

// transcribeAPI is the subset of the Amazon Transcribe client used here.
type transcribeAPI interface {
	StartTranscriptionJob(ctx context.Context, in *transcribe.StartTranscriptionJobInput, optFns ...func(*transcribe.Options)) (*transcribe.StartTranscriptionJobOutput, error)
	GetTranscriptionJob(ctx context.Context, in *transcribe.GetTranscriptionJobInput, optFns ...func(*transcribe.Options)) (*transcribe.GetTranscriptionJobOutput, error)
}

// AWSConfig tunes the Amazon Transcribe backend.
type AWSConfig struct {
	LanguageCode string
	PollInterval time.Duration
	Timeout      time.Duration
}

// AWSService stages audio in S3, runs an Amazon Transcribe job and polls it to completion.
type AWSService struct {
	api    transcribeAPI
	store  storage.ObjectStore
	http   *http.Client
	cfg    AWSConfig
	logger *zap.Logger
}

// NewAWSService creates the Transcribe backend from an AWS config. Audio is staged through store.
func NewAWSService(awsCfg aws.Config, store storage.ObjectStore, cfg AWSConfig, logger *zap.Logger) *AWSService {
	return newAWSService(transcribe.NewFromConfig(awsCfg), store, cfg, logger)
}

func newAWSService(api transcribeAPI, store storage.ObjectStore, cfg AWSConfig, logger *zap.Logger) *AWSService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	return &AWSService{
		api:    api,
		store:  store,
		http:   &http.Client{Timeout: 60 * time.Second},
		cfg:    cfg,
		logger: logger,
	}
}

// Transcribe uploads the audio, starts a transcription job and waits for its transcript.
func (s *AWSService) Transcribe(ctx context.Context, audioPath string) (Transcript, error) {
	jobName := "clips-" + uuid.New().String()
	key := storage.TranscribeKey(jobName + filepath.Ext(audioPath))

	uri, err := s.store.Upload(ctx, audioPath, key)
	if err != nil {
		return Transcript{}, fmt.Errorf("stage audio: %w", err)
	}
	defer func() {
		delCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.store.Delete(delCtx, key); err != nil {
			s.logger.Warn("failed to delete staged audio", zap.String("key", key), zap.Error(err))
		}
	}()

	_, err = s.api.StartTranscriptionJob(ctx, &transcribe.StartTranscriptionJobInput{
		TranscriptionJobName: aws.String(jobName),
		Media:                &types.Media{MediaFileUri: aws.String(uri)},
		MediaFormat:          mediaFormat(audioPath),
		LanguageCode:         types.LanguageCode(s.cfg.LanguageCode),
	})
	if err != nil {
		return Transcript{}, fmt.Errorf("start transcription job: %w", err)
	}
	s.logger.Info("transcription job started", zap.String("transcription_job", jobName), zap.String("media", uri))

	transcriptURI, err := s.waitForJob(ctx, jobName)
	if err != nil {
		return Transcript{}, err
	}
	return s.fetchTranscript(ctx, transcriptURI)
}

func (s *AWSService) waitForJob(ctx context.Context, jobName string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		out, err := s.api.GetTranscriptionJob(ctx, &transcribe.GetTranscriptionJobInput{
			TranscriptionJobName: aws.String(jobName),
		})
		if err != nil {
			return "", fmt.Errorf("get transcription job: %w", err)
		}
		job := out.TranscriptionJob
		if job == nil {
			return "", errors.New("get transcription job: empty response")
		}
		switch job.TranscriptionJobStatus {
		case types.TranscriptionJobStatusCompleted:
			if job.Transcript == nil || aws.ToString(job.Transcript.TranscriptFileUri) == "" {
				return "", errors.New("transcription job completed without transcript uri")
			}
			return aws.ToString(job.Transcript.TranscriptFileUri), nil
		case types.TranscriptionJobStatusFailed:
			return "", fmt.Errorf("transcription job failed: %s", aws.ToString(job.FailureReason))
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for transcription job %s: %w", jobName, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (s *AWSService) fetchTranscript(ctx context.Context, uri string) (Transcript, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return Transcript{}, fmt.Errorf("transcript request: %w", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return Transcript{}, fmt.Errorf("fetch transcript: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Transcript{}, fmt.Errorf("fetch transcript: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Transcript{}, fmt.Errorf("read transcript: %w", err)
	}
	return parseAWSTranscript(body)
}

func mediaFormat(path string) types.MediaFormat {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "mp4":
		return types.MediaFormatMp4
	case "wav":
		return types.MediaFormatWav
	case "flac":
		return types.MediaFormatFlac
	case "m4a":
		return types.MediaFormatM4a
	case "webm":
		return types.MediaFormatWebm
	default:
		return types.MediaFormatMp3
	}
}

type awsTranscriptDoc struct {
	Results struct {
		Transcripts []struct {
			Transcript string `json:"transcript"`
		} `json:"transcripts"`
		Items []awsItem `json:"items"`
	} `json:"results"`
}

type awsItem struct {
	Type         string `json:"type"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Alternatives []struct {
		Content string `json:"content"`
	} `json:"alternatives"`
}

// parseAWSTranscript groups word items into sentence segments that close at terminal punctuation.
func parseAWSTranscript(body []byte) (Transcript, error) {
	var doc awsTranscriptDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return Transcript{}, fmt.Errorf("decode transcript: %w", err)
	}

	var (
		segs    []Segment
		words   []string
		current Segment
		open    bool
	)
	flush := func() {
		if open && len(words) > 0 {
			current.Text = strings.Join(words, " ")
			segs = append(segs, current)
		}
		words = words[:0]
		open = false
	}

	for _, item := range doc.Results.Items {
		if len(item.Alternatives) == 0 {
			continue
		}
		content := item.Alternatives[0].Content
		switch item.Type {
		case "pronunciation":
			start, err1 := strconv.ParseFloat(item.StartTime, 64)
			end, err2 := strconv.ParseFloat(item.EndTime, 64)
			if err1 != nil || err2 != nil {
				continue
			}
			if !open {
				current = Segment{Start: start}
				open = true
			}
			current.End = end
			words = append(words, content)
		case "punctuation":
			if len(words) > 0 {
				words[len(words)-1] += content
			}
			if strings.ContainsAny(content, ".?!") {
				flush()
			}
		}
	}
	flush()

	t := Transcript{Segments: segs}
	if len(doc.Results.Transcripts) > 0 {
		t.Text = doc.Results.Transcripts[0].Transcript
	}
	return normalize(t), nil
}
