package transcription

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/aws/aws-sdk-go-v2/service/transcribe/types"
)

const sampleAWSTranscript = `{
  "jobName": "clips-test",
  "results": {
    "transcripts": [{"transcript": "Hello there. How are you? Fine"}],
    "items": [
      {"type": "pronunciation", "start_time": "0.0", "end_time": "0.4", "alternatives": [{"content": "Hello"}]},
      {"type": "pronunciation", "start_time": "0.5", "end_time": "0.9", "alternatives": [{"content": "there"}]},
      {"type": "punctuation", "alternatives": [{"content": "."}]},
      {"type": "pronunciation", "start_time": "1.5", "end_time": "1.7", "alternatives": [{"content": "How"}]},
      {"type": "pronunciation", "start_time": "1.8", "end_time": "1.9", "alternatives": [{"content": "are"}]},
      {"type": "pronunciation", "start_time": "2.0", "end_time": "2.2", "alternatives": [{"content": "you"}]},
      {"type": "punctuation", "alternatives": [{"content": "?"}]},
      {"type": "pronunciation", "start_time": "3.0", "end_time": "3.4", "alternatives": [{"content": "Fine"}]}
    ]
  }
}`

func TestParseAWSTranscriptGroupsSentences(t *testing.T) {
	tr, err := parseAWSTranscript([]byte(sampleAWSTranscript))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []Segment{
		{Start: 0.0, End: 0.9, Text: "Hello there."},
		{Start: 1.5, End: 2.2, Text: "How are you?"},
		{Start: 3.0, End: 3.4, Text: "Fine"},
	}
	if len(tr.Segments) != len(want) {
		t.Fatalf("segments = %+v", tr.Segments)
	}
	for i := range want {
		if tr.Segments[i] != want[i] {
			t.Errorf("segment %d = %+v, want %+v", i, tr.Segments[i], want[i])
		}
	}
	if tr.Text != "Hello there. How are you? Fine" {
		t.Fatalf("text = %q", tr.Text)
	}
}

func TestParseAWSTranscriptRejectsGarbage(t *testing.T) {
	if _, err := parseAWSTranscript([]byte("not json")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestParseVerboseJSON(t *testing.T) {
	raw := `{"text":"","segments":[{"id":0,"start":0,"end":2.5,"text":" First part."},{"id":1,"start":2.5,"end":4,"text":"  "},{"id":2,"start":4,"end":7.25,"text":"Second part."}]}`
	tr, err := parseVerboseJSON([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(tr.Segments) != 2 {
		t.Fatalf("segments = %+v, want blank one dropped", tr.Segments)
	}
	if tr.Segments[0].Text != "First part." || tr.Segments[1].Start != 4 || tr.Segments[1].End != 7.25 {
		t.Fatalf("segments = %+v", tr.Segments)
	}
	if tr.Text != "First part. Second part." {
		t.Fatalf("text = %q, want joined segments", tr.Text)
	}
}

func TestLocalServiceRequiresAudio(t *testing.T) {
	svc := NewLocalService(nil)
	if _, err := svc.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.mp3")); err == nil {
		t.Fatal("expected error for missing audio file")
	}

	audio := filepath.Join(t.TempDir(), "audio.mp3")
	if err := os.WriteFile(audio, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	tr, err := svc.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if len(tr.Segments) != 2 || tr.Text == "" {
		t.Fatalf("stub transcript = %+v", tr)
	}
}

type fakeStore struct {
	mu       sync.Mutex
	uploaded []string
	deleted  []string
}

func (f *fakeStore) Upload(ctx context.Context, localPath, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded = append(f.uploaded, key)
	return "s3://bucket/" + key, nil
}

func (f *fakeStore) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://signed/" + key, nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

type fakeTranscribe struct {
	started   *transcribe.StartTranscriptionJobInput
	polls     int
	doneAfter int
	fail      bool
	uri       string
}

func (f *fakeTranscribe) StartTranscriptionJob(ctx context.Context, in *transcribe.StartTranscriptionJobInput, _ ...func(*transcribe.Options)) (*transcribe.StartTranscriptionJobOutput, error) {
	f.started = in
	return &transcribe.StartTranscriptionJobOutput{}, nil
}

func (f *fakeTranscribe) GetTranscriptionJob(ctx context.Context, in *transcribe.GetTranscriptionJobInput, _ ...func(*transcribe.Options)) (*transcribe.GetTranscriptionJobOutput, error) {
	f.polls++
	job := &types.TranscriptionJob{TranscriptionJobName: in.TranscriptionJobName, TranscriptionJobStatus: types.TranscriptionJobStatusInProgress}
	if f.polls >= f.doneAfter {
		if f.fail {
			job.TranscriptionJobStatus = types.TranscriptionJobStatusFailed
			job.FailureReason = aws.String("unsupported media")
		} else {
			job.TranscriptionJobStatus = types.TranscriptionJobStatusCompleted
			job.Transcript = &types.Transcript{TranscriptFileUri: aws.String(f.uri)}
		}
	}
	return &transcribe.GetTranscriptionJobOutput{TranscriptionJob: job}, nil
}

func TestAWSServiceTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleAWSTranscript))
	}))
	defer srv.Close()

	api := &fakeTranscribe{doneAfter: 3, uri: srv.URL + "/transcript.json"}
	store := &fakeStore{}
	svc := newAWSService(api, store, AWSConfig{PollInterval: time.Millisecond, Timeout: time.Second}, nil)

	tr, err := svc.Transcribe(context.Background(), "/tmp/job/audio.mp3")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if len(tr.Segments) != 3 {
		t.Fatalf("segments = %+v", tr.Segments)
	}
	if api.polls != 3 {
		t.Fatalf("polls = %d, want 3", api.polls)
	}
	if api.started.MediaFormat != types.MediaFormatMp3 || api.started.LanguageCode != types.LanguageCodeEnUs {
		t.Fatalf("start input = %+v", api.started)
	}
	if !strings.HasPrefix(aws.ToString(api.started.Media.MediaFileUri), "s3://bucket/transcribe/clips-") {
		t.Fatalf("media uri = %s", aws.ToString(api.started.Media.MediaFileUri))
	}
	if len(store.uploaded) != 1 || len(store.deleted) != 1 || store.uploaded[0] != store.deleted[0] {
		t.Fatalf("staged audio not cleaned up: uploaded=%v deleted=%v", store.uploaded, store.deleted)
	}
}

func TestAWSServiceJobFailure(t *testing.T) {
	api := &fakeTranscribe{doneAfter: 1, fail: true}
	store := &fakeStore{}
	svc := newAWSService(api, store, AWSConfig{PollInterval: time.Millisecond, Timeout: time.Second}, nil)

	_, err := svc.Transcribe(context.Background(), "/tmp/job/audio.mp3")
	if err == nil || !strings.Contains(err.Error(), "unsupported media") {
		t.Fatalf("error = %v, want failure reason", err)
	}
	if len(store.deleted) != 1 {
		t.Fatal("staged audio not deleted after failure")
	}
}

func TestAWSServiceTimeout(t *testing.T) {
	api := &fakeTranscribe{doneAfter: 1 << 30}
	svc := newAWSService(api, &fakeStore{}, AWSConfig{PollInterval: time.Millisecond, Timeout: 20 * time.Millisecond}, nil)

	_, err := svc.Transcribe(context.Background(), "/tmp/job/audio.mp3")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want deadline exceeded", err)
	}
}
