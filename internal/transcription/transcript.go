// Package transcription turns an audio file into text with timestamped segments.
package transcription

import (
	"context"
	"strings"
)

// Segment is a timestamped span of transcript text, in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the normalized result every backend produces.
type Transcript struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// Service transcribes a local audio file.
type Service interface {
	Transcribe(ctx context.Context, audioPath string) (Transcript, error)
}

// Name identifies a backend in logs.
type Name string

const (
	NameAWS    Name = "aws-transcribe"
	NameOpenAI Name = "openai-whisper"
	NameLocal  Name = "local"
)

// joinSegments rebuilds the full text from segments when a backend returns none.
func joinSegments(segs []Segment) string {
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// normalize trims segment text, drops empty segments and fills Text if missing.
func normalize(t Transcript) Transcript {
	out := Transcript{Text: strings.TrimSpace(t.Text), Segments: make([]Segment, 0, len(t.Segments))}
	for _, s := range t.Segments {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text == "" {
			continue
		}
		out.Segments = append(out.Segments, s)
	}
	if out.Text == "" {
		out.Text = joinSegments(out.Segments)
	}
	return out
}
