package selection

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/saru2020/ClipsExtractor/internal/transcription"
)

// maxTranscriptChars bounds the transcript text sent to a model.
const maxTranscriptChars = 12000

// ErrNoJSON is returned when a model answer contains no JSON clip list.
var ErrNoJSON = errors.New("no JSON clip list in model response")

const systemPrompt = `You are a helpful assistant that identifies relevant sections in a video based on its transcript.
Your task is to find sections that best match the user's topic or interest.

Guidelines:
1. Use ONLY the exact timestamps from the transcript segments
2. Select sections that are most relevant to the topic
3. Include enough context around the topic
4. Avoid overlapping clips
5. Keep clips concise but meaningful, between 1 and 30 seconds each

Return each section as a JSON object with start_time, end_time, and text fields.`

func userPrompt(t transcription.Transcript, prompt string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Given the following transcript with timestamps, identify sections that are most relevant to this topic: '%s'.\n\n", prompt)
	b.WriteString("Return each section as a JSON object with start_time and end_time in seconds, and the relevant text.\n")
	b.WriteString(`Format your entire response as a JSON object of the form {"clips": [{"start_time": 0.0, "end_time": 0.0, "text": "..."}]}.`)
	b.WriteString("\n\nTimestamped Transcript:\n")
	b.WriteString(transcriptLines(t, maxTranscriptChars))
	return b.String()
}

// transcriptLines renders "[start - end] text" lines, keeping whole lines up to budget characters.
func transcriptLines(t transcription.Transcript, budget int) string {
	if len(t.Segments) == 0 {
		text := strings.TrimSpace(t.Text)
		if len(text) > budget {
			text = text[:budget]
		}
		return text
	}
	var b strings.Builder
	for _, s := range t.Segments {
		line := fmt.Sprintf("[%.2f - %.2f] %s\n", s.Start, s.End, strings.TrimSpace(s.Text))
		if b.Len()+len(line) > budget {
			break
		}
		b.WriteString(line)
	}
	return b.String()
}

// parseCandidates extracts the clip list from a model answer. Accepts a bare array or an object with a
// "clips" key, optionally surrounded by prose or code fences.
func parseCandidates(text string) ([]Candidate, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var items []map[string]interface{}
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return nil, fmt.Errorf("decode clip list: %w", err)
		}
	} else {
		var wrapper struct {
			Clips []map[string]interface{} `json:"clips"`
		}
		if err := json.Unmarshal([]byte(raw), &wrapper); err != nil {
			return nil, fmt.Errorf("decode clip object: %w", err)
		}
		items = wrapper.Clips
	}

	cands := make([]Candidate, 0, len(items))
	for _, item := range items {
		cands = append(cands, Candidate{
			Start: numberField(item, "start_time", "start"),
			End:   numberField(item, "end_time", "end"),
			Text:  stringField(item, "text"),
		})
	}
	return cands, nil
}

func extractJSON(text string) (string, error) {
	s := strings.TrimSpace(text)
	if json.Valid([]byte(s)) && (strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")) {
		return s, nil
	}
	if i, j := strings.Index(s, "{"), strings.LastIndex(s, "}"); i >= 0 && j > i {
		if c := s[i : j+1]; json.Valid([]byte(c)) && strings.Contains(c, `"clips"`) {
			return c, nil
		}
	}
	if i, j := strings.Index(s, "["), strings.LastIndex(s, "]"); i >= 0 && j > i {
		if c := s[i : j+1]; json.Valid([]byte(c)) {
			return c, nil
		}
	}
	return "", ErrNoJSON
}

func numberField(item map[string]interface{}, keys ...string) *float64 {
	for _, k := range keys {
		v, ok := item[k]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			return &n
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return &f
			}
		}
		return nil
	}
	return nil
}

func stringField(item map[string]interface{}, key string) *string {
	if s, ok := item[key].(string); ok {
		return &s
	}
	return nil
}
