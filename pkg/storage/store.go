package storage

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"
)

const (
	// FolderOutputs is the key prefix for combined highlight videos.
	FolderOutputs = "outputs"
	// FolderTranscribe is the key prefix for audio staged for transcription.
	FolderTranscribe = "transcribe"
	// OutputFilename is the object name of a job's combined video.
	OutputFilename = "output.mp4"
)

// ErrObjectNotFound is returned when a key has no stored object.
var ErrObjectNotFound = errors.New("object not found")

// contentTypes maps media extensions to MIME types for uploads.
var contentTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".wav":  "audio/wav",
	".json": "application/json",
}

// ObjectStore stores files under keys and issues time-limited download URLs.
type ObjectStore interface {
	// Upload copies the file at localPath to key and returns the object's URI.
	Upload(ctx context.Context, localPath, key string) (string, error)
	// PresignedURL returns a URL that can fetch key until ttl elapses.
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// OutputKey returns the key for a job's combined video: outputs/{job_id}/output.mp4.
func OutputKey(jobID string) string {
	return path.Join(FolderOutputs, jobID, OutputFilename)
}

// TranscribeKey returns the key for staged audio: transcribe/{name}.
func TranscribeKey(name string) string {
	return path.Join(FolderTranscribe, path.Base(name))
}

// ContentTypeForFilename returns the MIME type for a filename extension.
func ContentTypeForFilename(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

func cleanKey(key string) (string, error) {
	k := strings.TrimPrefix(path.Clean("/"+strings.TrimSpace(key)), "/")
	if k == "" || k == "." {
		return "", errors.New("empty object key")
	}
	return k, nil
}
