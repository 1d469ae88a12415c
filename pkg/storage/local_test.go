package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	store, err := NewLocal(LocalConfig{
		Dir:     t.TempDir(),
		Bucket:  "clips-extractor-media",
		BaseURL: "http://localhost:8000/",
	}, nil)
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	return store
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestLocalUploadAndPresign(t *testing.T) {
	store := newTestLocal(t)
	src := writeFile(t, "output.mp4", "video-bytes")
	ctx := context.Background()

	uri, err := store.Upload(ctx, src, OutputKey("job-1"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if uri != "s3://clips-extractor-media/outputs/job-1/output.mp4" {
		t.Fatalf("uri = %q", uri)
	}

	stored, err := os.ReadFile(filepath.Join(store.Root(), "clips-extractor-media", "outputs", "job-1", "output.mp4"))
	if err != nil {
		t.Fatalf("read stored object: %v", err)
	}
	if string(stored) != "video-bytes" {
		t.Fatalf("stored content = %q", stored)
	}

	u, err := store.PresignedURL(ctx, OutputKey("job-1"), 24*time.Hour)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if want := "http://localhost:8000/mock-s3/clips-extractor-media/outputs/job-1/output.mp4"; u != want {
		t.Fatalf("url = %q, want %q", u, want)
	}
}

func TestLocalPresignMissingObject(t *testing.T) {
	store := newTestLocal(t)
	_, err := store.PresignedURL(context.Background(), "outputs/none/output.mp4", time.Hour)
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("error = %v, want ErrObjectNotFound", err)
	}
}

func TestLocalUploadMissingSource(t *testing.T) {
	store := newTestLocal(t)
	if _, err := store.Upload(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"), "k"); err == nil {
		t.Fatal("expected error for missing source file")
	}
}

func TestLocalKeysCannotEscapeRoot(t *testing.T) {
	store := newTestLocal(t)
	src := writeFile(t, "a.mp4", "x")
	if _, err := store.Upload(context.Background(), src, "../../etc/evil.mp4"); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.Root(), "clips-extractor-media", "etc", "evil.mp4")); err != nil {
		t.Fatalf("object not kept under bucket root: %v", err)
	}
	if _, err := store.Upload(context.Background(), src, "  "); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestLocalDelete(t *testing.T) {
	store := newTestLocal(t)
	ctx := context.Background()
	src := writeFile(t, "a.mp3", "x")
	if _, err := store.Upload(ctx, src, TranscribeKey("a.mp3")); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := store.Delete(ctx, TranscribeKey("a.mp3")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, TranscribeKey("a.mp3")); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := store.PresignedURL(ctx, TranscribeKey("a.mp3"), time.Minute); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("presign after delete error = %v", err)
	}
}

func TestContentTypeForFilename(t *testing.T) {
	cases := map[string]string{
		"out.MP4":   "video/mp4",
		"audio.mp3": "audio/mpeg",
		"x.bin":     "application/octet-stream",
		"noext":     "application/octet-stream",
	}
	for name, want := range cases {
		if got := ContentTypeForFilename(name); got != want {
			t.Errorf("ContentTypeForFilename(%q) = %q, want %q", name, got, want)
		}
	}
}
