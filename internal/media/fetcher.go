package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// directExtensions are URL path suffixes fetched with a plain HTTP GET instead of yt-dlp.
var directExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".webm": true,
	".mkv":  true,
	".m4a":  true,
	".mp3":  true,
	".wav":  true,
}

// FetcherConfig configures source downloads.
type FetcherConfig struct {
	YtDlpPath string
	Format    string
	Timeout   time.Duration
}

// Fetcher downloads a source URL into a job directory.
type Fetcher struct {
	cfg    FetcherConfig
	runner commandRunner
	http   *http.Client
	logger *zap.Logger
}

// NewFetcher creates a fetcher using yt-dlp for page URLs and HTTP for direct media links.
func NewFetcher(cfg FetcherConfig, logger *zap.Logger) *Fetcher {
	return newFetcher(cfg, execRunner{}, logger)
}

func newFetcher(cfg FetcherConfig, runner commandRunner, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.YtDlpPath == "" {
		cfg.YtDlpPath = "yt-dlp"
	}
	if cfg.Format == "" {
		cfg.Format = "worst[ext=mp4]/worst"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	return &Fetcher{cfg: cfg, runner: runner, http: &http.Client{}, logger: logger}
}

// Fetch downloads rawURL into dir as input.<ext> and returns the local path.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, dir string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("unsupported url %q", rawURL)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create job dir: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	ext := strings.ToLower(path.Ext(u.Path))
	if directExtensions[ext] {
		return f.download(ctx, u.String(), filepath.Join(dir, "input"+ext))
	}
	return f.ytdlp(ctx, u.String(), dir)
}

func (f *Fetcher) download(ctx context.Context, src, dst string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", fmt.Errorf("download request: %w", err)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download: unexpected status %d", resp.StatusCode)
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("download: create file: %w", err)
	}
	n, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("download: write file: %w", err)
	}
	if n == 0 {
		os.Remove(dst)
		return "", errors.New("download: empty response body")
	}
	f.logger.Info("media downloaded", zap.String("path", dst), zap.Int64("bytes", n))
	return dst, nil
}

func (f *Fetcher) ytdlp(ctx context.Context, src, dir string) (string, error) {
	args := []string{
		"-f", f.cfg.Format,
		"-o", filepath.Join(dir, "input.%(ext)s"),
		"--recode-video", "mp4",
		"--no-playlist",
		"--no-progress",
		"--quiet",
		"--print", "after_move:filepath",
		src,
	}
	res, err := f.runner.Run(ctx, f.cfg.YtDlpPath, args...)
	if err != nil {
		return "", commandError("yt-dlp", res, err)
	}

	if p := lastLine(res.Stdout); p != "" {
		if _, err := os.Stat(p); err == nil {
			f.logger.Info("media downloaded", zap.String("path", p))
			return p, nil
		}
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "input.*"))
	for _, m := range matches {
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		f.logger.Info("media downloaded", zap.String("path", m))
		return m, nil
	}
	return "", errors.New("yt-dlp finished without producing a file")
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
