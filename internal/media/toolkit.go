package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ToolkitConfig names the ffmpeg binaries.
type ToolkitConfig struct {
	FFmpegPath  string
	FFprobePath string
}

// Toolkit wraps ffmpeg and ffprobe.
type Toolkit struct {
	ffmpeg  string
	ffprobe string
	runner  commandRunner
	logger  *zap.Logger
}

// NewToolkit creates a toolkit that shells out to the configured binaries.
func NewToolkit(cfg ToolkitConfig, logger *zap.Logger) *Toolkit {
	return newToolkit(cfg, execRunner{}, logger)
}

func newToolkit(cfg ToolkitConfig, runner commandRunner, logger *zap.Logger) *Toolkit {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	return &Toolkit{ffmpeg: cfg.FFmpegPath, ffprobe: cfg.FFprobePath, runner: runner, logger: logger}
}

// ExtractAudio writes the audio track of videoPath to an mp3 next to it and returns its path.
func (t *Toolkit) ExtractAudio(ctx context.Context, videoPath string) (string, error) {
	out := filepath.Join(filepath.Dir(videoPath), "audio.mp3")
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", videoPath,
		"-q:a", "0",
		"-map", "a",
		out,
	}
	if res, err := t.runner.Run(ctx, t.ffmpeg, args...); err != nil {
		return "", commandError("ffmpeg extract audio", res, err)
	}
	if err := nonEmpty(out); err != nil {
		return "", fmt.Errorf("ffmpeg extract audio: %w", err)
	}
	return out, nil
}

// Duration returns the container duration of path in seconds.
func (t *Toolkit) Duration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
	res, err := t.runner.Run(ctx, t.ffprobe, args...)
	if err != nil {
		return 0, commandError("ffprobe duration", res, err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(res.Stdout), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: parse %q: %w", strings.TrimSpace(res.Stdout), err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("ffprobe duration: non-positive duration %v", d)
	}
	return d, nil
}

// Cut re-encodes the [start, end) range of path into outPath.
func (t *Toolkit) Cut(ctx context.Context, path string, start, end float64, outPath string) (string, error) {
	if end <= start {
		return "", fmt.Errorf("cut: empty range %.3f-%.3f", start, end)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("cut: create dir: %w", err)
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", formatSeconds(start),
		"-i", path,
		"-t", formatSeconds(end - start),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-c:a", "aac",
		"-movflags", "+faststart",
		outPath,
	}
	if res, err := t.runner.Run(ctx, t.ffmpeg, args...); err != nil {
		return "", commandError("ffmpeg cut", res, err)
	}
	if err := nonEmpty(outPath); err != nil {
		return "", fmt.Errorf("ffmpeg cut: %w", err)
	}
	return outPath, nil
}

// Concat joins clips in order into outPath with stream copy. It returns "" with a nil error when
// there is nothing to join or ffmpeg produced no usable file.
func (t *Toolkit) Concat(ctx context.Context, clips []string, outPath string) (string, error) {
	if len(clips) == 0 {
		return "", nil
	}
	listPath := outPath + ".txt"
	var b strings.Builder
	for _, c := range clips {
		abs, err := filepath.Abs(c)
		if err != nil {
			abs = c
		}
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	if err := os.WriteFile(listPath, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("concat: write list: %w", err)
	}
	defer os.Remove(listPath)

	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outPath,
	}
	if res, err := t.runner.Run(ctx, t.ffmpeg, args...); err != nil {
		return "", commandError("ffmpeg concat", res, err)
	}
	if err := nonEmpty(outPath); err != nil {
		t.logger.Warn("concat produced no output", zap.String("output", outPath), zap.Error(err))
		return "", nil
	}
	return outPath, nil
}

func nonEmpty(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return errors.New("output file is empty")
	}
	return nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
