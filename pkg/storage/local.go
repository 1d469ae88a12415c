package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// MockS3Prefix is the URL path under which the local store's files are served.
const MockS3Prefix = "/mock-s3"

// LocalConfig configures the disk-backed store.
type LocalConfig struct {
	// Dir is the root directory; objects live under Dir/Bucket/key.
	Dir    string
	Bucket string
	// BaseURL is the public origin that serves MockS3Prefix.
	BaseURL string
}

// Local is an ObjectStore that keeps objects on local disk and serves them over HTTP.
// It is used when no AWS credentials are configured.
type Local struct {
	cfg    LocalConfig
	logger *zap.Logger
}

// NewLocal creates the store root if needed.
func NewLocal(cfg LocalConfig, logger *zap.Logger) (*Local, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Bucket == "" {
		return nil, errors.New("local store: bucket is required")
	}
	if err := os.MkdirAll(filepath.Join(cfg.Dir, cfg.Bucket), 0o755); err != nil {
		return nil, fmt.Errorf("local store: create root: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	logger.Info("local object store ready", zap.String("dir", cfg.Dir), zap.String("bucket", cfg.Bucket))
	return &Local{cfg: cfg, logger: logger}, nil
}

// Root returns the directory served under MockS3Prefix.
func (l *Local) Root() string { return l.cfg.Dir }

// Upload copies the local file into the store and returns its s3:// style URI.
func (l *Local) Upload(ctx context.Context, localPath, key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open upload source: %w", err)
	}
	defer src.Close()

	dst := l.objectPath(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}
	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create object: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("commit object: %w", err)
	}
	l.logger.Info("object stored locally", zap.String("bucket", l.cfg.Bucket), zap.String("key", key))
	return fmt.Sprintf("s3://%s/%s", l.cfg.Bucket, key), nil
}

// PresignedURL returns the public URL for key. The ttl is accepted for parity with S3 but not enforced.
func (l *Local) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(l.objectPath(key)); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s: %w", key, ErrObjectNotFound)
		}
		return "", fmt.Errorf("stat object: %w", err)
	}
	escaped := make([]string, 0, 4)
	for _, part := range strings.Split(key, "/") {
		escaped = append(escaped, url.PathEscape(part))
	}
	return fmt.Sprintf("%s%s/%s/%s", l.cfg.BaseURL, MockS3Prefix, url.PathEscape(l.cfg.Bucket), strings.Join(escaped, "/")), nil
}

// Delete removes key from disk.
func (l *Local) Delete(ctx context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := os.Remove(l.objectPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (l *Local) objectPath(key string) string {
	return filepath.Join(l.cfg.Dir, l.cfg.Bucket, filepath.FromSlash(key))
}
