package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AI provider names accepted in AI_PROVIDER.
const (
	ProviderAuto    = "auto"
	ProviderBedrock = "bedrock"
	ProviderOpenAI  = "openai"
	ProviderLocal   = "local"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Media    MediaConfig
	Pipeline PipelineConfig
	AI       AIConfig
	AWS      AWSConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins []string // "*" allows all
}

// MediaConfig holds the external tool paths and the temp directory jobs work in.
type MediaConfig struct {
	TempPath        string
	YtDlpPath       string
	YtDlpFormat     string
	FFmpegPath      string
	FFprobePath     string
	DownloadTimeout time.Duration
}

// PipelineConfig holds job processing settings.
type PipelineConfig struct {
	CleanupDelay      time.Duration
	Retention         time.Duration // 0 keeps job records for the process lifetime
	MaxConcurrentJobs int
	PresignTTL        time.Duration
	ExtractionEnabled bool
}

// AIConfig selects and configures the transcription and selection backends.
type AIConfig struct {
	Provider              string
	BedrockModelID        string
	TranscribeLanguage    string
	TranscribePoll        time.Duration
	TranscribeTimeout     time.Duration
	OpenAIAPIKey          string
	OpenAIBaseURL         string
	OpenAIChatModel       string
	OpenAITranscribeModel string
}

// AWSConfig holds AWS credentials and the S3 bucket.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

// StorageConfig holds the local object store used when S3 is not configured.
type StorageConfig struct {
	LocalDir      string
	PublicBaseURL string
}

// RedisConfig holds Redis connection settings. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LogConfig controls the zap logger built in cmd/*.
type LogConfig struct {
	Level       string // debug, info, warn, error
	Development bool   // console encoding instead of JSON
}

// Enabled reports whether AWS credentials, region and bucket are all set.
func (c AWSConfig) Enabled() bool {
	return c.Region != "" && c.AccessKeyID != "" && c.SecretAccessKey != "" && c.Bucket != ""
}

// Enabled reports whether a Redis address is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// ResolveProvider maps "auto" to a concrete provider: bedrock with AWS configured,
// openai with an API key, local otherwise.
func (c *Config) ResolveProvider() string {
	if c.AI.Provider != ProviderAuto {
		return c.AI.Provider
	}
	switch {
	case c.AWS.Enabled():
		return ProviderBedrock
	case c.AI.OpenAIAPIKey != "":
		return ProviderOpenAI
	default:
		return ProviderLocal
	}
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)
	return FromEnv()
}

// FromEnv builds a Config from the current environment without reading any file.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8000"),
			ReadTimeout:  getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout: getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: splitTrim(getEnv("CORS_ALLOWED_ORIGINS",
				"http://localhost:3000,http://localhost:8000,http://127.0.0.1:3000,http://127.0.0.1:8000"), ","),
		},
		Media: MediaConfig{
			TempPath:        getEnv("MEDIA_TEMP_PATH", "/tmp/clips-extractor-media"),
			YtDlpPath:       getEnv("YTDLP_PATH", "yt-dlp"),
			YtDlpFormat:     getEnv("YTDLP_FORMAT", "worst[ext=mp4]/worst"),
			FFmpegPath:      getEnv("FFMPEG_PATH", "ffmpeg"),
			FFprobePath:     getEnv("FFPROBE_PATH", "ffprobe"),
			DownloadTimeout: time.Duration(getEnvInt("DOWNLOAD_TIMEOUT_MIN", 30)) * time.Minute,
		},
		Pipeline: PipelineConfig{
			CleanupDelay:      time.Duration(getEnvInt("CLEANUP_DELAY_MIN", 60)) * time.Minute,
			Retention:         time.Duration(getEnvInt("JOB_RETENTION_MIN", 0)) * time.Minute,
			MaxConcurrentJobs: getEnvInt("MAX_CONCURRENT_JOBS", 4),
			PresignTTL:        time.Duration(getEnvInt("PRESIGN_EXPIRE_HOURS", 24)) * time.Hour,
			ExtractionEnabled: getEnvBool("EXTRACTION_ENABLED", true),
		},
		AI: AIConfig{
			Provider:              strings.ToLower(getEnv("AI_PROVIDER", ProviderAuto)),
			BedrockModelID:        getEnv("BEDROCK_MODEL_ID", ""),
			TranscribeLanguage:    getEnv("TRANSCRIBE_LANGUAGE", "en-US"),
			TranscribePoll:        time.Duration(getEnvInt("TRANSCRIBE_POLL_SEC", 5)) * time.Second,
			TranscribeTimeout:     time.Duration(getEnvInt("TRANSCRIBE_TIMEOUT_MIN", 30)) * time.Minute,
			OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", ""),
			OpenAIChatModel:       getEnv("OPENAI_CHAT_MODEL", ""),
			OpenAITranscribeModel: getEnv("OPENAI_TRANSCRIBE_MODEL", ""),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Bucket:          getEnv("S3_BUCKET_NAME", "clips-extractor-media"),
		},
		Storage: StorageConfig{
			LocalDir:      getEnv("LOCAL_STORAGE_DIR", "./local_storage"),
			PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8000"), "/"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Log: LogConfig{
			Level:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Development: getEnvBool("LOG_DEVELOPMENT", false),
		},
	}

	switch cfg.AI.Provider {
	case ProviderAuto, ProviderBedrock, ProviderOpenAI, ProviderLocal:
	default:
		return nil, fmt.Errorf("invalid AI_PROVIDER %q", cfg.AI.Provider)
	}
	if cfg.AI.Provider == ProviderOpenAI && cfg.AI.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("AI_PROVIDER=openai requires OPENAI_API_KEY")
	}
	if cfg.AI.Provider == ProviderBedrock && cfg.AWS.Region == "" {
		return nil, fmt.Errorf("AI_PROVIDER=bedrock requires AWS_REGION")
	}
	if cfg.Pipeline.MaxConcurrentJobs < 1 {
		cfg.Pipeline.MaxConcurrentJobs = 1
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
