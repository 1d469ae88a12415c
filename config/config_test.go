package config

import (
	"testing"
	"time"
)

var envKeys = []string{
	"PORT", "AI_PROVIDER", "OPENAI_API_KEY", "AWS_REGION", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
	"S3_BUCKET_NAME", "EXTRACTION_ENABLED", "MAX_CONCURRENT_JOBS", "CLEANUP_DELAY_MIN", "CORS_ALLOWED_ORIGINS",
	"REDIS_ADDR", "PUBLIC_BASE_URL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Server.Port != "8000" {
		t.Errorf("port = %s", cfg.Server.Port)
	}
	if cfg.Pipeline.CleanupDelay != time.Hour || cfg.Pipeline.PresignTTL != 24*time.Hour {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	if !cfg.Pipeline.ExtractionEnabled || cfg.Pipeline.MaxConcurrentJobs != 4 {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	if len(cfg.Server.CORSAllowedOrigins) != 4 {
		t.Errorf("origins = %v", cfg.Server.CORSAllowedOrigins)
	}
	if cfg.Redis.Enabled() || cfg.AWS.Enabled() {
		t.Errorf("redis/aws should be disabled by default")
	}
	if got := cfg.ResolveProvider(); got != ProviderLocal {
		t.Errorf("provider = %s, want local", got)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("EXTRACTION_ENABLED", "false")
	t.Setenv("MAX_CONCURRENT_JOBS", "0")
	t.Setenv("CLEANUP_DELAY_MIN", "5")
	t.Setenv("CORS_ALLOWED_ORIGINS", " http://a , ,http://b")
	t.Setenv("PUBLIC_BASE_URL", "http://host:8000/")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Server.Port != "9000" || cfg.Pipeline.ExtractionEnabled {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Pipeline.MaxConcurrentJobs != 1 {
		t.Errorf("max concurrent = %d, want clamp to 1", cfg.Pipeline.MaxConcurrentJobs)
	}
	if cfg.Pipeline.CleanupDelay != 5*time.Minute {
		t.Errorf("cleanup delay = %s", cfg.Pipeline.CleanupDelay)
	}
	if o := cfg.Server.CORSAllowedOrigins; len(o) != 2 || o[0] != "http://a" || o[1] != "http://b" {
		t.Errorf("origins = %v", o)
	}
	if cfg.Storage.PublicBaseURL != "http://host:8000" {
		t.Errorf("base url = %s", cfg.Storage.PublicBaseURL)
	}
}

func TestResolveProvider(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"aws wins", map[string]string{"AWS_REGION": "us-east-1", "AWS_ACCESS_KEY_ID": "a", "AWS_SECRET_ACCESS_KEY": "s", "OPENAI_API_KEY": "k"}, ProviderBedrock},
		{"openai key", map[string]string{"OPENAI_API_KEY": "k"}, ProviderOpenAI},
		{"partial aws", map[string]string{"AWS_REGION": "us-east-1"}, ProviderLocal},
		{"explicit local", map[string]string{"AI_PROVIDER": "LOCAL", "OPENAI_API_KEY": "k"}, ProviderLocal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := FromEnv()
			if err != nil {
				t.Fatalf("FromEnv: %v", err)
			}
			if got := cfg.ResolveProvider(); got != tt.want {
				t.Fatalf("provider = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFromEnvRejectsBadProvider(t *testing.T) {
	tests := map[string]map[string]string{
		"unknown":        {"AI_PROVIDER": "gemini"},
		"openai no key":  {"AI_PROVIDER": "openai"},
		"bedrock no aws": {"AI_PROVIDER": "bedrock"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := FromEnv(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
