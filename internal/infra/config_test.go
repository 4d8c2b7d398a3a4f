package infra

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/app")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_BACKEND", "filesystem")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Port != "8080" || cfg.AppEnv != "development" {
		t.Fatalf("defaults = %s/%s", cfg.Port, cfg.AppEnv)
	}
	if cfg.VideoModel != "kwaivgi/kling-v1.6-pro" {
		t.Fatalf("video model = %q", cfg.VideoModel)
	}
	if cfg.RefinementModel != "fal-ai/flux/dev/image-to-image" {
		t.Fatalf("refinement model = %q", cfg.RefinementModel)
	}
	if cfg.RefinementStrength != 0.22 {
		t.Fatalf("refinement strength = %v", cfg.RefinementStrength)
	}
	if cfg.RateLimitPerMin != 20 {
		t.Fatalf("rate limit = %d", cfg.RateLimitPerMin)
	}
	if cfg.HTTPWriteTimeout != 60*time.Second {
		t.Fatalf("write timeout = %s", cfg.HTTPWriteTimeout)
	}
}

func TestLoadConfigRequiredVars(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "secret")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("missing DATABASE_URL accepted")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/app")
	t.Setenv("JWT_SECRET", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("missing JWT_SECRET accepted")
	}
}

func TestLoadConfigSupabaseBackendNeedsCredentials(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/app")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_BACKEND", "supabase")
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_SERVICE_KEY", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("supabase backend without credentials accepted")
	}

	t.Setenv("SUPABASE_URL", "https://proj.supabase.co")
	t.Setenv("SUPABASE_SERVICE_KEY", "service-key")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.StorageBucket != "generated-videos" {
		t.Fatalf("bucket = %q", cfg.StorageBucket)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RATE_LIMIT_PER_MINUTE", "5")
	t.Setenv("REFINEMENT_STRENGTH", "0.4")
	t.Setenv("VIDEO_MODEL", "kwaivgi/kling-v2.0")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.RateLimitPerMin != 5 || cfg.RefinementStrength != 0.4 || cfg.VideoModel != "kwaivgi/kling-v2.0" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}
