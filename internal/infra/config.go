package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string

	// Inference providers.
	ReplicateAPIToken  string
	ReplicateBaseURL   string
	FalAPIKey          string
	FalBaseURL         string
	LumaAPIKey         string
	LumaBaseURL        string
	VideoModel         string
	RefinementModel    string
	RefinementStrength float64

	// Background removal service.
	SegmentationURL    string
	SegmentationAPIKey string

	// Durable object storage.
	StorageBackend     string // "supabase" or "filesystem"
	SupabaseURL        string
	SupabaseServiceKey string
	StorageBucket      string
	StoragePath        string
	StorageBaseURL     string

	// Shared rate-limit counter. Empty RedisAddr falls back to the
	// in-process soft guard.
	RedisAddr     string
	RedisPassword string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		ReplicateAPIToken:  os.Getenv("REPLICATE_API_TOKEN"),
		ReplicateBaseURL:   getEnv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
		FalAPIKey:          os.Getenv("FAL_API_KEY"),
		FalBaseURL:         getEnv("FAL_BASE_URL", "https://queue.fal.run"),
		LumaAPIKey:         os.Getenv("LUMA_API_KEY"),
		LumaBaseURL:        getEnv("LUMA_BASE_URL", "https://api.lumalabs.ai"),
		VideoModel:         getEnv("VIDEO_MODEL", "kwaivgi/kling-v1.6-pro"),
		RefinementModel:    getEnv("REFINEMENT_MODEL", "fal-ai/flux/dev/image-to-image"),
		RefinementStrength: getEnvFloat("REFINEMENT_STRENGTH", 0.22),

		SegmentationURL:    getEnv("SEGMENTATION_URL", "https://api.remove.bg/v1.0/removebg"),
		SegmentationAPIKey: os.Getenv("SEGMENTATION_API_KEY"),

		StorageBackend:     getEnv("STORAGE_BACKEND", "supabase"),
		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
		StorageBucket:      getEnv("STORAGE_BUCKET", "generated-videos"),
		StoragePath:        getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:     getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 60)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 20),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.StorageBackend == "supabase" && (cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "") {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required for supabase storage")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
