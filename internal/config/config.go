package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the narration stitching service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	OutputDir string

	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string
	ElevenLabsTimeout time.Duration
	DefaultVoiceID    string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	PlannerModel  string
	WhisperModel  string

	FFmpegPath        string
	ClauseParallelism int

	DatabaseURL  string
	JobRetention time.Duration
}

// Load reads environment variables and applies safe defaults. A local .env
// file is honored when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		BindAddr:          envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:  envOrDefault("APP_METRICS_NAMESPACE", "luma"),
		AllowAnyOrigin:    false,
		OutputDir:         envOrDefault("APP_OUTPUT_DIR", "generated_audio"),
		ElevenLabsBaseURL: envOrDefault("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		// Default to a warm narration voice when a request omits one.
		DefaultVoiceID:    envOrDefault("ELEVENLABS_DEFAULT_VOICE_ID", "cgSgspJ2msm6clMCkdW9"),
		ElevenLabsAPIKey:  stringsTrimSpace("ELEVENLABS_API_KEY"),
		OpenAIAPIKey:      stringsTrimSpace("OPENAI_API_KEY"),
		OpenAIBaseURL:     stringsTrimSpace("OPENAI_BASE_URL"),
		PlannerModel:      envOrDefault("APP_PLANNER_MODEL", "gpt-4o"),
		WhisperModel:      envOrDefault("APP_WHISPER_MODEL", "whisper-1"),
		FFmpegPath:        envOrDefault("APP_FFMPEG_PATH", "ffmpeg"),
		ClauseParallelism: 4,
		DatabaseURL:       stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:   15 * time.Second,
		ElevenLabsTimeout: 240 * time.Second,
		JobRetention:      30 * time.Minute,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ElevenLabsTimeout, err = durationFromEnv("ELEVENLABS_TIMEOUT", cfg.ElevenLabsTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.JobRetention, err = durationFromEnv("APP_JOB_RETENTION", cfg.JobRetention)
	if err != nil {
		return Config{}, err
	}
	cfg.ClauseParallelism, err = intFromEnv("APP_CLAUSE_PARALLELISM", cfg.ClauseParallelism)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.ElevenLabsTimeout < time.Second {
		return Config{}, fmt.Errorf("ELEVENLABS_TIMEOUT must be at least 1s")
	}
	if cfg.JobRetention < time.Minute {
		return Config{}, fmt.Errorf("APP_JOB_RETENTION must be at least 1m")
	}
	if cfg.ClauseParallelism <= 0 {
		return Config{}, fmt.Errorf("APP_CLAUSE_PARALLELISM must be positive")
	}
	if cfg.OutputDir == "" {
		return Config{}, fmt.Errorf("APP_OUTPUT_DIR must not be empty")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
