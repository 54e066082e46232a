package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
// Values come from environment variables (a local .env file is loaded
// when present) with sensible defaults.
//
// Environment Variables:
// Inference Configuration:
// - INFERENCE_API_KEY: API key for the inference provider (required)
// - INFERENCE_API_URL: OpenAI-compatible API endpoint (default: https://api.openai.com/v1)
// - INFERENCE_VISION_MODEL: vision model name (default: gpt-4o-mini)
// - INFERENCE_TRANSCRIBE_MODEL: speech-to-text model name (default: whisper-1)
// - INFERENCE_MAX_TOKENS: max tokens for analysis responses (default: 1200)
// - INFERENCE_TEMPERATURE: sampling temperature (default: 0.3)
// - INFERENCE_TIMEOUT: request timeout in seconds (default: 120)
//
// Pipeline Configuration:
// - FRAME_INTERVAL_SECONDS: frame sampling interval (default: 5)
// - MAX_FRAMES: maximum frames submitted per clip (default: 5)
// - MAX_DOWNLOAD_BYTES: direct-download size ceiling (default: 524288000)
// - DOWNLOAD_TIMEOUT: download timeout in seconds (default: 300)
// - WORK_DIR: root for per-clip working directories (default: OS temp)
//
// Batch Configuration:
// - BATCH_WORKERS: worker pool size for batch jobs (default: 4)
// - JOB_TTL_HOURS: retention for finished batch jobs (default: 24)
// - JOB_PURGE_CRON: cron expression for the purge sweep (default: "0 * * * *")
//
// Catalog Configuration:
// - PATCHWORK_API_URL: clip catalog base URL (default: https://patchwork.gobbo.gg)
// - PATCHWORK_API_KEY: clip catalog API key (optional)
//
// Store / Server Configuration:
// - DB_PATH: sqlite database path (default: data/clipsight.db)
// - HTTP_ADDR: listen address (default: :5050)
// - LOG_LEVEL: debug|info|warn|error (default: info)

type Config struct {
	Inference InferenceConfig `json:"inference"`
	Pipeline  PipelineConfig  `json:"pipeline"`
	Batch     BatchConfig     `json:"batch"`
	Catalog   CatalogConfig   `json:"catalog"`
	Store     StoreConfig     `json:"store"`
	Server    ServerConfig    `json:"server"`
}

// InferenceConfig holds the configuration for the inference client.
// Any OpenAI-compatible provider works.
type InferenceConfig struct {
	APIKey          string  `json:"api_key"`
	APIURL          string  `json:"api_url"`
	VisionModel     string  `json:"vision_model"`
	TranscribeModel string  `json:"transcribe_model"`
	MaxTokens       int     `json:"max_tokens"`
	Temperature     float64 `json:"temperature"`
	Timeout         int     `json:"timeout"`
}

// PipelineConfig holds per-clip pipeline tuning.
type PipelineConfig struct {
	FrameIntervalSeconds int    `json:"frame_interval_seconds"`
	MaxFrames            int    `json:"max_frames"`
	MaxDownloadBytes     int64  `json:"max_download_bytes"`
	DownloadTimeout      int    `json:"download_timeout"`
	WorkDir              string `json:"work_dir"`
}

// BatchConfig holds batch tracker tuning.
type BatchConfig struct {
	Workers      int    `json:"workers"`
	JobTTLHours  int    `json:"job_ttl_hours"`
	JobPurgeCron string `json:"job_purge_cron"`
}

// CatalogConfig holds the configuration for the clip catalog provider.
type CatalogConfig struct {
	APIURL string `json:"api_url"`
	APIKey string `json:"api_key"`
}

type StoreConfig struct {
	DBPath string `json:"db_path"`
}

type ServerConfig struct {
	Addr     string `json:"addr"`
	LogLevel string `json:"log_level"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment
// variables and options.
func NewFromEnv(opts ...Option) (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		Inference: InferenceConfig{
			APIKey:          getEnvString("INFERENCE_API_KEY", ""),
			APIURL:          getEnvString("INFERENCE_API_URL", "https://api.openai.com/v1"),
			VisionModel:     getEnvString("INFERENCE_VISION_MODEL", "gpt-4o-mini"),
			TranscribeModel: getEnvString("INFERENCE_TRANSCRIBE_MODEL", "whisper-1"),
			MaxTokens:       getEnvInt("INFERENCE_MAX_TOKENS", 1200),
			Temperature:     getEnvFloat("INFERENCE_TEMPERATURE", 0.3),
			Timeout:         getEnvInt("INFERENCE_TIMEOUT", 120),
		},
		Pipeline: PipelineConfig{
			FrameIntervalSeconds: getEnvInt("FRAME_INTERVAL_SECONDS", 5),
			MaxFrames:            getEnvInt("MAX_FRAMES", 5),
			MaxDownloadBytes:     getEnvInt64("MAX_DOWNLOAD_BYTES", 500*1024*1024),
			DownloadTimeout:      getEnvInt("DOWNLOAD_TIMEOUT", 300),
			WorkDir:              getEnvString("WORK_DIR", os.TempDir()),
		},
		Batch: BatchConfig{
			Workers:      getEnvInt("BATCH_WORKERS", 4),
			JobTTLHours:  getEnvInt("JOB_TTL_HOURS", 24),
			JobPurgeCron: getEnvString("JOB_PURGE_CRON", "0 * * * *"),
		},
		Catalog: CatalogConfig{
			APIURL: getEnvString("PATCHWORK_API_URL", "https://patchwork.gobbo.gg"),
			APIKey: getEnvString("PATCHWORK_API_KEY", ""),
		},
		Store: StoreConfig{
			DBPath: getEnvString("DB_PATH", "data/clipsight.db"),
		},
		Server: ServerConfig{
			Addr:     getEnvString("HTTP_ADDR", ":5050"),
			LogLevel: getEnvString("LOG_LEVEL", "info"),
		},
	}

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.Inference.APIKey == "" {
		return fmt.Errorf("INFERENCE_API_KEY is required")
	}
	if c.Pipeline.FrameIntervalSeconds <= 0 {
		return fmt.Errorf("FRAME_INTERVAL_SECONDS must be positive")
	}
	if c.Pipeline.MaxFrames <= 0 {
		return fmt.Errorf("MAX_FRAMES must be positive")
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("BATCH_WORKERS must be positive")
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
