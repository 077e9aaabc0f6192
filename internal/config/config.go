package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/robfig/cron/v3"
)

// Config holds all application configuration.
// Values come from environment variables with sensible defaults; an optional
// YAML settings file (CONFIG_FILE) is layered on top.
//
// Environment Variables:
// Video Provider Configuration:
// - VIDEO_API_KEY: API key for the text-to-video provider (required)
// - VIDEO_BACKEND: Provider backend, "luma" or "runway" (default: luma)
// - VIDEO_API_URL: API endpoint URL override (optional)
// - VIDEO_MODEL: Model name override (optional)
// - VIDEO_RESOLUTION: Output resolution (default: 720p)
// - VIDEO_TIMEOUT: Per-request timeout in seconds (default: 30)
//
// Pipeline Configuration:
// - SCENE_SECONDS: Requested length of each clip (default: 9)
// - TARGET_TOTAL_SECONDS: Stop generating once this much footage exists (default: 60)
// - POLL_INTERVAL_SECONDS: Delay between generation status polls (default: 5)
// - POLL_MAX_ATTEMPTS: Polls before a generation is abandoned (default: 60)
// - ASPECT_RATIO: Clip aspect ratio (default: 16:9)
//
// Server Configuration:
// - PORT: HTTP listen port (default: 8080)
// - OUTPUT_DIR: Directory for merged videos (default: /data/output)
//
// Storage Configuration:
// - DB_PATH: SQLite database path (default: /data/storyreel.db)
// - PRUNE_CRON_EXPR: Schedule for pruning old terminal jobs (default: 0 3 * * *)
// - RETENTION_DAYS: Terminal jobs older than this are pruned (default: 14)

type Config struct {
	Provider ProviderConfig `json:"provider"`
	Pipeline PipelineConfig `json:"pipeline"`
	Server   ServerConfig   `json:"server"`
	Storage  StorageConfig  `json:"storage"`
}

// ProviderConfig holds the configuration for the text-to-video backend.
type ProviderConfig struct {
	Backend    string `json:"backend"`
	APIKey     string `json:"api_key"`
	APIURL     string `json:"api_url"`
	Model      string `json:"model"`
	Resolution string `json:"resolution"`
	Timeout    int    `json:"timeout"`
}

// PipelineConfig tunes the per-job generation pipeline.
type PipelineConfig struct {
	SceneSeconds       float64 `json:"scene_seconds"`
	TargetTotalSeconds float64 `json:"target_total_seconds"`
	PollIntervalSecs   int     `json:"poll_interval_seconds"`
	PollMaxAttempts    int     `json:"poll_max_attempts"`
	AspectRatio        string  `json:"aspect_ratio"`
}

type ServerConfig struct {
	Port      int    `json:"port"`
	OutputDir string `json:"output_dir"`
}

type StorageConfig struct {
	DBPath        string `json:"db_path"`
	PruneCronExpr string `json:"prune_cron_expr"`
	RetentionDays int    `json:"retention_days"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		Provider: ProviderConfig{
			Backend:    getEnvString("VIDEO_BACKEND", "luma"),
			APIKey:     getEnvString("VIDEO_API_KEY", ""),
			APIURL:     getEnvString("VIDEO_API_URL", ""),
			Model:      getEnvString("VIDEO_MODEL", ""),
			Resolution: getEnvString("VIDEO_RESOLUTION", "720p"),
			Timeout:    getEnvInt("VIDEO_TIMEOUT", 30),
		},
		Pipeline: PipelineConfig{
			SceneSeconds:       getEnvFloat("SCENE_SECONDS", 9),
			TargetTotalSeconds: getEnvFloat("TARGET_TOTAL_SECONDS", 60),
			PollIntervalSecs:   getEnvInt("POLL_INTERVAL_SECONDS", 5),
			PollMaxAttempts:    getEnvInt("POLL_MAX_ATTEMPTS", 60),
			AspectRatio:        getEnvString("ASPECT_RATIO", "16:9"),
		},
		Server: ServerConfig{
			Port:      getEnvInt("PORT", 8080),
			OutputDir: getEnvString("OUTPUT_DIR", "/data/output"),
		},
		Storage: StorageConfig{
			DBPath:        getEnvString("DB_PATH", "/data/storyreel.db"),
			PruneCronExpr: getEnvString("PRUNE_CRON_EXPR", "0 3 * * *"),
			RetentionDays: getEnvInt("RETENTION_DAYS", 14),
		},
	}

	// Apply custom options
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
	if c.Provider.APIKey == "" {
		return fmt.Errorf("VIDEO_API_KEY is required")
	}
	switch c.Provider.Backend {
	case "luma", "runway":
	default:
		return fmt.Errorf("unsupported VIDEO_BACKEND %q", c.Provider.Backend)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Server.Port)
	}
	if c.Pipeline.PollMaxAttempts <= 0 {
		return fmt.Errorf("POLL_MAX_ATTEMPTS must be positive")
	}
	if _, err := cron.ParseStandard(c.Storage.PruneCronExpr); err != nil {
		return fmt.Errorf("invalid PRUNE_CRON_EXPR: %w", err)
	}
	if c.Storage.RetentionDays <= 0 {
		return fmt.Errorf("RETENTION_DAYS must be positive")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
