package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileSettings is the optional YAML settings file layered over the
// environment. Only non-zero fields override.
type FileSettings struct {
	Provider struct {
		Backend    string `yaml:"backend"`
		APIKey     string `yaml:"api_key"`
		APIURL     string `yaml:"api_url"`
		Model      string `yaml:"model"`
		Resolution string `yaml:"resolution"`
	} `yaml:"provider"`
	Pipeline struct {
		SceneSeconds       float64 `yaml:"scene_seconds"`
		TargetTotalSeconds float64 `yaml:"target_total_seconds"`
		PollIntervalSecs   int     `yaml:"poll_interval_seconds"`
		PollMaxAttempts    int     `yaml:"poll_max_attempts"`
		AspectRatio        string  `yaml:"aspect_ratio"`
	} `yaml:"pipeline"`
	Storage struct {
		PruneCronExpr string `yaml:"prune_cron_expr"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"storage"`
}

// SettingsFilePath returns the YAML overlay location, empty when no
// overlay is configured.
func SettingsFilePath() string {
	return os.Getenv("CONFIG_FILE")
}

// LoadFileSettings reads the YAML settings file. A missing file is not an
// error so a plain env-only deployment needs no extra setup.
func LoadFileSettings(path string) (FileSettings, bool, error) {
	var settings FileSettings
	if strings.TrimSpace(path) == "" {
		return settings, false, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, false, nil
		}
		return settings, false, fmt.Errorf("read settings file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &settings); err != nil {
		return settings, false, fmt.Errorf("parse settings file: %w", err)
	}
	return settings, true, nil
}

// WithFileSettings overlays non-zero file values onto the env config.
func WithFileSettings(settings FileSettings) Option {
	return func(c *Config) {
		if settings.Provider.Backend != "" {
			c.Provider.Backend = settings.Provider.Backend
		}
		if settings.Provider.APIKey != "" {
			c.Provider.APIKey = settings.Provider.APIKey
		}
		if settings.Provider.APIURL != "" {
			c.Provider.APIURL = settings.Provider.APIURL
		}
		if settings.Provider.Model != "" {
			c.Provider.Model = settings.Provider.Model
		}
		if settings.Provider.Resolution != "" {
			c.Provider.Resolution = settings.Provider.Resolution
		}
		if settings.Pipeline.SceneSeconds > 0 {
			c.Pipeline.SceneSeconds = settings.Pipeline.SceneSeconds
		}
		if settings.Pipeline.TargetTotalSeconds > 0 {
			c.Pipeline.TargetTotalSeconds = settings.Pipeline.TargetTotalSeconds
		}
		if settings.Pipeline.PollIntervalSecs > 0 {
			c.Pipeline.PollIntervalSecs = settings.Pipeline.PollIntervalSecs
		}
		if settings.Pipeline.PollMaxAttempts > 0 {
			c.Pipeline.PollMaxAttempts = settings.Pipeline.PollMaxAttempts
		}
		if settings.Pipeline.AspectRatio != "" {
			c.Pipeline.AspectRatio = settings.Pipeline.AspectRatio
		}
		if settings.Storage.PruneCronExpr != "" {
			c.Storage.PruneCronExpr = settings.Storage.PruneCronExpr
		}
		if settings.Storage.RetentionDays > 0 {
			c.Storage.RetentionDays = settings.Storage.RetentionDays
		}
	}
}
