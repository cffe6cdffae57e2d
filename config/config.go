// Package config provides configuration for the discovery and download engine
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/tomyanzhiyuan/ytmp3-scraper/model"
)

// EnvPrefix namespaces environment overrides, e.g. YTMP3_OUTPUT_DIR.
const EnvPrefix = "YTMP3"

// Config holds engine configuration
type Config struct {
	// Output configuration
	OutputDir    string             `yaml:"output_dir" json:"output_dir" mapstructure:"output_dir"`          // Root directory for downloaded files
	Format       model.OutputFormat `yaml:"format" json:"format" mapstructure:"format"`                      // "audio" or "video"
	AudioBitrate int                `yaml:"audio_bitrate" json:"audio_bitrate" mapstructure:"audio_bitrate"` // kbps for audio re-encode

	// Catalog provider configuration
	YouTubeAPIKey     string `yaml:"youtube_api_key" json:"-" mapstructure:"youtube_api_key"`                        // Empty selects the fallback extractor
	PageSize          int64  `yaml:"page_size" json:"page_size" mapstructure:"page_size"`                            // Upload list page size
	DetailConcurrency int    `yaml:"detail_concurrency" json:"detail_concurrency" mapstructure:"detail_concurrency"` // Parallel videos.list batches
	FallbackLimit     int    `yaml:"fallback_limit" json:"fallback_limit" mapstructure:"fallback_limit"`             // Max entries from a flat listing
	ResolverCacheSize int    `yaml:"resolver_cache_size" json:"resolver_cache_size" mapstructure:"resolver_cache_size"`

	// External tools
	YtDlpPath   string `yaml:"ytdlp_path" json:"ytdlp_path" mapstructure:"ytdlp_path"`
	CookiesPath string `yaml:"cookies_path" json:"cookies_path" mapstructure:"cookies_path"` // Optional cookie bundle for the media fetcher

	// Classification policy
	ShortMaxDuration time.Duration `yaml:"short_max_duration" json:"short_max_duration" mapstructure:"short_max_duration"`
	PortraitRatio    float64       `yaml:"portrait_ratio" json:"portrait_ratio" mapstructure:"portrait_ratio"`
	ProbeTimeout     time.Duration `yaml:"probe_timeout" json:"probe_timeout" mapstructure:"probe_timeout"`

	// Download policy
	MaxAttempts     int             `yaml:"max_attempts" json:"max_attempts" mapstructure:"max_attempts"`
	BackoffSchedule []time.Duration `yaml:"backoff_schedule" json:"backoff_schedule" mapstructure:"backoff_schedule"`
	JitterMin       time.Duration   `yaml:"jitter_min" json:"jitter_min" mapstructure:"jitter_min"`
	JitterMax       time.Duration   `yaml:"jitter_max" json:"jitter_max" mapstructure:"jitter_max"`
	FuzzyThreshold  float64         `yaml:"fuzzy_threshold" json:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`

	LogLevel string `yaml:"log_level" json:"log_level" mapstructure:"log_level"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		OutputDir:         "downloads",
		Format:            model.FormatAudio,
		AudioBitrate:      320,
		PageSize:          50,
		DetailConcurrency: 4,
		FallbackLimit:     10000,
		ResolverCacheSize: 256,
		YtDlpPath:         "yt-dlp",
		ShortMaxDuration:  180 * time.Second,
		PortraitRatio:     0.7,
		ProbeTimeout:      10 * time.Second,
		MaxAttempts:       4,
		BackoffSchedule: []time.Duration{
			5 * time.Minute,
			15 * time.Minute,
			30 * time.Minute,
			60 * time.Minute,
		},
		JitterMin:      5 * time.Second,
		JitterMax:      15 * time.Second,
		FuzzyThreshold: 0.7,
		LogLevel:       "info",
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}

	if c.Format != model.FormatAudio && c.Format != model.FormatVideo {
		return fmt.Errorf("invalid format '%s', must be one of: audio, video", c.Format)
	}

	if c.AudioBitrate < 1 {
		return fmt.Errorf("audio_bitrate must be at least 1")
	}

	if c.PageSize < 1 || c.PageSize > 50 {
		return fmt.Errorf("page_size must be between 1 and 50")
	}

	if c.DetailConcurrency < 1 {
		return fmt.Errorf("detail_concurrency must be at least 1")
	}

	if c.FallbackLimit < 1 {
		return fmt.Errorf("fallback_limit must be at least 1")
	}

	if c.ResolverCacheSize < 1 {
		return fmt.Errorf("resolver_cache_size must be at least 1")
	}

	if c.YtDlpPath == "" {
		return fmt.Errorf("ytdlp_path cannot be empty")
	}

	if c.ShortMaxDuration <= 0 {
		return fmt.Errorf("short_max_duration must be positive")
	}

	if c.PortraitRatio <= 0 {
		return fmt.Errorf("portrait_ratio must be positive")
	}

	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1")
	}

	if len(c.BackoffSchedule) == 0 {
		return fmt.Errorf("backoff_schedule cannot be empty")
	}

	if c.JitterMin < 0 || c.JitterMax < c.JitterMin {
		return fmt.Errorf("jitter bounds invalid: min=%s max=%s", c.JitterMin, c.JitterMax)
	}

	if c.FuzzyThreshold <= 0 || c.FuzzyThreshold > 1 {
		return fmt.Errorf("fuzzy_threshold must be in (0, 1]")
	}

	return nil
}

// Load builds a Config from defaults, an optional config file and the
// environment. A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to load .env file")
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The API key is conventionally exported without the prefix.
	if err := v.BindEnv("youtube_api_key", EnvPrefix+"_YOUTUBE_API_KEY", "YOUTUBE_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind youtube_api_key: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		log.Debug().Str("path", v.ConfigFileUsed()).Msg("Loaded config file")
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("format", string(d.Format))
	v.SetDefault("audio_bitrate", d.AudioBitrate)
	v.SetDefault("youtube_api_key", d.YouTubeAPIKey)
	v.SetDefault("page_size", d.PageSize)
	v.SetDefault("detail_concurrency", d.DetailConcurrency)
	v.SetDefault("fallback_limit", d.FallbackLimit)
	v.SetDefault("resolver_cache_size", d.ResolverCacheSize)
	v.SetDefault("ytdlp_path", d.YtDlpPath)
	v.SetDefault("cookies_path", d.CookiesPath)
	v.SetDefault("short_max_duration", d.ShortMaxDuration)
	v.SetDefault("portrait_ratio", d.PortraitRatio)
	v.SetDefault("probe_timeout", d.ProbeTimeout)
	v.SetDefault("max_attempts", d.MaxAttempts)
	v.SetDefault("backoff_schedule", d.BackoffSchedule)
	v.SetDefault("jitter_min", d.JitterMin)
	v.SetDefault("jitter_max", d.JitterMax)
	v.SetDefault("fuzzy_threshold", d.FuzzyThreshold)
	v.SetDefault("log_level", d.LogLevel)
}
