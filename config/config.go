// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (TINYLLM_ prefix, runtime override)
//  2. Config file (tinyllm.yaml in the working directory, optional)
//  3. Default values (sensible defaults for quick start)
//
// The settings struct is consumed by the serving core at construction time;
// none of the components read configuration ad hoc after startup.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidMaxFileSize indicates the upload size ceiling is out of range.
	ErrInvalidMaxFileSize = errors.New("invalid max file size")

	// ErrInvalidCacheTTL indicates the cache TTL is out of range.
	ErrInvalidCacheTTL = errors.New("invalid cache TTL")

	// ErrNoAllowedExtensions indicates the upload extension allow-list is empty.
	ErrNoAllowedExtensions = errors.New("no allowed extensions configured")

	// ErrInvalidInterval indicates a cleanup interval is not positive.
	ErrInvalidInterval = errors.New("invalid cleanup interval")
)

// Settings holds the configuration surface consumed by the serving core.
type Settings struct {
	// File processing
	UploadDir         string   `mapstructure:"upload_dir"`
	CacheDir          string   `mapstructure:"cache_dir"`
	MaxFileSizeMB     int      `mapstructure:"max_file_size_mb"`
	CacheTTLHours     int      `mapstructure:"cache_ttl_hours"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`

	// Cleanup scheduling
	FileCleanupInterval  time.Duration `mapstructure:"file_cleanup_interval"`
	CacheCleanupInterval time.Duration `mapstructure:"cache_cleanup_interval"`
	FileMaxAge           time.Duration `mapstructure:"file_max_age"`

	// Generation defaults
	DefaultMaxTokens   int     `mapstructure:"default_max_tokens"`
	DefaultTemperature float64 `mapstructure:"default_temperature"`
	DefaultTopP        float64 `mapstructure:"default_top_p"`

	// Streaming
	StreamGracePeriod time.Duration `mapstructure:"stream_grace_period"`

	// External APIs
	MeteoblueAPIKey string        `mapstructure:"meteoblue_api_key"`
	GeocodeTimeout  time.Duration `mapstructure:"geocode_timeout"`
	WeatherTimeout  time.Duration `mapstructure:"weather_timeout"`
	SearchTimeout   time.Duration `mapstructure:"search_timeout"`
}

// MaxFileSizeBytes returns the upload size ceiling in bytes.
func (s *Settings) MaxFileSizeBytes() int64 {
	return int64(s.MaxFileSizeMB) * 1024 * 1024
}

// CacheTTL returns the document cache TTL as a duration.
func (s *Settings) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLHours) * time.Hour
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("upload_dir", "./uploads")
	v.SetDefault("cache_dir", "./cache")
	v.SetDefault("max_file_size_mb", 50)
	v.SetDefault("cache_ttl_hours", 24)
	v.SetDefault("allowed_extensions", []string{
		"pdf", "docx", "pptx", "xlsx", "png", "jpg", "jpeg", "gif", "txt", "md",
	})
	v.SetDefault("file_cleanup_interval", time.Hour)
	v.SetDefault("cache_cleanup_interval", 6*time.Hour)
	v.SetDefault("file_max_age", time.Hour)
	v.SetDefault("default_max_tokens", 100)
	v.SetDefault("default_temperature", 1.0)
	v.SetDefault("default_top_p", 1.0)
	v.SetDefault("stream_grace_period", time.Second)
	v.SetDefault("meteoblue_api_key", "demo")
	v.SetDefault("geocode_timeout", 5*time.Second)
	v.SetDefault("weather_timeout", 10*time.Second)
	v.SetDefault("search_timeout", 10*time.Second)
}

// Load reads settings from defaults, an optional tinyllm.yaml and the
// environment (TINYLLM_ prefix). A missing config file is not an error.
func Load() (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("tinyllm")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TINYLLM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Default returns the built-in settings without consulting files or the
// environment. Used by tests and examples.
func Default() *Settings {
	v := viper.New()
	setDefaults(v)
	var s Settings
	// Unmarshal of pure defaults cannot fail.
	_ = v.Unmarshal(&s)
	return &s
}

// Validate performs range checks on the loaded settings.
func (s *Settings) Validate() error {
	if s.MaxFileSizeMB <= 0 || s.MaxFileSizeMB > 1024 {
		return fmt.Errorf("%w: %d MB (want 1-1024)", ErrInvalidMaxFileSize, s.MaxFileSizeMB)
	}
	if s.CacheTTLHours <= 0 {
		return fmt.Errorf("%w: %d hours", ErrInvalidCacheTTL, s.CacheTTLHours)
	}
	if len(s.AllowedExtensions) == 0 {
		return ErrNoAllowedExtensions
	}
	if s.FileCleanupInterval <= 0 || s.CacheCleanupInterval <= 0 {
		return ErrInvalidInterval
	}
	return nil
}
