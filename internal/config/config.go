package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the main configuration structure
type Config struct {
	SourceDirectory     string            `mapstructure:"source_directory"`
	TargetDirectory     *string           `mapstructure:"target_directory"`
	SupportedExtensions []string          `mapstructure:"supported_extensions"`
	Compression         CompressionConfig `mapstructure:"compression"`
	Performance         PerformanceConfig `mapstructure:"performance"`
	Security            SecurityConfig    `mapstructure:"security"`
	Logging             LoggingConfig     `mapstructure:"logging"`
}

// CompressionConfig contains the dimension and byte-size limits and the
// quality search parameters for image normalization
type CompressionConfig struct {
	MaxLongSide    int     `mapstructure:"max_long_side"`
	MaxShortSide   int     `mapstructure:"max_short_side"`
	MaxSizeBytes   int64   `mapstructure:"max_size_bytes"`
	MimeType       string  `mapstructure:"mime_type"`
	InitialQuality float64 `mapstructure:"initial_quality"`
	MinQuality     float64 `mapstructure:"min_quality"`
	QualityStep    float64 `mapstructure:"quality_step"`
}

// PerformanceConfig contains performance tuning settings
type PerformanceConfig struct {
	WorkerThreads int  `mapstructure:"worker_threads"`
	ShowProgress  bool `mapstructure:"show_progress"`
}

// SecurityConfig contains security and safety settings
type SecurityConfig struct {
	DryRun         bool `mapstructure:"dry_run"`
	MaxFilesPerRun int  `mapstructure:"max_files_per_run"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		SupportedExtensions: []string{
			".jpg", ".jpeg", ".png", ".gif", ".webp", ".tiff", ".tif", ".bmp",
		},
		Compression: CompressionConfig{
			MaxLongSide:    1568,
			MaxShortSide:   768,
			MaxSizeBytes:   19 * 1024 * 1024,
			MimeType:       "image/webp",
			InitialQuality: 0.92,
			MinQuality:     0.5,
			QualityStep:    0.07,
		},
		Performance: PerformanceConfig{
			WorkerThreads: 4,
			ShowProgress:  true,
		},
		Security: SecurityConfig{
			DryRun:         false,
			MaxFilesPerRun: 0, // 0 means no limit
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "image-normalizer.log",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		// Look for config file in current directory and home directory
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.image-normalizer")
		viper.AddConfigPath("/etc/image-normalizer")
	}

	// Enable environment variable support
	viper.SetEnvPrefix("IMAGE_NORMALIZER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Try to read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	// Unmarshal config
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate and normalize config
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	comp := &c.Compression

	if comp.MaxLongSide <= 0 {
		return fmt.Errorf("max_long_side must be positive, got %d", comp.MaxLongSide)
	}
	if comp.MaxShortSide <= 0 {
		return fmt.Errorf("max_short_side must be positive, got %d", comp.MaxShortSide)
	}
	if comp.MaxSizeBytes <= 0 {
		return fmt.Errorf("max_size_bytes must be positive, got %d", comp.MaxSizeBytes)
	}
	if !strings.HasPrefix(comp.MimeType, "image/") {
		return fmt.Errorf("mime_type must be an image mime type, got %q", comp.MimeType)
	}

	// QualityStep > 0 is required for loop termination
	if comp.QualityStep <= 0 {
		return fmt.Errorf("quality_step must be positive, got %g", comp.QualityStep)
	}
	if comp.InitialQuality <= 0 || comp.InitialQuality > 1 {
		return fmt.Errorf("initial_quality must be in (0, 1], got %g", comp.InitialQuality)
	}
	if comp.MinQuality <= 0 || comp.MinQuality >= comp.InitialQuality {
		return fmt.Errorf("min_quality must be in (0, initial_quality), got %g", comp.MinQuality)
	}

	// Validate extensions format
	c.SupportedExtensions = normalizeExtensions(c.SupportedExtensions)

	// Validate performance settings
	if c.Performance.WorkerThreads <= 0 {
		c.Performance.WorkerThreads = 4
	}

	// Validate logging settings
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// GetTargetDirectory returns the target directory or source directory if target is not set
func (c *Config) GetTargetDirectory() string {
	if c.TargetDirectory != nil && *c.TargetDirectory != "" {
		return *c.TargetDirectory
	}
	return c.SourceDirectory
}

// IsSupportedExtension checks if the extension belongs to a file the
// batch pipeline should pick up when walking directories
func (c *Config) IsSupportedExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, supportedExt := range c.SupportedExtensions {
		if ext == supportedExt {
			return true
		}
	}
	return false
}

// Helper functions

func normalizeExtensions(extensions []string) []string {
	normalized := make([]string, len(extensions))
	for i, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized[i] = ext
	}
	return normalized
}
