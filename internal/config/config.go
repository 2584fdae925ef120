// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Capture   CaptureConfig   `mapstructure:"capture" yaml:"capture"`
	Detector  DetectorConfig  `mapstructure:"detector" yaml:"detector"`
	Detection DetectionConfig `mapstructure:"detection" yaml:"detection"`
	Locator   LocatorConfig   `mapstructure:"locator" yaml:"locator"`
	Executor  ExecutorConfig  `mapstructure:"executor" yaml:"executor"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// CaptureConfig bounds the screen region frames are taken from.
type CaptureConfig struct {
	X int `mapstructure:"x" yaml:"x"`
	Y int `mapstructure:"y" yaml:"y"`
	W int `mapstructure:"w" yaml:"w"`
	H int `mapstructure:"h" yaml:"h"`
	// ReplayDir, when set, feeds the runtime from a directory of PNG frames
	// instead of a live screen grabber. Development and test aid.
	ReplayDir string `mapstructure:"replay_dir" yaml:"replay_dir"`
}

// DetectorConfig points at the external object-detection service.
type DetectorConfig struct {
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// DetectionConfig tunes the detection cache and the background loop.
type DetectionConfig struct {
	// Confidence is the default query floor applied when an element query
	// does not carry its own override.
	Confidence float64 `mapstructure:"confidence" yaml:"confidence"`
	// MemoryTimeout is the cache staleness window; cached detections older
	// than this are never returned.
	MemoryTimeout time.Duration `mapstructure:"memory_timeout" yaml:"memory_timeout"`
	// Background selects continuous capture-detect-update cycles over
	// on-demand detection per query. Fixed for the life of a session.
	Background bool `mapstructure:"background" yaml:"background"`
	// Interval is the background loop cadence.
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// LocatorConfig holds the element locator defaults.
type LocatorConfig struct {
	WaitTimeout  time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// ExecutorConfig governs action pacing, retries and safety gating.
type ExecutorConfig struct {
	// Cooldown is the minimum spacing between two consecutive actions.
	Cooldown time.Duration `mapstructure:"cooldown" yaml:"cooldown"`
	// MaxRetries is the per-action retry budget.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
	// RetryDelay is the fixed wait between attempts.
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	// DragDuration is how long a press-move-release sequence takes.
	DragDuration time.Duration `mapstructure:"drag_duration" yaml:"drag_duration"`
	// DragSteps is the number of intermediate move events in a drag.
	DragSteps int `mapstructure:"drag_steps" yaml:"drag_steps"`
	// SafetyChecks gates destructive actions and out-of-region coordinates.
	SafetyChecks bool `mapstructure:"safety_checks" yaml:"safety_checks"`
}

// DatabaseConfig enables the optional session history store when URL is set.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "uipilot")
	v.SetDefault("logger.log_file", "uipilot.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Capture --
	v.SetDefault("capture.x", 0)
	v.SetDefault("capture.y", 0)
	v.SetDefault("capture.w", 1920)
	v.SetDefault("capture.h", 1080)

	// -- Detector --
	v.SetDefault("detector.endpoint", "http://127.0.0.1:8753")
	v.SetDefault("detector.timeout", "10s")

	// -- Detection --
	v.SetDefault("detection.confidence", 0.4)
	v.SetDefault("detection.memory_timeout", "1s")
	v.SetDefault("detection.background", true)
	v.SetDefault("detection.interval", "200ms")

	// -- Locator --
	v.SetDefault("locator.wait_timeout", "10s")
	v.SetDefault("locator.poll_interval", "500ms")

	// -- Executor --
	v.SetDefault("executor.cooldown", "500ms")
	v.SetDefault("executor.max_retries", 3)
	v.SetDefault("executor.retry_delay", "250ms")
	v.SetDefault("executor.drag_duration", "600ms")
	v.SetDefault("executor.drag_steps", 24)
	v.SetDefault("executor.safety_checks", true)
}

// NewDefaultConfig creates a configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with the defaults above, but fail loudly if it does.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	v.BindEnv("database.url", "UIPILOT_DATABASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Detection.Confidence < 0.0 || c.Detection.Confidence > 1.0 {
		return fmt.Errorf("detection.confidence must be between 0.0 and 1.0")
	}
	if c.Detection.MemoryTimeout <= 0 {
		return fmt.Errorf("detection.memory_timeout must be a positive duration")
	}
	if c.Detection.Background && c.Detection.Interval <= 0 {
		return fmt.Errorf("detection.interval must be a positive duration when background detection is enabled")
	}
	if c.Locator.WaitTimeout <= 0 || c.Locator.PollInterval <= 0 {
		return fmt.Errorf("locator.wait_timeout and locator.poll_interval must be positive durations")
	}
	if c.Executor.Cooldown < 0 {
		return fmt.Errorf("executor.cooldown must not be negative")
	}
	if c.Executor.MaxRetries < 1 {
		return fmt.Errorf("executor.max_retries must be at least 1")
	}
	if c.Executor.DragSteps < 2 {
		return fmt.Errorf("executor.drag_steps must be at least 2")
	}
	if c.Capture.W <= 0 || c.Capture.H <= 0 {
		return fmt.Errorf("capture region must have positive dimensions")
	}
	return nil
}
