package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Notify   NotifyConfig   `mapstructure:"notify" yaml:"notify"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Tracking TrackingConfig `mapstructure:"tracking" yaml:"tracking"`
	Activity ActivityConfig `mapstructure:"activity" yaml:"activity"`
	Switches SwitchesConfig `mapstructure:"switches" yaml:"switches"`
	Warnings WarningsConfig `mapstructure:"warnings" yaml:"warnings"`
	Popup    PopupConfig    `mapstructure:"popup" yaml:"popup"`
}

// ServerConfig defines the API and metrics listeners
type ServerConfig struct {
	BindAddress     string   `mapstructure:"bind_address" yaml:"bind_address"`
	APIPort         int      `mapstructure:"api_port" yaml:"api_port"`
	MetricsPort     int      `mapstructure:"metrics_port" yaml:"metrics_port"`
	AllowedOrigins  []string `mapstructure:"allowed_origins" yaml:"allowed_origins"` // empty: extension origins only
	RateLimit       int      `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateLimitWindow string   `mapstructure:"rate_limit_window" yaml:"rate_limit_window"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type" yaml:"type"` // "bolt" or "redis"
	Path  string      `mapstructure:"path" yaml:"path"`
	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host" yaml:"host"`
	Port         int    `mapstructure:"port" yaml:"port"`
	Password     string `mapstructure:"password" yaml:"password"`
	DB           int    `mapstructure:"db" yaml:"db"`
	PoolSize     int    `mapstructure:"pool_size" yaml:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns" yaml:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout" yaml:"write_timeout"`
	HistoryLimit int    `mapstructure:"history_limit" yaml:"history_limit"` // Max warning records kept, 0 = unbounded
}

// NotifyConfig selects the push-notification transport
type NotifyConfig struct {
	Transport string `mapstructure:"transport" yaml:"transport"` // "local" or "redis"
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// TrackingConfig defines which sites are tracked
type TrackingConfig struct {
	Domains      []string `mapstructure:"domains" yaml:"domains"`
	TabCacheSize int      `mapstructure:"tab_cache_size" yaml:"tab_cache_size"`
}

// ActivityConfig defines per-page time and scroll tracking
type ActivityConfig struct {
	TimeThreshold   string `mapstructure:"time_threshold" yaml:"time_threshold"`
	TickInterval    string `mapstructure:"tick_interval" yaml:"tick_interval"`
	ScrollWindow    string `mapstructure:"scroll_window" yaml:"scroll_window"`
	ScrollThreshold int    `mapstructure:"scroll_threshold" yaml:"scroll_threshold"`
}

// SwitchesConfig defines browser-wide tab switch tracking
type SwitchesConfig struct {
	Window    string `mapstructure:"window" yaml:"window"`
	Threshold int    `mapstructure:"threshold" yaml:"threshold"`
}

// WarningsConfig defines overlay timing and history retention
type WarningsConfig struct {
	AutoDismiss          string `mapstructure:"auto_dismiss" yaml:"auto_dismiss"`
	Cooldown             string `mapstructure:"cooldown" yaml:"cooldown"`
	HistoryRetentionDays int    `mapstructure:"history_retention_days" yaml:"history_retention_days"`
	CleanupTime          string `mapstructure:"cleanup_time" yaml:"cleanup_time"` // HH:MM
}

// PopupConfig defines stats rendering thresholds not shared with monitors
type PopupConfig struct {
	ScrollMedium int `mapstructure:"scroll_medium" yaml:"scroll_medium"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("REFOCUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.bind_address", "127.0.0.1")
	v.SetDefault("server.api_port", 8787)
	v.SetDefault("server.metrics_port", 9787)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.rate_limit", 600)
	v.SetDefault("server.rate_limit_window", "1m")

	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", "/var/lib/refocus/refocus.bolt")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")
	v.SetDefault("storage.redis.history_limit", 1000)

	// Notify defaults
	v.SetDefault("notify.transport", "local")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Tracking defaults
	v.SetDefault("tracking.domains", []string{
		"youtube.com",
		"instagram.com",
		"twitter.com",
		"x.com",
		"tiktok.com",
		"reddit.com",
	})
	v.SetDefault("tracking.tab_cache_size", 512)

	// Activity defaults
	v.SetDefault("activity.time_threshold", "15m")
	v.SetDefault("activity.tick_interval", "1s")
	v.SetDefault("activity.scroll_window", "2m")
	v.SetDefault("activity.scroll_threshold", 100)

	// Tab switch defaults
	v.SetDefault("switches.window", "10m")
	v.SetDefault("switches.threshold", 20)

	// Warning defaults
	v.SetDefault("warnings.auto_dismiss", "15s")
	v.SetDefault("warnings.cooldown", "60s")
	v.SetDefault("warnings.history_retention_days", 30)
	v.SetDefault("warnings.cleanup_time", "03:00")

	// Popup defaults
	v.SetDefault("popup.scroll_medium", 50)
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.APIPort <= 0 || cfg.Server.APIPort > 65535 {
		return fmt.Errorf("invalid API port: %d", cfg.Server.APIPort)
	}
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	switch cfg.Storage.Type {
	case "":
		cfg.Storage.Type = "bolt"
	case "bolt", "redis":
	default:
		return fmt.Errorf("unsupported storage type: %s (must be bolt or redis)", cfg.Storage.Type)
	}

	switch cfg.Notify.Transport {
	case "":
		cfg.Notify.Transport = "local"
	case "local":
	case "redis":
		if cfg.Storage.Type != "redis" {
			return fmt.Errorf("notify transport redis requires storage type redis")
		}
	default:
		return fmt.Errorf("unsupported notify transport: %s (must be local or redis)", cfg.Notify.Transport)
	}

	if len(cfg.Tracking.Domains) == 0 {
		return fmt.Errorf("at least one tracked domain is required")
	}

	durations := map[string]string{
		"activity.time_threshold": cfg.Activity.TimeThreshold,
		"activity.tick_interval":  cfg.Activity.TickInterval,
		"activity.scroll_window":  cfg.Activity.ScrollWindow,
		"switches.window":         cfg.Switches.Window,
		"warnings.auto_dismiss":   cfg.Warnings.AutoDismiss,
		"warnings.cooldown":       cfg.Warnings.Cooldown,
	}
	for name, value := range durations {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if cfg.Activity.ScrollThreshold <= 0 {
		return fmt.Errorf("activity.scroll_threshold must be positive")
	}
	if cfg.Switches.Threshold <= 0 {
		return fmt.Errorf("switches.threshold must be positive")
	}
	if cfg.Popup.ScrollMedium < 0 || cfg.Popup.ScrollMedium > cfg.Activity.ScrollThreshold {
		return fmt.Errorf("popup.scroll_medium must be between 0 and activity.scroll_threshold")
	}

	if _, err := time.Parse("15:04", cfg.Warnings.CleanupTime); err != nil {
		return fmt.Errorf("invalid warnings.cleanup_time %q (expected HH:MM)", cfg.Warnings.CleanupTime)
	}

	if cfg.Storage.Type == "bolt" {
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required")
		}
		// Ensure storage directory exists
		storageDir := filepath.Dir(cfg.Storage.Path)
		if err := os.MkdirAll(storageDir, 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	return nil
}

// Duration parses a duration string with a fallback
func Duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// Default returns the configuration used when no file or environment
// overrides are present. It is not validated.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Keys returns every dotted configuration key understood by Load.
func Keys() []string {
	var keys []string
	collectKeys(reflect.TypeOf(Config{}), "", &keys)
	sort.Strings(keys)
	return keys
}

func collectKeys(t reflect.Type, prefix string, keys *[]string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := field.Tag.Get("mapstructure")
		if name == "" {
			continue
		}
		if prefix != "" {
			name = prefix + "." + name
		}
		if field.Type.Kind() == reflect.Struct {
			collectKeys(field.Type, name, keys)
			continue
		}
		*keys = append(*keys, name)
	}
}
