package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Assistant modes.
const (
	AssistantHTTP   = "http"
	AssistantOpenAI = "openai"
	AssistantLocal  = "local"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Backend   BackendConfig   `yaml:"backend"`
	Assistant AssistantConfig `yaml:"assistant"`
	Sync      SyncConfig      `yaml:"sync"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
	Backup    BackupConfig    `yaml:"backup"`
}

// ServerConfig contains companion API server settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	ReadTimeout Duration `yaml:"read_timeout"`
	// WriteTimeout of zero keeps /events streams open.
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains local database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// BackendConfig contains REST backend settings.
type BackendConfig struct {
	BaseURL           string   `yaml:"base_url"`
	Token             string   `yaml:"-"` // env-only, never in YAML
	UserID            string   `yaml:"user_id"`
	Timeout           Duration `yaml:"timeout"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	Burst             int      `yaml:"burst"`
	// Offline skips every backend call; entries stay in the local queue.
	Offline bool `yaml:"offline"`
}

// AssistantConfig contains AI assistant settings.
type AssistantConfig struct {
	Mode string `yaml:"mode"`
	// BaseURL of the AI backend. Empty uses the REST backend URL.
	BaseURL      string `yaml:"base_url"`
	OpenAIAPIKey string `yaml:"-"` // env-only, never in YAML
	Model        string `yaml:"model"`
	MealPreview  bool   `yaml:"meal_preview"`
}

// SyncConfig contains background sync settings.
type SyncConfig struct {
	AutoSync       bool     `yaml:"auto_sync"`
	Interval       Duration `yaml:"interval"`
	RefreshTimeout Duration `yaml:"refresh_timeout"`
}

// TrackingConfig contains entry limits.
type TrackingConfig struct {
	MaxWaterPerEntry float64 `yaml:"max_water_per_entry"`
}

// AuthConfig contains companion API authentication settings.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// BackupConfig contains S3-compatible backup storage settings.
// An empty bucket disables uploads.
type BackupConfig struct {
	Bucket    string   `yaml:"bucket"`
	Endpoint  string   `yaml:"endpoint"`
	Region    string   `yaml:"region"`
	UseSSL    *bool    `yaml:"use_ssl"`
	AccessKey string   `yaml:"-"` // env-only, never in YAML
	SecretKey string   `yaml:"-"` // env-only, never in YAML
	URLExpiry Duration `yaml:"url_expiry"`
	// Interval between automatic backups while serving. Zero disables them.
	Interval Duration `yaml:"interval"`
}

// Online reports whether backend calls should be made.
func (c *Config) Online() bool {
	return !c.Backend.Offline && c.Backend.BaseURL != ""
}

// AssistantURL returns the AI backend base URL.
func (c *Config) AssistantURL() string {
	if c.Assistant.BaseURL != "" {
		return c.Assistant.BaseURL
	}
	return c.Backend.BaseURL
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("NUTRISYNC_CONFIG_PATH", "config/nutrisync.yaml")

	// Missing file is not an error
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific path, which must exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the default configuration without reading files or env.
func Default() *Config {
	return newDefaults()
}

func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8787,
			ReadTimeout:     Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/nutrisync.db",
		},
		Backend: BackendConfig{
			Timeout:           Duration(30 * time.Second),
			RequestsPerSecond: 10,
			Burst:             5,
		},
		Assistant: AssistantConfig{
			Mode:  AssistantHTTP,
			Model: "gpt-4o-mini",
		},
		Sync: SyncConfig{
			AutoSync:       true,
			Interval:       Duration(5 * time.Minute),
			RefreshTimeout: Duration(10 * time.Second),
		},
		Tracking: TrackingConfig{
			MaxWaterPerEntry: 5000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Backup: BackupConfig{
			URLExpiry: Duration(15 * time.Minute),
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values; unparsable values are ignored.
func applyEnvOverrides(cfg *Config) {
	// Server
	envInt("NUTRISYNC_PORT", &cfg.Server.Port)
	envDuration("NUTRISYNC_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("NUTRISYNC_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("NUTRISYNC_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Database
	envString("NUTRISYNC_DB_PATH", &cfg.Database.Path)

	// Backend
	envString("NUTRISYNC_BACKEND_URL", &cfg.Backend.BaseURL)
	envString("NUTRISYNC_BACKEND_TOKEN", &cfg.Backend.Token)
	envString("NUTRISYNC_USER_ID", &cfg.Backend.UserID)
	envDuration("NUTRISYNC_BACKEND_TIMEOUT", &cfg.Backend.Timeout)
	envBool("NUTRISYNC_OFFLINE", &cfg.Backend.Offline)

	// Assistant (OPENAI_API_KEY is industry convention)
	envString("NUTRISYNC_ASSISTANT_MODE", &cfg.Assistant.Mode)
	envString("NUTRISYNC_ASSISTANT_URL", &cfg.Assistant.BaseURL)
	envString("OPENAI_API_KEY", &cfg.Assistant.OpenAIAPIKey)
	envString("NUTRISYNC_OPENAI_MODEL", &cfg.Assistant.Model)
	envBool("NUTRISYNC_MEAL_PREVIEW", &cfg.Assistant.MealPreview)

	// Sync
	envBool("NUTRISYNC_AUTO_SYNC", &cfg.Sync.AutoSync)
	envDuration("NUTRISYNC_SYNC_INTERVAL", &cfg.Sync.Interval)
	envDuration("NUTRISYNC_REFRESH_TIMEOUT", &cfg.Sync.RefreshTimeout)

	// Tracking
	if v := os.Getenv("NUTRISYNC_MAX_WATER_PER_ENTRY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Tracking.MaxWaterPerEntry = f
		}
	}

	// Auth
	envString("NUTRISYNC_API_KEY", &cfg.Auth.APIKey)

	// Log
	envString("NUTRISYNC_LOG_LEVEL", &cfg.Log.Level)
	envString("NUTRISYNC_LOG_FORMAT", &cfg.Log.Format)

	// Backup
	envString("NUTRISYNC_BACKUP_BUCKET", &cfg.Backup.Bucket)
	envString("NUTRISYNC_S3_ENDPOINT", &cfg.Backup.Endpoint)
	envString("NUTRISYNC_S3_REGION", &cfg.Backup.Region)
	envString("NUTRISYNC_S3_ACCESS_KEY", &cfg.Backup.AccessKey)
	envString("NUTRISYNC_S3_SECRET_KEY", &cfg.Backup.SecretKey)
	envDuration("NUTRISYNC_S3_URL_EXPIRY", &cfg.Backup.URLExpiry)
	envDuration("NUTRISYNC_BACKUP_INTERVAL", &cfg.Backup.Interval)
	if v := os.Getenv("NUTRISYNC_S3_USE_SSL"); v != "" {
		useSSL := v == "true" || v == "1"
		cfg.Backup.UseSSL = &useSSL
	}
}

// validate checks that the configuration is usable.
func (c *Config) validate() error {
	if !slices.Contains([]string{AssistantHTTP, AssistantOpenAI, AssistantLocal}, c.Assistant.Mode) {
		return fmt.Errorf("assistant.mode must be one of http, openai, local; got %q", c.Assistant.Mode)
	}
	if c.Assistant.Mode == AssistantOpenAI && c.Assistant.OpenAIAPIKey == "" {
		return errors.New("OPENAI_API_KEY is required when assistant.mode is openai")
	}
	if c.Sync.AutoSync && c.Sync.Interval <= 0 {
		return errors.New("sync.interval must be positive when auto_sync is enabled")
	}
	if c.Tracking.MaxWaterPerEntry <= 0 {
		return errors.New("tracking.max_water_per_entry must be positive")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("log.format must be json or text; got %q", c.Log.Format)
	}
	if c.Backup.Bucket != "" && c.Backup.Endpoint == "" {
		return errors.New("NUTRISYNC_S3_ENDPOINT is required when a backup bucket is set")
	}
	return nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envDuration(key string, dst *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
