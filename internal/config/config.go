package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Extractor   ExtractorConfig   `yaml:"extractor"`
	Pacing      PacingConfig      `yaml:"pacing"`
	Retention   RetentionConfig   `yaml:"retention"`
	Index       IndexConfig       `yaml:"index"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Events      EventsConfig      `yaml:"events"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host           string        `yaml:"host" envconfig:"SERVER_HOST"`
	Port           int           `yaml:"port" envconfig:"SERVER_PORT"`
	APIKey         string        `yaml:"api_key" envconfig:"API_KEY"`
	PathPrefix     string        `yaml:"path_prefix" envconfig:"SERVER_PATH_PREFIX"`
	ReadTimeout    time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout   time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"SERVER_REQUEST_TIMEOUT"`
}

// StorageConfig holds filesystem storage configuration.
type StorageConfig struct {
	// DownloadDir defaults to <os temp dir>/video_downloads when empty.
	DownloadDir     string `yaml:"download_dir" envconfig:"DOWNLOAD_DIR"`
	StaticMediaPath string `yaml:"static_media_path" envconfig:"STATIC_MEDIA_PATH"`
}

// ExtractorConfig holds the extraction engine invocation profile.
type ExtractorConfig struct {
	BinaryPath       string        `yaml:"binary_path" envconfig:"YTDLP_PATH"`
	UserAgent        string        `yaml:"user_agent" envconfig:"EXTRACTOR_USER_AGENT"`
	Retries          int           `yaml:"retries" envconfig:"EXTRACTOR_RETRIES"`
	FragmentRetries  int           `yaml:"fragment_retries" envconfig:"EXTRACTOR_FRAGMENT_RETRIES"`
	ExtractorRetries int           `yaml:"extractor_retries" envconfig:"EXTRACTOR_EXTRACTOR_RETRIES"`
	SleepMin         time.Duration `yaml:"sleep_min" envconfig:"EXTRACTOR_SLEEP_MIN"`
	SleepMax         time.Duration `yaml:"sleep_max" envconfig:"EXTRACTOR_SLEEP_MAX"`
	RequestSleepMin  time.Duration `yaml:"request_sleep_min" envconfig:"EXTRACTOR_REQUEST_SLEEP_MIN"`
	RequestSleepMax  time.Duration `yaml:"request_sleep_max" envconfig:"EXTRACTOR_REQUEST_SLEEP_MAX"`
	GeoBypassCountry string        `yaml:"geo_bypass_country" envconfig:"EXTRACTOR_GEO_COUNTRY"`
}

// PacingConfig holds the delay applied before each download job.
type PacingConfig struct {
	PreDownloadMin time.Duration `yaml:"pre_download_min" envconfig:"PACING_PRE_DOWNLOAD_MIN"`
	PreDownloadMax time.Duration `yaml:"pre_download_max" envconfig:"PACING_PRE_DOWNLOAD_MAX"`
}

// RetentionConfig holds artifact eviction settings. Zero disables a rule.
type RetentionConfig struct {
	Enabled       bool          `yaml:"enabled" envconfig:"RETENTION_ENABLED"`
	MaxAge        time.Duration `yaml:"max_age" envconfig:"RETENTION_MAX_AGE"`
	MaxTotalBytes int64         `yaml:"max_total_bytes" envconfig:"RETENTION_MAX_TOTAL_BYTES"`
	MinFreeBytes  int64         `yaml:"min_free_bytes" envconfig:"RETENTION_MIN_FREE_BYTES"`
	Grace         time.Duration `yaml:"grace" envconfig:"RETENTION_GRACE"`
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"RETENTION_SWEEP_INTERVAL"`
}

// IndexConfig selects the artifact index backend.
type IndexConfig struct {
	Backend    string      `yaml:"backend" envconfig:"INDEX_BACKEND"`
	SQLitePath string      `yaml:"sqlite_path" envconfig:"INDEX_SQLITE_PATH"`
	Redis      RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings for the artifact index.
type RedisConfig struct {
	Addr      string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password  string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB        int    `yaml:"db" envconfig:"REDIS_DB"`
	KeyPrefix string `yaml:"key_prefix" envconfig:"REDIS_KEY_PREFIX"`
}

// CredentialsConfig holds the bearer credential store settings.
type CredentialsConfig struct {
	Path            string   `yaml:"path" envconfig:"CREDENTIALS_PATH"`
	Passphrase      string   `yaml:"passphrase" envconfig:"CREDENTIALS_PASSPHRASE"`
	PrivilegedHosts []string `yaml:"privileged_hosts" envconfig:"CREDENTIALS_PRIVILEGED_HOSTS"`
}

// EventsConfig holds event log settings.
type EventsConfig struct {
	BufferSize int `yaml:"buffer_size" envconfig:"EVENTS_BUFFER_SIZE"`
}

// Index backends.
const (
	IndexMemory = "memory"
	IndexSQLite = "sqlite"
	IndexRedis  = "redis"
)

// Defaults returns the configuration used when neither the file nor the
// environment set a value.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           5000,
			PathPrefix:     "/api",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   15 * time.Minute,
			RequestTimeout: 10 * time.Minute,
		},
		Extractor: ExtractorConfig{
			BinaryPath:       "yt-dlp",
			UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Retries:          3,
			FragmentRetries:  3,
			ExtractorRetries: 3,
			SleepMin:         1 * time.Second,
			SleepMax:         3 * time.Second,
			RequestSleepMin:  500 * time.Millisecond,
			RequestSleepMax:  1500 * time.Millisecond,
			GeoBypassCountry: "US",
		},
		Pacing: PacingConfig{
			PreDownloadMin: 1 * time.Second,
			PreDownloadMax: 2 * time.Second,
		},
		Retention: RetentionConfig{
			Enabled:       true,
			MaxAge:        24 * time.Hour,
			MaxTotalBytes: 10 << 30, // 10GB
			MinFreeBytes:  1 << 30,  // 1GB
			Grace:         time.Minute,
			SweepInterval: 10 * time.Minute,
		},
		Index: IndexConfig{
			Backend:    IndexMemory,
			SQLitePath: "data/artifacts.db",
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "vidgrab",
			},
		},
		Credentials: CredentialsConfig{
			Path: "data/credentials.enc",
		},
		Events: EventsConfig{
			BufferSize: 500,
		},
	}
}

// Load reads configuration from file and environment variables on top of
// Defaults. Environment variables override file values.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	cfg.applyDerivedDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyDerivedDefaults() {
	if c.Storage.DownloadDir == "" {
		c.Storage.DownloadDir = DefaultDownloadDir()
	}
	c.Server.PathPrefix = normalizePrefix(c.Server.PathPrefix)
	c.Index.Backend = strings.ToLower(strings.TrimSpace(c.Index.Backend))
}

// DefaultDownloadDir returns the download directory used when none is configured.
func DefaultDownloadDir() string {
	return filepath.Join(os.TempDir(), "video_downloads")
}

func normalizePrefix(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimRight(p, "/")
}

// Validate checks that required configuration values are set and consistent.
func (c *Config) Validate() error {
	if c.Storage.DownloadDir == "" {
		return fmt.Errorf("DOWNLOAD_DIR is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535")
	}
	if c.Extractor.BinaryPath == "" {
		return fmt.Errorf("YTDLP_PATH is required")
	}
	if c.Extractor.Retries < 0 || c.Extractor.FragmentRetries < 0 || c.Extractor.ExtractorRetries < 0 {
		return fmt.Errorf("extractor retry counts must not be negative")
	}
	if c.Extractor.SleepMax < c.Extractor.SleepMin {
		return fmt.Errorf("EXTRACTOR_SLEEP_MAX must be >= EXTRACTOR_SLEEP_MIN")
	}
	if c.Extractor.RequestSleepMax < c.Extractor.RequestSleepMin {
		return fmt.Errorf("EXTRACTOR_REQUEST_SLEEP_MAX must be >= EXTRACTOR_REQUEST_SLEEP_MIN")
	}
	if c.Pacing.PreDownloadMin < 0 || c.Pacing.PreDownloadMax < c.Pacing.PreDownloadMin {
		return fmt.Errorf("pacing bounds are invalid")
	}
	if c.Retention.Enabled && c.Retention.SweepInterval <= 0 {
		return fmt.Errorf("RETENTION_SWEEP_INTERVAL must be positive when retention is enabled")
	}
	if c.Retention.MaxAge < 0 || c.Retention.MaxTotalBytes < 0 || c.Retention.MinFreeBytes < 0 {
		return fmt.Errorf("retention limits must not be negative")
	}

	switch c.Index.Backend {
	case IndexMemory:
	case IndexSQLite:
		if c.Index.SQLitePath == "" {
			return fmt.Errorf("INDEX_SQLITE_PATH is required for the sqlite index")
		}
	case IndexRedis:
		if c.Index.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis index")
		}
	default:
		return fmt.Errorf("unknown INDEX_BACKEND %q", c.Index.Backend)
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
