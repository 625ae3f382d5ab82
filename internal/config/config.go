package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultUserAgent is a desktop browser User-Agent; some hosts block
// anything that does not look like one.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Download  DownloadConfig  `yaml:"download"`
	Scrape    ScrapeConfig    `yaml:"scrape"`
	Transcode TranscodeConfig `yaml:"transcode"`
	TLS       TLSConfig       `yaml:"tls"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host      string `yaml:"host" envconfig:"SERVER_HOST"`
	HTTPPort  int    `yaml:"http_port" envconfig:"SERVER_HTTP_PORT"`
	HTTPSPort int    `yaml:"https_port" envconfig:"SERVER_HTTPS_PORT"`
	// MediaPort is the plain-HTTP port written into player pages. Zero means HTTPPort.
	MediaPort         int           `yaml:"media_port" envconfig:"SERVER_MEDIA_PORT"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" envconfig:"SERVER_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" envconfig:"SERVER_SHUTDOWN_TIMEOUT"`
}

// StorageConfig holds filesystem storage configuration.
type StorageConfig struct {
	VideoDir string `yaml:"video_dir" envconfig:"STORAGE_PATH"`
	// MinFreeBytes refuses new conversions when free space drops below it. Zero disables the check.
	MinFreeBytes int64 `yaml:"min_free_bytes" envconfig:"STORAGE_MIN_FREE_BYTES"`
	// SweepInterval is how often leftover files are cleaned up.
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"STORAGE_SWEEP_INTERVAL"`
	// StaleAfter is the age at which a download or staged output with no
	// running conversion is considered abandoned.
	StaleAfter time.Duration `yaml:"stale_after" envconfig:"STORAGE_STALE_AFTER"`
	// Retention deletes converted videos older than this. Zero keeps them forever.
	Retention time.Duration `yaml:"retention" envconfig:"STORAGE_RETENTION"`
}

// DownloadConfig holds video download configuration.
type DownloadConfig struct {
	UserAgent             string        `yaml:"user_agent" envconfig:"DOWNLOAD_USER_AGENT"`
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout" envconfig:"DOWNLOAD_RESPONSE_HEADER_TIMEOUT"`
	// StallTimeout aborts a download that receives no data for this long. Zero disables it.
	StallTimeout time.Duration `yaml:"stall_timeout" envconfig:"DOWNLOAD_STALL_TIMEOUT"`
}

// ScrapeConfig holds page scraping configuration.
type ScrapeConfig struct {
	ContainerID string `yaml:"container_id" envconfig:"SCRAPE_CONTAINER_ID"`
	// ResponseHeaderTimeout bounds the wait for the page's response headers.
	// Reading the body has no deadline.
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout" envconfig:"SCRAPE_RESPONSE_HEADER_TIMEOUT"`
}

// TranscodeConfig holds ffmpeg configuration.
type TranscodeConfig struct {
	FFmpegPath string `yaml:"ffmpeg_path" envconfig:"FFMPEG_PATH"`
}

// TLSConfig holds configuration for the HTTPS listener.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled" envconfig:"TLS_ENABLED"`
	CertFile string `yaml:"cert_file" envconfig:"TLS_CERT_FILE"`
	KeyFile  string `yaml:"key_file" envconfig:"TLS_KEY_FILE"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Format string `yaml:"format" envconfig:"LOG_FORMAT"`
	// Verbose is nil when unset, in which case the operator is asked at startup.
	Verbose *bool `yaml:"verbose" envconfig:"LOG_VERBOSE"`
}

// Default returns the built-in configuration. Load layers the YAML file and
// environment on top of it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			HTTPPort:          3000,
			HTTPSPort:         3443,
			ReadHeaderTimeout: 30 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			VideoDir:      "videos",
			SweepInterval: 10 * time.Minute,
			StaleAfter:    6 * time.Hour,
		},
		Download: DownloadConfig{
			UserAgent:             DefaultUserAgent,
			ResponseHeaderTimeout: 30 * time.Second,
		},
		Scrape: ScrapeConfig{
			ContainerID:           "image-download-link",
			ResponseHeaderTimeout: 30 * time.Second,
		},
		Transcode: TranscodeConfig{
			FFmpegPath: "ffmpeg",
		},
		TLS: TLSConfig{
			Enabled:  true,
			CertFile: "cert.pem",
			KeyFile:  "key.pem",
		},
		Log: LogConfig{
			Format: "text",
		},
	}
}

// Load reads configuration from a .env file, the YAML file and environment
// variables, in increasing order of precedence.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	// godotenv never overrides variables that are already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

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

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Storage.VideoDir == "" {
		return fmt.Errorf("STORAGE_PATH is required")
	}
	if err := validPort("SERVER_HTTP_PORT", c.Server.HTTPPort); err != nil {
		return err
	}
	if c.TLS.Enabled {
		if err := validPort("SERVER_HTTPS_PORT", c.Server.HTTPSPort); err != nil {
			return err
		}
		if c.Server.HTTPSPort == c.Server.HTTPPort {
			return fmt.Errorf("SERVER_HTTPS_PORT must differ from SERVER_HTTP_PORT")
		}
		if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
			return fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE are required when TLS is enabled")
		}
	}
	if c.Server.MediaPort != 0 {
		if err := validPort("SERVER_MEDIA_PORT", c.Server.MediaPort); err != nil {
			return err
		}
	}
	if c.Storage.MinFreeBytes < 0 {
		return fmt.Errorf("STORAGE_MIN_FREE_BYTES must not be negative")
	}
	if c.Storage.SweepInterval <= 0 {
		return fmt.Errorf("STORAGE_SWEEP_INTERVAL must be positive")
	}
	if c.Storage.StaleAfter <= 0 {
		return fmt.Errorf("STORAGE_STALE_AFTER must be positive")
	}
	if c.Storage.Retention < 0 {
		return fmt.Errorf("STORAGE_RETENTION must not be negative")
	}
	if c.Scrape.ResponseHeaderTimeout < 0 {
		return fmt.Errorf("SCRAPE_RESPONSE_HEADER_TIMEOUT must not be negative")
	}
	if c.Transcode.FFmpegPath == "" {
		return fmt.Errorf("FFMPEG_PATH is required")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Log.Format)
	}
	return nil
}

func validPort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
	}
	return nil
}

// HTTPAddress returns the plain HTTP listen address in host:port format.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// HTTPSAddress returns the TLS listen address in host:port format.
func (c *ServerConfig) HTTPSAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPSPort)
}

// PlaybackPort returns the port player pages use for plain-HTTP media URLs.
func (c *ServerConfig) PlaybackPort() int {
	if c.MediaPort != 0 {
		return c.MediaPort
	}
	return c.HTTPPort
}
