package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Twitch    TwitchConfig    `yaml:"twitch"`
	Converter ConverterConfig `yaml:"converter"`
	Storage   StorageConfig   `yaml:"storage"`
	Server    ServerConfig    `yaml:"server"`
	Worker    WorkerConfig    `yaml:"worker"`
}

// TwitchConfig holds the platform endpoints used to authorize and fetch VODs.
type TwitchConfig struct {
	GQLURL     string        `yaml:"gql_url" envconfig:"TWITCH_GQL_URL"`
	VODBaseURL string        `yaml:"vod_base_url" envconfig:"TWITCH_VOD_BASE_URL"`
	ClientID   string        `yaml:"client_id" envconfig:"TWITCH_CLIENT_ID"`
	Timeout    time.Duration `yaml:"timeout" envconfig:"TWITCH_TIMEOUT"`
	UserAgent  string        `yaml:"user_agent" envconfig:"TWITCH_USER_AGENT"`
}

// ConverterConfig holds ffmpeg invocation settings.
type ConverterConfig struct {
	BinaryPath string `yaml:"binary_path" envconfig:"FFMPEG_PATH"`
	LogLevel   string `yaml:"log_level" envconfig:"FFMPEG_LOG_LEVEL"`
}

// StorageConfig holds output and settings locations.
type StorageConfig struct {
	OutputDir     string `yaml:"output_dir" envconfig:"OUTPUT_DIR"`
	DefaultOutput string `yaml:"default_output" envconfig:"DEFAULT_OUTPUT"`
	SettingsPath  string `yaml:"settings_path" envconfig:"SETTINGS_PATH"`
	// SettingsPassphrase seals the stored auth token when set.
	SettingsPassphrase string `yaml:"settings_passphrase" envconfig:"SETTINGS_PASSPHRASE"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`
}

// WorkerConfig holds worker pool configuration.
type WorkerConfig struct {
	Count        int           `yaml:"count" envconfig:"WORKER_COUNT"`
	PollInterval time.Duration `yaml:"poll_interval" envconfig:"WORKER_POLL_INTERVAL"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Twitch: TwitchConfig{
			GQLURL:     "https://gql.twitch.tv/gql",
			VODBaseURL: "https://usher.ttvnw.net/vod/",
			ClientID:   "kimne78kx3ncx6brgo4mv6wki5h1ko",
			Timeout:    30 * time.Second,
			UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		},
		Converter: ConverterConfig{
			BinaryPath: "ffmpeg",
			LogLevel:   "info",
		},
		Storage: StorageConfig{
			OutputDir:     ".",
			DefaultOutput: "ttv_vod.mp4",
			SettingsPath:  defaultSettingsPath(),
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         9848,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
		Worker: WorkerConfig{
			Count:        1,
			PollInterval: 2 * time.Second,
		},
	}
}

func defaultSettingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "vodgrabba.db"
	}
	return filepath.Join(dir, "vodgrabba", "settings.db")
}

// Load reads configuration from file and environment variables.
// Environment variables override file values, file values override defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Twitch.GQLURL == "" {
		return fmt.Errorf("TWITCH_GQL_URL is required")
	}
	if c.Twitch.VODBaseURL == "" {
		return fmt.Errorf("TWITCH_VOD_BASE_URL is required")
	}
	if c.Twitch.ClientID == "" {
		return fmt.Errorf("TWITCH_CLIENT_ID is required")
	}
	if c.Converter.BinaryPath == "" {
		return fmt.Errorf("FFMPEG_PATH is required")
	}
	if c.Storage.SettingsPath == "" {
		return fmt.Errorf("SETTINGS_PATH is required")
	}
	return nil
}

// ValidateServer checks the settings only the HTTP server needs.
func (c *Config) ValidateServer() error {
	if c.Server.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	if c.Storage.OutputDir == "" {
		return fmt.Errorf("OUTPUT_DIR is required")
	}
	if c.Worker.Count <= 0 {
		return fmt.Errorf("WORKER_COUNT must be positive")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
