package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.microchat/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`
	Server         Server `toml:"server"`
	Stream         Stream `toml:"stream"`
	Upload         Upload `toml:"upload"`
	Log            Log    `toml:"log"`
}

// Server locates the microchat server and carries the credentials obtained
// out of band.
type Server struct {
	BaseURL  string `toml:"base_url"`
	Token    string `toml:"token"`
	UserID   int64  `toml:"user_id,omitempty"`
	UserName string `toml:"user_name,omitempty"`
}

// Stream configures the push-event reconnect policy.
type Stream struct {
	RetryDelay    time.Duration `toml:"retry_delay"`
	MaxRetryDelay time.Duration `toml:"max_retry_delay"`
}

// Upload configures the attachment pipeline.
type Upload struct {
	ProgressPerSecond float64 `toml:"progress_per_second"`
}

// Log configures the daemon logger.
type Log struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DefaultSession: "main",
		Server:         Server{BaseURL: "http://127.0.0.1:8080"},
		Stream:         Stream{RetryDelay: time.Second, MaxRetryDelay: 30 * time.Second},
		Upload:         Upload{ProgressPerSecond: 10},
		Log:            Log{Level: "info"},
	}
}

// Load reads config from the given path on top of Default. Returns error if file missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	return cfg, nil
}

// LoadOrDefault is Load that tolerates a missing file.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func (c *Config) fillDefaults() {
	d := Default()
	if c.Stream.RetryDelay <= 0 {
		c.Stream.RetryDelay = d.Stream.RetryDelay
	}
	if c.Stream.MaxRetryDelay < c.Stream.RetryDelay {
		c.Stream.MaxRetryDelay = max(d.Stream.MaxRetryDelay, c.Stream.RetryDelay)
	}
	if c.Upload.ProgressPerSecond <= 0 {
		c.Upload.ProgressPerSecond = d.Upload.ProgressPerSecond
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

// Validate reports settings the daemon cannot start with.
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return errors.New("server.base_url is required")
	}
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("server.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.base_url: unsupported scheme %q", u.Scheme)
	}
	if c.Server.Token == "" {
		return errors.New("server.token is required")
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
