package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Defaults applied when the corresponding Config fields are unset.
const (
	DefaultRepository       = "NoumenaDigital/npl-language-server"
	DefaultReleaseAPI       = "https://api.github.com"
	DefaultDownloadHost     = "https://github.com"
	DefaultPort             = 5007
	DefaultConnectTimeout   = 5 * time.Second
	DefaultHandshakeTimeout = 15 * time.Second
	DefaultReleaseCacheTTL  = 1 * time.Hour
	DefaultMaxRedirects     = 5
	DefaultLogLevel         = "info"
)

// Config captures the server lifecycle settings.
type Config struct {
	Version          string `yaml:"version" json:"version" toml:"version"`
	Repository       string `yaml:"repository" json:"repository" toml:"repository"`
	ReleaseAPI       string `yaml:"release_api" json:"release_api" toml:"release_api"`
	DownloadHost     string `yaml:"download_host" json:"download_host" toml:"download_host"`
	Port             int    `yaml:"port" json:"port" toml:"port"`
	ConnectTimeout   string `yaml:"connect_timeout" json:"connect_timeout" toml:"connect_timeout"`
	HandshakeTimeout string `yaml:"handshake_timeout" json:"handshake_timeout" toml:"handshake_timeout"`
	ReleaseCacheTTL  string `yaml:"release_cache_ttl" json:"release_cache_ttl" toml:"release_cache_ttl"`
	MaxRedirects     int    `yaml:"max_redirects" json:"max_redirects" toml:"max_redirects"`
	AutoUpdate       *bool  `yaml:"auto_update,omitempty" json:"auto_update,omitempty" toml:"auto_update,omitempty"`
	LogLevel         string `yaml:"log_level" json:"log_level" toml:"log_level"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Repository:       DefaultRepository,
		ReleaseAPI:       DefaultReleaseAPI,
		DownloadHost:     DefaultDownloadHost,
		Port:             DefaultPort,
		ConnectTimeout:   DefaultConnectTimeout.String(),
		HandshakeTimeout: DefaultHandshakeTimeout.String(),
		ReleaseCacheTTL:  DefaultReleaseCacheTTL.String(),
		MaxRedirects:     DefaultMaxRedirects,
		AutoUpdate:       boolPtr(true),
		LogLevel:         DefaultLogLevel,
	}
}

// Load reads the configuration from disk if it exists, otherwise returns the
// default configuration. The format follows the file extension: .yaml/.yml,
// .json or .toml.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml", "":
		err = yaml.Unmarshal(contents, &cfg)
	case ".json":
		err = json.Unmarshal(contents, &cfg)
	case ".toml":
		err = toml.Unmarshal(contents, &cfg)
	default:
		return Config{}, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills fields the file left empty.
func (c *Config) ApplyDefaults() {
	defaults := Default()

	c.Version = strings.TrimSpace(c.Version)
	if strings.TrimSpace(c.Repository) == "" {
		c.Repository = defaults.Repository
	}
	if strings.TrimSpace(c.ReleaseAPI) == "" {
		c.ReleaseAPI = defaults.ReleaseAPI
	}
	if strings.TrimSpace(c.DownloadHost) == "" {
		c.DownloadHost = defaults.DownloadHost
	}
	if c.Port == 0 {
		c.Port = defaults.Port
	}
	if c.ConnectTimeout == "" {
		c.ConnectTimeout = defaults.ConnectTimeout
	}
	if c.HandshakeTimeout == "" {
		c.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if c.ReleaseCacheTTL == "" {
		c.ReleaseCacheTTL = defaults.ReleaseCacheTTL
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = defaults.MaxRedirects
	}
	if c.AutoUpdate == nil {
		c.AutoUpdate = defaults.AutoUpdate
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = defaults.LogLevel
	}
}

// SelectedVersion returns the configured version or "latest".
func (c Config) SelectedVersion() string {
	if v := strings.TrimSpace(c.Version); v != "" {
		return v
	}
	return "latest"
}

// ConnectTimeoutValue returns the timeout for dialing a running server.
func (c Config) ConnectTimeoutValue() time.Duration {
	return parseDuration(c.ConnectTimeout, DefaultConnectTimeout, false)
}

// HandshakeTimeoutValue returns the initialize handshake budget.
func (c Config) HandshakeTimeoutValue() time.Duration {
	return parseDuration(c.HandshakeTimeout, DefaultHandshakeTimeout, false)
}

// ReleaseCacheTTLValue returns how long a fetched release list stays fresh.
// Zero disables the cache.
func (c Config) ReleaseCacheTTLValue() time.Duration {
	return parseDuration(c.ReleaseCacheTTL, DefaultReleaseCacheTTL, true)
}

// AutoUpdateEnabled returns the effective auto_update flag applying defaults.
func (c Config) AutoUpdateEnabled() bool {
	if c.AutoUpdate == nil {
		return true
	}
	return *c.AutoUpdate
}

func parseDuration(raw string, fallback time.Duration, allowZero bool) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return fallback
	}
	return d
}

func boolPtr(v bool) *bool {
	return &v
}
