package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment variables that override file settings.
const (
	EnvVersion    = "NPL_SERVER_VERSION"
	EnvPort       = "NPL_SERVER_PORT"
	EnvRepository = "NPL_SERVER_REPOSITORY"
	EnvLogLevel   = "NPL_SERVER_LOG_LEVEL"
)

// ApplyEnv overlays environment overrides onto c. An unparsable port resets
// the port to the default rather than failing.
func (c *Config) ApplyEnv() {
	c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvVersion); ok && strings.TrimSpace(v) != "" {
		c.Version = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvRepository); ok && strings.TrimSpace(v) != "" {
		c.Repository = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		c.LogLevel = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvPort); ok && strings.TrimSpace(v) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			port = DefaultPort
		}
		c.Port = port
	}
}
