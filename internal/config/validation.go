package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ValidationResult captures a single validation finding.
type ValidationResult struct {
	Level   string `json:"level"` // "error" or "warning"
	Message string `json:"message"`
}

// Validate reports problems in the configuration. Warnings describe values
// that will be replaced by defaults at runtime.
func (c Config) Validate() []ValidationResult {
	var results []ValidationResult
	results = append(results, c.validateRepository()...)
	results = append(results, c.validateURLs()...)
	results = append(results, c.validatePort()...)
	results = append(results, c.validateDurations()...)
	return results
}

// HasErrors reports whether any result is an error.
func HasErrors(results []ValidationResult) bool {
	for _, r := range results {
		if r.Level == "error" {
			return true
		}
	}
	return false
}

func (c Config) validateRepository() []ValidationResult {
	parts := strings.Split(strings.TrimSpace(c.Repository), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return []ValidationResult{{
			Level:   "error",
			Message: fmt.Sprintf("repository %q must have the form owner/repo", c.Repository),
		}}
	}
	return nil
}

func (c Config) validateURLs() []ValidationResult {
	var results []ValidationResult
	for name, raw := range map[string]string{"release_api": c.ReleaseAPI, "download_host": c.DownloadHost} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("%s %q is not an http(s) URL", name, raw),
			})
		}
	}
	return results
}

func (c Config) validatePort() []ValidationResult {
	if c.Port < 1 || c.Port > 65535 {
		return []ValidationResult{{
			Level:   "warning",
			Message: fmt.Sprintf("port %d out of range; default %d will be used", c.Port, DefaultPort),
		}}
	}
	return nil
}

func (c Config) validateDurations() []ValidationResult {
	var results []ValidationResult
	fields := []struct {
		name string
		raw  string
	}{
		{"connect_timeout", c.ConnectTimeout},
		{"handshake_timeout", c.HandshakeTimeout},
		{"release_cache_ttl", c.ReleaseCacheTTL},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		if _, err := time.ParseDuration(f.raw); err != nil {
			results = append(results, ValidationResult{
				Level:   "warning",
				Message: fmt.Sprintf("%s %q is not a duration; default will be used", f.name, f.raw),
			})
		}
	}
	return results
}
