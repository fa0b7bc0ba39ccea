package config

import (
	"strings"
	"testing"
)

func TestValidateDefaultsClean(t *testing.T) {
	if results := Default().Validate(); len(results) != 0 {
		t.Fatalf("expected no findings, got %+v", results)
	}
}

func TestValidateRepository(t *testing.T) {
	cfg := Default()
	cfg.Repository = "no-slash"

	results := cfg.Validate()
	if !HasErrors(results) {
		t.Fatalf("expected repository error, got %+v", results)
	}
	if !strings.Contains(results[0].Message, "owner/repo") {
		t.Fatalf("unexpected message %q", results[0].Message)
	}
}

func TestValidateURLs(t *testing.T) {
	cfg := Default()
	cfg.ReleaseAPI = "ftp://example.com"

	if !HasErrors(cfg.Validate()) {
		t.Fatal("expected error for non-http release api")
	}
}

func TestValidatePortWarning(t *testing.T) {
	cfg := Default()
	cfg.Port = 70000

	results := cfg.Validate()
	if HasErrors(results) {
		t.Fatalf("port out of range should only warn, got %+v", results)
	}
	if len(results) != 1 || results[0].Level != "warning" {
		t.Fatalf("expected one warning, got %+v", results)
	}
}

func TestValidateDurations(t *testing.T) {
	cfg := Default()
	cfg.HandshakeTimeout = "fifteen"

	results := cfg.Validate()
	if len(results) != 1 || !strings.Contains(results[0].Message, "handshake_timeout") {
		t.Fatalf("expected handshake_timeout warning, got %+v", results)
	}
}
