package config

import (
	"strings"
	"testing"

	"nathanbeddoewebdev/carbonq/internal/config"
)

func TestGet_NotSet(t *testing.T) {
	setupTestConfig(t)

	stdout, stderr := execConfig(t, "get", "metrics.output_dir")

	if stderr != "" {
		t.Errorf("unexpected stderr: %s", stderr)
	}
	if !strings.Contains(stdout, "(not set)") {
		t.Errorf("expected '(not set)', got: %s", stdout)
	}
}

func TestGet_Value(t *testing.T) {
	path := setupTestConfig(t)

	cfg := config.Default()
	cfg.CarbonAPI.Zone = "GB"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	stdout, stderr := execConfig(t, "get", "carbon_api.zone")

	if stderr != "" {
		t.Errorf("unexpected stderr: %s", stderr)
	}
	if strings.TrimSpace(stdout) != "GB" {
		t.Errorf("expected 'GB', got: %s", stdout)
	}
}

func TestGet_Default(t *testing.T) {
	setupTestConfig(t)

	stdout, _ := execConfig(t, "get", "thresholds.high_carbon")

	if strings.TrimSpace(stdout) != "500" {
		t.Errorf("expected default 500, got: %s", stdout)
	}
}

func TestGet_ListAllMasksSecrets(t *testing.T) {
	path := setupTestConfig(t)

	cfg := config.Default()
	cfg.CarbonAPI.APIKey = "em-supersecret-9876"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	stdout, stderr := execConfig(t, "get")

	if stderr != "" {
		t.Errorf("unexpected stderr: %s", stderr)
	}
	for _, spec := range config.Keys {
		if !strings.Contains(stdout, spec.Name+":") {
			t.Errorf("listing missing %s", spec.Name)
		}
	}
	if strings.Contains(stdout, "supersecret") {
		t.Errorf("secret leaked: %s", stdout)
	}
	if !strings.Contains(stdout, "********9876") {
		t.Errorf("expected masked key, got: %s", stdout)
	}
}

func TestGet_UnknownKey(t *testing.T) {
	setupTestConfig(t)

	_, stderr := execConfig(t, "get", "bogus-key")

	if !strings.Contains(stderr, "unknown configuration key") {
		t.Errorf("expected 'unknown configuration key' error, got: %s", stderr)
	}
}

func TestMask(t *testing.T) {
	tests := []struct{ in, want string }{
		{"abc", "****"},
		{"abcd", "****"},
		{"abcdefgh", "********efgh"},
	}
	for _, tt := range tests {
		if got := mask(tt.in); got != tt.want {
			t.Errorf("mask(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
