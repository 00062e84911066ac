package config

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"nathanbeddoewebdev/carbonq/internal/config"
	"nathanbeddoewebdev/carbonq/internal/domain"
)

// setupTestConfig points the config package at a temp file and returns its path.
func setupTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	config.SetPath(path)
	t.Cleanup(config.ResetPath)
	return path
}

// execConfig creates the config command, wires up output buffers, runs with the
// given args, and returns what was written to stdout and stderr.
func execConfig(t *testing.T, args ...string) (stdout, stderr string) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	cmd := NewCommand()
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	cmd.Execute()
	return outBuf.String(), errBuf.String()
}

func TestSet_Zone(t *testing.T) {
	setupTestConfig(t)

	stdout, stderr := execConfig(t, "set", "carbon_api.zone", "de")

	if stderr != "" {
		t.Errorf("unexpected stderr: %s", stderr)
	}
	if !strings.Contains(stdout, `"DE"`) {
		t.Errorf("expected confirmation with normalized zone, got: %s", stdout)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.CarbonAPI.Zone != "DE" {
		t.Errorf("expected zone %q, got %q", "DE", cfg.CarbonAPI.Zone)
	}
}

func TestSet_Zone_Invalid(t *testing.T) {
	setupTestConfig(t)

	_, stderr := execConfig(t, "set", "carbon_api.zone", "not a zone!")

	if !strings.Contains(stderr, "invalid value for carbon_api.zone") {
		t.Errorf("expected invalid value error, got: %s", stderr)
	}
}

func TestSet_Threshold(t *testing.T) {
	setupTestConfig(t)

	_, stderr := execConfig(t, "set", "thresholds.low_carbon", "180")
	if stderr != "" {
		t.Fatalf("unexpected stderr: %s", stderr)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Thresholds.Low != 180 {
		t.Errorf("expected low threshold 180, got %v", cfg.Thresholds.Low)
	}
}

func TestSet_RejectsInvalidCombination(t *testing.T) {
	setupTestConfig(t)

	// The low threshold may not exceed the high one.
	_, stderr := execConfig(t, "set", "thresholds.low_carbon", "900")

	if !strings.Contains(stderr, "Error:") {
		t.Fatalf("expected validation error, got: %q", stderr)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Thresholds.Low != config.Default().Thresholds.Low {
		t.Errorf("invalid value was persisted: %v", cfg.Thresholds.Low)
	}
}

func TestSet_Estimate(t *testing.T) {
	setupTestConfig(t)

	_, stderr := execConfig(t, "set", "estimates.fast.power_watts", "95")
	if stderr != "" {
		t.Fatalf("unexpected stderr: %s", stderr)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if got := cfg.Estimates[domain.StrategyFast.String()].PowerWatts; got != 95 {
		t.Errorf("expected fast power 95, got %v", got)
	}
}

func TestSet_SecretIsMasked(t *testing.T) {
	setupTestConfig(t)

	stdout, stderr := execConfig(t, "set", "carbon_api.api_key", "em-abcdef123456")

	if stderr != "" {
		t.Errorf("unexpected stderr: %s", stderr)
	}
	if strings.Contains(stdout, "abcdef") {
		t.Errorf("secret leaked in output: %s", stdout)
	}
	if !strings.Contains(stdout, "3456") {
		t.Errorf("expected masked suffix, got: %s", stdout)
	}
}

func TestSet_UnknownKey(t *testing.T) {
	setupTestConfig(t)

	_, stderr := execConfig(t, "set", "bogus-key", "value")

	if !strings.Contains(stderr, "unknown configuration key") {
		t.Errorf("expected 'unknown configuration key' error, got: %s", stderr)
	}
	if !strings.Contains(stderr, "carbon_api.zone") {
		t.Errorf("expected valid keys listed, got: %s", stderr)
	}
}

func TestSet_RequiresExactlyTwoArgs(t *testing.T) {
	setupTestConfig(t)

	_, stderr := execConfig(t, "set", "carbon_api.zone")

	if stderr == "" {
		t.Error("expected error for missing value argument")
	}
}
