package auth

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"nathanbeddoewebdev/carbonq/internal/config"
	"nathanbeddoewebdev/carbonq/internal/services/auth"

	"github.com/zalando/go-keyring"
)

func setupTestEnv(t *testing.T, mutate func(*config.Config)) {
	t.Helper()
	config.SetPath(filepath.Join(t.TempDir(), "config.json"))
	t.Cleanup(config.ResetPath)
	keyring.MockInit()

	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("save config: %v", err)
	}
}

func execAuth(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := NewCommand()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestLoginStatusLogout(t *testing.T) {
	setupTestEnv(t, nil)

	out, err := execAuth(t, "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(out, "not logged in") {
		t.Errorf("expected not logged in, got: %s", out)
	}

	out, err = execAuth(t, "login", "--token", "  em-test-key  ")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !strings.Contains(out, "Saved Electricity Maps API key.") {
		t.Errorf("unexpected login output: %s", out)
	}

	token, err := auth.DefaultStore().GetToken(auth.ProviderElectricityMaps)
	if err != nil || token != "em-test-key" {
		t.Fatalf("stored token = %q, %v", token, err)
	}

	out, _ = execAuth(t, "status")
	if !strings.Contains(out, "logged in (keychain)") {
		t.Errorf("expected keychain status, got: %s", out)
	}

	out, err = execAuth(t, "logout")
	if err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if !strings.Contains(out, "Removed") {
		t.Errorf("unexpected logout output: %s", out)
	}
	if _, err := auth.DefaultStore().GetToken(auth.ProviderElectricityMaps); !errors.Is(err, auth.ErrTokenNotFound) {
		t.Errorf("token still stored after logout: %v", err)
	}

	out, _ = execAuth(t, "logout")
	if !strings.Contains(out, "No stored API key.") {
		t.Errorf("unexpected second logout output: %s", out)
	}
}

func TestStatus_ConfigKeyTakesPrecedence(t *testing.T) {
	setupTestEnv(t, func(c *config.Config) { c.CarbonAPI.APIKey = "from-config" })

	out, err := execAuth(t, "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(out, "logged in (config file)") {
		t.Errorf("expected config source, got: %s", out)
	}
}

func TestLogin_VerifyRejectsBadKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("auth-token") != "good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"zone":"DE","carbonIntensity":320,"datetime":"2026-05-12T10:00:00.000Z"}`))
	}))
	defer srv.Close()

	setupTestEnv(t, func(c *config.Config) {
		c.CarbonAPI.BaseURL = srv.URL
		c.CarbonAPI.Zone = "DE"
	})

	if _, err := execAuth(t, "login", "--token", "bad-key", "--verify"); err == nil {
		t.Fatal("expected verification failure")
	}
	if _, err := auth.DefaultStore().GetToken(auth.ProviderElectricityMaps); !errors.Is(err, auth.ErrTokenNotFound) {
		t.Errorf("rejected key was stored: %v", err)
	}

	if _, err := execAuth(t, "login", "--token", "good-key", "--verify"); err != nil {
		t.Fatalf("login with valid key failed: %v", err)
	}
	if token, _ := auth.DefaultStore().GetToken(auth.ProviderElectricityMaps); token != "good-key" {
		t.Errorf("stored token = %q, want good-key", token)
	}
}
