package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Mode != ModeFresh {
		t.Errorf("Expected fresh mode, got %s", cfg.Mode)
	}
	if !cfg.Headless {
		t.Error("Expected headless by default")
	}
	if cfg.Timeout() != 60*time.Second {
		t.Errorf("Expected 60s timeout, got %s", cfg.Timeout())
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("Unexpected base URL %s", cfg.BaseURL)
	}
}

func TestParseMode(t *testing.T) {
	cases := []struct {
		in   string
		mode Mode
		ok   bool
	}{
		{"fresh", ModeFresh, true},
		{"chrome-profile", ModeChromeProfile, true},
		{"cookies", ModeCookies, true},
		{"persistent", ModePersistent, true},
		{"browserbase", ModeBrowserbase, true},
		{"", ModeFresh, false},
		{"banana", ModeFresh, false},
		{"Browserbase", ModeFresh, false},
	}
	for _, c := range cases {
		mode, ok := ParseMode(c.in)
		if mode != c.mode || ok != c.ok {
			t.Errorf("ParseMode(%q) = (%s, %v), want (%s, %v)", c.in, mode, ok, c.mode, c.ok)
		}
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("JULES_SESSION_MODE", "cookies")
	t.Setenv("JULES_HEADLESS", "false")
	t.Setenv("JULES_TIMEOUT", "15000")
	t.Setenv("JULES_COOKIE_FILE", "/tmp/c.json")
	t.Setenv("JULES_BASE_URL", "https://example.com")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Mode != ModeCookies {
		t.Errorf("Expected cookies mode, got %s", cfg.Mode)
	}
	if cfg.Headless {
		t.Error("Expected headless=false from env")
	}
	if cfg.Timeout() != 15*time.Second {
		t.Errorf("Expected 15s timeout, got %s", cfg.Timeout())
	}
	if cfg.CookieFile != "/tmp/c.json" {
		t.Errorf("Unexpected cookie file %s", cfg.CookieFile)
	}
	if cfg.BaseURL != "https://example.com" {
		t.Errorf("Unexpected base URL %s", cfg.BaseURL)
	}
}

func TestUnknownModeFallsThrough(t *testing.T) {
	t.Setenv("JULES_SESSION_MODE", "banana")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Mode != ModeFresh {
		t.Errorf("Unknown mode should fall through to fresh, got %s", cfg.Mode)
	}
	if cfg.RawMode != "banana" {
		t.Errorf("Raw mode should be preserved, got %s", cfg.RawMode)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Fallthrough mode should validate, got %v", err)
	}
}

func TestValidateChromeProfile(t *testing.T) {
	cfg := Default()
	cfg.Mode = ModeChromeProfile

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected error for chrome-profile without profile dir")
	}
	var cfgErr *Error
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected *config.Error, got %T", err)
	}
	if cfgErr.Setting != "JULES_PROFILE_DIR" {
		t.Errorf("Unexpected setting %s", cfgErr.Setting)
	}

	cfg.ProfileDir = "/home/user/.config/google-chrome"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

func TestValidateBrowserbase(t *testing.T) {
	cases := []struct {
		name      string
		key       string
		project   string
		sessionID string
		wantErr   bool
	}{
		{"missing key", "", "proj", "", true},
		{"missing project", "key", "", "", true},
		{"key and project", "key", "proj", "", false},
		{"existing session needs no project", "key", "", "sess-1", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := Default()
			cfg.Mode = ModeBrowserbase
			cfg.BrowserbaseAPIKey = c.key
			cfg.BrowserbaseProjectID = c.project
			cfg.BrowserbaseSessionID = c.sessionID

			err := cfg.Validate()
			if c.wantErr && err == nil {
				t.Error("Expected validation error")
			}
			if !c.wantErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Setenv("JULES_KEYRING_DISABLED", "1")

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `session_mode: browserbase
headless: false
timeout_ms: 30000
browserbase_api_key: file-key
browserbase_project_id: file-proj
`
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Mode != ModeBrowserbase {
		t.Errorf("Expected browserbase from file, got %s", cfg.Mode)
	}
	if cfg.TimeoutMS != 30000 {
		t.Errorf("Expected 30000ms from file, got %d", cfg.TimeoutMS)
	}
	if cfg.BrowserbaseAPIKey != "file-key" {
		t.Errorf("Unexpected key %s", cfg.BrowserbaseAPIKey)
	}

	// Environment wins over the file.
	t.Setenv("BROWSERBASE_API_KEY", "env-key")
	cfg, err = LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.BrowserbaseAPIKey != "env-key" {
		t.Errorf("Env should override file, got %s", cfg.BrowserbaseAPIKey)
	}
}

func TestLoadFromMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("session_mode: [broken"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("Expected error for malformed config file")
	}
}

func TestEffectiveProfileDir(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("JULES_DATA_DIR", tmp)

	cfg := Default()
	if got := cfg.EffectiveProfileDir(); got != filepath.Join(tmp, "profile") {
		t.Errorf("Expected default profile dir, got %s", got)
	}

	cfg.ProfileDir = "/custom"
	if got := cfg.EffectiveProfileDir(); got != "/custom" {
		t.Errorf("Expected configured dir, got %s", got)
	}
}
