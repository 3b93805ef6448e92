// Package config resolves the process-wide session configuration once at
// startup: defaults, then the optional config.yaml in the data directory,
// then environment variables. The result is immutable for the process
// lifetime.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/julestools/julesmcp/internal/defaults"
	"github.com/julestools/julesmcp/internal/keyring"
)

// DefaultBaseURL is the dashboard the driver automates.
const DefaultBaseURL = "https://jules.google.com"

// Config holds every session setting. Mode is derived from RawMode by Load;
// unrecognized raw values fall through to fresh (RawMode keeps the original
// so session info can report it).
type Config struct {
	Mode    Mode   `yaml:"-"`
	RawMode string `yaml:"session_mode"`

	Headless  bool   `yaml:"headless"`
	TimeoutMS int    `yaml:"timeout_ms"`
	Debug     bool   `yaml:"debug"`
	BaseURL   string `yaml:"base_url"`

	ProfileDir   string `yaml:"profile_dir"`
	CookieFile   string `yaml:"cookie_file"`
	CookieString string `yaml:"cookies"`

	StorePath       string `yaml:"store_path"`
	ScreenshotDir   string `yaml:"screenshot_dir"`
	RefreshSchedule string `yaml:"refresh_schedule"`

	BrowserbaseAPIKey    string `yaml:"browserbase_api_key"`
	BrowserbaseProjectID string `yaml:"browserbase_project_id"`
	BrowserbaseSessionID string `yaml:"browserbase_session_id"`
	BrowserbaseContextID string `yaml:"browserbase_context_id"`
}

// Error is a fatal configuration error: the selected mode is missing a
// setting it requires. It is raised before any browser work starts and is
// never retried.
type Error struct {
	Mode    Mode
	Setting string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: mode %q requires %s", e.Mode, e.Setting)
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Mode:          ModeFresh,
		RawMode:       string(ModeFresh),
		Headless:      true,
		TimeoutMS:     60000,
		BaseURL:       DefaultBaseURL,
		StorePath:     defaults.StorePath(),
		ScreenshotDir: defaults.ScreenshotDir(),
	}
}

// Load resolves the configuration: defaults, the optional config.yaml in the
// data directory, then the environment. A missing config file is fine; a
// malformed one is an error.
func Load() (*Config, error) {
	return LoadFrom(defaults.ConfigPath())
}

// LoadFrom is Load with an explicit config file path.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.Mode, _ = ParseMode(cfg.RawMode)

	// The API key may live in the OS keychain instead of the environment.
	if cfg.Mode == ModeBrowserbase && cfg.BrowserbaseAPIKey == "" && keyring.Available() {
		if key, err := keyring.GetAPIKey(); err == nil {
			cfg.BrowserbaseAPIKey = key
		}
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	envStr(&c.RawMode, "JULES_SESSION_MODE")
	envBool(&c.Headless, "JULES_HEADLESS")
	envInt(&c.TimeoutMS, "JULES_TIMEOUT")
	envBool(&c.Debug, "JULES_DEBUG")
	envStr(&c.BaseURL, "JULES_BASE_URL")
	envStr(&c.ProfileDir, "JULES_PROFILE_DIR")
	envStr(&c.CookieFile, "JULES_COOKIE_FILE")
	envStr(&c.CookieString, "JULES_COOKIES")
	envStr(&c.StorePath, "JULES_STORE_PATH")
	envStr(&c.ScreenshotDir, "JULES_SCREENSHOT_DIR")
	envStr(&c.RefreshSchedule, "JULES_REFRESH_SCHEDULE")
	envStr(&c.BrowserbaseAPIKey, "BROWSERBASE_API_KEY")
	envStr(&c.BrowserbaseProjectID, "BROWSERBASE_PROJECT_ID")
	envStr(&c.BrowserbaseSessionID, "BROWSERBASE_SESSION_ID")
	envStr(&c.BrowserbaseContextID, "BROWSERBASE_CONTEXT_ID")
}

// Validate enforces the mode/setting matrix. It runs at startup and again
// before the first browser launch so no mode/field mismatch reaches a
// running browser.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeChromeProfile:
		if c.ProfileDir == "" {
			return &Error{Mode: c.Mode, Setting: "JULES_PROFILE_DIR"}
		}
	case ModeBrowserbase:
		if c.BrowserbaseAPIKey == "" {
			return &Error{Mode: c.Mode, Setting: "BROWSERBASE_API_KEY"}
		}
		// Reusing an existing session needs no project; creating one does.
		if c.BrowserbaseSessionID == "" && c.BrowserbaseProjectID == "" {
			return &Error{Mode: c.Mode, Setting: "BROWSERBASE_PROJECT_ID"}
		}
	}
	return nil
}

// Timeout bounds browser launches, navigations, and explicit waits.
func (c *Config) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// EffectiveProfileDir returns the configured profile directory, or the
// platform default for persistent mode.
func (c *Config) EffectiveProfileDir() string {
	if c.ProfileDir != "" {
		return c.ProfileDir
	}
	return defaults.ProfileDir()
}

func envStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
