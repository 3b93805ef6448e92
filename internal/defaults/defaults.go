// Package defaults resolves the platform data directory and the default
// locations derived from it.
//
// Platform paths:
//
//	macOS:   ~/Library/Application Support/JulesMCP/
//	Windows: %AppData%\JulesMCP\
//	Linux:   ~/.config/julesmcp/
//
// Override with JULES_DATA_DIR environment variable.
package defaults

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// DataDir returns the platform-appropriate data directory.
//
// Set JULES_DATA_DIR to override.
func DataDir() (string, error) {
	if dir := os.Getenv("JULES_DATA_DIR"); dir != "" {
		return dir, nil
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}

	// Linux: lowercase per XDG convention
	// macOS/Windows: title case per platform convention
	if runtime.GOOS == "linux" {
		return filepath.Join(configDir, "julesmcp"), nil
	}
	return filepath.Join(configDir, "JulesMCP"), nil
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}

// StorePath returns the default task store location.
func StorePath() string {
	dir, err := DataDir()
	if err != nil {
		return "jules-tasks.json"
	}
	return filepath.Join(dir, "tasks.json")
}

// ScreenshotDir returns the default directory for captured screenshots.
func ScreenshotDir() string {
	dir, err := DataDir()
	if err != nil {
		return "screenshots"
	}
	return filepath.Join(dir, "screenshots")
}

// ProfileDir returns the default persistent browser profile directory,
// used by persistent mode when no profile dir is configured.
func ProfileDir() string {
	dir, err := DataDir()
	if err != nil {
		return ".jules-profile"
	}
	return filepath.Join(dir, "profile")
}

// ConfigPath returns the optional YAML config file location.
func ConfigPath() string {
	dir, err := DataDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "config.yaml")
}
