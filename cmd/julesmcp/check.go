package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	cronlib "github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/julestools/julesmcp/internal/browserbase"
	"github.com/julestools/julesmcp/internal/config"
	"github.com/julestools/julesmcp/internal/cookies"
)

// CheckCmd creates the check command, a configuration doctor.
func CheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check the session configuration and connectivity",
		Long: `Validate the configured session mode against its required settings and
probe whatever the mode depends on: the Chrome profile directory, the
cookie file, or the Browserbase connect endpoint.`,
		Run: func(cmd *cobra.Command, args []string) {
			runCheck()
		},
	}
}

type checkResult struct {
	name    string
	status  string // "ok", "warn", "error"
	message string
}

func runCheck() {
	cfg := app.Config

	var results []checkResult
	results = append(results, checkMode(cfg)...)
	results = append(results, checkModeSettings(cfg)...)
	results = append(results, checkSchedule(cfg)...)
	results = append(results, checkStore()...)

	errorCount := 0
	for _, r := range results {
		switch r.status {
		case "ok":
			fmt.Printf("\033[32m✓\033[0m %s: %s\n", r.name, r.message)
		case "warn":
			fmt.Printf("\033[33m⚠\033[0m %s: %s\n", r.name, r.message)
		case "error":
			fmt.Printf("\033[31m✗\033[0m %s: %s\n", r.name, r.message)
			errorCount++
		}
	}

	if errorCount > 0 {
		fmt.Println()
		fmt.Printf("\033[31m%d problem(s) found\033[0m\n", errorCount)
		os.Exit(1)
	}
}

func checkMode(cfg *config.Config) []checkResult {
	var results []checkResult

	if string(cfg.Mode) != cfg.RawMode {
		results = append(results, checkResult{
			name:    "Session Mode",
			status:  "warn",
			message: fmt.Sprintf("unrecognized mode %q, falling back to fresh", cfg.RawMode),
		})
	} else {
		results = append(results, checkResult{
			name:    "Session Mode",
			status:  "ok",
			message: string(cfg.Mode),
		})
	}

	results = append(results, checkResult{
		name:    "Target",
		status:  "ok",
		message: fmt.Sprintf("%s (headless=%v, timeout=%s)", cfg.BaseURL, cfg.Headless, cfg.Timeout()),
	})

	if err := cfg.Validate(); err != nil {
		results = append(results, checkResult{
			name:    "Configuration",
			status:  "error",
			message: err.Error(),
		})
	} else {
		results = append(results, checkResult{
			name:    "Configuration",
			status:  "ok",
			message: "mode requirements satisfied",
		})
	}

	return results
}

func checkModeSettings(cfg *config.Config) []checkResult {
	var results []checkResult

	switch cfg.Mode {
	case config.ModeChromeProfile:
		if cfg.ProfileDir == "" {
			break // already reported by Validate
		}
		if _, err := os.Stat(cfg.ProfileDir); err != nil {
			results = append(results, checkResult{
				name:    "Chrome Profile",
				status:  "error",
				message: fmt.Sprintf("%s: %v", cfg.ProfileDir, err),
			})
		} else {
			results = append(results, checkResult{
				name:    "Chrome Profile",
				status:  "ok",
				message: cfg.ProfileDir,
			})
		}

	case config.ModePersistent:
		dir := cfg.EffectiveProfileDir()
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			results = append(results, checkResult{
				name:    "Profile Directory",
				status:  "warn",
				message: fmt.Sprintf("%s (will be created on first launch)", dir),
			})
		} else {
			results = append(results, checkResult{
				name:    "Profile Directory",
				status:  "ok",
				message: dir,
			})
		}

	case config.ModeCookies:
		results = append(results, checkCookieSource(cfg))

	case config.ModeBrowserbase:
		results = append(results, checkBrowserbase(cfg)...)
	}

	return results
}

func checkCookieSource(cfg *config.Config) checkResult {
	if cfg.CookieString != "" {
		n := len(cookies.Parse(cfg.CookieString))
		return checkResult{
			name:    "Cookies",
			status:  "ok",
			message: fmt.Sprintf("%d cookies from JULES_COOKIES", n),
		}
	}
	if cfg.CookieFile != "" {
		if _, err := os.Stat(cfg.CookieFile); err != nil {
			return checkResult{
				name:    "Cookies",
				status:  "warn",
				message: fmt.Sprintf("%s not readable yet: %v", cfg.CookieFile, err),
			}
		}
		n := len(cookies.LoadFile(cfg.CookieFile))
		return checkResult{
			name:    "Cookies",
			status:  "ok",
			message: fmt.Sprintf("%d cookies in %s", n, cfg.CookieFile),
		}
	}
	return checkResult{
		name:    "Cookies",
		status:  "warn",
		message: "no cookie string or file configured, session will be unauthenticated",
	}
}

func checkBrowserbase(cfg *config.Config) []checkResult {
	var results []checkResult

	if cfg.BrowserbaseAPIKey == "" {
		return results // already reported by Validate
	}
	results = append(results, checkResult{
		name:    "Browserbase Key",
		status:  "ok",
		message: maskKey(cfg.BrowserbaseAPIKey),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client := browserbase.New(cfg)
	url, err := client.ConnectURL(ctx)
	if err != nil {
		results = append(results, checkResult{
			name:    "Browserbase",
			status:  "error",
			message: fmt.Sprintf("resolve connect URL: %v", err),
		})
		return results
	}

	// The URL embeds the API key, so report reachability only.
	if err := client.Probe(ctx, url); err != nil {
		results = append(results, checkResult{
			name:    "Browserbase",
			status:  "error",
			message: fmt.Sprintf("connect endpoint unreachable: %v", err),
		})
	} else {
		results = append(results, checkResult{
			name:    "Browserbase",
			status:  "ok",
			message: "connect endpoint reachable",
		})
	}

	return results
}

func checkSchedule(cfg *config.Config) []checkResult {
	if cfg.RefreshSchedule == "" {
		return []checkResult{{
			name:    "Refresh Schedule",
			status:  "ok",
			message: "disabled",
		}}
	}
	if _, err := cronlib.ParseStandard(cfg.RefreshSchedule); err != nil {
		return []checkResult{{
			name:    "Refresh Schedule",
			status:  "error",
			message: fmt.Sprintf("bad cron spec %q: %v", cfg.RefreshSchedule, err),
		}}
	}
	return []checkResult{{
		name:    "Refresh Schedule",
		status:  "ok",
		message: cfg.RefreshSchedule,
	}}
}

func checkStore() []checkResult {
	tasks, err := app.Store.List("", 0)
	if err != nil {
		return []checkResult{{
			name:    "Task Store",
			status:  "error",
			message: fmt.Sprintf("%s: %v", app.Store.Path(), err),
		}}
	}
	return []checkResult{{
		name:    "Task Store",
		status:  "ok",
		message: fmt.Sprintf("%s (%d tasks)", app.Store.Path(), len(tasks)),
	}}
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
