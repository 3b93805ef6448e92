package config

// Mode selects how the browser session is acquired. Each mode determines
// which optional settings are required; Validate enforces the matrix.
type Mode string

const (
	// ModeFresh launches a throwaway local browser with no profile.
	ModeFresh Mode = "fresh"
	// ModeChromeProfile drives an existing Chrome user profile on disk.
	ModeChromeProfile Mode = "chrome-profile"
	// ModeCookies launches fresh and seeds authentication cookies from a
	// file or a configured cookie string.
	ModeCookies Mode = "cookies"
	// ModePersistent keeps a dedicated profile directory across runs.
	ModePersistent Mode = "persistent"
	// ModeBrowserbase connects to a remotely provisioned browser over CDP.
	ModeBrowserbase Mode = "browserbase"
)

// ParseMode maps a raw mode string to a Mode. Unrecognized values fall
// through to ModeFresh without error; ok reports whether the input named a
// known mode so callers can still surface the raw value.
func ParseMode(s string) (mode Mode, ok bool) {
	switch Mode(s) {
	case ModeFresh, ModeChromeProfile, ModeCookies, ModePersistent, ModeBrowserbase:
		return Mode(s), true
	default:
		return ModeFresh, false
	}
}
