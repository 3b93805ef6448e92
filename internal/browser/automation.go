// Package browser owns the lifetime of the automated browser session. A
// Manager lazily acquires one page according to the configured session mode
// and serializes every scripted operation against it.
package browser

import (
	"context"
	"time"

	"github.com/julestools/julesmcp/internal/cookies"
)

// Link is an anchor extracted from the page.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// Automation is the page-level surface task operations script against. The
// production implementation drives a Playwright page; tests substitute a
// deterministic fake.
type Automation interface {
	// Navigate loads the URL and waits for the load event.
	Navigate(ctx context.Context, url string) error
	// WaitSettled waits until network activity quiets down.
	WaitSettled(ctx context.Context) error
	// WaitVisible waits for the selector to become visible.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// Visible reports current visibility without waiting.
	Visible(ctx context.Context, selector string) (bool, error)
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	// Type enters text keystroke by keystroke with the given delay.
	Type(ctx context.Context, selector, text string, delay time.Duration) error
	// Press sends a key to the focused element.
	Press(ctx context.Context, key string) error
	// Text returns the inner text of the first match.
	Text(ctx context.Context, selector string) (string, error)
	// Texts returns the text content of every match.
	Texts(ctx context.Context, selector string) ([]string, error)
	// Links returns text and href for every matching anchor.
	Links(ctx context.Context, selector string) ([]Link, error)
	URL(ctx context.Context) (string, error)
	// WaitForURLChange waits until the page URL differs from "from" and
	// returns the new URL.
	WaitForURLChange(ctx context.Context, from string, timeout time.Duration) (string, error)
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	SetCookies(ctx context.Context, cs []cookies.Cookie) error
	Cookies(ctx context.Context) ([]cookies.Cookie, error)
}
