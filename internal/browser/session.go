package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/julestools/julesmcp/internal/config"
	"github.com/julestools/julesmcp/internal/cookies"
	"github.com/julestools/julesmcp/internal/logging"
)

const (
	viewportWidth  = 1280
	viewportHeight = 720
)

// Provisioner supplies a CDP endpoint for remote sessions.
type Provisioner interface {
	ConnectURL(ctx context.Context) (string, error)
}

var (
	// Playwright instance (singleton)
	pwOnce     sync.Once
	pwInstance *playwright.Playwright
	pwErr      error
)

// getPlaywright returns the singleton Playwright instance.
func getPlaywright() (*playwright.Playwright, error) {
	pwOnce.Do(func() {
		// Install browsers if needed
		if err := playwright.Install(); err != nil {
			pwErr = fmt.Errorf("failed to install playwright browsers: %w", err)
			return
		}

		pw, err := playwright.Run()
		if err != nil {
			pwErr = fmt.Errorf("failed to start playwright: %w", err)
			return
		}
		pwInstance = pw
	})

	return pwInstance, pwErr
}

// Manager owns the single automated page. The first operation launches or
// connects a browser according to the configured mode; later operations
// reuse it, relaunching only after the page or connection dies.
type Manager struct {
	cfg         *config.Config
	provisioner Provisioner

	// gate admits one operation at a time. Scripted flows span many page
	// interactions, so serialization has to cover whole operations, not
	// individual calls.
	gate chan struct{}

	pw         *playwright.Playwright
	browser    playwright.Browser
	browserCtx playwright.BrowserContext
	page       playwright.Page
	auto       Automation
	closed     bool
}

// NewManager returns a Manager for the given configuration. The provisioner
// is only consulted in remote mode and may be nil otherwise.
func NewManager(cfg *config.Config, provisioner Provisioner) *Manager {
	return &Manager{
		cfg:         cfg,
		provisioner: provisioner,
		gate:        make(chan struct{}, 1),
	}
}

// Do runs one named operation against the managed page. Concurrent callers
// are serialized; a waiting caller gives up when its context is canceled.
func (m *Manager) Do(ctx context.Context, name string, fn func(Automation) error) error {
	select {
	case m.gate <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-m.gate }()

	auto, err := m.ensurePage(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	logging.Debugf("browser: %s: begin", name)
	err = fn(auto)
	logging.Debugf("browser: %s: done in %s", name, time.Since(start).Round(time.Millisecond))
	return err
}

// Active reports whether a live browser session exists, without starting one.
func (m *Manager) Active() bool {
	select {
	case m.gate <- struct{}{}:
		defer func() { <-m.gate }()
		return m.live()
	default:
		// An operation holds the gate, so a session is up.
		return true
	}
}

// SaveCookies writes the live context's cookies to path. It fails when no
// session has been started; callers decide whether that matters.
func (m *Manager) SaveCookies(ctx context.Context, path string) error {
	select {
	case m.gate <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-m.gate }()

	if !m.live() {
		return fmt.Errorf("no active browser session")
	}
	cs, err := m.auto.Cookies(ctx)
	if err != nil {
		return err
	}
	return cookies.SaveFile(cs, path)
}

// Close tears the session down. It waits for an in-flight operation to
// finish first.
func (m *Manager) Close() error {
	m.gate <- struct{}{}
	defer func() { <-m.gate }()

	if m.closed {
		return nil
	}
	m.closed = true
	m.teardown()
	return nil
}

// ensurePage returns the live Automation, launching or reconnecting as
// needed. Caller holds the gate.
func (m *Manager) ensurePage(ctx context.Context) (Automation, error) {
	if m.closed {
		return nil, fmt.Errorf("browser manager is closed")
	}
	if m.live() {
		return m.auto, nil
	}
	m.teardown()

	// Validate before anything heavyweight happens.
	if err := m.cfg.Validate(); err != nil {
		return nil, err
	}

	pw, err := getPlaywright()
	if err != nil {
		return nil, err
	}
	m.pw = pw

	switch m.cfg.Mode {
	case config.ModeBrowserbase:
		err = m.connectRemote(ctx)
	case config.ModePersistent, config.ModeChromeProfile:
		err = m.launchPersistent()
	default:
		err = m.launchEphemeral()
	}
	if err != nil {
		m.teardown()
		return nil, err
	}

	m.page.SetDefaultTimeout(float64(m.cfg.Timeout().Milliseconds()))
	m.auto = newPageAutomation(m.page, m.cfg.Timeout())

	if err := m.seedCookies(ctx); err != nil {
		m.teardown()
		return nil, err
	}

	logging.Infof("browser session ready (mode %s)", m.cfg.Mode)
	return m.auto, nil
}

// live reports whether the current page can still be driven.
func (m *Manager) live() bool {
	if m.auto == nil {
		return false
	}
	if m.browser != nil && !m.browser.IsConnected() {
		return false
	}
	if m.page != nil && m.page.IsClosed() {
		return false
	}
	return true
}

func (m *Manager) launchEphemeral() error {
	browser, err := m.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(m.cfg.Headless),
	})
	if err != nil {
		return fmt.Errorf("failed to launch chromium: %w", err)
	}

	browserCtx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: viewportWidth, Height: viewportHeight},
	})
	if err != nil {
		_ = browser.Close()
		return fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		_ = browser.Close()
		return fmt.Errorf("failed to create page: %w", err)
	}

	m.browser = browser
	m.browserCtx = browserCtx
	m.page = page
	return nil
}

func (m *Manager) launchPersistent() error {
	dir := m.cfg.EffectiveProfileDir()
	opts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(m.cfg.Headless),
		Viewport: &playwright.Size{Width: viewportWidth, Height: viewportHeight},
	}
	if m.cfg.Mode == config.ModeChromeProfile {
		// A real Chrome profile only loads in the branded browser.
		opts.Channel = playwright.String("chrome")
	}

	browserCtx, err := m.pw.Chromium.LaunchPersistentContext(dir, opts)
	if err != nil {
		return fmt.Errorf("failed to launch persistent context at %s: %w", dir, err)
	}
	m.browserCtx = browserCtx

	// Persistent contexts usually restore a page; reuse it.
	if pages := browserCtx.Pages(); len(pages) > 0 {
		m.page = pages[0]
		return nil
	}
	page, err := browserCtx.NewPage()
	if err != nil {
		_ = browserCtx.Close()
		m.browserCtx = nil
		return fmt.Errorf("failed to create page: %w", err)
	}
	m.page = page
	return nil
}

func (m *Manager) connectRemote(ctx context.Context) error {
	if m.provisioner == nil {
		return fmt.Errorf("no session provisioner configured")
	}

	// The connect URL embeds the API key, keep it out of logs.
	url, err := m.provisioner.ConnectURL(ctx)
	if err != nil {
		return err
	}

	browser, err := m.pw.Chromium.ConnectOverCDP(url)
	if err != nil {
		return fmt.Errorf("failed to connect to remote browser: %w", err)
	}
	m.browser = browser

	// Remote sessions come up with a live context and page.
	if contexts := browser.Contexts(); len(contexts) > 0 {
		m.browserCtx = contexts[0]
	} else {
		browserCtx, err := browser.NewContext(playwright.BrowserNewContextOptions{
			Viewport: &playwright.Size{Width: viewportWidth, Height: viewportHeight},
		})
		if err != nil {
			_ = browser.Close()
			m.browser = nil
			return fmt.Errorf("failed to create browser context: %w", err)
		}
		m.browserCtx = browserCtx
	}

	if pages := m.browserCtx.Pages(); len(pages) > 0 {
		m.page = pages[0]
		return nil
	}
	page, err := m.browserCtx.NewPage()
	if err != nil {
		_ = browser.Close()
		m.browser = nil
		m.browserCtx = nil
		return fmt.Errorf("failed to create page: %w", err)
	}
	m.page = page
	return nil
}

// seedCookies injects configured cookies into the fresh context before the
// first navigation. A raw cookie string wins over the cookie file.
func (m *Manager) seedCookies(ctx context.Context) error {
	var seed []cookies.Cookie
	switch {
	case m.cfg.CookieString != "":
		seed = cookies.Parse(m.cfg.CookieString)
	case m.cfg.Mode == config.ModeCookies && m.cfg.CookieFile != "":
		seed = cookies.LoadFile(m.cfg.CookieFile)
	}

	if len(seed) == 0 {
		if m.cfg.Mode == config.ModeCookies {
			logging.Warn("cookies mode selected but no cookies available, continuing unauthenticated")
		}
		return nil
	}

	if err := m.auto.SetCookies(ctx, seed); err != nil {
		return fmt.Errorf("failed to inject cookies: %w", err)
	}
	logging.Infof("injected %d cookies into browser context", len(seed))
	return nil
}

func (m *Manager) teardown() {
	switch {
	case m.browser != nil && m.cfg.Mode == config.ModeBrowserbase:
		// Dropping the client disconnects without ending the remote
		// session; keepAlive holds it open for reattachment.
		_ = m.browser.Close()
	case m.browser != nil:
		_ = m.browser.Close()
	case m.browserCtx != nil:
		// Persistent contexts have no separate browser object.
		_ = m.browserCtx.Close()
	}
	m.browser = nil
	m.browserCtx = nil
	m.page = nil
	m.auto = nil
}
