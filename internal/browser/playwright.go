package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/julestools/julesmcp/internal/cookies"
)

// pageAutomation adapts a Playwright page to the Automation interface.
// Timeouts ride on Playwright options; the context parameters are accepted
// for interface symmetry but Playwright calls are not cancelable mid-flight.
type pageAutomation struct {
	page    playwright.Page
	timeout time.Duration
}

var _ Automation = (*pageAutomation)(nil)

func newPageAutomation(page playwright.Page, timeout time.Duration) *pageAutomation {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &pageAutomation{page: page, timeout: timeout}
}

func (p *pageAutomation) ms() *float64 {
	return playwright.Float(float64(p.timeout.Milliseconds()))
}

func (p *pageAutomation) Navigate(ctx context.Context, url string) error {
	waitUntil := playwright.WaitUntilStateLoad
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: waitUntil,
		Timeout:   p.ms(),
	})
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (p *pageAutomation) WaitSettled(ctx context.Context) error {
	err := p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: p.ms(),
	})
	if err != nil {
		return fmt.Errorf("page did not settle: %w", err)
	}
	return nil
}

func (p *pageAutomation) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = p.timeout
	}
	state := playwright.WaitForSelectorStateVisible
	_, err := p.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		State:   state,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("wait for %s failed: %w", selector, err)
	}
	return nil
}

func (p *pageAutomation) Visible(ctx context.Context, selector string) (bool, error) {
	locator := p.page.Locator(selector)
	visible, err := locator.IsVisible()
	if err != nil {
		return false, fmt.Errorf("visibility check for %s failed: %w", selector, err)
	}
	return visible, nil
}

func (p *pageAutomation) Click(ctx context.Context, selector string) error {
	locator := p.page.Locator(selector)
	err := locator.Click(playwright.LocatorClickOptions{
		Timeout: p.ms(),
	})
	if err != nil {
		return fmt.Errorf("click on %s failed: %w", selector, err)
	}
	return nil
}

func (p *pageAutomation) Fill(ctx context.Context, selector, value string) error {
	locator := p.page.Locator(selector)
	err := locator.Fill(value, playwright.LocatorFillOptions{
		Timeout: p.ms(),
	})
	if err != nil {
		return fmt.Errorf("fill of %s failed: %w", selector, err)
	}
	return nil
}

func (p *pageAutomation) Type(ctx context.Context, selector, text string, delay time.Duration) error {
	locator := p.page.Locator(selector)
	typeOpts := playwright.LocatorTypeOptions{
		Timeout: p.ms(),
	}
	if delay > 0 {
		typeOpts.Delay = playwright.Float(float64(delay.Milliseconds()))
	}
	if err := locator.Type(text, typeOpts); err != nil {
		return fmt.Errorf("typing into %s failed: %w", selector, err)
	}
	return nil
}

func (p *pageAutomation) Press(ctx context.Context, key string) error {
	if err := p.page.Keyboard().Press(key); err != nil {
		return fmt.Errorf("press %s failed: %w", key, err)
	}
	return nil
}

func (p *pageAutomation) Text(ctx context.Context, selector string) (string, error) {
	locator := p.page.Locator(selector).First()
	text, err := locator.InnerText()
	if err != nil {
		return "", fmt.Errorf("text of %s failed: %w", selector, err)
	}
	return text, nil
}

func (p *pageAutomation) Texts(ctx context.Context, selector string) ([]string, error) {
	elements, err := p.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, fmt.Errorf("query %s failed: %w", selector, err)
	}
	var texts []string
	for _, element := range elements {
		text, err := element.TextContent()
		if err != nil {
			continue
		}
		texts = append(texts, text)
	}
	return texts, nil
}

func (p *pageAutomation) Links(ctx context.Context, selector string) ([]Link, error) {
	elements, err := p.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, fmt.Errorf("query %s failed: %w", selector, err)
	}
	var links []Link
	for _, element := range elements {
		text, _ := element.TextContent()
		href, _ := element.GetAttribute("href")
		if href == "" {
			continue
		}
		links = append(links, Link{Text: text, Href: href})
	}
	return links, nil
}

func (p *pageAutomation) URL(ctx context.Context) (string, error) {
	return p.page.URL(), nil
}

func (p *pageAutomation) WaitForURLChange(ctx context.Context, from string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = p.timeout
	}
	deadline := time.Now().Add(timeout)
	for {
		if current := p.page.URL(); current != from {
			return current, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("url did not change from %s within %s", from, timeout)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (p *pageAutomation) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	data, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(fullPage),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return data, nil
}

func (p *pageAutomation) SetCookies(ctx context.Context, cs []cookies.Cookie) error {
	if len(cs) == 0 {
		return nil
	}
	optional := make([]playwright.OptionalCookie, 0, len(cs))
	for _, c := range cs {
		domain := c.Domain
		if domain == "" {
			domain = cookies.DefaultDomain
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		optional = append(optional, playwright.OptionalCookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: playwright.String(domain),
			Path:   playwright.String(path),
		})
	}
	if err := p.page.Context().AddCookies(optional); err != nil {
		return fmt.Errorf("adding cookies failed: %w", err)
	}
	return nil
}

func (p *pageAutomation) Cookies(ctx context.Context) ([]cookies.Cookie, error) {
	raw, err := p.page.Context().Cookies()
	if err != nil {
		return nil, fmt.Errorf("reading cookies failed: %w", err)
	}
	cs := make([]cookies.Cookie, 0, len(raw))
	for _, c := range raw {
		cs = append(cs, cookies.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		})
	}
	return cs, nil
}
