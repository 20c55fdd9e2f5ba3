// Package pwdriver implements driver.Driver on playwright-go.
package pwdriver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/stylehaven/internal/driver"
	"github.com/kuitang/stylehaven/internal/matrix"
	"github.com/kuitang/stylehaven/internal/obs"
)

// Options configures the launcher.
type Options struct {
	Headless bool
	// ActionTimeout bounds every single page action.
	ActionTimeout time.Duration
}

// Launcher starts the Playwright driver lazily and keeps one browser per
// engine; each Launch gets a fresh browser context.
type Launcher struct {
	opts Options

	mu       sync.Mutex
	pw       *playwright.Playwright
	startErr error
	browsers map[string]playwright.Browser
}

// New returns a launcher. Nothing is started until the first Launch.
func New(opts Options) *Launcher {
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 10 * time.Second
	}
	return &Launcher{opts: opts, browsers: map[string]playwright.Browser{}}
}

type engine struct {
	key     string
	typ     func(*playwright.Playwright) playwright.BrowserType
	channel string
}

var (
	chromium = engine{key: "chromium", typ: func(pw *playwright.Playwright) playwright.BrowserType { return pw.Chromium }}
	firefox  = engine{key: "firefox", typ: func(pw *playwright.Playwright) playwright.BrowserType { return pw.Firefox }}
	webkit   = engine{key: "webkit", typ: func(pw *playwright.Playwright) playwright.BrowserType { return pw.WebKit }}
	msedge   = engine{key: "msedge", typ: func(pw *playwright.Playwright) playwright.BrowserType { return pw.Chromium }, channel: "msedge"}
)

func engineFor(target matrix.Target, device *playwright.DeviceDescriptor) (engine, error) {
	if target.Kind == matrix.Mobile {
		name := ""
		if device != nil {
			name = device.DefaultBrowserType
		}
		if name == "" && target.Device != nil {
			name = target.Device.Engine
		}
		switch name {
		case "webkit":
			return webkit, nil
		case "chromium":
			return chromium, nil
		case "firefox":
			return firefox, nil
		}
		return engine{}, driver.Unsupported("no engine for device %s", target)
	}
	switch target.Browser {
	case matrix.Chrome:
		return chromium, nil
	case matrix.Firefox:
		return firefox, nil
	case matrix.Safari:
		return webkit, nil
	case matrix.Edge:
		return msedge, nil
	}
	return engine{}, driver.Unsupported("browser %s", target.Browser)
}

func (l *Launcher) start() (*playwright.Playwright, error) {
	if l.pw != nil || l.startErr != nil {
		return l.pw, l.startErr
	}
	pw, err := playwright.Run()
	if err != nil {
		l.startErr = driver.Unsupported("playwright not available: %v", err)
		return nil, l.startErr
	}
	l.pw = pw
	return pw, nil
}

func (l *Launcher) browser(pw *playwright.Playwright, e engine) (playwright.Browser, error) {
	if b, ok := l.browsers[e.key]; ok {
		return b, nil
	}
	opts := playwright.BrowserTypeLaunchOptions{Headless: playwright.Bool(l.opts.Headless)}
	if e.channel != "" {
		opts.Channel = playwright.String(e.channel)
	}
	b, err := e.typ(pw).Launch(opts)
	if err != nil {
		return nil, driver.Unsupported("could not launch %s: %v", e.key, err)
	}
	l.browsers[e.key] = b
	return b, nil
}

// Launch opens a new context and page configured for target.
func (l *Launcher) Launch(ctx context.Context, target matrix.Target) (driver.Driver, error) {
	if reason := target.SkipReason(); reason != "" {
		return nil, driver.Unsupported("%s", reason)
	}

	l.mu.Lock()
	pw, err := l.start()
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	var descriptor *playwright.DeviceDescriptor
	if target.Device != nil {
		descriptor = pw.Devices[target.Device.Name]
	}
	e, err := engineFor(target, descriptor)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	b, err := l.browser(pw, e)
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}

	bctx, err := b.NewContext(contextOptions(target, descriptor))
	if err != nil {
		return nil, fmt.Errorf("pwdriver: new context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("pwdriver: new page: %w", err)
	}
	page.SetDefaultTimeout(float64(l.opts.ActionTimeout.Milliseconds()))

	obs.From(ctx).Debug("playwright session opened", "engine", e.key, "target", target.String())
	return &Driver{ctx: bctx, page: page, mobile: target.Kind == matrix.Mobile}, nil
}

func contextOptions(target matrix.Target, d *playwright.DeviceDescriptor) playwright.BrowserNewContextOptions {
	switch {
	case d != nil:
		return playwright.BrowserNewContextOptions{
			UserAgent:         playwright.String(d.UserAgent),
			Viewport:          d.Viewport,
			DeviceScaleFactor: playwright.Float(d.DeviceScaleFactor),
			IsMobile:          playwright.Bool(d.IsMobile),
			HasTouch:          playwright.Bool(d.HasTouch),
		}
	case target.Device != nil:
		dev := target.Device
		opts := playwright.BrowserNewContextOptions{
			Viewport:          &playwright.Size{Width: dev.Width, Height: dev.Height},
			DeviceScaleFactor: playwright.Float(dev.DeviceScaleFactor),
			IsMobile:          playwright.Bool(dev.IsMobile),
			HasTouch:          playwright.Bool(dev.HasTouch),
		}
		if dev.UserAgent != "" {
			opts.UserAgent = playwright.String(dev.UserAgent)
		}
		return opts
	default:
		return playwright.BrowserNewContextOptions{}
	}
}

// Close shuts down every browser and the Playwright driver.
func (l *Launcher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var errs []error
	for key, b := range l.browsers {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", key, err))
		}
		delete(l.browsers, key)
	}
	if l.pw != nil {
		if err := l.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop playwright: %w", err))
		}
		l.pw = nil
	}
	return errors.Join(errs...)
}

// Driver is one Playwright page in its own browser context.
type Driver struct {
	ctx    playwright.BrowserContext
	page   playwright.Page
	mobile bool
}

func (d *Driver) Get(url string) error {
	if _, err := d.page.Goto(url); err != nil {
		return fmt.Errorf("pwdriver: goto %s: %w", url, err)
	}
	return nil
}

func (d *Driver) Find(by driver.By, value string) (driver.Element, error) {
	return find(d.page.Locator, by, value)
}

func (d *Driver) FindAll(by driver.By, value string) ([]driver.Element, error) {
	return findAll(d.page.Locator, by, value)
}

func (d *Driver) Eval(js string) (any, error) {
	return d.page.Evaluate(js)
}

func (d *Driver) Screenshot() ([]byte, error) {
	return d.page.Screenshot(playwright.PageScreenshotOptions{FullPage: playwright.Bool(true)})
}

// Maximize sets a desktop-sized viewport. Emulated devices keep theirs.
func (d *Driver) Maximize() error {
	if d.mobile {
		return nil
	}
	return d.page.SetViewportSize(driver.DesktopWidth, driver.DesktopHeight)
}

func (d *Driver) CurrentURL() (string, error) {
	return d.page.URL(), nil
}

func (d *Driver) Quit() error {
	return d.ctx.Close()
}

type locatorFunc func(selector string, options ...playwright.PageLocatorOptions) playwright.Locator

func selectorString(by driver.By, value string) (string, error) {
	sel, err := driver.ToSelector(by, value)
	if err != nil {
		return "", err
	}
	if sel.XPath {
		return "xpath=" + sel.Expr, nil
	}
	return "css=" + sel.Expr, nil
}

func find(locate locatorFunc, by driver.By, value string) (driver.Element, error) {
	sel, err := selectorString(by, value)
	if err != nil {
		return nil, err
	}
	loc := locate(sel)
	n, err := loc.Count()
	if err != nil {
		return nil, fmt.Errorf("pwdriver: count %s: %w", driver.Describe(by, value), err)
	}
	if n == 0 {
		return nil, driver.NotFound(by, value)
	}
	return &Element{loc: loc.First()}, nil
}

func findAll(locate locatorFunc, by driver.By, value string) ([]driver.Element, error) {
	sel, err := selectorString(by, value)
	if err != nil {
		return nil, err
	}
	locs, err := locate(sel).All()
	if err != nil {
		return nil, fmt.Errorf("pwdriver: list %s: %w", driver.Describe(by, value), err)
	}
	out := make([]driver.Element, len(locs))
	for i, loc := range locs {
		out[i] = &Element{loc: loc}
	}
	return out, nil
}

// Element wraps a locator pinned to one match.
type Element struct {
	loc playwright.Locator
}

func (e *Element) sub(selector string, _ ...playwright.PageLocatorOptions) playwright.Locator {
	return e.loc.Locator(selector)
}

func (e *Element) Find(by driver.By, value string) (driver.Element, error) {
	return find(e.sub, by, value)
}

func (e *Element) FindAll(by driver.By, value string) ([]driver.Element, error) {
	return findAll(e.sub, by, value)
}

func (e *Element) Text() (string, error) { return e.loc.InnerText() }

func (e *Element) SendKeys(text string) error { return e.loc.PressSequentially(text) }

func (e *Element) Click() error { return e.loc.Click() }

func (e *Element) Submit() error {
	_, err := e.loc.Evaluate(driver.SubmitScript, nil)
	return err
}

func (e *Element) Clear() error { return e.loc.Clear() }

func (e *Element) Value() (string, error) {
	v, err := e.loc.Evaluate(`el => el.value == null ? "" : String(el.value)`, nil)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

func (e *Element) Attribute(name string) (string, error) { return e.loc.GetAttribute(name) }

func (e *Element) Displayed() (bool, error) { return e.loc.IsVisible() }

func (e *Element) Enabled() (bool, error) { return e.loc.IsEnabled() }

func (e *Element) Eval(js string) (any, error) { return e.loc.Evaluate(js, nil) }

var (
	_ driver.Launcher = (*Launcher)(nil)
	_ driver.Driver   = (*Driver)(nil)
	_ driver.Element  = (*Element)(nil)
)
