// Package roddriver implements driver.Driver on go-rod, speaking the Chrome
// DevTools Protocol directly. It serves Chromium-family targets only.
package roddriver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/kuitang/stylehaven/internal/driver"
	"github.com/kuitang/stylehaven/internal/matrix"
	"github.com/kuitang/stylehaven/internal/obs"
)

// Options configures the launcher.
type Options struct {
	Headless      bool
	ActionTimeout time.Duration
	// ChromeBinary overrides browser discovery for chrome targets.
	ChromeBinary string
	// EdgeBinary must be set for edge targets to run.
	EdgeBinary string
}

// Launcher keeps one browser process per binary; every Launch opens an
// incognito context so sessions do not share cookies.
type Launcher struct {
	opts Options

	mu       sync.Mutex
	browsers map[string]*rod.Browser
	procs    []*launcher.Launcher
}

// New returns a launcher. Browsers start on first use.
func New(opts Options) *Launcher {
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 10 * time.Second
	}
	return &Launcher{opts: opts, browsers: map[string]*rod.Browser{}}
}

func (l *Launcher) binaryFor(target matrix.Target) (string, error) {
	if target.Kind == matrix.Mobile {
		if target.Device == nil || target.Device.Engine != matrix.EngineChromium {
			return "", driver.Unsupported("rod emulates chromium devices only, not %s", target)
		}
		return l.opts.ChromeBinary, nil
	}
	switch target.Browser {
	case matrix.Chrome:
		return l.opts.ChromeBinary, nil
	case matrix.Edge:
		if l.opts.EdgeBinary == "" {
			return "", driver.Unsupported("edge needs E2E_EDGE_BIN with the rod driver")
		}
		return l.opts.EdgeBinary, nil
	default:
		return "", driver.Unsupported("rod cannot drive %s", target.Browser)
	}
}

func (l *Launcher) browser(bin string) (*rod.Browser, error) {
	if b, ok := l.browsers[bin]; ok {
		return b, nil
	}
	ln := launcher.New().Headless(l.opts.Headless).Set("no-sandbox")
	if bin != "" {
		ln = ln.Bin(bin)
	} else if path, ok := launcher.LookPath(); ok {
		ln = ln.Bin(path)
	}
	u, err := ln.Launch()
	if err != nil {
		return nil, driver.Unsupported("could not start browser: %v", err)
	}
	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		ln.Kill()
		return nil, fmt.Errorf("roddriver: connect: %w", err)
	}
	l.procs = append(l.procs, ln)
	l.browsers[bin] = b
	return b, nil
}

// Launch opens an incognito page for target.
func (l *Launcher) Launch(ctx context.Context, target matrix.Target) (driver.Driver, error) {
	if reason := target.SkipReason(); reason != "" {
		return nil, driver.Unsupported("%s", reason)
	}
	bin, err := l.binaryFor(target)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	b, err := l.browser(bin)
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}

	inc, err := b.Incognito()
	if err != nil {
		return nil, fmt.Errorf("roddriver: incognito: %w", err)
	}
	page, err := inc.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = inc.Close()
		return nil, fmt.Errorf("roddriver: new page: %w", err)
	}

	d := &Driver{browser: inc, page: page, timeout: l.opts.ActionTimeout}
	if dev := target.Device; dev != nil {
		if err := d.emulate(dev); err != nil {
			_ = d.Quit()
			return nil, err
		}
	}
	obs.From(ctx).Debug("rod session opened", "target", target.String())
	return d, nil
}

// Close kills every launched browser.
func (l *Launcher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.browsers {
		_ = b.Close()
		delete(l.browsers, key)
	}
	for _, p := range l.procs {
		p.Kill()
		p.Cleanup()
	}
	l.procs = nil
	return nil
}

// Driver is one rod page in its own incognito context.
type Driver struct {
	browser *rod.Browser
	page    *rod.Page
	timeout time.Duration
	mobile  bool
}

func (d *Driver) emulate(dev *matrix.Device) error {
	d.mobile = true
	if err := d.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             dev.Width,
		Height:            dev.Height,
		DeviceScaleFactor: dev.DeviceScaleFactor,
		Mobile:            dev.IsMobile,
	}); err != nil {
		return fmt.Errorf("roddriver: viewport: %w", err)
	}
	if dev.UserAgent != "" {
		if err := d.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: dev.UserAgent}); err != nil {
			return fmt.Errorf("roddriver: user agent: %w", err)
		}
	}
	if dev.HasTouch {
		if err := (proto.EmulationSetTouchEmulationEnabled{Enabled: true}).Call(d.page); err != nil {
			return fmt.Errorf("roddriver: touch: %w", err)
		}
	}
	return nil
}

func (d *Driver) p() *rod.Page {
	return d.page.Timeout(d.timeout)
}

func (d *Driver) Get(url string) error {
	p := d.p()
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("roddriver: navigate %s: %w", url, err)
	}
	return p.WaitLoad()
}

func (d *Driver) Find(by driver.By, value string) (driver.Element, error) {
	return first(d.FindAll(by, value))(by, value)
}

func (d *Driver) FindAll(by driver.By, value string) ([]driver.Element, error) {
	sel, err := driver.ToSelector(by, value)
	if err != nil {
		return nil, err
	}
	var els rod.Elements
	if sel.XPath {
		els, err = d.p().ElementsX(sel.Expr)
	} else {
		els, err = d.p().Elements(sel.Expr)
	}
	if err != nil {
		return nil, fmt.Errorf("roddriver: query %s: %w", driver.Describe(by, value), err)
	}
	return wrap(els, d.timeout), nil
}

func (d *Driver) Eval(js string) (any, error) {
	res, err := d.p().Eval(js)
	if err != nil {
		return nil, err
	}
	return res.Value.Val(), nil
}

func (d *Driver) Screenshot() ([]byte, error) {
	return d.p().Screenshot(true, nil)
}

// Maximize applies the desktop viewport; emulated devices keep theirs.
func (d *Driver) Maximize() error {
	if d.mobile {
		return nil
	}
	return d.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             driver.DesktopWidth,
		Height:            driver.DesktopHeight,
		DeviceScaleFactor: 1,
	})
}

func (d *Driver) CurrentURL() (string, error) {
	info, err := d.page.Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (d *Driver) Quit() error {
	_ = d.page.Close()
	return d.browser.Close()
}

func first(els []driver.Element, err error) func(driver.By, string) (driver.Element, error) {
	return func(by driver.By, value string) (driver.Element, error) {
		if err != nil {
			return nil, err
		}
		if len(els) == 0 {
			return nil, driver.NotFound(by, value)
		}
		return els[0], nil
	}
}

func wrap(els rod.Elements, timeout time.Duration) []driver.Element {
	out := make([]driver.Element, len(els))
	for i, el := range els {
		out[i] = &Element{el: el, timeout: timeout}
	}
	return out
}

// Element wraps a rod element handle.
type Element struct {
	el      *rod.Element
	timeout time.Duration
}

func (e *Element) e() *rod.Element { return e.el.Timeout(e.timeout) }

func (e *Element) Find(by driver.By, value string) (driver.Element, error) {
	return first(e.FindAll(by, value))(by, value)
}

func (e *Element) FindAll(by driver.By, value string) ([]driver.Element, error) {
	sel, err := driver.ToSelector(by, value)
	if err != nil {
		return nil, err
	}
	var els rod.Elements
	if sel.XPath {
		els, err = e.e().ElementsX(sel.Expr)
	} else {
		els, err = e.e().Elements(sel.Expr)
	}
	if err != nil {
		return nil, fmt.Errorf("roddriver: query %s: %w", driver.Describe(by, value), err)
	}
	return wrap(els, e.timeout), nil
}

func (e *Element) Text() (string, error) { return e.e().Text() }

func (e *Element) SendKeys(text string) error { return e.e().Input(text) }

func (e *Element) Click() error { return e.e().Click(proto.InputMouseButtonLeft, 1) }

func (e *Element) Submit() error {
	_, err := e.Eval(driver.SubmitScript)
	return err
}

func (e *Element) Clear() error {
	_, err := e.Eval(`el => { el.value = ''; el.dispatchEvent(new Event('input', {bubbles: true})); }`)
	return err
}

func (e *Element) Value() (string, error) {
	v, err := e.e().Property("value")
	if err != nil {
		return "", err
	}
	if v.Nil() {
		return "", nil
	}
	return v.String(), nil
}

func (e *Element) Attribute(name string) (string, error) {
	v, err := e.e().Attribute(name)
	if err != nil || v == nil {
		return "", err
	}
	return *v, nil
}

func (e *Element) Displayed() (bool, error) { return e.e().Visible() }

func (e *Element) Enabled() (bool, error) {
	disabled, err := e.e().Disabled()
	return !disabled, err
}

// Eval binds the element to this and passes it as the argument, so arrow
// functions receive it too.
func (e *Element) Eval(js string) (any, error) {
	res, err := e.e().Eval(`function() { return (` + js + `)(this); }`)
	if err != nil {
		return nil, err
	}
	return res.Value.Val(), nil
}

var (
	_ driver.Launcher = (*Launcher)(nil)
	_ driver.Driver   = (*Driver)(nil)
	_ driver.Element  = (*Element)(nil)
)
