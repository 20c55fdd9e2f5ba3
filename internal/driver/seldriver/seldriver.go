// Package seldriver implements driver.Driver on a remote W3C WebDriver
// endpoint (Selenium Grid, a standalone chromedriver, safaridriver) through
// tebeka/selenium.
package seldriver

import (
	"context"
	"errors"
	"fmt"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"github.com/tebeka/selenium/firefox"

	"github.com/kuitang/stylehaven/internal/driver"
	"github.com/kuitang/stylehaven/internal/matrix"
	"github.com/kuitang/stylehaven/internal/obs"
)

// Options configures the launcher.
type Options struct {
	// RemoteURL is the WebDriver hub, e.g. http://localhost:4444/wd/hub.
	RemoteURL string
	Headless  bool
}

// Launcher opens one remote session per Launch.
type Launcher struct {
	opts Options
	dial func(selenium.Capabilities, string) (selenium.WebDriver, error)
}

// New returns a launcher for the hub at opts.RemoteURL.
func New(opts Options) *Launcher {
	return &Launcher{opts: opts, dial: selenium.NewRemote}
}

// Capabilities builds the session request for target.
func (l *Launcher) Capabilities(target matrix.Target) (selenium.Capabilities, error) {
	if reason := target.SkipReason(); reason != "" {
		return nil, driver.Unsupported("%s", reason)
	}

	if target.Kind == matrix.Mobile {
		dev := target.Device
		if dev.Engine != matrix.EngineChromium {
			return nil, driver.Unsupported("WebDriver device emulation needs chromium, not %s", dev.Engine)
		}
		caps := selenium.Capabilities{"browserName": "chrome"}
		touch := dev.HasTouch
		caps.AddChrome(chrome.Capabilities{
			Args: l.chromeArgs(),
			MobileEmulation: &chrome.MobileEmulation{
				DeviceMetrics: &chrome.DeviceMetrics{
					Width:      uint(dev.Width),
					Height:     uint(dev.Height),
					PixelRatio: dev.DeviceScaleFactor,
					Touch:      &touch,
				},
				UserAgent: dev.UserAgent,
			},
			W3C: true,
		})
		return caps, nil
	}

	switch target.Browser {
	case matrix.Chrome:
		caps := selenium.Capabilities{"browserName": "chrome"}
		caps.AddChrome(chrome.Capabilities{Args: l.chromeArgs(), W3C: true})
		return caps, nil
	case matrix.Edge:
		caps := selenium.Capabilities{"browserName": "MicrosoftEdge"}
		caps["ms:edgeOptions"] = map[string]any{"args": l.chromeArgs()}
		return caps, nil
	case matrix.Firefox:
		caps := selenium.Capabilities{"browserName": "firefox"}
		var args []string
		if l.opts.Headless {
			args = append(args, "-headless")
		}
		caps.AddFirefox(firefox.Capabilities{Args: args})
		return caps, nil
	case matrix.Safari:
		return selenium.Capabilities{"browserName": "safari"}, nil
	}
	return nil, driver.Unsupported("browser %s", target.Browser)
}

func (l *Launcher) chromeArgs(extra ...string) []string {
	args := []string{"--no-sandbox", "--disable-dev-shm-usage"}
	if l.opts.Headless {
		args = append(args, "--headless=new")
	}
	return append(args, extra...)
}

// Launch opens a remote session.
func (l *Launcher) Launch(ctx context.Context, target matrix.Target) (driver.Driver, error) {
	if l.opts.RemoteURL == "" {
		return nil, driver.Unsupported("no SELENIUM_URL configured")
	}
	caps, err := l.Capabilities(target)
	if err != nil {
		return nil, err
	}
	wd, err := l.dial(caps, l.opts.RemoteURL)
	if err != nil {
		return nil, driver.Unsupported("remote session for %s: %v", target, err)
	}
	obs.From(ctx).Debug("webdriver session opened", "target", target.String(), "hub", l.opts.RemoteURL)
	return &Driver{wd: wd, mobile: target.Kind == matrix.Mobile, headless: l.opts.Headless}, nil
}

// Close is a no-op; sessions end with Quit.
func (l *Launcher) Close() error { return nil }

// Driver wraps a remote WebDriver session.
type Driver struct {
	wd       selenium.WebDriver
	mobile   bool
	headless bool
}

func (d *Driver) Get(url string) error { return d.wd.Get(url) }

func (d *Driver) Find(by driver.By, value string) (driver.Element, error) {
	el, err := d.wd.FindElement(string(by), value)
	if err != nil {
		return nil, translate(err, by, value)
	}
	return &Element{el: el, wd: d.wd}, nil
}

func (d *Driver) FindAll(by driver.By, value string) ([]driver.Element, error) {
	els, err := d.wd.FindElements(string(by), value)
	if err != nil {
		if errors.Is(translate(err, by, value), driver.ErrNoSuchElement) {
			return nil, nil
		}
		return nil, err
	}
	return wrap(els, d.wd), nil
}

func (d *Driver) Eval(js string) (any, error) {
	return d.wd.ExecuteScript("return ("+js+");", nil)
}

func (d *Driver) Screenshot() ([]byte, error) { return d.wd.Screenshot() }

// Maximize maximizes a headed window; headless windows are resized to the
// desktop viewport since they have no screen to fill.
func (d *Driver) Maximize() error {
	if d.mobile {
		return nil
	}
	if d.headless {
		return d.wd.ResizeWindow("", driver.DesktopWidth, driver.DesktopHeight)
	}
	return d.wd.MaximizeWindow("")
}

func (d *Driver) CurrentURL() (string, error) { return d.wd.CurrentURL() }

func (d *Driver) Quit() error { return d.wd.Quit() }

func translate(err error, by driver.By, value string) error {
	var se *selenium.Error
	if errors.As(err, &se) && se.Err == "no such element" {
		return driver.NotFound(by, value)
	}
	return fmt.Errorf("seldriver: find %s: %w", driver.Describe(by, value), err)
}

func wrap(els []selenium.WebElement, wd selenium.WebDriver) []driver.Element {
	out := make([]driver.Element, len(els))
	for i, el := range els {
		out[i] = &Element{el: el, wd: wd}
	}
	return out
}

// Element wraps a remote element reference.
type Element struct {
	el selenium.WebElement
	wd selenium.WebDriver
}

func (e *Element) Find(by driver.By, value string) (driver.Element, error) {
	el, err := e.el.FindElement(string(by), value)
	if err != nil {
		return nil, translate(err, by, value)
	}
	return &Element{el: el, wd: e.wd}, nil
}

func (e *Element) FindAll(by driver.By, value string) ([]driver.Element, error) {
	els, err := e.el.FindElements(string(by), value)
	if err != nil {
		return nil, err
	}
	return wrap(els, e.wd), nil
}

func (e *Element) Text() (string, error)      { return e.el.Text() }
func (e *Element) SendKeys(text string) error { return e.el.SendKeys(text) }
func (e *Element) Click() error               { return e.el.Click() }
func (e *Element) Clear() error               { return e.el.Clear() }

func (e *Element) Submit() error {
	_, err := e.Eval(driver.SubmitScript)
	return err
}

func (e *Element) Value() (string, error) {
	v, err := e.Eval(`el => el.value == null ? "" : String(el.value)`)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

func (e *Element) Attribute(name string) (string, error) {
	v, err := e.el.GetAttribute(name)
	if err != nil {
		var se *selenium.Error
		if errors.As(err, &se) {
			return "", nil
		}
		return "", err
	}
	return v, nil
}

func (e *Element) Displayed() (bool, error) { return e.el.IsDisplayed() }
func (e *Element) Enabled() (bool, error)   { return e.el.IsEnabled() }

func (e *Element) Eval(js string) (any, error) {
	return e.wd.ExecuteScript("return ("+js+")(arguments[0]);", []interface{}{e.el})
}

var (
	_ driver.Launcher = (*Launcher)(nil)
	_ driver.Driver   = (*Driver)(nil)
	_ driver.Element  = (*Element)(nil)
)
