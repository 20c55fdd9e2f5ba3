// Package drivertest provides an in-memory driver.Driver for unit tests of
// code that drives pages. Pages are scripted as element trees keyed by
// locator; clicks and submits run callbacks that can navigate or mutate the
// tree.
package drivertest

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/kuitang/stylehaven/internal/driver"
	"github.com/kuitang/stylehaven/internal/matrix"
)

// Key builds the map key for a locator.
func Key(by driver.By, value string) string {
	return string(by) + "|" + value
}

// Page is a scripted document.
type Page struct {
	Elements map[string][]*Element
}

// NewPage returns an empty page.
func NewPage() *Page {
	return &Page{Elements: map[string][]*Element{}}
}

// Add registers elements under a locator and returns the page.
func (p *Page) Add(by driver.By, value string, els ...*Element) *Page {
	k := Key(by, value)
	p.Elements[k] = append(p.Elements[k], els...)
	return p
}

// Element is a scripted DOM element.
type Element struct {
	TextContent string
	Val         string
	Attrs       map[string]string
	Hidden      bool
	Disabled    bool
	Children    map[string][]*Element

	OnClick  func() error
	OnSubmit func() error
	// OnEval overrides script evaluation. Without it, scripts built by
	// driver.SetValue update Val and anything else returns nil.
	OnEval func(js string) (any, error)

	mu     sync.Mutex
	Clicks int
}

// Child registers a nested element and returns the parent.
func (e *Element) Child(by driver.By, value string, els ...*Element) *Element {
	if e.Children == nil {
		e.Children = map[string][]*Element{}
	}
	k := Key(by, value)
	e.Children[k] = append(e.Children[k], els...)
	return e
}

func (e *Element) Find(by driver.By, value string) (driver.Element, error) {
	els := e.Children[Key(by, value)]
	if len(els) == 0 {
		return nil, driver.NotFound(by, value)
	}
	return els[0], nil
}

func (e *Element) FindAll(by driver.By, value string) ([]driver.Element, error) {
	return toElements(e.Children[Key(by, value)]), nil
}

func (e *Element) Text() (string, error) { return e.TextContent, nil }

func (e *Element) SendKeys(text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Val += text
	return nil
}

func (e *Element) Click() error {
	e.mu.Lock()
	e.Clicks++
	e.mu.Unlock()
	if e.OnClick != nil {
		return e.OnClick()
	}
	return nil
}

func (e *Element) Submit() error {
	if e.OnSubmit != nil {
		return e.OnSubmit()
	}
	return errors.New("drivertest: element is not in a form")
}

func (e *Element) Clear() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Val = ""
	return nil
}

func (e *Element) Value() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Val, nil
}

func (e *Element) Attribute(name string) (string, error) { return e.Attrs[name], nil }
func (e *Element) Displayed() (bool, error)              { return !e.Hidden, nil }
func (e *Element) Enabled() (bool, error)                { return !e.Disabled, nil }

func (e *Element) Eval(js string) (any, error) {
	if e.OnEval != nil {
		return e.OnEval(js)
	}
	if v, ok := setValueArg(js); ok {
		e.mu.Lock()
		e.Val = v
		e.mu.Unlock()
	}
	return nil, nil
}

// setValueArg extracts the value from a driver.SetValue script.
func setValueArg(js string) (string, bool) {
	if !strings.Contains(js, driver.SetValueScript) {
		return "", false
	}
	i := strings.LastIndex(js, "(el, '")
	j := strings.LastIndex(js, "')")
	if i < 0 || j < i {
		return "", false
	}
	return strings.NewReplacer(`\'`, `'`, `\\`, `\`).Replace(js[i+len("(el, '") : j]), true
}

func toElements(els []*Element) []driver.Element {
	out := make([]driver.Element, len(els))
	for i, el := range els {
		out[i] = el
	}
	return out
}

// Driver is a scripted session. Pages are keyed by URL path.
type Driver struct {
	mu          sync.Mutex
	Pages       map[string]*Page
	url         string
	Visited     []string
	Screenshots int
	Maximized   bool
	Closed      bool

	ScreenshotErr error
	// EvalFunc answers page-level scripts; nil makes Eval return nil.
	EvalFunc func(js string) (any, error)
}

// New returns a driver with the given pages.
func New(pages map[string]*Page) *Driver {
	return &Driver{Pages: pages}
}

func (d *Driver) page() *Page {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, err := url.Parse(d.url)
	if err != nil {
		return nil
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return d.Pages[path]
}

func (d *Driver) Get(rawURL string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = rawURL
	d.Visited = append(d.Visited, rawURL)
	return nil
}

// Navigate switches the current page, as a link or form would.
func (d *Driver) Navigate(rawURL string) {
	_ = d.Get(rawURL)
}

func (d *Driver) Find(by driver.By, value string) (driver.Element, error) {
	p := d.page()
	if p == nil || len(p.Elements[Key(by, value)]) == 0 {
		return nil, driver.NotFound(by, value)
	}
	return p.Elements[Key(by, value)][0], nil
}

func (d *Driver) FindAll(by driver.By, value string) ([]driver.Element, error) {
	p := d.page()
	if p == nil {
		return nil, nil
	}
	return toElements(p.Elements[Key(by, value)]), nil
}

func (d *Driver) Eval(js string) (any, error) {
	if d.EvalFunc != nil {
		return d.EvalFunc(js)
	}
	return nil, nil
}

func (d *Driver) Screenshot() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ScreenshotErr != nil {
		return nil, d.ScreenshotErr
	}
	d.Screenshots++
	return []byte("\x89PNG fake"), nil
}

func (d *Driver) Maximize() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Maximized = true
	return nil
}

func (d *Driver) CurrentURL() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

func (d *Driver) Quit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = true
	return nil
}

// Launcher hands out drivers built by NewDriver. Err, when set, is
// returned for every launch.
type Launcher struct {
	NewDriver func(matrix.Target) *Driver
	Err       error

	mu       sync.Mutex
	Launched []*Driver
	Closed   bool
}

func (l *Launcher) Launch(_ context.Context, target matrix.Target) (driver.Driver, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	d := l.NewDriver(target)
	l.mu.Lock()
	l.Launched = append(l.Launched, d)
	l.mu.Unlock()
	return d, nil
}

func (l *Launcher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Closed = true
	return nil
}

var (
	_ driver.Driver   = (*Driver)(nil)
	_ driver.Element  = (*Element)(nil)
	_ driver.Launcher = (*Launcher)(nil)
)
