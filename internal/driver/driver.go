// Package driver is the browser session abstraction flows are written
// against. Backends live in subpackages: pwdriver (playwright-go), roddriver
// (go-rod) and seldriver (tebeka/selenium); package launch picks one.
package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kuitang/stylehaven/internal/matrix"
)

// By is a locator strategy. Values match the W3C WebDriver strategy names.
type By string

const (
	ByID        By = "id"
	ByClassName By = "class name"
	ByCSS       By = "css selector"
	ByXPath     By = "xpath"
	ByTagName   By = "tag name"
)

var (
	// ErrNoSuchElement is returned by Find when nothing matches.
	ErrNoSuchElement = errors.New("driver: no such element")
	// ErrTimeout is returned by the Wait helpers.
	ErrTimeout = errors.New("driver: timed out")
	// ErrUnsupported means the backend cannot run the requested target; the
	// caller should skip it rather than fail.
	ErrUnsupported = errors.New("driver: unsupported target")
)

// Finder locates elements within a page or below an element.
type Finder interface {
	Find(by By, value string) (Element, error)
	FindAll(by By, value string) ([]Element, error)
}

// Driver is one browser session.
type Driver interface {
	Finder
	Get(url string) error
	// Eval evaluates a JavaScript expression in the page and returns its
	// JSON-decoded value.
	Eval(js string) (any, error)
	Screenshot() ([]byte, error)
	Maximize() error
	CurrentURL() (string, error)
	Quit() error
}

// Element is a handle to a DOM element.
type Element interface {
	Finder
	Text() (string, error)
	SendKeys(text string) error
	Click() error
	Submit() error
	Clear() error
	// Value returns the element's live value property.
	Value() (string, error)
	// Attribute returns the attribute or "" when it is absent.
	Attribute(name string) (string, error)
	Displayed() (bool, error)
	Enabled() (bool, error)
	// Eval calls js, a function expression such as "el => el.value", with
	// the element as its only argument.
	Eval(js string) (any, error)
}

// Launcher opens sessions for targets.
type Launcher interface {
	Launch(ctx context.Context, target matrix.Target) (Driver, error)
	Close() error
}

// Selector is a locator translated to a CSS or XPath expression, for
// backends that have no native WebDriver strategies.
type Selector struct {
	XPath bool
	Expr  string
}

// ToSelector converts a locator.
func ToSelector(by By, value string) (Selector, error) {
	switch by {
	case ByID:
		return Selector{Expr: `[id="` + cssQuote(value) + `"]`}, nil
	case ByClassName:
		if strings.ContainsAny(value, " \t\n") {
			return Selector{}, fmt.Errorf("driver: compound class name %q", value)
		}
		return Selector{Expr: "." + value}, nil
	case ByCSS, ByTagName:
		return Selector{Expr: value}, nil
	case ByXPath:
		return Selector{XPath: true, Expr: value}, nil
	default:
		return Selector{}, fmt.Errorf("driver: unknown locator strategy %q", by)
	}
}

func cssQuote(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// Describe renders a locator for error messages.
func Describe(by By, value string) string {
	return fmt.Sprintf("%s=%q", by, value)
}

// NotFound wraps ErrNoSuchElement with the locator.
func NotFound(by By, value string) error {
	return fmt.Errorf("%w: %s", ErrNoSuchElement, Describe(by, value))
}

// Unsupported wraps ErrUnsupported with a reason.
func Unsupported(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, fmt.Sprintf(format, args...))
}

// Desktop viewport applied where a real window cannot be maximized.
const (
	DesktopWidth  = 1920
	DesktopHeight = 1080
)

// SubmitScript submits the element's form.
const SubmitScript = `el => { const f = el.form || el.closest('form'); if (!f) throw new Error('element is not in a form'); f.requestSubmit(); }`

// SetValueScript assigns a value and dispatches input and change events.
const SetValueScript = `(el, v) => { el.value = v; el.dispatchEvent(new Event('input', {bubbles: true})); el.dispatchEvent(new Event('change', {bubbles: true})); }`

// SetValue assigns value to el through script, the way a slider or a select
// is driven.
func SetValue(el Element, value string) error {
	quoted := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`).Replace(value)
	_, err := el.Eval(`el => (` + SetValueScript + `)(el, '` + quoted + `')`)
	return err
}
