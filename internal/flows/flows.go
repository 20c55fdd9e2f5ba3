// Package flows holds the user journeys the suite checks against a
// storefront: account, catalog and cart flows in a browser, plus REST API
// checks. Every browser flow runs inside Run, which logs a failure, saves a
// screenshot and hands the error back to the caller.
package flows

import (
	"context"
	"fmt"
	"time"

	"github.com/kuitang/stylehaven/internal/artifacts"
	"github.com/kuitang/stylehaven/internal/driver"
	"github.com/kuitang/stylehaven/internal/obs"
	"github.com/kuitang/stylehaven/internal/urlutil"
)

// Env is what a browser flow runs with.
type Env struct {
	Driver   driver.Driver
	BaseURL  string
	Timeout  time.Duration
	Recorder *artifacts.Recorder // nil disables screenshots
	Now      func() time.Time
}

func (e *Env) url(path string) string {
	return urlutil.Join(e.BaseURL, path)
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Env) timeout() time.Duration {
	if e.Timeout > 0 {
		return e.Timeout
	}
	return 10 * time.Second
}

// Flow names a journey. Name prefixes failure screenshots, Title prefixes
// failure logs.
type Flow struct {
	Name  string
	Title string
}

func (f Flow) String() string { return f.Name }

var (
	Registration   = Flow{Name: "registration", Title: "Registration"}
	LoginValid     = Flow{Name: "login", Title: "Login"}
	LoginRejected  = Flow{Name: "invalid_login", Title: "Invalid credentials"}
	ProductSearch  = Flow{Name: "search", Title: "Product search"}
	ProductFilter  = Flow{Name: "filter", Title: "Product filtering"}
	CartAdd        = Flow{Name: "add_to_cart", Title: "Add to cart"}
	CartQuantity   = Flow{Name: "update_quantity", Title: "Update cart quantity"}
	ProductListAPI = Flow{Name: "product_api", Title: "Product API"}
	ProfileAPI     = Flow{Name: "user_profile_api", Title: "User profile API"}
)

// ExpectationError is an assertion about the page or response that did not
// hold.
type ExpectationError struct {
	Msg string
}

func (e *ExpectationError) Error() string { return e.Msg }

func expectf(format string, args ...any) error {
	return &ExpectationError{Msg: fmt.Sprintf(format, args...)}
}

// Failure is the error Run returns. It unwraps to the flow's own error.
type Failure struct {
	Flow       Flow
	Err        error
	Screenshot artifacts.Shot
}

func (f *Failure) Error() string { return f.Flow.Title + " test failed: " + f.Err.Error() }

func (f *Failure) Unwrap() error { return f.Err }

// Run executes fn for flow. On error it logs "<Title> test failed",
// captures <name>_error_<unix>.png and returns a *Failure wrapping the error.
func Run(ctx context.Context, env *Env, flow Flow, fn func(ctx context.Context) error) error {
	ctx = obs.WithCorrelation(ctx, obs.Correlation{Flow: flow.Name})
	err := fn(ctx)
	if err == nil {
		return nil
	}
	log := obs.From(ctx)
	log.Error(flow.Title+" test failed", "error", err)

	fail := &Failure{Flow: flow, Err: err}
	if env.Recorder != nil && env.Driver != nil {
		shot, serr := env.Recorder.Capture(ctx, env.Driver, flow.Name)
		if serr != nil {
			log.Warn("failure screenshot not saved", "error", serr)
		} else {
			fail.Screenshot = shot
		}
	}
	return fail
}

func (e *Env) waitPresent(ctx context.Context, by driver.By, value string) (driver.Element, error) {
	return driver.WaitPresent(ctx, e.Driver, by, value, e.timeout())
}

func (e *Env) waitClickable(ctx context.Context, by driver.By, value string) (driver.Element, error) {
	return driver.WaitClickable(ctx, e.Driver, by, value, e.timeout())
}

// fill finds each id and types its value.
func (e *Env) fill(fields ...[2]string) error {
	for _, f := range fields {
		el, err := e.Driver.Find(driver.ByID, f[0])
		if err != nil {
			return err
		}
		if err := el.SendKeys(f[1]); err != nil {
			return fmt.Errorf("type into #%s: %w", f[0], err)
		}
	}
	return nil
}

func (e *Env) click(by driver.By, value string) error {
	el, err := e.Driver.Find(by, value)
	if err != nil {
		return err
	}
	if err := el.Click(); err != nil {
		return fmt.Errorf("click %s: %w", driver.Describe(by, value), err)
	}
	return nil
}

