// Package launch selects a browser automation backend by name.
package launch

import (
	"fmt"
	"time"

	"github.com/kuitang/stylehaven/internal/config"
	"github.com/kuitang/stylehaven/internal/driver"
	"github.com/kuitang/stylehaven/internal/driver/pwdriver"
	"github.com/kuitang/stylehaven/internal/driver/roddriver"
	"github.com/kuitang/stylehaven/internal/driver/seldriver"
)

// Options are the backend-independent launch settings.
type Options struct {
	Headless      bool
	ActionTimeout time.Duration
	SeleniumURL   string
	EdgeBinary    string
}

// New returns the launcher for kind (playwright, rod or selenium).
func New(kind string, opts Options) (driver.Launcher, error) {
	switch kind {
	case config.DriverPlaywright, "":
		return pwdriver.New(pwdriver.Options{
			Headless:      opts.Headless,
			ActionTimeout: opts.ActionTimeout,
		}), nil
	case config.DriverRod:
		return roddriver.New(roddriver.Options{
			Headless:      opts.Headless,
			ActionTimeout: opts.ActionTimeout,
			EdgeBinary:    opts.EdgeBinary,
		}), nil
	case config.DriverSelenium:
		return seldriver.New(seldriver.Options{
			RemoteURL: opts.SeleniumURL,
			Headless:  opts.Headless,
		}), nil
	default:
		return nil, fmt.Errorf("launch: unknown driver %q", kind)
	}
}

// FromSuite builds the launcher named by the suite configuration.
func FromSuite(cfg *config.Suite) (driver.Launcher, error) {
	return New(cfg.Driver, Options{
		Headless:      cfg.Headless,
		ActionTimeout: cfg.WaitTimeout,
		SeleniumURL:   cfg.SeleniumURL,
		EdgeBinary:    cfg.EdgeBinary,
	})
}
