// Package testutil provides the shared storefront fixture for the browser and
// API test packages. The fixture starts an in-process storefront once per
// test binary unless BASE_URL points at a deployed one.
package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/kuitang/stylehaven/internal/config"
	"github.com/kuitang/stylehaven/internal/obs"
	"github.com/kuitang/stylehaven/internal/storefront"
)

// Fixture is the storefront every test in a package talks to.
type Fixture struct {
	BaseURL string
	Suite   *config.Suite
	// Local is nil when testing an external BASE_URL.
	Local *storefront.Local
}

var (
	fixture    *Fixture
	fixtureErr error
	once       sync.Once
	mu         sync.Mutex
)

// GetStorefront returns the shared fixture, starting it on first use.
func GetStorefront(t testing.TB) *Fixture {
	t.Helper()
	mu.Lock()
	defer mu.Unlock()

	once.Do(func() {
		fixture, fixtureErr = start()
	})
	if fixtureErr != nil {
		t.Fatalf("storefront fixture: %v", fixtureErr)
	}
	return fixture
}

func start() (*Fixture, error) {
	obs.Init()
	cfg, err := config.LoadSuite()
	if err != nil {
		return nil, err
	}
	obs.SetLevel(obs.ParseLevel(cfg.LogLevel))

	f := &Fixture{Suite: cfg, BaseURL: cfg.BaseURL}
	if cfg.UsesInProcessStorefront() {
		local, err := storefront.StartLocal(context.Background(), storefront.Options{})
		if err != nil {
			return nil, err
		}
		f.Local = local
		f.BaseURL = local.URL
		cfg.BaseURL = local.URL
	}
	obs.Pkg("testutil").Info("storefront fixture ready", "base_url", f.BaseURL, "in_process", f.Local != nil)
	return f, nil
}

// Cleanup stops the in-process storefront. Call from TestMain after m.Run().
func Cleanup() {
	mu.Lock()
	defer mu.Unlock()
	if fixture != nil && fixture.Local != nil {
		fixture.Local.Close()
	}
	fixture = nil
}

// RequireInProcess skips tests that need control over the storefront, such
// as its rate limiter.
func (f *Fixture) RequireInProcess(t testing.TB) {
	t.Helper()
	if f.Local == nil {
		t.Skip("requires the in-process storefront (BASE_URL is set)")
	}
}
