package storefront

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/kuitang/stylehaven/internal/config"
	"github.com/kuitang/stylehaven/internal/ratelimit"
)

// LocalLoginBurst lets a full parallel run log in from one address without
// tripping the limiter.
const LocalLoginBurst = 50

// Local is an in-process storefront on a loopback port.
type Local struct {
	URL string
	App *App

	cancel context.CancelFunc
	done   chan error
}

// LocalConfig returns an in-memory, mock-email configuration served at
// baseURL with the default seeded accounts.
func LocalConfig(baseURL string) *config.Server {
	return &config.Server{
		ListenAddr:      "127.0.0.1:0",
		BaseURL:         baseURL,
		SessionDuration: time.Hour,
		LoginRateLimit: ratelimit.Config{
			RPS:             ratelimit.DefaultConfig.RPS,
			Burst:           LocalLoginBurst,
			CleanupInterval: ratelimit.DefaultConfig.CleanupInterval,
		},
		NoEmail:      true,
		SeedAccounts: config.SeedAccountsFromEnv(),
	}
}

// StartLocal starts a storefront on 127.0.0.1 with a random port. Call
// Close to stop it.
func StartLocal(ctx context.Context, opts Options) (*Local, error) {
	return StartLocalWith(ctx, LocalConfig, opts)
}

// StartLocalWith is StartLocal with a custom config builder; configure
// receives the base URL once the port is known.
func StartLocalWith(ctx context.Context, configure func(baseURL string) *config.Server, opts Options) (*Local, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	baseURL := "http://" + ln.Addr().String()

	app, err := New(ctx, configure(baseURL), opts)
	if err != nil {
		ln.Close()
		return nil, err
	}

	serveCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l := &Local{URL: baseURL, App: app, cancel: cancel, done: make(chan error, 1)}
	go func() { l.done <- app.Serve(serveCtx, ln) }()
	return l, nil
}

// Close shuts the server down and releases the store.
func (l *Local) Close() error {
	l.cancel()
	serveErr := <-l.done
	return errors.Join(serveErr, l.App.Close())
}
