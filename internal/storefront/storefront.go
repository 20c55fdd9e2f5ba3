// Package storefront assembles the Style Haven reference storefront: the
// encrypted store, catalog, accounts, HTML pages and JSON API behind one
// http.Handler.
package storefront

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kuitang/stylehaven/internal/api"
	"github.com/kuitang/stylehaven/internal/auth"
	"github.com/kuitang/stylehaven/internal/catalog"
	"github.com/kuitang/stylehaven/internal/config"
	"github.com/kuitang/stylehaven/internal/db"
	"github.com/kuitang/stylehaven/internal/email"
	"github.com/kuitang/stylehaven/internal/obs"
	"github.com/kuitang/stylehaven/internal/ratelimit"
	"github.com/kuitang/stylehaven/internal/web"
)

// PurgeInterval is how often expired sessions and tokens are deleted.
const PurgeInterval = 10 * time.Minute

// Options override the services New would otherwise build from config.
type Options struct {
	Email   email.EmailService
	Hasher  auth.PasswordHasher
	Catalog *catalog.Catalog
}

// App is an assembled storefront.
type App struct {
	Store    *db.Store
	Catalog  *catalog.Catalog
	Users    *auth.UserService
	Sessions *auth.SessionService
	Email    email.EmailService

	cfg     *config.Server
	limiter *ratelimit.RateLimiter
	handler http.Handler
}

// New opens the store, seeds accounts and wires every route.
func New(ctx context.Context, cfg *config.Server, opts Options) (*App, error) {
	log := obs.Pkg("storefront")

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	cat := opts.Catalog
	if cat == nil {
		if cat, err = catalog.Default(); err != nil {
			store.Close()
			return nil, fmt.Errorf("load catalog: %w", err)
		}
	}

	mail := opts.Email
	if mail == nil {
		if cfg.NoEmail {
			mail = email.NewMockEmailService()
		} else {
			mail = email.NewResendEmailService(cfg.ResendAPIKey, cfg.ResendFromEmail)
		}
	}

	secure := strings.HasPrefix(cfg.BaseURL, "https://")
	users := auth.NewUserService(store, opts.Hasher, mail, cfg.BaseURL)
	sessions := auth.NewSessionService(store, cfg.SessionDuration, secure)

	seeds := make([]auth.SeedAccount, 0, len(cfg.SeedAccounts))
	for _, a := range cfg.SeedAccounts {
		seeds = append(seeds, auth.SeedAccount{Name: a.Name, Email: a.Email, Password: a.Password, Admin: a.Admin})
	}
	if err := users.Seed(ctx, seeds); err != nil {
		store.Close()
		return nil, fmt.Errorf("seed accounts: %w", err)
	}

	renderer, err := web.NewRenderer(web.Templates())
	if err != nil {
		store.Close()
		return nil, err
	}

	app := &App{
		Store:    store,
		Catalog:  cat,
		Users:    users,
		Sessions: sessions,
		Email:    mail,
		cfg:      cfg,
		limiter:  ratelimit.NewRateLimiter(cfg.LoginRateLimit),
	}

	authMiddleware := auth.NewMiddleware(sessions)
	mux := http.NewServeMux()
	webHandler := web.NewWebHandler(renderer, cat, store, users, sessions, secure)
	webHandler.RegisterRoutes(mux, authMiddleware, app.limiter)
	web.NewStaticHandler(renderer, webHandler.PageFunc()).RegisterRoutes(mux, authMiddleware.OptionalAuth)
	api.NewHandler(cat, users, sessions, store.Ping).RegisterRoutes(mux, authMiddleware, app.limiter)

	app.handler = obs.RequestContextMiddleware(obs.AccessLogMiddleware("storefront", mux))

	log.Info("storefront ready",
		"products", len(cat.Products()),
		"seeded_accounts", len(seeds),
		"in_memory", cfg.DatabasePath == "",
	)
	return app, nil
}

func openStore(cfg *config.Server) (*db.Store, error) {
	if cfg.DatabasePath == "" {
		return db.OpenInMemory()
	}
	key, err := hex.DecodeString(cfg.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("decode master key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return db.Open(cfg.DatabasePath, key)
}

// Handler returns the storefront's root handler.
func (a *App) Handler() http.Handler { return a.handler }

// ResetLoginLimits forgets all login rate-limit state.
func (a *App) ResetLoginLimits() { a.limiter.Reset() }

// Close stops background work and closes the store.
func (a *App) Close() error {
	a.limiter.Stop()
	return a.Store.Close()
}

// Serve runs the HTTP server on ln until ctx is cancelled, then shuts down
// gracefully. Expired sessions are purged in the background.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	log := obs.Pkg("storefront")
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "addr", ln.Addr().String(), "base_url", a.cfg.BaseURL)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(PurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				n, err := a.Store.Purge(gctx)
				if err != nil {
					log.Warn("purge failed", "error", err)
					continue
				}
				if n > 0 {
					log.Debug("purged expired credentials", "rows", n)
				}
			}
		}
	})
	return g.Wait()
}

// ListenAndServe listens on the configured address and calls Serve.
func (a *App) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.ListenAddr, err)
	}
	return a.Serve(ctx, ln)
}
