// Package api serves the storefront's JSON API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/stylehaven/internal/auth"
	"github.com/kuitang/stylehaven/internal/catalog"
	"github.com/kuitang/stylehaven/internal/db"
	"github.com/kuitang/stylehaven/internal/errs"
	"github.com/kuitang/stylehaven/internal/obs"
	"github.com/kuitang/stylehaven/internal/ratelimit"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 16

// Handler serves /api/* and /health.
type Handler struct {
	catalog  *catalog.Catalog
	users    *auth.UserService
	sessions *auth.SessionService
	ping     func(context.Context) error
}

// NewHandler creates an API handler. ping backs /health and may be nil.
func NewHandler(cat *catalog.Catalog, users *auth.UserService, sessions *auth.SessionService, ping func(context.Context) error) *Handler {
	return &Handler{catalog: cat, users: users, sessions: sessions, ping: ping}
}

// RegisterRoutes registers all API routes on the given mux. A non-nil
// loginLimiter throttles POST /api/auth/login per client IP.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, loginLimiter *ratelimit.RateLimiter) {
	bearer := authMiddleware.RequireBearer(h.unauthorized)

	var login http.Handler = http.HandlerFunc(h.Login)
	if loginLimiter != nil {
		login = ratelimit.Middleware(loginLimiter, ratelimit.ClientIP, h.throttled)(login)
	}
	mux.Handle("POST /api/auth/login", login)
	mux.Handle("POST /api/auth/logout", bearer(http.HandlerFunc(h.Logout)))
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)
	mux.HandleFunc("GET /api/categories", h.ListCategories)
	mux.Handle("GET /api/user/profile", bearer(http.HandlerFunc(h.Profile)))
	mux.HandleFunc("GET /health", h.Health)
}

// ErrorResponse is the body of every API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Product is the API form of a catalog product.
type Product struct {
	ID           int      `json:"id"`
	Slug         string   `json:"slug"`
	Name         string   `json:"name"`
	Price        float64  `json:"price"`
	PriceDisplay string   `json:"price_display"`
	Description  string   `json:"description"`
	ImageURL     string   `json:"image_url"`
	Category     string   `json:"category"`
	Sizes        []string `json:"sizes"`
}

// ProductList is the body of GET /api/products.
type ProductList struct {
	Products   []Product `json:"products"`
	TotalCount int       `json:"total_count"`
}

// User is the API form of an account.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries a bearer token.
type LoginResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

func toProduct(p catalog.Product) Product {
	sizes := p.Sizes
	if sizes == nil {
		sizes = []string{}
	}
	return Product{
		ID:           p.ID,
		Slug:         p.Slug,
		Name:         p.Name,
		Price:        p.Dollars(),
		PriceDisplay: p.Price(),
		Description:  p.Description,
		ImageURL:     p.ImagePath(),
		Category:     p.Category,
		Sizes:        sizes,
	}
}

func toUser(u db.User) User {
	return User{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeErr(w, r, errs.Wrap(errs.InvalidArgument, "Invalid JSON body", err))
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeErr(w, r, errs.New(errs.InvalidArgument, "email and password are required"))
		return
	}

	u, err := h.users.VerifyLogin(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		obs.From(r.Context()).Info("api login rejected")
		writeErr(w, r, errs.Wrap(errs.Unauthenticated, "Invalid email or password", err))
		return
	}
	if err != nil {
		writeErr(w, r, err)
		return
	}
	token, expires, err := h.sessions.IssueToken(r.Context(), u.ID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{
		Token: token, TokenType: "Bearer", ExpiresAt: expires.UTC(), User: toUser(u),
	})
}

// Logout handles POST /api/auth/logout by revoking the presented token.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token, _ := auth.BearerToken(r)
	if err := h.sessions.RevokeToken(r.Context(), token); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListProducts handles GET /api/products with the same filters as the
// HTML catalog: q, category (repeatable), min_price, max_price.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	found := h.catalog.Filter(q)
	out := ProductList{Products: make([]Product, 0, len(found)), TotalCount: len(found)}
	for _, p := range found {
		out.Products = append(out.Products, toProduct(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func parseQuery(r *http.Request) (catalog.Query, error) {
	v := r.URL.Query()
	q := catalog.Query{Terms: catalog.Terms(v.Get("q")), Categories: v["category"]}
	if s := v.Get("min_price"); s != "" {
		cents, err := catalog.ParseDollars(s)
		if err != nil {
			return q, errs.Wrap(errs.InvalidArgument, "invalid min_price", err)
		}
		q.MinPrice = cents
	}
	if s := v.Get("max_price"); s != "" {
		cents, err := catalog.ParseDollars(s)
		if err != nil {
			return q, errs.Wrap(errs.InvalidArgument, "invalid max_price", err)
		}
		q.MaxPrice, q.HasMax = cents, true
	}
	if q.Inverted() {
		return q, errs.New(errs.InvalidArgument, "min_price exceeds max_price")
	}
	return q, nil
}

// GetProduct handles GET /api/products/{id}. The id may be numeric or a
// slug.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("id")
	var (
		p  catalog.Product
		ok bool
	)
	if id, err := strconv.Atoi(key); err == nil {
		p, ok = h.catalog.ByID(id)
	} else {
		p, ok = h.catalog.BySlug(key)
	}
	if !ok {
		writeErr(w, r, errs.New(errs.NotFound, "Product not found"))
		return
	}
	writeJSON(w, http.StatusOK, toProduct(p))
}

// ListCategories handles GET /api/categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	type category struct {
		Slug  string `json:"slug"`
		Name  string `json:"name"`
		Count int    `json:"product_count"`
	}
	cats := h.catalog.Categories()
	out := make([]category, 0, len(cats))
	for _, c := range cats {
		n := len(h.catalog.Filter(catalog.Query{Categories: []string{c.Slug}}))
		out = append(out, category{Slug: c.Slug, Name: c.Name, Count: n})
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": out})
}

// Profile handles GET /api/user/profile.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.UserFrom(r.Context())
	if !ok {
		writeErr(w, r, errs.New(errs.Unauthenticated, "Authentication required"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]User{"user": toUser(u)})
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		if err := h.ping(r.Context()); err != nil {
			obs.From(r.Context()).Error("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	writeErr(w, r, errs.Wrap(errs.Unauthenticated, "Authentication required", err))
}

func (h *Handler) throttled(w http.ResponseWriter, r *http.Request) {
	obs.From(r.Context()).Warn("api login throttled", "client", ratelimit.ClientIP(r))
	writeErr(w, r, errs.New(errs.TooManyRequests, "Too many login attempts"))
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeErr maps err to a status and JSON body. Uncoded errors are logged
// and reported as internal.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	code := errs.CodeOf(err)
	if code == errs.Internal {
		obs.From(r.Context()).Error("api request failed", "error", err)
	}
	writeJSON(w, errs.HTTPStatus(code), ErrorResponse{Error: errs.MessageOf(err), Code: string(code)})
}
