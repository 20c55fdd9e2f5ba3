package web

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/kuitang/stylehaven/internal/auth"
	"github.com/kuitang/stylehaven/internal/catalog"
	"github.com/kuitang/stylehaven/internal/db"
	"github.com/kuitang/stylehaven/internal/obs"
	"github.com/kuitang/stylehaven/internal/ratelimit"
)

const (
	// PriceCeiling is the top of the price sliders, in dollars.
	PriceCeiling = 500
	// MaxQuantity caps a single cart line.
	MaxQuantity = 99

	invalidLoginMessage = "Invalid email or password"
	throttledMessage    = "Too many login attempts. Please wait a moment and try again."
)

// WebHandler provides HTTP handlers for web UI pages.
type WebHandler struct {
	renderer       *Renderer
	catalog        *catalog.Catalog
	store          *db.Store
	userService    *auth.UserService
	sessionService *auth.SessionService
	secureCookies  bool
}

// NewWebHandler creates a new web handler. secureCookies marks the cart
// cookie Secure; set it when the storefront is served over HTTPS.
func NewWebHandler(
	renderer *Renderer,
	cat *catalog.Catalog,
	store *db.Store,
	userService *auth.UserService,
	sessionService *auth.SessionService,
	secureCookies bool,
) *WebHandler {
	return &WebHandler{
		renderer:       renderer,
		catalog:        cat,
		store:          store,
		userService:    userService,
		sessionService: sessionService,
		secureCookies:  secureCookies,
	}
}

// RegisterRoutes registers all web UI routes on the given mux. A non-nil
// loginLimiter throttles POST /login per client IP.
func (h *WebHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, loginLimiter *ratelimit.RateLimiter) {
	opt := func(fn http.HandlerFunc) http.Handler { return authMiddleware.OptionalAuth(fn) }

	mux.Handle("GET /{$}", opt(h.HandleHome))
	mux.Handle("GET /products", opt(h.HandleProducts))
	mux.Handle("GET /products/{slug}", opt(h.HandleProduct))
	mux.HandleFunc("GET /images/{file}", h.HandleImage)

	mux.Handle("GET /cart", opt(h.HandleCart))
	mux.Handle("POST /cart/items", opt(h.HandleAddToCart))
	mux.Handle("POST /cart/items/{id}", opt(h.HandleUpdateCartItem))

	mux.Handle("GET /register", opt(h.HandleRegisterPage))
	mux.Handle("POST /register", opt(h.HandleRegister))
	mux.Handle("GET /login", opt(h.HandleLoginPage))
	var login http.Handler = opt(h.HandleLogin)
	if loginLimiter != nil {
		login = ratelimit.Middleware(loginLimiter, ratelimit.ClientIP, h.HandleLoginThrottled)(login)
	}
	mux.Handle("POST /login", login)
	mux.HandleFunc("POST /logout", h.HandleLogout)
	mux.Handle("GET /account", authMiddleware.RequireSession(http.HandlerFunc(h.HandleAccount)))

	mux.Handle("/", opt(h.HandleNotFound))
}

// PageData contains common data passed to all templates.
type PageData struct {
	Title     string
	User      *db.User
	CartCount int
	Query     string
}

// CategoryOption is one filter checkbox.
type CategoryOption struct {
	catalog.Category
	Checked bool
}

// ProductListData backs the home page and search results.
type ProductListData struct {
	PageData
	Products []catalog.Product
}

// FilterPageData backs /products.
type FilterPageData struct {
	PageData
	Heading      string
	Categories   []CategoryOption
	MinPrice     int64
	MaxPrice     int64
	PriceCeiling int
	Products     []catalog.Product
	Error        string
}

// ProductPageData backs a product detail page.
type ProductPageData struct {
	PageData
	Product      catalog.Product
	CategoryName string
	Added        bool
	Error        string
}

// RegisterPageData backs /register.
type RegisterPageData struct {
	PageData
	Name    string
	Email   string
	Success bool
	Errors  []string
}

// LoginPageData backs /login.
type LoginPageData struct {
	PageData
	Email string
	Error string
}

// ErrorPageData backs the error page.
type ErrorPageData struct {
	PageData
	Error     string
	ErrorCode int
}

func (h *WebHandler) page(r *http.Request, title string) PageData {
	d := PageData{Title: title, Query: strings.TrimSpace(r.URL.Query().Get("q"))}
	if u, ok := auth.UserFrom(r.Context()); ok {
		d.User = &u
	}
	if cartID := cartIDFromRequest(r); cartID != "" {
		n, err := h.store.CartCount(r.Context(), cartID)
		if err != nil {
			obs.From(r.Context()).Warn("cart count failed", "error", err)
		}
		d.CartCount = n
	}
	return d
}

// PageFunc exposes the shared page chrome for other handlers.
func (h *WebHandler) PageFunc() func(r *http.Request, title string) PageData { return h.page }

func (h *WebHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if err := h.renderer.Render(w, status, name, data); err != nil {
		obs.From(r.Context()).Error("render failed", "template", name, "error", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

func (h *WebHandler) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	obs.From(r.Context()).Error(msg, "error", err)
	h.renderer.RenderError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
}

// HandleHome handles GET / - featured products, or search results for ?q=.
func (h *WebHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	data := ProductListData{PageData: h.page(r, "Home")}
	if data.Query != "" {
		data.Title = "Search: " + data.Query
		data.Products = h.catalog.Search(data.Query)
		obs.From(r.Context()).Debug("search", "query", data.Query, "results", len(data.Products))
	} else {
		data.Products = h.catalog.Products()
	}
	h.render(w, r, http.StatusOK, "home.html", data)
}

// HandleProducts handles GET /products - the filterable catalog.
func (h *WebHandler) HandleProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := FilterPageData{
		PageData:     h.page(r, "Shop"),
		Heading:      "All products",
		MaxPrice:     PriceCeiling,
		PriceCeiling: PriceCeiling,
	}

	selected := q["category"]
	var names []string
	for _, c := range h.catalog.Categories() {
		checked := slices.Contains(selected, c.Slug)
		if checked {
			names = append(names, c.Name)
		}
		data.Categories = append(data.Categories, CategoryOption{Category: c, Checked: checked})
	}
	if len(names) > 0 {
		data.Heading = strings.Join(names, ", ")
	}

	query := catalog.Query{Categories: selected}
	if v := q.Get("min_price"); v != "" {
		cents, err := catalog.ParseDollars(v)
		if err != nil {
			data.Error = "Invalid minimum price"
		} else {
			query.MinPrice = cents
			data.MinPrice = cents / 100
		}
	}
	if v := q.Get("max_price"); v != "" {
		cents, err := catalog.ParseDollars(v)
		if err != nil {
			data.Error = "Invalid maximum price"
		} else {
			query.MaxPrice, query.HasMax = cents, true
			data.MaxPrice = cents / 100
		}
	}
	if query.Inverted() {
		data.Error = "Minimum price is above maximum price"
	}

	if data.Error == "" {
		data.Products = h.catalog.Filter(query)
	}
	status := http.StatusOK
	if data.Error != "" {
		status = http.StatusBadRequest
	}
	h.render(w, r, status, "products.html", data)
}

// HandleProduct handles GET /products/{slug}.
func (h *WebHandler) HandleProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := h.catalog.BySlug(r.PathValue("slug"))
	if !ok {
		h.renderer.RenderError(w, http.StatusNotFound, "Product not found")
		return
	}
	data := ProductPageData{
		PageData:     h.page(r, p.Name),
		Product:      p,
		CategoryName: h.catalog.CategoryName(p.Category),
		Added:        r.URL.Query().Get("added") == "1",
	}
	h.render(w, r, http.StatusOK, "product.html", data)
}

// HandleRegisterPage handles GET /register.
func (h *WebHandler) HandleRegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "register.html", RegisterPageData{PageData: h.page(r, "Create account")})
}

// HandleRegister handles POST /register.
func (h *WebHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid form")
		return
	}
	reg := auth.Registration{
		Name:            r.PostFormValue("fullname"),
		Email:           r.PostFormValue("email"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
		AcceptTerms:     r.PostFormValue("terms") != "",
	}
	data := RegisterPageData{
		PageData: h.page(r, "Create account"),
		Name:     strings.TrimSpace(reg.Name),
		Email:    strings.TrimSpace(reg.Email),
	}

	_, err := h.userService.Register(r.Context(), reg)
	var fieldErrs auth.FieldErrors
	switch {
	case err == nil:
		data.Success = true
		h.render(w, r, http.StatusOK, "register.html", data)
	case errors.As(err, &fieldErrs):
		for _, field := range []string{"fullname", "email", "password", "confirm_password", "terms"} {
			if msg, ok := fieldErrs[field]; ok {
				data.Errors = append(data.Errors, msg)
			}
		}
		h.render(w, r, http.StatusBadRequest, "register.html", data)
	case errors.Is(err, auth.ErrAccountExists):
		data.Errors = []string{"An account with this email already exists"}
		h.render(w, r, http.StatusConflict, "register.html", data)
	default:
		h.serverError(w, r, "registration failed", err)
	}
}

// HandleLoginPage handles GET /login.
func (h *WebHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if auth.IsAuthenticated(r.Context()) {
		http.Redirect(w, r, "/account", http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "login.html", LoginPageData{PageData: h.page(r, "Log in")})
}

// HandleLogin handles POST /login. Unknown emails and wrong passwords get
// the same message.
func (h *WebHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid form")
		return
	}
	emailAddr := strings.TrimSpace(r.PostFormValue("email"))
	u, err := h.userService.VerifyLogin(r.Context(), emailAddr, r.PostFormValue("password"))
	if errors.Is(err, auth.ErrInvalidCredentials) {
		obs.From(r.Context()).Info("login rejected", "reason", "invalid_credentials")
		h.render(w, r, http.StatusUnauthorized, "login.html", LoginPageData{
			PageData: h.page(r, "Log in"), Email: emailAddr, Error: invalidLoginMessage,
		})
		return
	}
	if err != nil {
		h.serverError(w, r, "login failed", err)
		return
	}

	sessionID, err := h.sessionService.Create(r.Context(), u.ID)
	if err != nil {
		h.serverError(w, r, "create session failed", err)
		return
	}
	h.sessionService.SetCookie(w, sessionID)
	obs.From(r.Context()).Info("login succeeded", "user_id", u.ID)
	http.Redirect(w, r, "/account", http.StatusSeeOther)
}

// HandleLoginThrottled renders the login page with 429 when the login rate
// limit trips.
func (h *WebHandler) HandleLoginThrottled(w http.ResponseWriter, r *http.Request) {
	obs.From(r.Context()).Warn("login throttled", "client", ratelimit.ClientIP(r))
	h.render(w, r, http.StatusTooManyRequests, "login.html", LoginPageData{
		PageData: h.page(r, "Log in"), Error: throttledMessage,
	})
}

// HandleLogout handles POST /logout.
func (h *WebHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if sessionID, err := auth.GetFromRequest(r); err == nil {
		if err := h.sessionService.Delete(r.Context(), sessionID); err != nil {
			obs.From(r.Context()).Warn("delete session failed", "error", err)
		}
	}
	h.sessionService.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleAccount handles GET /account - the signed-in dashboard.
func (h *WebHandler) HandleAccount(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "account.html", struct{ PageData }{h.page(r, "My account")})
}

// HandleNotFound renders 404 for unmatched paths.
func (h *WebHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.renderer.RenderError(w, http.StatusNotFound, "Page not found")
}

func parseQuantity(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 || n > MaxQuantity {
		return 0, false
	}
	return n, true
}
