package web_test

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/stylehaven/internal/auth"
	"github.com/kuitang/stylehaven/internal/catalog"
	"github.com/kuitang/stylehaven/internal/db"
	"github.com/kuitang/stylehaven/internal/email"
	"github.com/kuitang/stylehaven/internal/ratelimit"
	"github.com/kuitang/stylehaven/internal/web"
)

const (
	shopperEmail    = "shopper@example.com"
	shopperPassword = "shopperpass123"
)

type webTestEnv struct {
	server  *httptest.Server
	client  *http.Client
	store   *db.Store
	catalog *catalog.Catalog
	mail    *email.MockEmailService
}

func setupWebTestEnv(t *testing.T, limiter *ratelimit.RateLimiter) *webTestEnv {
	t.Helper()

	store, err := db.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cat, err := catalog.Default()
	require.NoError(t, err)
	renderer, err := web.NewRenderer(web.Templates())
	require.NoError(t, err)

	mail := email.NewMockEmailService()
	users := auth.NewUserService(store, auth.FakeInsecureHasher{}, mail, "http://shop.test")
	sessions := auth.NewSessionService(store, time.Hour, false)
	require.NoError(t, users.Seed(context.Background(), []auth.SeedAccount{
		{Name: "Shop Per", Email: shopperEmail, Password: shopperPassword},
	}))

	mux := http.NewServeMux()
	authMiddleware := auth.NewMiddleware(sessions)
	h := web.NewWebHandler(renderer, cat, store, users, sessions, false)
	h.RegisterRoutes(mux, authMiddleware, limiter)
	web.NewStaticHandler(renderer, h.PageFunc()).RegisterRoutes(mux, authMiddleware.OptionalAuth)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &webTestEnv{server: server, client: client, store: store, catalog: cat, mail: mail}
}

func (e *webTestEnv) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := e.client.Get(e.server.URL + path)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (e *webTestEnv) post(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := e.client.PostForm(e.server.URL+path, form)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func (e *webTestEnv) product(t *testing.T, slug string) catalog.Product {
	t.Helper()
	p, ok := e.catalog.BySlug(slug)
	require.True(t, ok, slug)
	return p
}

func TestHome_ListsProductsAndSearches(t *testing.T) {
	env := setupWebTestEnv(t, nil)

	resp, body := env.get(t, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `id="search_input"`)
	assert.Contains(t, body, "Summer Floral Dress")
	assert.Contains(t, body, "$59.99")

	resp, body = env.get(t, "/?q=summer+dress")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, strings.Count(body, `class="product-item"`))
	assert.Contains(t, body, "Linen Summer Dress")
	assert.NotContains(t, body, "Wool")

	_, body = env.get(t, "/?q=zzzz-nothing")
	assert.Zero(t, strings.Count(body, `class="product-item"`))
}

func TestProducts_Filters(t *testing.T) {
	env := setupWebTestEnv(t, nil)

	resp, body := env.get(t, "/products")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `<label for="cat_dresses">Dresses</label>`)
	assert.Contains(t, body, `id="price_slider_max"`)
	assert.Contains(t, body, "All products")

	_, body = env.get(t, "/products?category=dresses&max_price=100")
	assert.Contains(t, body, `id="cat_dresses" name="category" value="dresses" checked`)
	assert.Contains(t, body, "Summer Floral Dress")
	assert.NotContains(t, body, "Evening Silk Dress")
	for _, p := range env.catalog.Products() {
		if p.Category != "dresses" {
			assert.NotContains(t, body, ">"+p.Name+"<")
		}
	}

	resp, body = env.get(t, "/products?min_price=300&max_price=100")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "Minimum price is above maximum price")

	resp, _ = env.get(t, "/products?max_price=abc")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, body = env.get(t, "/products?max_price=0")
	assert.Contains(t, body, "No products match these filters.")
}

func TestProduct_DetailAndNotFound(t *testing.T) {
	env := setupWebTestEnv(t, nil)
	p := env.product(t, "summer-floral-dress")

	resp, body := env.get(t, "/products/"+p.Slug)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `id="product_name">Summer Floral Dress`)
	assert.Contains(t, body, `id="size_selector"`)
	assert.Contains(t, body, "<strong>floral print</strong>")
	assert.NotContains(t, body, "cart-confirmation")

	resp, _ = env.get(t, "/products/no-such-thing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	hat := env.product(t, "straw-sun-hat")
	_, body = env.get(t, "/products/"+hat.Slug)
	assert.NotContains(t, body, `id="size_selector"`)
}

func TestCart_AddUpdateRemove(t *testing.T) {
	env := setupWebTestEnv(t, nil)
	p := env.product(t, "summer-floral-dress")
	id := strconv.Itoa(p.ID)

	resp, body := env.post(t, "/cart/items", url.Values{"product_id": {id}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "Please select a size")

	resp, _ = env.post(t, "/cart/items", url.Values{"product_id": {id}, "size": {"XXXL"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.post(t, "/cart/items", url.Values{"product_id": {id}, "size": {"M"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/products/"+p.Slug+"?added=1", resp.Header.Get("Location"))

	_, body = env.get(t, "/products/"+p.Slug+"?added=1")
	assert.Contains(t, body, "cart-confirmation")
	assert.Contains(t, body, `<span class="cart-count">1</span>`)

	env.post(t, "/cart/items", url.Values{"product_id": {id}, "size": {"M"}})
	_, body = env.get(t, "/cart")
	assert.Equal(t, 1, strings.Count(body, `class="cart-item"`))
	assert.Contains(t, body, `value="2"`)
	assert.Contains(t, body, `<div class="item-total">$119.98</div>`)
	assert.Contains(t, body, "$119.98</strong>")

	itemID := extractAttr(t, body, `data-item-id="`)
	resp, _ = env.post(t, "/cart/items/"+itemID, url.Values{"quantity": {"3"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	_, body = env.get(t, "/cart")
	assert.Contains(t, body, "$179.97")

	resp, _ = env.post(t, "/cart/items/"+itemID, url.Values{"quantity": {"100"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	env.post(t, "/cart/items/"+itemID, url.Values{"quantity": {"0"}})
	_, body = env.get(t, "/cart")
	assert.Contains(t, body, "cart-empty")

	resp, _ = env.post(t, "/cart/items/"+itemID, url.Values{"quantity": {"1"}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCart_UnsizedProduct(t *testing.T) {
	env := setupWebTestEnv(t, nil)
	hat := env.product(t, "straw-sun-hat")

	resp, _ := env.post(t, "/cart/items", url.Values{"product_id": {strconv.Itoa(hat.ID)}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	_, body := env.get(t, "/cart")
	assert.Contains(t, body, hat.Name)
	assert.NotContains(t, body, "item-size")
}

func TestCart_CookieIsolation(t *testing.T) {
	env := setupWebTestEnv(t, nil)
	p := env.product(t, "summer-floral-dress")
	env.post(t, "/cart/items", url.Values{"product_id": {strconv.Itoa(p.ID)}, "size": {"S"}})

	resp, err := http.Get(env.server.URL + "/cart")
	require.NoError(t, err)
	assert.Contains(t, readBody(t, resp), "cart-empty")
}

func TestRegister(t *testing.T) {
	env := setupWebTestEnv(t, nil)
	form := url.Values{
		"fullname":         {"New Shopper"},
		"email":            {"new@example.com"},
		"password":         {"NewPassword123"},
		"confirm_password": {"NewPassword123"},
		"terms":            {"on"},
	}

	resp, body := env.post(t, "/register", form)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Registration successful! Welcome to Style Haven, New Shopper.")
	assert.Equal(t, 1, env.mail.Count())

	resp, body = env.post(t, "/register", form)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body, "An account with this email already exists")

	bad := url.Values{"fullname": {""}, "email": {"nope"}, "password": {"x"}, "confirm_password": {"y"}}
	resp, body = env.post(t, "/register", bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "registration-error")
	assert.NotContains(t, body, "registration-success")
}

func TestLoginLogoutAccount(t *testing.T) {
	env := setupWebTestEnv(t, nil)

	resp, _ := env.get(t, "/account")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, body := env.post(t, "/login", url.Values{"email": {shopperEmail}, "password": {"wrong-password"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "Invalid email or password")

	resp, _ = env.post(t, "/login", url.Values{"email": {shopperEmail}, "password": {shopperPassword}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/account", resp.Header.Get("Location"))

	resp, body = env.get(t, "/account")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `<span id="user_name_display">Shop Per</span>`)
	assert.Contains(t, body, `id="user_email_display">`+shopperEmail)
	assert.Contains(t, body, `id="logout_button"`)

	resp, _ = env.get(t, "/login")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp, _ = env.post(t, "/logout", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	resp, _ = env.get(t, "/account")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestLogin_Throttled(t *testing.T) {
	limiter := ratelimit.NewRateLimiter(ratelimit.Config{RPS: 0.001, Burst: 2, CleanupInterval: time.Minute})
	t.Cleanup(limiter.Stop)
	env := setupWebTestEnv(t, limiter)

	creds := url.Values{"email": {shopperEmail}, "password": {"wrong-password"}}
	for range 2 {
		resp, _ := env.post(t, "/login", creds)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp, body := env.post(t, "/login", creds)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Contains(t, body, "Too many login attempts")
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
}

func TestImages(t *testing.T) {
	env := setupWebTestEnv(t, nil)
	p := env.product(t, "summer-floral-dress")

	resp, body := env.get(t, p.ImagePath())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, `fill="`+p.Color+`"`)

	for _, path := range []string{"/images/999.svg", "/images/1.png", "/images/abc.svg"} {
		resp, _ := env.get(t, path)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestStaticPagesAndNotFound(t *testing.T) {
	env := setupWebTestEnv(t, nil)

	resp, body := env.get(t, "/terms")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<h1")

	resp, _ = env.get(t, "/about")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = env.get(t, "/nowhere")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "Page not found")
}

func extractAttr(t *testing.T, body, prefix string) string {
	t.Helper()
	_, rest, ok := strings.Cut(body, prefix)
	require.True(t, ok, "missing %q", prefix)
	v, _, ok := strings.Cut(rest, `"`)
	require.True(t, ok)
	return v
}
