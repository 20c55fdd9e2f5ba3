package api_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/kuitang/stylehaven/internal/api"
	"github.com/kuitang/stylehaven/internal/auth"
	"github.com/kuitang/stylehaven/internal/catalog"
	"github.com/kuitang/stylehaven/internal/db"
	"github.com/kuitang/stylehaven/internal/email"
	"github.com/kuitang/stylehaven/internal/ratelimit"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "adminpass123"
)

type apiTestEnv struct {
	server  *httptest.Server
	catalog *catalog.Catalog
}

func setupAPITestEnv(t *testing.T, limiter *ratelimit.RateLimiter) *apiTestEnv {
	t.Helper()
	store, err := db.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cat, err := catalog.Default()
	require.NoError(t, err)
	users := auth.NewUserService(store, auth.FakeInsecureHasher{}, email.NewMockEmailService(), "http://shop.test")
	sessions := auth.NewSessionService(store, time.Hour, false)
	require.NoError(t, users.Seed(context.Background(), []auth.SeedAccount{
		{Name: "Admin", Email: adminEmail, Password: adminPassword, Admin: true},
	}))

	mux := http.NewServeMux()
	api.NewHandler(cat, users, sessions, store.Ping).RegisterRoutes(mux, auth.NewMiddleware(sessions), limiter)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return &apiTestEnv{server: server, catalog: cat}
}

func (e *apiTestEnv) do(t *testing.T, method, path, token, body string) (int, gjson.Result) {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var sb bytes.Buffer
	_, err = sb.ReadFrom(resp.Body)
	require.NoError(t, err)
	if resp.StatusCode != http.StatusNoContent {
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	}
	return resp.StatusCode, gjson.Parse(sb.String())
}

func (e *apiTestEnv) login(t *testing.T) string {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/api/auth/login", "",
		`{"email":"`+adminEmail+`","password":"`+adminPassword+`"}`)
	require.Equal(t, http.StatusOK, status, body.Raw)
	token := body.Get("token").String()
	require.NotEmpty(t, token)
	return token
}

func TestListProducts(t *testing.T) {
	env := setupAPITestEnv(t, nil)

	status, body := env.do(t, http.MethodGet, "/api/products", "", "")
	require.Equal(t, http.StatusOK, status)
	products := body.Get("products").Array()
	assert.Len(t, products, len(env.catalog.Products()))
	assert.Equal(t, int64(len(products)), body.Get("total_count").Int())

	first := products[0]
	for _, field := range []string{"id", "name", "price", "description", "image_url", "category", "sizes"} {
		assert.True(t, first.Get(field).Exists(), field)
	}
	assert.InDelta(t, 59.99, first.Get("price").Float(), 0.001)
}

func TestListProducts_Filters(t *testing.T) {
	env := setupAPITestEnv(t, nil)

	names := func(body gjson.Result) []string {
		var out []string
		for _, p := range body.Get("products").Array() {
			out = append(out, p.Get("name").String())
		}
		return out
	}

	_, body := env.do(t, http.MethodGet, "/api/products?q=summer+dress", "", "")
	if diff := cmp.Diff([]string{"Summer Floral Dress", "Linen Summer Dress"}, names(body)); diff != "" {
		t.Errorf("search mismatch (-want +got):\n%s", diff)
	}

	_, body = env.do(t, http.MethodGet, "/api/products?category=dresses&max_price=100", "", "")
	for _, p := range body.Get("products").Array() {
		assert.Equal(t, "dresses", p.Get("category").String())
		assert.LessOrEqual(t, p.Get("price").Float(), 100.0)
	}

	status, body := env.do(t, http.MethodGet, "/api/products?min_price=-1", "", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_argument", body.Get("code").String())

	status, _ = env.do(t, http.MethodGet, "/api/products?min_price=200&max_price=50", "", "")
	assert.Equal(t, http.StatusBadRequest, status)

	for _, q := range []string{"min_price=1e17", "max_price=1e300"} {
		status, body = env.do(t, http.MethodGet, "/api/products?"+q, "", "")
		assert.Equal(t, http.StatusBadRequest, status, q)
		assert.Contains(t, body.Get("error").String(), "invalid", q)
	}
}

func TestGetProduct(t *testing.T) {
	env := setupAPITestEnv(t, nil)

	status, body := env.do(t, http.MethodGet, "/api/products/1", "", "")
	require.Equal(t, http.StatusOK, status)
	slug := body.Get("slug").String()

	status, bySlug := env.do(t, http.MethodGet, "/api/products/"+slug, "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, body.Raw, bySlug.Raw)

	status, body = env.do(t, http.MethodGet, "/api/products/9999", "", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Product not found", body.Get("error").String())
}

func TestListCategories(t *testing.T) {
	env := setupAPITestEnv(t, nil)
	status, body := env.do(t, http.MethodGet, "/api/categories", "", "")
	require.Equal(t, http.StatusOK, status)
	cats := body.Get("categories").Array()
	assert.Len(t, cats, len(env.catalog.Categories()))
	var total int64
	for _, c := range cats {
		total += c.Get("product_count").Int()
	}
	assert.Equal(t, int64(len(env.catalog.Products())), total)
}

func TestLoginAndProfile(t *testing.T) {
	env := setupAPITestEnv(t, nil)

	status, body := env.do(t, http.MethodGet, "/api/user/profile", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Authentication required", body.Get("error").String())

	token := env.login(t)
	assert.True(t, strings.HasPrefix(token, auth.APITokenPrefix))

	status, body = env.do(t, http.MethodGet, "/api/user/profile", token, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, adminEmail, body.Get("user.email").String())
	assert.Equal(t, "Admin", body.Get("user.name").String())
	assert.Equal(t, db.RoleAdmin, body.Get("user.role").String())
	assert.NotEmpty(t, body.Get("user.id").String())

	status, _ = env.do(t, http.MethodPost, "/api/auth/logout", token, "")
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = env.do(t, http.MethodGet, "/api/user/profile", token, "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestLogin_Rejections(t *testing.T) {
	env := setupAPITestEnv(t, nil)

	tests := map[string]struct {
		body   string
		status int
	}{
		"wrong password": {`{"email":"` + adminEmail + `","password":"nope-nope"}`, http.StatusUnauthorized},
		"unknown user":   {`{"email":"ghost@example.com","password":"whatever123"}`, http.StatusUnauthorized},
		"missing fields": {`{"email":""}`, http.StatusBadRequest},
		"not json":       {`email=a`, http.StatusBadRequest},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			status, body := env.do(t, http.MethodPost, "/api/auth/login", "", tt.body)
			assert.Equal(t, tt.status, status)
			assert.NotEmpty(t, body.Get("error").String())
			assert.False(t, body.Get("token").Exists())
		})
	}
}

func TestLogin_RateLimited(t *testing.T) {
	limiter := ratelimit.NewRateLimiter(ratelimit.Config{RPS: 0.001, Burst: 3, CleanupInterval: time.Minute})
	t.Cleanup(limiter.Stop)
	env := setupAPITestEnv(t, limiter)

	bad := `{"email":"` + adminEmail + `","password":"wrong-password"}`
	for range 3 {
		status, _ := env.do(t, http.MethodPost, "/api/auth/login", "", bad)
		assert.Equal(t, http.StatusUnauthorized, status)
	}
	status, body := env.do(t, http.MethodPost, "/api/auth/login", "", bad)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "too_many_requests", body.Get("code").String())
}

func TestHealth(t *testing.T) {
	env := setupAPITestEnv(t, nil)
	status, body := env.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body.Get("status").String())
}
