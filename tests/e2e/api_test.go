// Package e2e exercises the storefront REST API the way the suite's API
// flows do, plus the edge cases around authentication and rate limiting.
package e2e

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/stylehaven/internal/apiclient"
	"github.com/kuitang/stylehaven/internal/flows"
	"github.com/kuitang/stylehaven/internal/storefront"
	"github.com/kuitang/stylehaven/tests/testutil"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newSession(t *testing.T, f *testutil.Fixture) *apiclient.Session {
	t.Helper()
	s, err := apiclient.New(f.BaseURL, apiclient.WithTimeout(10*time.Second))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func loggedIn(t *testing.T, f *testutil.Fixture) *apiclient.Session {
	t.Helper()
	s, err := flows.LoginSession(testContext(t), f.BaseURL, f.Suite.Normal.Email, f.Suite.Normal.Password)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.True(t, s.Authenticated(), "login did not return a token")
	return s
}

func TestAPI_ProductList(t *testing.T) {
	f := testutil.GetStorefront(t)
	n, err := flows.ProductAPI(testContext(t), newSession(t, f))
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestAPI_UserProfile(t *testing.T) {
	f := testutil.GetStorefront(t)
	s := loggedIn(t, f)
	require.NoError(t, flows.UserProfileAPI(testContext(t), s))

	resp, err := s.Get(testContext(t), "/api/user/profile")
	require.NoError(t, err)
	assert.Equal(t, f.Suite.Normal.Email, resp.Get("user.email").String())
	assert.Equal(t, f.Suite.Normal.Name, resp.Get("user.name").String())
}

func TestAPI_LoginFailureLeavesSessionAnonymous(t *testing.T) {
	f := testutil.GetStorefront(t)
	s := newSession(t, f)
	ctx := testContext(t)

	resp, err := s.Login(ctx, f.Suite.Normal.Email, "WrongPassword123!")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.True(t, resp.Has("error"))
	assert.False(t, s.Authenticated())

	err = flows.UserProfileAPI(ctx, s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestAPI_ProfileRequiresToken(t *testing.T) {
	f := testutil.GetStorefront(t)
	resp, err := newSession(t, f).Get(testContext(t), "/api/user/profile")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, resp.Has("user"))
}

func TestAPI_RunnerCases(t *testing.T) {
	f := testutil.GetStorefront(t)
	s := loggedIn(t, f)
	for _, c := range flows.APICases() {
		t.Run(c.Flow.Name, func(t *testing.T) {
			assert.NoError(t, c.Run(testContext(t), s))
		})
	}
}

func TestAPI_LoginRateLimit(t *testing.T) {
	f := testutil.GetStorefront(t)
	f.RequireInProcess(t)
	f.Local.App.ResetLoginLimits()
	t.Cleanup(f.Local.App.ResetLoginLimits)

	s := newSession(t, f)
	ctx := testContext(t)
	var last apiclient.Response
	for i := 0; i <= storefront.LocalLoginBurst; i++ {
		resp, err := s.Login(ctx, "nobody@example.com", "not-a-password")
		require.NoError(t, err)
		last = resp
		if resp.StatusCode == http.StatusTooManyRequests {
			break
		}
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "attempt %d", i)
	}
	assert.Equal(t, http.StatusTooManyRequests, last.StatusCode)
	assert.NotEmpty(t, last.Header.Get("Retry-After"))
	assert.Equal(t, "0", last.Header.Get("X-RateLimit-Remaining"))
}

// =============================================================================
// Property tests for GET /api/products filters
// =============================================================================

var categorySlugs = []string{"dresses", "tops", "bottoms", "outerwear", "shoes", "accessories"}

func fetchProducts(t *rapid.T, s *apiclient.Session, q url.Values) apiclient.Response {
	resp, err := s.Get(context.Background(), "/api/products?"+q.Encode())
	if err != nil {
		t.Fatalf("get products: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d for %s: %s", resp.StatusCode, q.Encode(), resp.Body)
	}
	return resp
}

func testProductFilterProperties(s *apiclient.Session) func(*rapid.T) {
	return func(t *rapid.T) {
		cats := rapid.SliceOfDistinct(rapid.SampledFrom(categorySlugs), rapid.ID[string]).Draw(t, "categories")
		lo := rapid.IntRange(0, 300).Draw(t, "min")
		hi := rapid.IntRange(lo, 500).Draw(t, "max")

		q := url.Values{"category": cats}
		q.Set("min_price", fmt.Sprint(lo))
		q.Set("max_price", fmt.Sprint(hi))
		resp := fetchProducts(t, s, q)

		products := resp.Get("products").Array()
		if int(resp.Get("total_count").Int()) != len(products) {
			t.Fatalf("total_count %d != %d products", resp.Get("total_count").Int(), len(products))
		}
		for _, p := range products {
			price := p.Get("price").Float()
			if price < float64(lo) || price > float64(hi) {
				t.Fatalf("%s at %.2f outside [%d, %d]", p.Get("name"), price, lo, hi)
			}
			if len(cats) > 0 && !slices.Contains(cats, p.Get("category").String()) {
				t.Fatalf("%s in category %s not in %v", p.Get("name"), p.Get("category"), cats)
			}
		}

		// Widening the price range never loses products.
		wide := url.Values{"category": cats}
		wide.Set("min_price", "0")
		wide.Set("max_price", "500")
		if n := len(fetchProducts(t, s, wide).Get("products").Array()); n < len(products) {
			t.Fatalf("wider range returned %d < %d products", n, len(products))
		}
	}
}

func TestAPI_ProductFilterProperties(t *testing.T) {
	f := testutil.GetStorefront(t)
	rapid.Check(t, testProductFilterProperties(newSession(t, f)))
}

func FuzzAPI_ProductFilterProperties(f *testing.F) {
	fx := testutil.GetStorefront(f)
	s, err := apiclient.New(fx.BaseURL)
	if err != nil {
		f.Fatal(err)
	}
	f.Cleanup(s.Close)
	f.Fuzz(rapid.MakeFuzz(testProductFilterProperties(s)))
}
