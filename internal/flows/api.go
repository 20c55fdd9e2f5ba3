package flows

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kuitang/stylehaven/internal/apiclient"
	"github.com/kuitang/stylehaven/internal/obs"
)

// ProductFields must be present on every product in the list API.
var ProductFields = []string{"id", "name", "price", "description", "image_url"}

// ProfileFields must be present on the profile API user.
var ProfileFields = []string{"id", "name", "email"}

// ProductAPI checks GET /api/products and returns the product count.
func ProductAPI(ctx context.Context, s *apiclient.Session) (int, error) {
	ctx = obs.WithCorrelation(ctx, obs.Correlation{Flow: ProductListAPI.Name})
	resp, err := s.Get(ctx, "/api/products")
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return 0, expectf("API returned status code %d", resp.StatusCode)
	}
	if !resp.Has("products") {
		return 0, expectf("response missing products key")
	}
	products := resp.Get("products").Array()
	if len(products) == 0 {
		return 0, expectf("no products returned from API")
	}
	for _, field := range ProductFields {
		if !products[0].Get(field).Exists() {
			return 0, expectf("product missing required field: %s", field)
		}
	}
	obs.From(ctx).Info("product API returned products", "count", len(products))
	return len(products), nil
}

// UserProfileAPI checks GET /api/user/profile for an authenticated session.
func UserProfileAPI(ctx context.Context, s *apiclient.Session) error {
	ctx = obs.WithCorrelation(ctx, obs.Correlation{Flow: ProfileAPI.Name})
	resp, err := s.Get(ctx, "/api/user/profile")
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return expectf("API returned status code %d", resp.StatusCode)
	}
	if !resp.Has("user") {
		return expectf("response missing user key")
	}
	for _, field := range ProfileFields {
		if !resp.Get("user." + field).Exists() {
			return expectf("user profile missing required field: %s", field)
		}
	}
	obs.From(ctx).Info("user profile API returned successfully")
	return nil
}

// APICase is one API check.
type APICase struct {
	Flow Flow
	Run  func(ctx context.Context, s *apiclient.Session) error
}

// APICases are the checks run with one logged-in session.
func APICases() []APICase {
	return []APICase{
		{Flow: ProductListAPI, Run: func(ctx context.Context, s *apiclient.Session) error {
			_, err := ProductAPI(ctx, s)
			return err
		}},
		{Flow: ProfileAPI, Run: UserProfileAPI},
	}
}

// LoginSession opens a session and logs in. A rejected login still returns
// the (unauthenticated) session; the profile check then reports it.
func LoginSession(ctx context.Context, baseURL, email, password string, opts ...apiclient.Option) (*apiclient.Session, error) {
	s, err := apiclient.New(baseURL, opts...)
	if err != nil {
		return nil, err
	}
	if _, err := s.Login(ctx, email, password); err != nil {
		return nil, fmt.Errorf("api login: %w", err)
	}
	return s, nil
}
