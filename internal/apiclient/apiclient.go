// Package apiclient is an HTTP session against the storefront REST API. A
// session keeps cookies across requests and, after a successful Login,
// sends the returned token as a bearer credential.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/kuitang/stylehaven/internal/logutil"
	"github.com/kuitang/stylehaven/internal/obs"
	"github.com/kuitang/stylehaven/internal/urlutil"
)

// LoginPath is where credentials are exchanged for a token.
const LoginPath = "/api/auth/login"

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// JSON is the parsed body; it does not Exist when the body is not JSON.
	JSON gjson.Result
}

// Get returns the value at a gjson path.
func (r Response) Get(path string) gjson.Result { return r.JSON.Get(path) }

// Has reports whether path exists in the body.
func (r Response) Has(path string) bool { return r.JSON.Get(path).Exists() }

// Session is an HTTP client context carrying authentication state.
type Session struct {
	baseURL string
	base    http.RoundTripper
	jar     http.CookieJar
	timeout time.Duration

	mu     sync.RWMutex
	client *http.Client
	token  string
}

// Option configures a Session.
type Option func(*Session)

// WithTransport replaces the underlying transport (e.g. an httptest
// server's client transport).
func WithTransport(rt http.RoundTripper) Option {
	return func(s *Session) { s.base = rt }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

// New returns an unauthenticated session for baseURL.
func New(baseURL string, opts ...Option) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("apiclient: cookie jar: %w", err)
	}
	s := &Session{
		baseURL: urlutil.Normalize(baseURL),
		base:    http.DefaultTransport,
		jar:     jar,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.client = s.newClient(&loggingTransport{next: s.base})
	return s, nil
}

func (s *Session) newClient(rt http.RoundTripper) *http.Client {
	return &http.Client{Transport: rt, Jar: s.jar, Timeout: s.timeout}
}

// BaseURL returns the API origin.
func (s *Session) BaseURL() string { return s.baseURL }

// Token returns the bearer token, or "" before a successful login.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Authenticated reports whether a token is attached.
func (s *Session) Authenticated() bool { return s.Token() != "" }

// Login posts credentials. On 200 with a token the session switches to
// bearer authentication. Any other outcome leaves the session as it was and
// is reported only through the returned Response.
func (s *Session) Login(ctx context.Context, email, password string) (Response, error) {
	resp, err := s.Post(ctx, LoginPath, map[string]string{"email": email, "password": password})
	if err != nil {
		return resp, err
	}
	if resp.StatusCode != http.StatusOK {
		obs.From(ctx).Warn("api login rejected", "status", resp.StatusCode)
		return resp, nil
	}
	token := resp.Get("token").String()
	if token == "" {
		obs.From(ctx).Warn("api login response had no token")
		return resp, nil
	}
	s.setToken(token)
	return resp, nil
}

func (s *Session) setToken(token string) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	client := s.newClient(&oauth2.Transport{Source: src, Base: &loggingTransport{next: s.base}})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.client = client
}

// Get issues a GET to path.
func (s *Session) Get(ctx context.Context, path string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlutil.Join(s.baseURL, path), nil)
	if err != nil {
		return Response{}, err
	}
	return s.Do(req)
}

// Post issues a POST with body encoded as JSON.
func (s *Session) Post(ctx context.Context, path string, body any) (Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("apiclient: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, urlutil.Join(s.baseURL, path), bytes.NewReader(payload))
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.Do(req)
}

// Do sends req and reads the whole response.
func (s *Session) Do(req *http.Request) (Response, error) {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()

	resp, err := client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("apiclient: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("apiclient: read body: %w", err)
	}
	out := Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}
	if gjson.ValidBytes(body) {
		out.JSON = gjson.ParseBytes(body)
	}
	return out, nil
}

// Close drops the token and idle connections.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client.CloseIdleConnections()
	s.token = ""
	s.client = s.newClient(&loggingTransport{next: s.base})
}

// loggingTransport logs each exchange at debug level with secrets masked.
type loggingTransport struct {
	next http.RoundTripper
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	log := obs.From(req.Context()).With("pkg", "apiclient")

	var reqBody []byte
	if req.Body != nil && req.GetBody != nil {
		if rc, err := req.GetBody(); err == nil {
			reqBody, _ = io.ReadAll(rc)
			rc.Close()
		}
	}
	log.Debug("api request", logutil.RequestAttrs(req, reqBody)...)

	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		log.Debug("api request failed", "error", err)
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	attrs := append(logutil.ResponseAttrs(resp, body), "dur_ms", time.Since(start).Milliseconds())
	log.Debug("api response", attrs...)
	return resp, nil
}
