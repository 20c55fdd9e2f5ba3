package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/kuitang/stylehaven/internal/db"
)

type contextKey string

const userKey contextKey = "user"

// Middleware attaches the signed-in user to requests.
type Middleware struct {
	sessions *SessionService
}

// NewMiddleware creates a new auth middleware.
func NewMiddleware(sessions *SessionService) *Middleware {
	return &Middleware{sessions: sessions}
}

// OptionalAuth adds the session user to the context when the cookie names
// a live session, and continues either way.
func (m *Middleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := GetFromRequest(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		u, err := m.sessions.Validate(r.Context(), sessionID)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// RequireSession redirects to /login when there is no live session.
func (m *Middleware) RequireSession(next http.Handler) http.Handler {
	return m.OptionalAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFrom(r.Context()); !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// RequireBearer authenticates API requests by "Authorization: Bearer".
// onFail writes the rejection.
func (m *Middleware) RequireBearer(onFail func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				onFail(w, r, ErrInvalidToken)
				return
			}
			u, err := m.sessions.ValidateToken(r.Context(), token)
			if err != nil {
				onFail(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WithUser stores u in ctx.
func WithUser(ctx context.Context, u db.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFrom returns the authenticated user, if any.
func UserFrom(ctx context.Context) (db.User, bool) {
	u, ok := ctx.Value(userKey).(db.User)
	return u, ok
}

// IsAuthenticated checks if the context has an authenticated user.
func IsAuthenticated(ctx context.Context) bool {
	_, ok := UserFrom(ctx)
	return ok
}
