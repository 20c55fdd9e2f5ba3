package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kuitang/stylehaven/internal/db"
)

// Session errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidToken    = errors.New("invalid or expired token")
)

// Session configuration
const (
	DefaultSessionDuration = 24 * time.Hour
	SessionIDLength        = 32 // 256 bits
	SessionCookieName      = "session_id"

	APITokenDuration = 24 * time.Hour
	APITokenPrefix   = "sh_"
)

// SessionService issues and checks browser sessions and API tokens.
type SessionService struct {
	store    *db.Store
	duration time.Duration
	secure   bool
	clock    Clock
}

// NewSessionService creates a session service. secure marks cookies
// Secure, which browsers and cookie jars only honour over HTTPS.
func NewSessionService(store *db.Store, duration time.Duration, secure bool) *SessionService {
	if duration <= 0 {
		duration = DefaultSessionDuration
	}
	return &SessionService{store: store, duration: duration, secure: secure, clock: realClock{}}
}

// SetClock replaces the clock used by the service. Intended for testing.
func (s *SessionService) SetClock(c Clock) { s.clock = c }

// Create starts a session for userID and returns the cookie value.
func (s *SessionService) Create(ctx context.Context, userID string) (string, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return "", fmt.Errorf("generate session ID: %w", err)
	}
	now := s.clock.Now()
	if err := s.store.CreateSession(ctx, db.Session{
		ID: sessionID, UserID: userID, ExpiresAt: now.Add(s.duration), CreatedAt: now,
	}); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return sessionID, nil
}

// Validate returns the user behind a live session.
func (s *SessionService) Validate(ctx context.Context, sessionID string) (db.User, error) {
	u, err := s.store.SessionUser(ctx, sessionID)
	if errors.Is(err, db.ErrNotFound) {
		return db.User{}, ErrSessionNotFound
	}
	return u, err
}

// Delete removes a session (logout).
func (s *SessionService) Delete(ctx context.Context, sessionID string) error {
	return s.store.DeleteSession(ctx, sessionID)
}

// IssueToken creates a bearer token for userID.
func (s *SessionService) IssueToken(ctx context.Context, userID string) (string, time.Time, error) {
	raw, err := generateSessionID()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate token: %w", err)
	}
	token := APITokenPrefix + raw
	expires := s.clock.Now().Add(APITokenDuration)
	if err := s.store.CreateAPIToken(ctx, token, userID, expires); err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

// ValidateToken returns the user behind a live bearer token.
func (s *SessionService) ValidateToken(ctx context.Context, token string) (db.User, error) {
	u, err := s.store.APITokenUser(ctx, token)
	if errors.Is(err, db.ErrNotFound) {
		return db.User{}, ErrInvalidToken
	}
	return u, err
}

// RevokeToken invalidates a bearer token.
func (s *SessionService) RevokeToken(ctx context.Context, token string) error {
	return s.store.RevokeAPIToken(ctx, token)
}

// SetCookie sets the session cookie on the response.
func (s *SessionService) SetCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.duration.Seconds()),
	})
}

// ClearCookie removes the session cookie.
func (s *SessionService) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// GetFromRequest retrieves the session ID from the request cookie.
func GetFromRequest(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", ErrSessionNotFound
		}
		return "", err
	}
	return cookie.Value, nil
}

func generateSessionID() (string, error) {
	bytes := make([]byte, SessionIDLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
