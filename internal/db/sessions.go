package db

import (
	"context"
	"fmt"
	"time"
)

// Session is a browser login.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// CreateSession stores a login session.
func (s *Store) CreateSession(ctx context.Context, sess Session) error {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.ExpiresAt.Unix(), sess.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// SessionUser returns the user behind an unexpired session.
func (s *Store) SessionUser(ctx context.Context, sessionID string) (User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT u.id, u.name, u.email, u.password_hash, u.role, u.created_at, u.last_login
		 FROM sessions s JOIN users u ON u.id = s.user_id
		 WHERE s.session_id = ? AND s.expires_at > ?`,
		sessionID, s.now().Unix())
	return scanUser(row)
}

// DeleteSession removes a session. Missing sessions are not an error.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CreateAPIToken stores the hash of a bearer token.
func (s *Store) CreateAPIToken(ctx context.Context, token, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_tokens (token_hash, user_id, expires_at, created_at) VALUES (sha3(?, 256), ?, ?, ?)`,
		token, userID, expiresAt.Unix(), s.now().Unix())
	if err != nil {
		return fmt.Errorf("create api token: %w", err)
	}
	return nil
}

// APITokenUser returns the user behind an unexpired bearer token and
// records its use.
func (s *Store) APITokenUser(ctx context.Context, token string) (User, error) {
	now := s.now().Unix()
	row := s.db.QueryRowContext(ctx,
		`SELECT u.id, u.name, u.email, u.password_hash, u.role, u.created_at, u.last_login
		 FROM api_tokens t JOIN users u ON u.id = t.user_id
		 WHERE t.token_hash = sha3(?, 256) AND t.expires_at > ?`,
		token, now)
	u, err := scanUser(row)
	if err != nil {
		return User{}, err
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE api_tokens SET last_used_at = ? WHERE token_hash = sha3(?, 256)`, now, token); err != nil {
		return User{}, fmt.Errorf("touch api token: %w", err)
	}
	return u, nil
}

// RevokeAPIToken deletes a bearer token.
func (s *Store) RevokeAPIToken(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM api_tokens WHERE token_hash = sha3(?, 256)`, token); err != nil {
		return fmt.Errorf("revoke api token: %w", err)
	}
	return nil
}
