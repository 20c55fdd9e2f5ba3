// Package auth handles storefront accounts: registration, password login,
// cookie sessions and bearer API tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	stdtime "time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kuitang/stylehaven/internal/db"
	"github.com/kuitang/stylehaven/internal/email"
	"github.com/kuitang/stylehaven/internal/obs"
	"github.com/kuitang/stylehaven/internal/urlutil"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountExists      = errors.New("account already exists")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
)

const (
	MinPasswordLength = 8
	// MaxPasswordBytes is bcrypt's input limit.
	MaxPasswordBytes = 72
)

// Clock abstracts time for testability.
type Clock interface {
	Now() stdtime.Time
}

type realClock struct{}

func (realClock) Now() stdtime.Time { return stdtime.Now() }

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	VerifyPassword(password, encodedHash string) bool
}

// BcryptHasher is the production PasswordHasher.
type BcryptHasher struct {
	Cost int // zero means bcrypt.DefaultCost
}

func (h BcryptHasher) HashPassword(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(hash), nil
}

func (BcryptHasher) VerifyPassword(password, encodedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password)) == nil
}

// ValidatePasswordStrength checks if a password meets minimum requirements.
func ValidatePasswordStrength(password string) error {
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	if len(password) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

// Registration is the submitted sign-up form.
type Registration struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
	AcceptTerms     bool
}

// FieldErrors maps form fields to problems. It is returned by Register when
// the form itself is invalid.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, field := range []string{"fullname", "email", "password", "confirm_password", "terms"} {
		if msg, ok := e[field]; ok {
			parts = append(parts, msg)
		}
	}
	return strings.Join(parts, "; ")
}

// Validate checks the form without touching the store.
func (r Registration) Validate() FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(r.Name) == "" {
		errs["fullname"] = "Full name is required"
	}
	if addr, err := mail.ParseAddress(strings.TrimSpace(r.Email)); err != nil || addr.Address != strings.TrimSpace(r.Email) {
		errs["email"] = "Enter a valid email address"
	}
	if err := ValidatePasswordStrength(r.Password); err != nil {
		errs["password"] = "Password " + strings.TrimPrefix(err.Error(), "password ")
	}
	if r.ConfirmPassword != r.Password {
		errs["confirm_password"] = "Passwords do not match"
	}
	if !r.AcceptTerms {
		errs["terms"] = "You must accept the terms and conditions"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// UserService handles account operations.
type UserService struct {
	store        *db.Store
	hasher       PasswordHasher
	emailService email.EmailService
	baseURL      string
	clock        Clock
}

// NewUserService creates a user service. A nil hasher means bcrypt.
func NewUserService(store *db.Store, hasher PasswordHasher, emailSvc email.EmailService, baseURL string) *UserService {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	return &UserService{
		store:        store,
		hasher:       hasher,
		emailService: emailSvc,
		baseURL:      baseURL,
		clock:        realClock{},
	}
}

// SetClock replaces the clock used by the service. Intended for testing.
func (s *UserService) SetClock(c Clock) {
	s.clock = c
}

// Register validates the form, creates the account and sends a welcome
// email. A failed email does not fail the registration.
func (s *UserService) Register(ctx context.Context, r Registration) (db.User, error) {
	if errs := r.Validate(); errs != nil {
		return db.User{}, errs
	}
	hash, err := s.hasher.HashPassword(r.Password)
	if err != nil {
		return db.User{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.store.CreateUser(ctx, db.User{
		Name:         strings.TrimSpace(r.Name),
		Email:        strings.TrimSpace(r.Email),
		PasswordHash: hash,
		CreatedAt:    s.clock.Now(),
	})
	if errors.Is(err, db.ErrEmailTaken) {
		return db.User{}, ErrAccountExists
	}
	if err != nil {
		return db.User{}, err
	}

	if s.emailService != nil {
		data := email.WelcomeData{Name: u.Name, ShopURL: urlutil.Join(s.baseURL, "/products")}
		if err := s.emailService.Send(u.Email, email.TemplateWelcome, data); err != nil {
			obs.From(ctx).Warn("welcome email failed", "user_id", u.ID, "error", err)
		}
	}
	obs.From(ctx).Info("account registered", "user_id", u.ID)
	return u, nil
}

// VerifyLogin checks email/password credentials. Unknown emails and wrong
// passwords both return ErrInvalidCredentials.
func (s *UserService) VerifyLogin(ctx context.Context, emailAddr, password string) (db.User, error) {
	u, err := s.store.UserByEmail(ctx, emailAddr)
	if errors.Is(err, db.ErrNotFound) {
		return db.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return db.User{}, fmt.Errorf("get account: %w", err)
	}
	if !s.hasher.VerifyPassword(password, u.PasswordHash) {
		return db.User{}, ErrInvalidCredentials
	}
	if err := s.store.TouchLogin(ctx, u.ID); err != nil {
		return db.User{}, err
	}
	return u, nil
}

// SeedAccount is an account created at startup.
type SeedAccount struct {
	Name     string
	Email    string
	Password string
	Admin    bool
}

// Seed creates accounts that do not exist yet. Existing accounts are left
// untouched.
func (s *UserService) Seed(ctx context.Context, accounts []SeedAccount) error {
	for _, a := range accounts {
		if _, err := s.store.UserByEmail(ctx, a.Email); err == nil {
			continue
		} else if !errors.Is(err, db.ErrNotFound) {
			return err
		}
		hash, err := s.hasher.HashPassword(a.Password)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", a.Email, err)
		}
		role := db.RoleCustomer
		if a.Admin {
			role = db.RoleAdmin
		}
		if _, err := s.store.CreateUser(ctx, db.User{
			Name: a.Name, Email: a.Email, PasswordHash: hash, Role: role, CreatedAt: s.clock.Now(),
		}); err != nil {
			return fmt.Errorf("seed %s: %w", a.Email, err)
		}
	}
	return nil
}
