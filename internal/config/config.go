// Package config loads configuration for the Style Haven reference storefront
// and for the end-to-end suite that drives it.
//
// Both loaders read environment variables, fall back to documented defaults,
// and report every problem at once through ValidationError.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/stylehaven/internal/ratelimit"
	"github.com/kuitang/stylehaven/internal/urlutil"
)

// Seeded account defaults. They match the credentials the suite logs in with.
const (
	DefaultAdminUser      = "testadmin@example.com"
	DefaultAdminPassword  = "securepassword123"
	DefaultNormalUser     = "testuser@example.com"
	DefaultNormalPassword = "userpassword123"
	DefaultNormalUserName = "Test User"
	DefaultAdminUserName  = "Test Admin"
)

// Account is a seeded storefront login.
type Account struct {
	Name     string
	Email    string
	Password string
	Admin    bool
}

// Server holds the reference storefront configuration.
type Server struct {
	ListenAddr string
	BaseURL    string

	DatabasePath    string // empty means in-memory
	MasterKey       string // 64 hex characters (32 bytes)
	SessionDuration time.Duration

	LoginRateLimit ratelimit.Config

	NoEmail         bool
	ResendAPIKey    string
	ResendFromEmail string

	SeedAccounts []Account
}

// ServerFlags are the CLI flags accepted by cmd/storefront.
type ServerFlags struct {
	NoEmail  bool
	InMemory bool
	Addr     string
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// ParseServerFlags registers and parses --no-email, --memory, --test and --addr.
func ParseServerFlags(fs *flag.FlagSet, args []string) (ServerFlags, error) {
	var f ServerFlags
	var testMode bool
	fs.BoolVar(&f.NoEmail, "no-email", false, "Use mock email service (logs emails to console)")
	fs.BoolVar(&f.InMemory, "memory", false, "Keep the store in memory (data is lost on exit)")
	fs.BoolVar(&testMode, "test", false, "Shorthand for --no-email --memory")
	fs.StringVar(&f.Addr, "addr", "", "Listen address (default :8080, overrides LISTEN_ADDR env var)")
	if err := fs.Parse(args); err != nil {
		return ServerFlags{}, err
	}
	if testMode {
		f.NoEmail = true
		f.InMemory = true
	}
	return f, nil
}

// LoadServer loads the storefront configuration from environment variables and flags.
func LoadServer(flags ServerFlags) (*Server, error) {
	cfg := &Server{
		NoEmail: flags.NoEmail,
	}

	cfg.ListenAddr = getEnvOrDefault("LISTEN_ADDR", ":8080")
	if flags.Addr != "" {
		cfg.ListenAddr = flags.Addr
	}
	cfg.BaseURL = urlutil.Normalize(getEnvOrDefault("BASE_URL", ""))
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost" + cfg.ListenAddr
	}

	if !flags.InMemory {
		cfg.DatabasePath = getEnvOrDefault("DATABASE_PATH", "./data/stylehaven.db")
	}
	cfg.MasterKey = getEnvOrDefault("MASTER_KEY", "")
	if cfg.MasterKey == "" && flags.InMemory {
		cfg.MasterKey = strings.Repeat("0", 64)
	}
	cfg.SessionDuration = parseDurationOrDefault("SESSION_DURATION", 24*time.Hour)

	cfg.LoginRateLimit = ratelimit.Config{
		RPS:             parseFloat64OrDefault("LOGIN_RATE_LIMIT_RPS", ratelimit.DefaultConfig.RPS),
		Burst:           parseIntOrDefault("LOGIN_RATE_LIMIT_BURST", ratelimit.DefaultConfig.Burst),
		CleanupInterval: parseDurationOrDefault("LOGIN_RATE_LIMIT_CLEANUP_INTERVAL", ratelimit.DefaultConfig.CleanupInterval),
	}

	cfg.ResendAPIKey = getEnvOrDefault("RESEND_API_KEY", "")
	cfg.ResendFromEmail = getEnvOrDefault("RESEND_FROM_EMAIL", "noreply@stylehaven.example.com")

	cfg.SeedAccounts = SeedAccountsFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SeedAccountsFromEnv returns the admin and normal accounts named by the
// ADMIN_* and NORMAL_* environment variables.
func SeedAccountsFromEnv() []Account {
	return []Account{
		{
			Name:     getEnvOrDefault("ADMIN_USER_NAME", DefaultAdminUserName),
			Email:    getEnvOrDefault("ADMIN_USER", DefaultAdminUser),
			Password: getEnvOrDefault("ADMIN_PASSWORD", DefaultAdminPassword),
			Admin:    true,
		},
		{
			Name:     getEnvOrDefault("NORMAL_USER_NAME", DefaultNormalUserName),
			Email:    getEnvOrDefault("NORMAL_USER", DefaultNormalUser),
			Password: getEnvOrDefault("NORMAL_PASSWORD", DefaultNormalPassword),
		},
	}
}

// Validate checks that all required storefront configuration is present and valid.
func (c *Server) Validate() error {
	var errs []string

	if !c.NoEmail && c.ResendAPIKey == "" {
		errs = append(errs, "RESEND_API_KEY is required (set env var or use --no-email)")
	}

	if c.MasterKey == "" {
		errs = append(errs, "MASTER_KEY is required (generate with: openssl rand -hex 32)")
	} else if len(c.MasterKey) != 64 {
		errs = append(errs, "MASTER_KEY must be 64 hex characters (32 bytes)")
	}

	if c.SessionDuration <= 0 {
		errs = append(errs, "SESSION_DURATION must be positive")
	}
	if c.LoginRateLimit.RPS <= 0 {
		errs = append(errs, "LOGIN_RATE_LIMIT_RPS must be positive")
	}
	if c.LoginRateLimit.Burst <= 0 {
		errs = append(errs, "LOGIN_RATE_LIMIT_BURST must be positive")
	}

	for _, acct := range c.SeedAccounts {
		if acct.Email == "" || acct.Password == "" {
			errs = append(errs, "seed accounts need both an email and a password")
			break
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// PrintStartupSummary prints a human-readable summary of the configuration to stderr.
func (c *Server) PrintStartupSummary() {
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "stylehaven storefront starting...")
	if c.NoEmail {
		fmt.Fprintln(os.Stderr, "  Email:   Mock (--no-email)")
	} else {
		fmt.Fprintf(os.Stderr, "  Email:   Resend (real, from: %s)\n", c.ResendFromEmail)
	}
	if c.DatabasePath == "" {
		fmt.Fprintln(os.Stderr, "  Store:   in-memory (--memory)")
	} else {
		fmt.Fprintf(os.Stderr, "  Store:   %s\n", c.DatabasePath)
	}
	fmt.Fprintf(os.Stderr, "  Listen:  %s\n", c.ListenAddr)
	fmt.Fprintf(os.Stderr, "  Base:    %s\n", c.BaseURL)
	fmt.Fprintln(os.Stderr, "")
}

// MustLoadServer loads configuration and panics if validation fails.
func MustLoadServer(flags ServerFlags) *Server {
	cfg, err := LoadServer(flags)
	if err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			panic(fmt.Sprintf("Configuration validation failed:\n  - %s", strings.Join(validationErr.Errors, "\n  - ")))
		}
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}
	return cfg
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseListOrDefault(key string, defaultValue []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
