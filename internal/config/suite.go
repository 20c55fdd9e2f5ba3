package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kuitang/stylehaven/internal/urlutil"
)

// Driver backends understood by internal/driver/launch.
const (
	DriverPlaywright = "playwright"
	DriverRod        = "rod"
	DriverSelenium   = "selenium"
)

// Suite holds the end-to-end suite configuration.
type Suite struct {
	// BaseURL of the storefront under test. Empty means the suite starts the
	// in-process reference storefront.
	BaseURL string

	Admin  Account
	Normal Account

	Driver      string
	SeleniumURL string
	Headless    bool
	EdgeBinary  string

	TargetsFile string
	Browsers    []string // optional filter on browser names
	Devices     []string // optional filter on device names

	WaitTimeout   time.Duration
	ScreenshotDir string
	LogDir        string
	LogLevel      string

	ArtifactBucket    string
	ArtifactPublicURL string
	AWSEndpointS3     string
	AWSRegion         string
	AWSAccessKeyID    string
	AWSSecretKey      string
}

// LoadSuite loads the suite configuration from environment variables.
func LoadSuite() (*Suite, error) {
	accounts := SeedAccountsFromEnv()
	cfg := &Suite{
		BaseURL: urlutil.Normalize(getEnvOrDefault("BASE_URL", "")),
		Admin:   accounts[0],
		Normal:  accounts[1],

		Driver:      strings.ToLower(getEnvOrDefault("E2E_DRIVER", DriverPlaywright)),
		SeleniumURL: getEnvOrDefault("SELENIUM_URL", ""),
		Headless:    getEnvOrDefault("E2E_HEADLESS", "true") != "false",
		EdgeBinary:  getEnvOrDefault("E2E_EDGE_BIN", ""),

		TargetsFile: getEnvOrDefault("E2E_TARGETS_FILE", ""),
		Browsers:    parseListOrDefault("E2E_BROWSERS", nil),
		Devices:     parseListOrDefault("E2E_DEVICES", nil),

		WaitTimeout:   parseDurationOrDefault("E2E_WAIT_TIMEOUT", 10*time.Second),
		ScreenshotDir: getEnvOrDefault("E2E_SCREENSHOT_DIR", "./artifacts"),
		LogDir:        getEnvOrDefault("E2E_LOG_DIR", "./artifacts/logs"),
		LogLevel:      getEnvOrDefault("E2E_LOG_LEVEL", "info"),

		ArtifactBucket:    getEnvOrDefault("E2E_ARTIFACT_BUCKET", ""),
		ArtifactPublicURL: getEnvOrDefault("E2E_ARTIFACT_PUBLIC_URL", ""),
		AWSEndpointS3:     getEnvOrDefault("AWS_ENDPOINT_URL_S3", ""),
		AWSRegion:         getEnvOrDefault("AWS_REGION", "auto"),
		AWSAccessKeyID:    getEnvOrDefault("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:      getEnvOrDefault("AWS_SECRET_ACCESS_KEY", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the suite configuration.
func (c *Suite) Validate() error {
	var errs []string

	switch c.Driver {
	case DriverPlaywright, DriverRod:
	case DriverSelenium:
		if c.SeleniumURL == "" {
			errs = append(errs, "SELENIUM_URL is required when E2E_DRIVER=selenium")
		}
	default:
		errs = append(errs, fmt.Sprintf("E2E_DRIVER must be one of playwright, rod, selenium (got %q)", c.Driver))
	}

	if c.BaseURL != "" && !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		errs = append(errs, "BASE_URL must start with http:// or https://")
	}
	if c.WaitTimeout <= 0 {
		errs = append(errs, "E2E_WAIT_TIMEOUT must be positive")
	}
	if c.Normal.Email == "" || c.Normal.Password == "" {
		errs = append(errs, "NORMAL_USER and NORMAL_PASSWORD must not be empty")
	}
	if c.ArtifactBucket != "" && c.AWSEndpointS3 == "" {
		errs = append(errs, "AWS_ENDPOINT_URL_S3 is required when E2E_ARTIFACT_BUCKET is set")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// UsesInProcessStorefront reports whether no external BASE_URL was given.
func (c *Suite) UsesInProcessStorefront() bool {
	return c.BaseURL == ""
}

// UploadsArtifacts reports whether screenshots are pushed to object storage.
func (c *Suite) UploadsArtifacts() bool {
	return c.ArtifactBucket != ""
}
