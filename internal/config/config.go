package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	// Remote data service
	APIBaseURL     string        `koanf:"NFCESCAN_API_URL"`
	RequestTimeout time.Duration `koanf:"NFCESCAN_REQUEST_TIMEOUT"`
	ScanTimeout    time.Duration `koanf:"NFCESCAN_SCAN_TIMEOUT"`

	// Query shaping
	ListLimit   int `koanf:"NFCESCAN_LIST_LIMIT"`
	VendorLimit int `koanf:"NFCESCAN_VENDOR_LIMIT"`

	// Client behaviour
	ScanCooldown     time.Duration `koanf:"NFCESCAN_SCAN_COOLDOWN"`
	CategoryCacheTTL time.Duration `koanf:"NFCESCAN_CATEGORY_CACHE_TTL"`
	StartupProbes    int           `koanf:"NFCESCAN_STARTUP_PROBES"`

	// Dev server
	Port         string `koanf:"PORT"`
	SQLiteDBPath string `koanf:"SQLITE_DB_PATH"`

	// Logging
	LogLevel  string `koanf:"LOG_LEVEL"`
	LogFormat string `koanf:"LOG_FORMAT"`
}

// Default returns the configuration used when no variable is set.
func Default() *Config {
	return &Config{
		APIBaseURL:       "http://localhost:8000",
		RequestTimeout:   10 * time.Second,
		ScanTimeout:      30 * time.Second,
		ListLimit:        100,
		VendorLimit:      5,
		ScanCooldown:     2 * time.Second,
		CategoryCacheTTL: 5 * time.Minute,
		StartupProbes:    3,
		Port:             "8000",
		SQLiteDBPath:     "./data/nfcescan.db",
		LogLevel:         "INFO",
		LogFormat:        "text",
	}
}

// Load reads the environment on top of the defaults. Variables that are
// not set keep their default value.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if u, err := url.Parse(c.APIBaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid API URL '%s': %v", c.APIBaseURL, err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid API URL scheme '%s': must be 'http' or 'https'", u.Scheme))
	} else if u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid API URL '%s': missing host", c.APIBaseURL))
	}

	if c.RequestTimeout <= 0 {
		errors = append(errors, "request timeout must be positive")
	}
	if c.ScanTimeout < c.RequestTimeout {
		errors = append(errors, fmt.Sprintf("scan timeout %s must not be shorter than request timeout %s", c.ScanTimeout, c.RequestTimeout))
	}

	if c.ListLimit < 1 || c.ListLimit > 500 {
		errors = append(errors, fmt.Sprintf("invalid list limit %d: must be between 1 and 500", c.ListLimit))
	}
	if c.VendorLimit < 1 || c.VendorLimit > 50 {
		errors = append(errors, fmt.Sprintf("invalid vendor limit %d: must be between 1 and 50", c.VendorLimit))
	}

	if c.ScanCooldown < 0 {
		errors = append(errors, "scan cooldown cannot be negative")
	}
	if c.CategoryCacheTTL <= 0 {
		errors = append(errors, "category cache TTL must be positive")
	}
	if c.StartupProbes < 0 {
		errors = append(errors, "startup probes cannot be negative")
	}

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if strings.TrimSpace(c.SQLiteDBPath) == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	}

	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of DEBUG, INFO, WARN, ERROR", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}
