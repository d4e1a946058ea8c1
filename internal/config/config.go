// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultHistoryDBPath is used when HISTORY_DB_PATH is unset.
const DefaultHistoryDBPath = "catcherr_history.sqlite"

// InventoryConfig controls Strategy B bucket listing.
type InventoryConfig struct {
	Enabled     bool          // reconcile URLs against live bucket listings
	Concurrency int           // max buckets listed at once (default 8)
	RPS         float64       // listing requests per second (default 10)
	Burst       int           // limiter burst (default 10)
	Retries     int           // attempts per bucket (default 3)
	Timeout     time.Duration // per-attempt timeout (default 2m)
}

// Config holds the configuration for the catcherr CLI.
type Config struct {
	LogLevel      string // log level: debug, info, warn, error (default "info")
	LogFormat     string // "text" (default) or "json"
	HistoryDBPath string // SQLite run-history path; "" disables history

	Inventory InventoryConfig

	// S3 fields are optional; nil when not configured.
	S3KeyID    *string
	S3Secret   *string
	S3Endpoint *string
	S3Region   *string
	S3URLStyle string // "vhost" (default) or "path"

	GCSKeyFile string // service account key; empty uses application default credentials

	AzureAccountName string
	AzureAccountKey  string

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// HistoryEnabled reports whether runs are recorded.
func (c *Config) HistoryEnabled() bool {
	return c.HistoryDBPath != ""
}

// HasS3Credentials returns true if an S3 key pair is configured.
func (c *Config) HasS3Credentials() bool {
	return c.S3KeyID != nil && c.S3Secret != nil
}

// HasAzureConfig returns true if an Azure shared key is configured.
func (c *Config) HasAzureConfig() bool {
	return c.AzureAccountName != "" && c.AzureAccountKey != ""
}

// LoadFromEnv loads configuration from environment variables.
// Object-store credentials are optional; public buckets are listed anonymously.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		LogLevel:         os.Getenv("LOG_LEVEL"),
		LogFormat:        strings.ToLower(os.Getenv("LOG_FORMAT")),
		HistoryDBPath:    os.Getenv("HISTORY_DB_PATH"),
		S3URLStyle:       strings.ToLower(os.Getenv("S3_URL_STYLE")),
		GCSKeyFile:       os.Getenv("GCS_KEY_FILE"),
		AzureAccountName: os.Getenv("AZURE_ACCOUNT_NAME"),
		AzureAccountKey:  os.Getenv("AZURE_ACCOUNT_KEY"),
		Inventory: InventoryConfig{
			Enabled: parseBoolEnvDefault("INVENTORY_ENABLED", false),
		},
	}

	cfg.Inventory.Concurrency = cfg.intEnv("INVENTORY_CONCURRENCY", 8)
	cfg.Inventory.Burst = cfg.intEnv("INVENTORY_BURST", 10)
	cfg.Inventory.Retries = cfg.intEnv("INVENTORY_RETRIES", 3)
	cfg.Inventory.RPS = 10
	if v := os.Getenv("INVENTORY_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.Inventory.RPS = f
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ignoring invalid INVENTORY_RPS %q", v))
		}
	}
	cfg.Inventory.Timeout = 2 * time.Minute
	if v := os.Getenv("INVENTORY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Inventory.Timeout = d
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ignoring invalid INVENTORY_TIMEOUT %q", v))
		}
	}

	// S3 fields are optional; only set if present
	if v := os.Getenv("S3_KEY_ID"); v != "" {
		cfg.S3KeyID = &v
	}
	if v := os.Getenv("S3_SECRET"); v != "" {
		cfg.S3Secret = &v
	}
	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		cfg.S3Endpoint = &v
	}
	if v := os.Getenv("S3_REGION"); v != "" {
		cfg.S3Region = &v
	}

	// Defaults
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	switch strings.ToLower(cfg.HistoryDBPath) {
	case "":
		cfg.HistoryDBPath = DefaultHistoryDBPath
	case "off", "none", "false":
		cfg.HistoryDBPath = ""
	}
	if cfg.S3URLStyle == "" {
		cfg.S3URLStyle = "vhost"
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be \"text\" or \"json\", got %q", cfg.LogFormat)
	}
	if cfg.S3URLStyle != "vhost" && cfg.S3URLStyle != "path" {
		return nil, fmt.Errorf("S3_URL_STYLE must be \"vhost\" or \"path\", got %q", cfg.S3URLStyle)
	}
	if (cfg.S3KeyID == nil) != (cfg.S3Secret == nil) {
		cfg.Warnings = append(cfg.Warnings, "only one of S3_KEY_ID and S3_SECRET is set; S3 buckets will be listed anonymously")
	}
	if (cfg.AzureAccountName == "") != (cfg.AzureAccountKey == "") {
		cfg.Warnings = append(cfg.Warnings, "AZURE_ACCOUNT_NAME and AZURE_ACCOUNT_KEY must be set together; az:// buckets cannot be listed")
	}

	return cfg, nil
}

// intEnv parses a positive integer variable, warning and falling back on bad input.
func (c *Config) intEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("ignoring invalid %s %q", key, v))
		return def
	}
	return n
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(strings.TrimPrefix(line, "export "), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
