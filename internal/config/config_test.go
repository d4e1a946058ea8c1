package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable LoadFromEnv reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LOG_LEVEL", "LOG_FORMAT", "HISTORY_DB_PATH",
		"INVENTORY_ENABLED", "INVENTORY_CONCURRENCY", "INVENTORY_RPS", "INVENTORY_BURST",
		"INVENTORY_RETRIES", "INVENTORY_TIMEOUT",
		"S3_KEY_ID", "S3_SECRET", "S3_ENDPOINT", "S3_REGION", "S3_URL_STYLE",
		"GCS_KEY_FILE", "AZURE_ACCOUNT_NAME", "AZURE_ACCOUNT_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, DefaultHistoryDBPath, cfg.HistoryDBPath)
	assert.True(t, cfg.HistoryEnabled())
	assert.Equal(t, InventoryConfig{
		Enabled:     false,
		Concurrency: 8,
		RPS:         10,
		Burst:       10,
		Retries:     3,
		Timeout:     2 * time.Minute,
	}, cfg.Inventory)
	assert.Equal(t, "vhost", cfg.S3URLStyle)
	assert.False(t, cfg.HasS3Credentials())
	assert.False(t, cfg.HasAzureConfig())
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromEnv_AllVarsSet(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("HISTORY_DB_PATH", "/tmp/history.sqlite")
	t.Setenv("INVENTORY_ENABLED", "yes")
	t.Setenv("INVENTORY_CONCURRENCY", "4")
	t.Setenv("INVENTORY_RPS", "2.5")
	t.Setenv("INVENTORY_BURST", "5")
	t.Setenv("INVENTORY_RETRIES", "6")
	t.Setenv("INVENTORY_TIMEOUT", "30s")
	t.Setenv("S3_KEY_ID", "testkey")
	t.Setenv("S3_SECRET", "testsecret")
	t.Setenv("S3_ENDPOINT", "s3.example.com")
	t.Setenv("S3_REGION", "eu-central-1")
	t.Setenv("S3_URL_STYLE", "path")
	t.Setenv("GCS_KEY_FILE", "/etc/gcs.json")
	t.Setenv("AZURE_ACCOUNT_NAME", "acct")
	t.Setenv("AZURE_ACCOUNT_KEY", "key")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "/tmp/history.sqlite", cfg.HistoryDBPath)
	assert.Equal(t, InventoryConfig{
		Enabled:     true,
		Concurrency: 4,
		RPS:         2.5,
		Burst:       5,
		Retries:     6,
		Timeout:     30 * time.Second,
	}, cfg.Inventory)
	require.True(t, cfg.HasS3Credentials())
	assert.Equal(t, "testkey", *cfg.S3KeyID)
	require.NotNil(t, cfg.S3Endpoint)
	assert.Equal(t, "s3.example.com", *cfg.S3Endpoint)
	require.NotNil(t, cfg.S3Region)
	assert.Equal(t, "eu-central-1", *cfg.S3Region)
	assert.Equal(t, "path", cfg.S3URLStyle)
	assert.Equal(t, "/etc/gcs.json", cfg.GCSKeyFile)
	assert.True(t, cfg.HasAzureConfig())
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromEnv_HistoryDisabled(t *testing.T) {
	for _, v := range []string{"off", "none", "FALSE"} {
		t.Run(v, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("HISTORY_DB_PATH", v)
			cfg, err := LoadFromEnv()
			require.NoError(t, err)
			assert.False(t, cfg.HistoryEnabled())
		})
	}
}

func TestLoadFromEnv_InvalidValuesWarn(t *testing.T) {
	clearEnv(t)
	t.Setenv("INVENTORY_CONCURRENCY", "many")
	t.Setenv("INVENTORY_RPS", "-1")
	t.Setenv("INVENTORY_TIMEOUT", "soon")
	t.Setenv("S3_KEY_ID", "only-key")
	t.Setenv("AZURE_ACCOUNT_NAME", "acct")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Inventory.Concurrency)
	assert.Equal(t, float64(10), cfg.Inventory.RPS)
	assert.Equal(t, 2*time.Minute, cfg.Inventory.Timeout)
	assert.False(t, cfg.HasS3Credentials())
	assert.Len(t, cfg.Warnings, 5)
}

func TestLoadFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "log_format", key: "LOG_FORMAT", val: "xml"},
		{name: "url_style", key: "S3_URL_STYLE", val: "virtual"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)
			_, err := LoadFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "WARN", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "info", want: slog.LevelInfo},
		{in: "bogus", want: slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.in}
			assert.Equal(t, tt.want, cfg.SlogLevel())
		})
	}
}

func TestLoadDotEnv_FileNotFound(t *testing.T) {
	require.NoError(t, LoadDotEnv("/nonexistent/.env"))
}

func TestLoadDotEnv_ParsesKeyValue(t *testing.T) {
	t.Setenv("CATCHERR_TEST_KEY", "")
	t.Setenv("CATCHERR_TEST_QUOTED", "")
	t.Setenv("CATCHERR_TEST_EXPORT", "")
	envFile := filepath.Join(t.TempDir(), ".env")
	content := "# comment\n\nCATCHERR_TEST_KEY=test_value\nCATCHERR_TEST_QUOTED=\"a b\"\nexport CATCHERR_TEST_EXPORT='x'\nnot a pair\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))

	require.NoError(t, LoadDotEnv(envFile))

	assert.Equal(t, "test_value", os.Getenv("CATCHERR_TEST_KEY"))
	assert.Equal(t, "a b", os.Getenv("CATCHERR_TEST_QUOTED"))
	assert.Equal(t, "x", os.Getenv("CATCHERR_TEST_EXPORT"))
}

func TestLoadDotEnv_EnvVarPrecedence(t *testing.T) {
	t.Setenv("CATCHERR_TEST_PRECEDENCE", "from_env")
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("CATCHERR_TEST_PRECEDENCE=from_file\n"), 0o644))

	require.NoError(t, LoadDotEnv(envFile))
	assert.Equal(t, "from_env", os.Getenv("CATCHERR_TEST_PRECEDENCE"))
}

func TestStripQuotes(t *testing.T) {
	assert.Equal(t, "v", stripQuotes(`"v"`))
	assert.Equal(t, "v", stripQuotes(`'v'`))
	assert.Equal(t, `"v'`, stripQuotes(`"v'`))
	assert.Equal(t, `"`, stripQuotes(`"`))
}
