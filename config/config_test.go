package config

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allVars = []string{
	"CALI_ENV", "CALI_ADDR", "CALI_ADMIN_PASSWORD", "CALI_SESSION_SECRET", "CALI_SETTINGS_KEY",
	"CALI_SETTINGS_BACKEND", "CALI_DATA_DIR", "CALI_DATABASE_URL",
	"CALI_TOTP_ISSUER", "CALI_TOTP_ACCOUNT", "CALI_TRUSTED_PROXIES",
	"CALI_FAILURE_DELAY", "CALI_SECURE_COOKIES", "CALI_TLS_CERT", "CALI_TLS_KEY",
	"CALI_AUDIT_WEBHOOK_URL", "CALI_AUDIT_WEBHOOK_AUTH", "CALI_LOG_LEVEL",
}

// clearEnv blanks every CALI_* variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allVars {
		t.Setenv(k, "")
	}
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	c, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, c.Env)
	assert.Equal(t, "127.0.0.1:8080", c.Addr)
	assert.Equal(t, BackendBolt, c.SettingsBackend)
	assert.Equal(t, "./data", c.DataDir)
	assert.Equal(t, "CALI Sound", c.Issuer)
	assert.Equal(t, "admin", c.AccountName)
	assert.Equal(t, 100*time.Millisecond, c.FailureDelay)
	assert.False(t, c.SecureCookies)
	assert.Empty(t, c.SettingsKey, "sealing settings at rest is opt-in")
	assert.False(t, c.Production())
	assert.Equal(t, filepath.Join("data", "caliauth.db"), c.BoltPath())
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CALI_ENV", "Production")
	t.Setenv("CALI_ADDR", ":9000")
	t.Setenv("CALI_SETTINGS_BACKEND", "postgres")
	t.Setenv("CALI_DATABASE_URL", "postgres://localhost/cali")
	t.Setenv("CALI_FAILURE_DELAY", "250ms")
	t.Setenv("CALI_SECURE_COOKIES", "true")
	t.Setenv("CALI_SETTINGS_KEY", "settings-key")

	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "settings-key", c.SettingsKey)
	assert.True(t, c.Production())
	assert.Equal(t, ":9000", c.Addr)
	assert.Equal(t, BackendPostgres, c.SettingsBackend)
	assert.Equal(t, 250*time.Millisecond, c.FailureDelay)
	assert.True(t, c.SecureCookies)
}

func TestFromEnvInvalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("CALI_FAILURE_DELAY", "soon")
	_, err := FromEnv()
	assert.ErrorContains(t, err, "CALI_FAILURE_DELAY")

	clearEnv(t)
	t.Setenv("CALI_SECURE_COOKIES", "maybe")
	_, err = FromEnv()
	assert.ErrorContains(t, err, "CALI_SECURE_COOKIES")
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	// godotenv does not override variables that are already set, and
	// t.Setenv("") counts as set, so unset the two under test.
	require.NoError(t, os.Unsetenv("CALI_ADMIN_PASSWORD"))
	require.NoError(t, os.Unsetenv("CALI_TOTP_ISSUER"))
	t.Cleanup(func() {
		os.Unsetenv("CALI_ADMIN_PASSWORD")
		os.Unsetenv("CALI_TOTP_ISSUER")
	})

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("CALI_ADMIN_PASSWORD=from-dotenv\nCALI_TOTP_ISSUER=\"Cali Test\"\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", c.AdminPassword)
	assert.Equal(t, "Cali Test", c.Issuer)

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err, "a missing file is ignored")
}

func TestValidateDevelopmentGeneratesSecrets(t *testing.T) {
	var buf bytes.Buffer
	c := &Config{Env: EnvDevelopment, SettingsBackend: BackendMemory, LogLevel: "info"}

	require.NoError(t, c.Validate(slog.New(slog.NewTextHandler(&buf, nil))))
	assert.Len(t, c.AdminPassword, 24)
	assert.Len(t, c.SessionSecret, 64)
	assert.Contains(t, buf.String(), "CALI_SESSION_SECRET not set")
	assert.Contains(t, buf.String(), "CALI_ADMIN_PASSWORD not set")
}

func TestValidateProduction(t *testing.T) {
	t.Run("missing secrets", func(t *testing.T) {
		c := &Config{Env: EnvProduction, SettingsBackend: BackendBolt, DataDir: "/var/lib/cali", LogLevel: "info"}
		err := c.Validate(quiet())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CALI_ADMIN_PASSWORD")
		assert.Contains(t, err.Error(), "CALI_SESSION_SECRET")
		assert.Empty(t, c.SessionSecret, "no ephemeral secret in production")
	})

	t.Run("short secret", func(t *testing.T) {
		c := &Config{Env: EnvProduction, AdminPassword: "pw", SessionSecret: "short",
			SettingsBackend: BackendBolt, DataDir: "/var/lib/cali", LogLevel: "info"}
		assert.ErrorContains(t, c.Validate(quiet()), "at least 32")
	})

	t.Run("complete", func(t *testing.T) {
		c := &Config{Env: EnvProduction, AdminPassword: "pw", SessionSecret: strings.Repeat("s", 32),
			SettingsBackend: BackendBolt, DataDir: "/var/lib/cali", LogLevel: "warn"}
		assert.NoError(t, c.Validate(quiet()))
	})
}

func TestValidateFields(t *testing.T) {
	base := func() *Config {
		return &Config{AdminPassword: "pw", SessionSecret: "secret", SettingsBackend: BackendMemory, LogLevel: "info"}
	}

	c := base()
	c.SettingsBackend = "redis"
	assert.ErrorContains(t, c.Validate(quiet()), "unknown settings backend")

	c = base()
	c.SettingsBackend = BackendPostgres
	assert.ErrorContains(t, c.Validate(quiet()), "CALI_DATABASE_URL")

	c = base()
	c.SettingsKey = c.SessionSecret
	assert.ErrorContains(t, c.Validate(quiet()), "CALI_SETTINGS_KEY")

	c = base()
	c.SettingsKey = "a different key"
	assert.NoError(t, c.Validate(quiet()))

	c = base()
	c.TLSCert = "cert.pem"
	assert.ErrorContains(t, c.Validate(quiet()), "set together")

	c = base()
	c.FailureDelay = -time.Second
	assert.ErrorContains(t, c.Validate(quiet()), "negative")

	c = base()
	c.LogLevel = "chatty"
	assert.ErrorContains(t, c.Validate(quiet()), "log level")
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	c := &Config{Env: EnvProduction, LogLevel: "info"}
	c.Logger(&buf).Info("hello")
	assert.True(t, strings.HasPrefix(buf.String(), "{"), "json in production")

	buf.Reset()
	c = &Config{Env: EnvDevelopment, LogLevel: "warn"}
	l := c.Logger(&buf)
	l.Info("hidden")
	l.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
}
