// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/calisound/caliauth/internal/util"
)

// Settings backends.
const (
	BackendMemory   = "memory"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	// minSecretLen is the shortest session secret accepted in production.
	minSecretLen = 32
)

type Config struct {
	Env             string
	Addr            string
	AdminPassword   string
	SessionSecret   string
	SettingsKey     string
	SettingsBackend string
	DataDir         string
	DatabaseURL     string
	Issuer          string
	AccountName     string
	TrustedProxies  string
	FailureDelay    time.Duration
	SecureCookies   bool
	TLSCert         string
	TLSKey          string
	WebhookURL      string
	WebhookAuth     string
	LogLevel        string
}

// Load reads .env files (default ".env"; missing files are ignored) into the
// process environment without overriding variables already set, then builds
// a Config from CALI_* variables.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from CALI_* environment variables.
func FromEnv() (*Config, error) {
	delay, err := time.ParseDuration(getEnv("CALI_FAILURE_DELAY", "100ms"))
	if err != nil {
		return nil, fmt.Errorf("CALI_FAILURE_DELAY: %w", err)
	}
	secure, err := strconv.ParseBool(getEnv("CALI_SECURE_COOKIES", "false"))
	if err != nil {
		return nil, fmt.Errorf("CALI_SECURE_COOKIES: %w", err)
	}
	return &Config{
		Env:             getEnv("CALI_ENV", EnvDevelopment),
		Addr:            getEnv("CALI_ADDR", "127.0.0.1:8080"),
		AdminPassword:   os.Getenv("CALI_ADMIN_PASSWORD"),
		SessionSecret:   os.Getenv("CALI_SESSION_SECRET"),
		SettingsKey:     os.Getenv("CALI_SETTINGS_KEY"),
		SettingsBackend: getEnv("CALI_SETTINGS_BACKEND", BackendBolt),
		DataDir:         getEnv("CALI_DATA_DIR", "./data"),
		DatabaseURL:     os.Getenv("CALI_DATABASE_URL"),
		Issuer:          getEnv("CALI_TOTP_ISSUER", "CALI Sound"),
		AccountName:     getEnv("CALI_TOTP_ACCOUNT", "admin"),
		TrustedProxies:  os.Getenv("CALI_TRUSTED_PROXIES"),
		FailureDelay:    delay,
		SecureCookies:   secure,
		TLSCert:         os.Getenv("CALI_TLS_CERT"),
		TLSKey:          os.Getenv("CALI_TLS_KEY"),
		WebhookURL:      os.Getenv("CALI_AUDIT_WEBHOOK_URL"),
		WebhookAuth:     os.Getenv("CALI_AUDIT_WEBHOOK_AUTH"),
		LogLevel:        getEnv("CALI_LOG_LEVEL", "info"),
	}, nil
}

// Production reports whether the service runs in production mode.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, EnvProduction)
}

// Validate checks the configuration. In production a missing admin password
// or a missing or short session secret is an error. Elsewhere a random
// value is generated for the process lifetime and a warning logged, so
// sessions do not survive a restart.
func (c *Config) Validate(logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	var errs []error

	if c.AdminPassword == "" {
		if c.Production() {
			errs = append(errs, errors.New("CALI_ADMIN_PASSWORD is required in production"))
		} else {
			pw, err := util.RandomHex(12)
			if err != nil {
				return err
			}
			c.AdminPassword = pw
			logger.Warn("CALI_ADMIN_PASSWORD not set; using a generated password for this run",
				slog.String("admin_password", pw))
		}
	}

	switch {
	case c.SessionSecret == "" && c.Production():
		errs = append(errs, errors.New("CALI_SESSION_SECRET is required in production"))
	case c.SessionSecret == "":
		secret, err := util.RandomHex(32)
		if err != nil {
			return err
		}
		c.SessionSecret = secret
		logger.Warn("CALI_SESSION_SECRET not set; using an ephemeral secret, sessions end on restart")
	case len(c.SessionSecret) < minSecretLen && c.Production():
		errs = append(errs, fmt.Errorf("CALI_SESSION_SECRET must be at least %d characters", minSecretLen))
	}

	if c.SettingsKey != "" && c.SettingsKey == c.SessionSecret {
		errs = append(errs, errors.New("CALI_SETTINGS_KEY must differ from CALI_SESSION_SECRET"))
	}

	switch c.SettingsBackend {
	case BackendMemory:
		if c.Production() {
			logger.Warn("memory settings backend: 2FA configuration is lost on restart")
		}
	case BackendBolt:
		if c.DataDir == "" {
			errs = append(errs, errors.New("CALI_DATA_DIR is required for the bolt backend"))
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("CALI_DATABASE_URL is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown settings backend %q", c.SettingsBackend))
	}

	if (c.TLSCert == "") != (c.TLSKey == "") {
		errs = append(errs, errors.New("CALI_TLS_CERT and CALI_TLS_KEY must be set together"))
	}
	if c.FailureDelay < 0 {
		errs = append(errs, errors.New("CALI_FAILURE_DELAY must not be negative"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// BoltPath is the bbolt database file inside DataDir.
func (c *Config) BoltPath() string {
	return filepath.Join(c.DataDir, "caliauth.db")
}

// Logger returns a JSON logger in production and a text logger otherwise.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Production() {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
