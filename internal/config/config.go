package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tendant/myauth/pkg/domain"
	"github.com/tendant/myauth/pkg/token"
)

// DefaultMaxRequestBodySize caps JSON request bodies at 1 MiB.
const DefaultMaxRequestBodySize = 1 << 20

// Config holds application configuration.
type Config struct {
	// AppEnv is "development" or "production".
	AppEnv   string
	LogLevel string

	// Server
	ServerAddr string
	ServerPort int

	// Database. DatabaseURL wins over the individual DB_* settings.
	DatabaseURL string
	DBHost      string
	DBPort      int
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string
	AutoMigrate bool

	// Redis backs the session registry. Empty selects the in-memory registry
	// unless SessionStore says otherwise.
	RedisURL       string
	RedisKeyPrefix string
	// SessionStore is "", "memory", "redis" or "postgres".
	SessionStore string

	// JWT
	JWTSecret            string
	JWTIssuer            string
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	EmailVerificationTTL time.Duration

	// Registration
	AppBaseURL            string
	UniqueFields          []domain.UniqueField
	StrictEmailValidation bool
	BlockDisposableEmail  bool

	// HTTP
	CookieSecure       bool
	CookieDomain       string
	CORSAllowedOrigins []string
	MaxRequestBodySize int64
	SecurityHeaders    SecurityHeadersConfig
	MetricsEnabled     bool

	// SMTP
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
}

// SecurityHeadersConfig controls the response security headers.
type SecurityHeadersConfig struct {
	Enabled            bool
	CSP                string
	HSTSMaxAge         int
	FrameOptions       string
	ContentTypeOptions string
	XSSProtection      string
	ReferrerPolicy     string
	PermissionsPolicy  string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	appEnv := strings.ToLower(getEnv("APP_ENV", "development"))
	production := appEnv == "production"

	cfg := &Config{
		AppEnv:   appEnv,
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Server defaults
		ServerAddr: getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort: getEnvInt("SERVER_PORT", 8080),

		// Database defaults
		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnvInt("DB_PORT", 5432),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", "postgres"),
		DBName:      getEnv("DB_NAME", "myauth"),
		DBSSLMode:   getEnv("DB_SSLMODE", "disable"),
		AutoMigrate: getEnvBool("AUTO_MIGRATE", false),

		RedisURL:       getEnv("REDIS_URL", ""),
		RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", "myauth:rt:"),
		SessionStore:   strings.ToLower(getEnv("SESSION_STORE", "")),

		// JWT defaults
		JWTSecret:            getEnv("JWT_SECRET", ""),
		JWTIssuer:            getEnv("JWT_ISSUER", "myauth"),
		AccessTokenTTL:       getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:      getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		EmailVerificationTTL: getEnvDuration("EMAIL_VERIFICATION_TTL", 24*time.Hour),

		AppBaseURL:            getEnv("APP_BASE_URL", "http://localhost:8080"),
		StrictEmailValidation: getEnvBool("STRICT_EMAIL_VALIDATION", false),
		BlockDisposableEmail:  getEnvBool("BLOCK_DISPOSABLE_EMAIL", false),

		CookieSecure:       getEnvBool("COOKIE_SECURE", production),
		CookieDomain:       getEnv("COOKIE_DOMAIN", ""),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", DefaultMaxRequestBodySize)),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),

		SecurityHeaders: SecurityHeadersConfig{
			Enabled:            getEnvBool("SECURITY_HEADERS_ENABLED", true),
			CSP:                getEnv("SECURITY_HEADERS_CSP", "default-src 'self'"),
			HSTSMaxAge:         getEnvInt("SECURITY_HEADERS_HSTS_MAX_AGE", hstsDefault(production)),
			FrameOptions:       getEnv("SECURITY_HEADERS_FRAME_OPTIONS", "DENY"),
			ContentTypeOptions: "nosniff",
			XSSProtection:      "1; mode=block",
			ReferrerPolicy:     getEnv("SECURITY_HEADERS_REFERRER_POLICY", "strict-origin-when-cross-origin"),
			PermissionsPolicy:  getEnv("SECURITY_HEADERS_PERMISSIONS_POLICY", "geolocation=(), microphone=(), camera=()"),
		},

		// SMTP (optional)
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "MyAuth"),
	}

	fields, err := domain.ParseUniqueFields(getEnv("UNIQUE_FIELDS", "email"))
	if err != nil {
		return nil, fmt.Errorf("UNIQUE_FIELDS: %w", err)
	}
	cfg.UniqueFields = fields

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would make the server unsafe or unusable.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < token.MinSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", token.MinSecretLength)
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.EmailVerificationTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.AccessTokenTTL >= c.RefreshTokenTTL {
		return errors.New("ACCESS_TOKEN_TTL must be shorter than REFRESH_TOKEN_TTL")
	}
	if _, err := url.ParseRequestURI(c.AppBaseURL); err != nil {
		return fmt.Errorf("APP_BASE_URL: %w", err)
	}
	if c.MaxRequestBodySize <= 0 {
		return errors.New("MAX_REQUEST_BODY_SIZE must be positive")
	}
	switch c.SessionStore {
	case "", "memory", "postgres":
	case "redis":
		if c.RedisURL == "" {
			return errors.New("SESSION_STORE=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("SESSION_STORE: unknown store %q", c.SessionStore)
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// DSN returns the Postgres connection string.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

// HasRedis returns true if a shared session registry is configured.
func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}

// HasSMTP returns true if outbound email is configured.
func (c *Config) HasSMTP() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

// SlogLevel maps LOG_LEVEL onto a slog level.
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

func hstsDefault(production bool) int {
	if production {
		return 31536000
	}
	return 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
