// Package authkit embeds the myauth session and email verification service in
// another program.
//
// Setup:
//
//  1. Run migrations (`myauth migrate up`) or set AutoMigrate
//  2. Create a Kit and mount its router
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", "postgres://localhost/myapp?sslmode=disable")
//
//	kit, err := authkit.New(authkit.Config{
//	    DB:         db,
//	    JWTSecret:  "your-secret-key-at-least-32-chars",
//	    AppBaseURL: "https://auth.example.com",
//	})
//	if err != nil {
//	    log.Fatal(err) // Will fail if migrations haven't been run
//	}
//	http.ListenAndServe(":8080", kit.Router())
//
// Sharing sessions across replicas:
//
//	kit, err := authkit.New(authkit.Config{
//	    DB:         db,
//	    Redis:      redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
//	    JWTSecret:  "your-secret-key-at-least-32-chars",
//	    AppBaseURL: "https://auth.example.com",
//	})
package authkit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/myauth/internal/config"
	apphttp "github.com/tendant/myauth/internal/http"
	"github.com/tendant/myauth/internal/http/middleware"
	"github.com/tendant/myauth/internal/httputil"
	"github.com/tendant/myauth/internal/notification"
	"github.com/tendant/myauth/internal/observability"
	"github.com/tendant/myauth/pkg/auth"
	"github.com/tendant/myauth/pkg/domain"
	"github.com/tendant/myauth/pkg/registry"
	"github.com/tendant/myauth/pkg/repository"
	"github.com/tendant/myauth/pkg/token"
)

// SecurityHeadersConfig controls the response security headers.
type SecurityHeadersConfig = config.SecurityHeadersConfig

// Session stores.
const (
	SessionStoreMemory   = "memory"
	SessionStoreRedis    = "redis"
	SessionStorePostgres = "postgres"
)

// Config holds the configuration for a Kit.
type Config struct {
	// DB is the Postgres connection. Required unless Users is set.
	DB *sql.DB

	// Users overrides the Postgres user repository, e.g. with
	// repository.NewMemoryUsersRepository for tests.
	Users auth.UserRepository

	// AutoMigrate applies pending migrations to DB in New.
	AutoMigrate bool

	// Redis holds the session registry so every replica sees the same
	// sessions. When nil an in-process registry is used.
	Redis redis.UniversalClient

	// RedisKeyPrefix namespaces registry keys (default: "myauth:rt:").
	RedisKeyPrefix string

	// SessionStore selects where active refresh tokens live. Empty picks
	// redis when Redis is set and memory otherwise; "postgres" uses DB.
	SessionStore string

	// JWTSecret signs every token (required, min 32 chars).
	JWTSecret string

	// JWTIssuer is the issuer claim in tokens (default: "myauth").
	JWTIssuer string

	AccessTokenTTL  time.Duration // default: 15 minutes
	RefreshTokenTTL time.Duration // default: 7 days
	VerificationTTL time.Duration // default: 24 hours

	// AppBaseURL is the public base URL the verification link points at (required).
	AppBaseURL string

	// UniqueFields lists the attributes that must not collide across
	// accounts (default: email only).
	UniqueFields []domain.UniqueField

	StrictEmailValidation bool
	BlockDisposableEmail  bool

	// Notifier delivers verification emails. When nil the emails are only logged.
	Notifier auth.Notifier

	CookieSecure bool
	CookieDomain string

	CORSAllowedOrigins []string
	SecurityHeaders    SecurityHeadersConfig
	MaxRequestBodySize int64

	// Metrics exposes Prometheus metrics on /metrics.
	Metrics bool

	// Logger is the structured logger (default: JSON on stdout).
	Logger *slog.Logger
}

// Kit is a wired myauth instance.
type Kit struct {
	config              Config
	users               auth.UserRepository
	registry            registry.Registry
	sessionService      *auth.SessionService
	verificationService *auth.VerificationService
	metrics             *observability.Metrics
}

// New creates a Kit with the given configuration.
// With a DB it fails if a required table is missing and AutoMigrate is off.
func New(cfg Config) (*Kit, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if cfg.AutoMigrate && cfg.DB != nil {
		if err := repository.Migrate(context.Background(), cfg.DB); err != nil {
			return nil, fmt.Errorf("authkit: %w", err)
		}
	}

	users := cfg.Users
	if users == nil {
		if err := validateSchema(cfg.DB, "users"); err != nil {
			return nil, err
		}
		users = repository.NewUsersRepository(cfg.DB)
	}
	if cfg.SessionStore == SessionStorePostgres {
		if err := validateSchema(cfg.DB, "sessions"); err != nil {
			return nil, err
		}
	}

	reg, err := newRegistry(cfg)
	if err != nil {
		return nil, err
	}

	codec, err := token.NewCodec(token.Config{
		Secret: []byte(cfg.JWTSecret),
		Issuer: cfg.JWTIssuer,
	})
	if err != nil {
		return nil, fmt.Errorf("authkit: %w", err)
	}

	hasher := auth.NewArgon2Hasher()

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notification.NewLogNotifier(cfg.Logger)
	}

	var metrics *observability.Metrics
	if cfg.Metrics {
		metrics = observability.NewMetrics()
	}

	return &Kit{
		config:   cfg,
		users:    users,
		registry: reg,
		sessionService: auth.NewSessionService(auth.SessionConfig{
			AccessTokenTTL:  cfg.AccessTokenTTL,
			RefreshTokenTTL: cfg.RefreshTokenTTL,
		}, codec, reg, users, hasher),
		verificationService: auth.NewVerificationService(auth.VerificationConfig{
			VerificationTTL:       cfg.VerificationTTL,
			AppBaseURL:            cfg.AppBaseURL,
			UniqueFields:          cfg.UniqueFields,
			StrictEmailValidation: cfg.StrictEmailValidation,
			BlockDisposableEmail:  cfg.BlockDisposableEmail,
		}, codec, users, hasher, notifier, cfg.Logger),
		metrics: metrics,
	}, nil
}

func newRegistry(cfg Config) (registry.Registry, error) {
	switch cfg.SessionStore {
	case SessionStoreRedis:
		r, err := registry.NewRedis(cfg.Redis, cfg.RedisKeyPrefix, cfg.RefreshTokenTTL)
		if err != nil {
			return nil, fmt.Errorf("authkit: %w", err)
		}
		return r, nil
	case SessionStorePostgres:
		r, err := repository.NewSessionsRepository(cfg.DB, cfg.RefreshTokenTTL)
		if err != nil {
			return nil, fmt.Errorf("authkit: %w", err)
		}
		return r, nil
	default:
		cfg.Logger.Warn("session registry: using in-memory storage (not safe for multi-replica)")
		return registry.NewMemory(cfg.RefreshTokenTTL), nil
	}
}

// PruneSessions deletes expired sessions from the Postgres store. Other
// stores expire entries on their own and report zero.
func (k *Kit) PruneSessions(ctx context.Context) (int64, error) {
	if r, ok := k.registry.(*repository.SessionsRepository); ok {
		return r.DeleteExpired(ctx)
	}
	return 0, nil
}

// Router returns the HTTP handler with every route:
//
//	POST /api/auth/register               - Register a new account
//	GET  /api/auth/verify-email/{token}   - Verify from the emailed link (HTML)
//	POST /api/auth/verify-email           - Verify a posted token (JSON)
//	POST /api/auth/resend-verification    - Send a new verification email
//	POST /api/auth/login                  - Login with email/password
//	POST /api/auth/refresh-token          - Refresh the access token
//	POST /api/auth/logout                 - Logout (end the session)
//	GET  /api/auth/me                     - Current user (protected)
//	GET  /api/protected                   - Example protected route
//	GET  /health                          - Health check
//	GET  /metrics                         - Prometheus metrics (if enabled)
func (k *Kit) Router() http.Handler {
	cookies := httputil.DefaultCookieConfig()
	cookies.Secure = k.config.CookieSecure
	cookies.Domain = k.config.CookieDomain

	return apphttp.NewRouter(apphttp.RouterConfig{
		Logger:              k.config.Logger,
		SessionService:      k.sessionService,
		VerificationService: k.verificationService,
		Users:               k.users,
		Cookies:             cookies,
		SecurityHeaders:     k.config.SecurityHeaders,
		MaxRequestBodySize:  k.config.MaxRequestBodySize,
		CORSAllowedOrigins:  k.config.CORSAllowedOrigins,
		Metrics:             k.metrics,
		HealthCheck:         k.Ping,
	})
}

// Ping checks the database and the shared registry.
func (k *Kit) Ping(ctx context.Context) error {
	if k.config.DB != nil {
		if err := k.config.DB.PingContext(ctx); err != nil {
			return domain.StorageError("ping database", err)
		}
	}
	if r, ok := k.registry.(*registry.Redis); ok {
		if err := r.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// SessionService returns the session service for advanced usage.
func (k *Kit) SessionService() *auth.SessionService {
	return k.sessionService
}

// VerificationService returns the verification service for advanced usage.
func (k *Kit) VerificationService() *auth.VerificationService {
	return k.verificationService
}

// AuthMiddleware returns middleware that validates access tokens.
// Use this to protect your own routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(kit.AuthMiddleware())
//	    r.Get("/protected", handler)
//	})
func (k *Kit) AuthMiddleware() func(http.Handler) http.Handler {
	return middleware.Auth(k.sessionService)
}

// GetUserID extracts the user ID from a request.
// Use after AuthMiddleware:
//
//	userID, ok := authkit.GetUserID(r)
func GetUserID(r *http.Request) (uuid.UUID, bool) {
	return middleware.GetUserID(r.Context())
}

// DefaultSecurityHeaders returns the recommended header set.
func DefaultSecurityHeaders() SecurityHeadersConfig {
	return SecurityHeadersConfig{
		Enabled:            true,
		CSP:                "default-src 'self'",
		FrameOptions:       "DENY",
		ContentTypeOptions: "nosniff",
		XSSProtection:      "1; mode=block",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		PermissionsPolicy:  "geolocation=(), microphone=(), camera=()",
	}
}

func validateConfig(cfg *Config) error {
	if cfg.DB == nil && cfg.Users == nil {
		return errors.New("authkit: DB or Users is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("authkit: JWTSecret is required")
	}
	if len(cfg.JWTSecret) < token.MinSecretLength {
		return fmt.Errorf("authkit: JWTSecret must be at least %d characters", token.MinSecretLength)
	}
	if cfg.AppBaseURL == "" {
		return errors.New("authkit: AppBaseURL is required")
	}
	if cfg.AccessTokenTTL < 0 || cfg.RefreshTokenTTL < 0 || cfg.VerificationTTL < 0 {
		return errors.New("authkit: TTLs must not be negative")
	}
	switch cfg.SessionStore {
	case "", SessionStoreMemory:
	case SessionStoreRedis:
		if cfg.Redis == nil {
			return errors.New("authkit: Redis is required for the redis session store")
		}
	case SessionStorePostgres:
		if cfg.DB == nil {
			return errors.New("authkit: DB is required for the postgres session store")
		}
	default:
		return fmt.Errorf("authkit: unknown session store %q", cfg.SessionStore)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "myauth"
	}
	if cfg.RedisKeyPrefix == "" {
		cfg.RedisKeyPrefix = registry.DefaultKeyPrefix
	}
	if cfg.SessionStore == "" {
		cfg.SessionStore = SessionStoreMemory
		if cfg.Redis != nil {
			cfg.SessionStore = SessionStoreRedis
		}
	}
	if cfg.AccessTokenTTL == 0 {
		cfg.AccessTokenTTL = auth.DefaultAccessTokenTTL
	}
	if cfg.RefreshTokenTTL == 0 {
		cfg.RefreshTokenTTL = auth.DefaultRefreshTokenTTL
	}
	if cfg.VerificationTTL == 0 {
		cfg.VerificationTTL = auth.DefaultVerificationTTL
	}
	if len(cfg.UniqueFields) == 0 {
		cfg.UniqueFields = []domain.UniqueField{domain.FieldEmail}
	}
	if cfg.MaxRequestBodySize <= 0 {
		cfg.MaxRequestBodySize = config.DefaultMaxRequestBodySize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
}

// validateSchema checks that table exists.
func validateSchema(db *sql.DB, table string) error {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name = $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var name string
	err := db.QueryRowContext(ctx, query, table).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("authkit: missing table '%s' - run migrations first (myauth migrate up)", table)
	}
	if err != nil {
		return fmt.Errorf("authkit: failed to check schema: %w", err)
	}
	return nil
}
