package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tendant/myauth/internal/config"
	"github.com/tendant/myauth/internal/http/features/account"
	"github.com/tendant/myauth/internal/http/features/me"
	"github.com/tendant/myauth/internal/http/features/session"
	"github.com/tendant/myauth/internal/http/middleware"
	"github.com/tendant/myauth/internal/httputil"
	"github.com/tendant/myauth/internal/observability"
	"github.com/tendant/myauth/pkg/auth"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger              *slog.Logger
	SessionService      *auth.SessionService
	VerificationService *auth.VerificationService
	Users               auth.UserRepository
	Cookies             httputil.CookieConfig
	SecurityHeaders     config.SecurityHeadersConfig
	MaxRequestBodySize  int64
	CORSAllowedOrigins  []string
	// Metrics enables /metrics and request instrumentation when set.
	Metrics *observability.Metrics
	// HealthCheck, when set, is probed by /health.
	HealthCheck func(ctx context.Context) error
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxRequestBodySize <= 0 {
		cfg.MaxRequestBodySize = config.DefaultMaxRequestBodySize
	}

	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimw.RequestID)
	// Logging sits outside Recover so panics are still logged and timed as 500s.
	r.Use(middleware.Logging(cfg.Logger, cfg.Metrics))
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBodySize))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.ErrorCode(w, http.StatusNotFound, "not_found", "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.ErrorCode(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if cfg.HealthCheck != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := cfg.HealthCheck(ctx); err != nil {
				cfg.Logger.Error("health check failed", "error", err)
				httputil.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	requireAuth := middleware.Auth(cfg.SessionService)

	accountHandler := account.NewHandler(cfg.Logger, cfg.VerificationService, cfg.Metrics)
	sessionHandler := session.NewHandler(cfg.Logger, cfg.SessionService, cfg.Cookies, cfg.Metrics)
	meHandler := me.NewHandler(cfg.Logger, cfg.Users)

	r.Route("/api/auth", func(r chi.Router) {
		accountHandler.Routes(r)
		sessionHandler.Routes(r)
		r.With(requireAuth).Get("/me", meHandler.GetMe)
	})
	r.With(requireAuth).Get("/api/protected", meHandler.Protected)

	return r
}
