package session

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tendant/myauth/internal/httputil"
	"github.com/tendant/myauth/internal/observability"
	"github.com/tendant/myauth/pkg/auth"
	"github.com/tendant/myauth/pkg/domain"
)

const (
	msgLoggedIn     = "Logged in successfully"
	msgRefreshed    = "Access token refreshed successfully"
	msgLoggedOut    = "Logged out successfully"
	msgUnavailable  = "service temporarily unavailable"
	msgInvalidCreds = "Invalid credentials"
)

// Handler handles session endpoints.
type Handler struct {
	logger         *slog.Logger
	sessionService *auth.SessionService
	cookieConfig   httputil.CookieConfig
	metrics        *observability.Metrics
}

// NewHandler creates a new session handler. metrics may be nil.
func NewHandler(logger *slog.Logger, sessionService *auth.SessionService, cookieConfig httputil.CookieConfig, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:         logger,
		sessionService: sessionService,
		cookieConfig:   cookieConfig,
		metrics:        metrics,
	}
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries a new session. The tokens are also set as cookies.
type LoginResponse struct {
	Message      string             `json:"message"`
	AccessToken  string             `json:"access_token"`
	RefreshToken string             `json:"refresh_token"`
	TokenType    string             `json:"token_type"`
	ExpiresIn    int                `json:"expires_in"`
	User         domain.SessionUser `json:"user"`
}

// RefreshRequest carries the refresh token for clients without cookies.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshResponse carries a new access token.
type RefreshResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Login authenticates with email and password.
// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		httputil.ErrorCode(w, http.StatusBadRequest, "validation_error", "email is required")
		return
	}

	result, err := h.sessionService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.metrics.RecordAuthEvent(observability.OpLogin, observability.OutcomeError)
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			httputil.ErrorCode(w, http.StatusBadRequest, "invalid_credentials", msgInvalidCreds)
		case errors.Is(err, domain.ErrNotVerified):
			httputil.ErrorCode(w, http.StatusForbidden, "not_verified", "Please verify your email before logging in.")
		case errors.Is(err, domain.ErrStorageUnavailable):
			h.logger.Error("login failed", "error", err)
			httputil.ErrorCode(w, http.StatusServiceUnavailable, "service_unavailable", msgUnavailable)
		default:
			h.logger.Error("login failed", "error", err)
			httputil.ErrorCode(w, http.StatusInternalServerError, "internal_error", "login failed")
		}
		return
	}

	h.metrics.RecordAuthEvent(observability.OpLogin, observability.OutcomeSuccess)
	h.logger.Info("user logged in", "user_id", result.User.ID)

	tokens := result.Tokens
	httputil.SetAuthCookies(
		w,
		tokens.AccessToken,
		tokens.RefreshToken,
		h.sessionService.AccessTokenTTL(),
		h.sessionService.RefreshTokenTTL(),
		h.cookieConfig,
	)

	httputil.JSON(w, http.StatusOK, LoginResponse{
		Message:      msgLoggedIn,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    tokens.TokenType,
		ExpiresIn:    tokens.ExpiresIn,
		User:         result.User,
	})
}

// Refresh issues a new access token.
// POST /api/auth/refresh-token
//
// The refresh token is read from the refresh_token cookie, falling back to a
// JSON body. Only the access cookie is replaced.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken, ok := h.refreshToken(w, r)
	if !ok {
		return
	}

	tokens, err := h.sessionService.Refresh(r.Context(), refreshToken)
	if err != nil {
		h.metrics.RecordAuthEvent(observability.OpRefresh, observability.OutcomeError)
		switch {
		case errors.Is(err, domain.ErrUnauthorized):
			httputil.ErrorCode(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		case errors.Is(err, domain.ErrInvalidToken):
			httputil.ClearAuthCookies(w, h.cookieConfig)
			httputil.ErrorCode(w, http.StatusForbidden, "invalid_token", "Invalid or expired refresh token")
		case errors.Is(err, domain.ErrStorageUnavailable):
			h.logger.Error("refresh failed", "error", err)
			httputil.ErrorCode(w, http.StatusServiceUnavailable, "service_unavailable", msgUnavailable)
		default:
			h.logger.Error("refresh failed", "error", err)
			httputil.ErrorCode(w, http.StatusInternalServerError, "internal_error", "failed to refresh token")
		}
		return
	}

	h.metrics.RecordAuthEvent(observability.OpRefresh, observability.OutcomeSuccess)

	httputil.SetAccessCookie(w, tokens.AccessToken, h.sessionService.AccessTokenTTL(), h.cookieConfig)
	httputil.JSON(w, http.StatusOK, RefreshResponse{
		Message:     msgRefreshed,
		AccessToken: tokens.AccessToken,
		TokenType:   tokens.TokenType,
		ExpiresIn:   tokens.ExpiresIn,
	})
}

// Logout ends a session.
// POST /api/auth/logout
//
// A missing or unknown refresh token still logs out; cookies are always cleared.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	refreshToken, ok := h.refreshToken(w, r)
	if !ok {
		return
	}

	if err := h.sessionService.Logout(r.Context(), refreshToken); err != nil {
		h.metrics.RecordAuthEvent(observability.OpLogout, observability.OutcomeError)
		h.logger.Error("logout failed", "error", err)
		if errors.Is(err, domain.ErrStorageUnavailable) {
			httputil.ErrorCode(w, http.StatusServiceUnavailable, "service_unavailable", msgUnavailable)
			return
		}
		httputil.ErrorCode(w, http.StatusInternalServerError, "internal_error", "logout failed")
		return
	}

	h.metrics.RecordAuthEvent(observability.OpLogout, observability.OutcomeSuccess)
	httputil.ClearAuthCookies(w, h.cookieConfig)
	httputil.JSON(w, http.StatusOK, httputil.MessageResponse{Message: msgLoggedOut})
}

// refreshToken reads the refresh token from its cookie or, failing that, from
// an optional JSON body. An empty result is not an error.
func (h *Handler) refreshToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	if token, ok := httputil.GetRefreshTokenFromCookie(r); ok {
		return token, true
	}
	var req RefreshRequest
	if !httputil.DecodeJSONOptional(w, r, &req) {
		return "", false
	}
	return req.RefreshToken, true
}
