package account

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/myauth/internal/httputil"
	"github.com/tendant/myauth/internal/observability"
	"github.com/tendant/myauth/pkg/auth"
	"github.com/tendant/myauth/pkg/domain"
)

const (
	msgInvalidLink  = "Invalid or expired verification link."
	msgUserNotFound = "No user found with this email"
	msgUnavailable  = "service temporarily unavailable"
	dateLayout      = "2006-01-02"
)

// Handler handles registration and email verification endpoints.
type Handler struct {
	logger       *slog.Logger
	verification *auth.VerificationService
	metrics      *observability.Metrics
}

// NewHandler creates a new account handler. metrics may be nil.
func NewHandler(logger *slog.Logger, verification *auth.VerificationService, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:       logger,
		verification: verification,
		metrics:      metrics,
	}
}

// RegisterRequest represents a registration request.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Phone       string `json:"phone"`
	IDNumber    string `json:"id_number"`
	Gender      string `json:"gender"`
	DateOfBirth string `json:"date_of_birth"` // YYYY-MM-DD
	Address     string `json:"address"`
}

// RegisterResponse acknowledges a new account.
type RegisterResponse struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

// VerifyRequest carries a verification token for API clients.
type VerifyRequest struct {
	Token string `json:"token"`
}

// VerifyResponse reports a verification outcome.
type VerifyResponse struct {
	Message         string `json:"message"`
	UserID          string `json:"user_id"`
	AlreadyVerified bool   `json:"already_verified"`
}

// ResendRequest asks for a new verification email.
type ResendRequest struct {
	Email string `json:"email"`
}

// Register handles user registration.
// POST /api/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		httputil.ErrorCode(w, http.StatusBadRequest, "validation_error", "email and password are required")
		return
	}

	var dob *time.Time
	if req.DateOfBirth != "" {
		t, err := time.Parse(dateLayout, req.DateOfBirth)
		if err != nil {
			httputil.ErrorCode(w, http.StatusBadRequest, "validation_error", "date_of_birth must be YYYY-MM-DD")
			return
		}
		dob = &t
	}

	result, err := h.verification.Register(r.Context(), auth.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Phone:       req.Phone,
		IDNumber:    req.IDNumber,
		Gender:      req.Gender,
		DateOfBirth: dob,
		Address:     req.Address,
	})
	if err != nil {
		h.metrics.RecordAuthEvent(observability.OpRegister, observability.OutcomeError)

		var dup *domain.DuplicateFieldError
		switch {
		case errors.As(err, &dup):
			httputil.ErrorCode(w, http.StatusConflict, "duplicate_account", dup.Error())
		case errors.Is(err, domain.ErrDuplicateAccount):
			httputil.ErrorCode(w, http.StatusConflict, "duplicate_account", "account already registered")
		case errors.Is(err, domain.ErrInvalidEmail):
			httputil.ErrorCode(w, http.StatusBadRequest, "invalid_email", err.Error())
		case errors.Is(err, domain.ErrPasswordRequired):
			httputil.ErrorCode(w, http.StatusBadRequest, "validation_error", err.Error())
		case errors.Is(err, domain.ErrStorageUnavailable):
			h.logger.Error("register failed", "error", err)
			httputil.ErrorCode(w, http.StatusServiceUnavailable, "service_unavailable", msgUnavailable)
		default:
			h.logger.Error("register failed", "error", err)
			httputil.ErrorCode(w, http.StatusInternalServerError, "internal_error", "registration failed")
		}
		return
	}

	h.metrics.RecordAuthEvent(observability.OpRegister, observability.OutcomeSuccess)
	h.logger.Info("user registered", "user_id", result.UserID)

	httputil.JSON(w, http.StatusCreated, RegisterResponse{
		Message: result.Message,
		UserID:  result.UserID.String(),
	})
}

// VerifyEmailLink handles the link opened from the verification email and
// answers with an HTML page.
// GET /api/auth/verify-email/{token}
func (h *Handler) VerifyEmailLink(w http.ResponseWriter, r *http.Request) {
	result, err := h.verification.VerifyEmail(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.metrics.RecordAuthEvent(observability.OpVerifyEmail, observability.OutcomeError)
		switch {
		case errors.Is(err, domain.ErrInvalidVerificationToken):
			httputil.HTMLPage(w, http.StatusBadRequest, msgInvalidLink, "Request a new verification email and try again.")
		case errors.Is(err, domain.ErrStorageUnavailable):
			h.logger.Error("verify email failed", "error", err)
			httputil.HTMLPage(w, http.StatusServiceUnavailable, "Service temporarily unavailable", "Please try again later.")
		default:
			h.logger.Error("verify email failed", "error", err)
			httputil.HTMLPage(w, http.StatusInternalServerError, "Something went wrong", "Please try again later.")
		}
		return
	}

	h.metrics.RecordAuthEvent(observability.OpVerifyEmail, observability.OutcomeSuccess)

	if result.AlreadyVerified {
		httputil.HTMLPage(w, http.StatusOK, result.Message, "You can log in.")
		return
	}
	h.logger.Info("email verified", "user_id", result.UserID)
	httputil.HTMLPage(w, http.StatusOK, "Email verified", result.Message)
}

// VerifyEmail verifies a token posted as JSON.
// POST /api/auth/verify-email
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" {
		httputil.ErrorCode(w, http.StatusBadRequest, "validation_error", "token is required")
		return
	}

	result, err := h.verification.VerifyEmail(r.Context(), req.Token)
	if err != nil {
		h.metrics.RecordAuthEvent(observability.OpVerifyEmail, observability.OutcomeError)
		switch {
		case errors.Is(err, domain.ErrInvalidVerificationToken):
			httputil.ErrorCode(w, http.StatusBadRequest, "invalid_token", msgInvalidLink)
		case errors.Is(err, domain.ErrStorageUnavailable):
			h.logger.Error("verify email failed", "error", err)
			httputil.ErrorCode(w, http.StatusServiceUnavailable, "service_unavailable", msgUnavailable)
		default:
			h.logger.Error("verify email failed", "error", err)
			httputil.ErrorCode(w, http.StatusInternalServerError, "internal_error", "verification failed")
		}
		return
	}

	h.metrics.RecordAuthEvent(observability.OpVerifyEmail, observability.OutcomeSuccess)
	httputil.JSON(w, http.StatusOK, VerifyResponse{
		Message:         result.Message,
		UserID:          result.UserID.String(),
		AlreadyVerified: result.AlreadyVerified,
	})
}

// ResendVerification sends a fresh verification email.
// POST /api/auth/resend-verification
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req ResendRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		httputil.ErrorCode(w, http.StatusBadRequest, "validation_error", "email is required")
		return
	}

	err := h.verification.ResendVerification(r.Context(), req.Email)
	if err != nil {
		h.metrics.RecordAuthEvent(observability.OpResend, observability.OutcomeError)
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			httputil.ErrorCode(w, http.StatusNotFound, "not_found", msgUserNotFound)
		case errors.Is(err, domain.ErrAlreadyVerified):
			httputil.ErrorCode(w, http.StatusBadRequest, "already_verified", auth.MsgAlreadyVerified)
		case errors.Is(err, domain.ErrStorageUnavailable):
			h.logger.Error("resend verification failed", "error", err)
			httputil.ErrorCode(w, http.StatusServiceUnavailable, "service_unavailable", msgUnavailable)
		default:
			h.logger.Error("resend verification failed", "error", err)
			httputil.ErrorCode(w, http.StatusInternalServerError, "internal_error", "Error resending verification email")
		}
		return
	}

	h.metrics.RecordAuthEvent(observability.OpResend, observability.OutcomeSuccess)
	httputil.JSON(w, http.StatusOK, httputil.MessageResponse{Message: auth.MsgResent})
}
