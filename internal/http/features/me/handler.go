package me

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/tendant/myauth/internal/http/middleware"
	"github.com/tendant/myauth/internal/httputil"
	"github.com/tendant/myauth/pkg/auth"
	"github.com/tendant/myauth/pkg/domain"
)

// Handler handles endpoints for the authenticated user.
type Handler struct {
	logger *slog.Logger
	users  auth.UserRepository
}

// NewHandler creates a new me handler.
func NewHandler(logger *slog.Logger, users auth.UserRepository) *Handler {
	return &Handler{
		logger: logger,
		users:  users,
	}
}

// UserResponse represents the user profile response.
type UserResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Phone         string    `json:"phone,omitempty"`
	IDNumber      string    `json:"id_number,omitempty"`
	Gender        string    `json:"gender,omitempty"`
	DateOfBirth   string    `json:"date_of_birth,omitempty"`
	Address       string    `json:"address,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ProtectedResponse is returned by the example protected route.
type ProtectedResponse struct {
	Message string        `json:"message"`
	User    ProtectedUser `json:"user"`
}

// ProtectedUser identifies the token's subject.
type ProtectedUser struct {
	ID string `json:"id"`
}

// GetMe returns the current user's profile.
// GET /api/auth/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.ErrorCode(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}

	user, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			// valid token for a deleted account
			httputil.ErrorCode(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		case errors.Is(err, domain.ErrStorageUnavailable):
			h.logger.Error("load profile failed", "user_id", userID, "error", err)
			httputil.ErrorCode(w, http.StatusServiceUnavailable, "service_unavailable", "service temporarily unavailable")
		default:
			h.logger.Error("load profile failed", "user_id", userID, "error", err)
			httputil.ErrorCode(w, http.StatusInternalServerError, "internal_error", "failed to load profile")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, toUserResponse(user))
}

// Protected is an example route that only answers authenticated requests.
// GET /api/protected
func (h *Handler) Protected(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.ErrorCode(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}

	httputil.JSON(w, http.StatusOK, ProtectedResponse{
		Message: "Protected route access granted",
		User:    ProtectedUser{ID: userID.String()},
	})
}

func toUserResponse(u *domain.User) UserResponse {
	resp := UserResponse{
		ID:            u.ID.String(),
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		FirstName:     u.Profile.FirstName,
		LastName:      u.Profile.LastName,
		Phone:         u.Profile.Phone,
		IDNumber:      u.Profile.IDNumber,
		Gender:        u.Profile.Gender,
		Address:       u.Profile.Address,
		CreatedAt:     u.CreatedAt,
	}
	if u.Profile.DateOfBirth != nil {
		resp.DateOfBirth = u.Profile.DateOfBirth.Format("2006-01-02")
	}
	return resp
}
