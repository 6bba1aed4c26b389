package account

import "github.com/go-chi/chi/v5"

// Routes mounts the account endpoints under /api/auth.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/register", h.Register)
	r.Get("/verify-email/{token}", h.VerifyEmailLink)
	r.Post("/verify-email", h.VerifyEmail)
	r.Post("/resend-verification", h.ResendVerification)
}
