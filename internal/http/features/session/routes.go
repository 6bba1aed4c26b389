package session

import "github.com/go-chi/chi/v5"

// Routes mounts the session endpoints under /api/auth.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/login", h.Login)
	r.Post("/refresh-token", h.Refresh)
	r.Post("/logout", h.Logout)
}
