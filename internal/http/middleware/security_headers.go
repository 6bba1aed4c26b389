package middleware

import (
	"fmt"
	"net/http"

	"github.com/tendant/myauth/internal/config"
)

type header struct{ name, value string }

// SecurityHeaders creates middleware that applies OWASP-recommended security headers.
// Empty values are skipped, as is HSTS when its max age is zero.
func SecurityHeaders(cfg config.SecurityHeadersConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	candidates := []header{
		{"Content-Security-Policy", cfg.CSP},
		{"X-Frame-Options", cfg.FrameOptions},
		{"X-Content-Type-Options", cfg.ContentTypeOptions},
		{"X-XSS-Protection", cfg.XSSProtection},
		{"Referrer-Policy", cfg.ReferrerPolicy},
		{"Permissions-Policy", cfg.PermissionsPolicy},
	}
	if cfg.HSTSMaxAge > 0 {
		candidates = append(candidates, header{"Strict-Transport-Security", fmt.Sprintf("max-age=%d; includeSubDomains", cfg.HSTSMaxAge)})
	}

	var headers []header
	for _, h := range candidates {
		if h.value != "" {
			headers = append(headers, h)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, h := range headers {
				w.Header().Set(h.name, h.value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
