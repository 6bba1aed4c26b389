package middleware

import (
	"net/http"

	"github.com/tendant/myauth/internal/httputil"
)

// RequestSizeLimit creates middleware that limits the maximum request body size.
// Requests that declare a larger Content-Length are rejected up front; others
// are cut off by http.MaxBytesReader while the handler reads.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				httputil.ErrorCode(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
