package httputil

import (
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Error writes {"error": message}.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// ErrorCode writes {"error": message, "code": code}.
func ErrorCode(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorResponse{Error: message, Code: code})
}

// DecodeJSON decodes a request body into v. Oversized bodies and malformed
// JSON are answered here; the caller should return when it reports false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	return decode(w, r, v, false)
}

// DecodeJSONOptional is DecodeJSON for bodies that may be empty. An empty
// body leaves v untouched.
func DecodeJSONOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	return decode(w, r, v, true)
}

func decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		ErrorCode(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
		return false
	}
	ErrorCode(w, http.StatusBadRequest, "invalid_request", "invalid request body")
	return false
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
  <h2>{{.Title}}</h2>
  {{if .Detail}}<p>{{.Detail}}</p>{{end}}
</body>
</html>`))

// HTMLPage writes a minimal HTML page, for links opened in a browser.
func HTMLPage(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = pageTmpl.Execute(w, struct{ Title, Detail string }{title, detail})
}
