package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/myauth/internal/config"
	"github.com/tendant/myauth/internal/httputil"
	"github.com/tendant/myauth/internal/observability"
	"github.com/tendant/myauth/pkg/auth"
	"github.com/tendant/myauth/pkg/registry"
	"github.com/tendant/myauth/pkg/repository"
	"github.com/tendant/myauth/pkg/token"
)

type mailbox struct {
	mu   sync.Mutex
	last string
}

func (m *mailbox) Send(_ context.Context, _, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = body
	return nil
}

var linkRe = regexp.MustCompile(`href="https?://[^/"]+(/[^"]+)"`)

func (m *mailbox) link(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	match := linkRe.FindStringSubmatch(m.last)
	if len(match) != 2 {
		t.Fatalf("no verification link in %q", m.last)
	}
	return match[1]
}

func newTestRouter(t *testing.T, healthErr error) (http.Handler, *mailbox) {
	t.Helper()

	codec, err := token.NewCodec(token.Config{Secret: []byte("0123456789abcdef0123456789abcdef")})
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := repository.NewMemoryUsersRepository()
	hasher := auth.NewArgon2HasherWithParams(auth.Argon2Params{Time: 1, Memory: 64, Threads: 1, KeyLen: 32})
	box := &mailbox{}

	router := NewRouter(RouterConfig{
		Logger:         logger,
		SessionService: auth.NewSessionService(auth.SessionConfig{}, codec, registry.NewMemory(auth.DefaultRefreshTokenTTL), users, hasher),
		VerificationService: auth.NewVerificationService(auth.VerificationConfig{
			AppBaseURL: "http://localhost:8080",
		}, codec, users, hasher, box, logger),
		Users:   users,
		Cookies: httputil.DefaultCookieConfig(),
		SecurityHeaders: config.SecurityHeadersConfig{
			Enabled:            true,
			ContentTypeOptions: "nosniff",
		},
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		Metrics:            observability.NewMetrics(),
		HealthCheck:        func(context.Context) error { return healthErr },
	})
	return router, box
}

func request(h http.Handler, method, path, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func withCookies(cookies []*http.Cookie) func(*http.Request) {
	return func(r *http.Request) {
		for _, c := range cookies {
			r.AddCookie(c)
		}
	}
}

func TestRouter_FullFlow(t *testing.T) {
	router, box := newTestRouter(t, nil)
	creds := `{"email": "ada@example.com", "password": "pa55word"}`

	rec := request(router, http.MethodPost, "/api/auth/register", `{"email": "ada@example.com", "password": "pa55word", "first_name": "Ada"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rec.Code, rec.Body.String())
	}

	// login is refused until the email is verified
	if rec := request(router, http.MethodPost, "/api/auth/login", creds); rec.Code != http.StatusForbidden {
		t.Fatalf("login before verification: %d", rec.Code)
	}

	link, err := url.PathUnescape(box.link(t))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(link, auth.VerifyEmailPath) {
		t.Fatalf("link = %q", link)
	}
	if rec := request(router, http.MethodGet, link, ""); rec.Code != http.StatusOK {
		t.Fatalf("verify: %d %s", rec.Code, rec.Body.String())
	}

	rec = request(router, http.MethodPost, "/api/auth/login", creds)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}
	var login struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&login); err != nil {
		t.Fatal(err)
	}
	cookies := rec.Result().Cookies()

	bearer := func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+login.AccessToken) }
	if rec := request(router, http.MethodGet, "/api/protected", "", bearer); rec.Code != http.StatusOK {
		t.Fatalf("protected with bearer: %d", rec.Code)
	}
	if rec := request(router, http.MethodGet, "/api/auth/me", "", withCookies(cookies)); rec.Code != http.StatusOK {
		t.Fatalf("me with cookie: %d", rec.Code)
	}
	if rec := request(router, http.MethodGet, "/api/protected", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("protected anonymous: %d", rec.Code)
	}

	if rec := request(router, http.MethodPost, "/api/auth/refresh-token", "", withCookies(cookies)); rec.Code != http.StatusOK {
		t.Fatalf("refresh: %d %s", rec.Code, rec.Body.String())
	}
	if rec := request(router, http.MethodPost, "/api/auth/logout", "", withCookies(cookies)); rec.Code != http.StatusOK {
		t.Fatalf("logout: %d", rec.Code)
	}
	if rec := request(router, http.MethodPost, "/api/auth/refresh-token", `{"refresh_token": "`+login.RefreshToken+`"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: %d", rec.Code)
	}
}

func TestRouter_Health(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	rec := request(router, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("health: %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers not applied")
	}

	router, _ = newTestRouter(t, errors.New("db down"))
	if rec := request(router, http.MethodGet, "/health", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("failing health: %d", rec.Code)
	}
}

func TestRouter_NotFound(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := request(router, http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != "Route not found" {
		t.Errorf("body = %v", body)
	}

	if rec := request(router, http.MethodGet, "/api/auth/login", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET login: status = %d", rec.Code)
	}
}

func TestRouter_Metrics(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	request(router, http.MethodPost, "/api/auth/login", `{"email": "x@example.com", "password": "x"}`)

	rec := request(router, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `myauth_auth_events_total{operation="login",outcome="error"} 1`) {
		t.Errorf("login failure not counted:\n%s", rec.Body.String())
	}
}

func TestRouter_CORS(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := request(router, http.MethodOptions, "/api/auth/login", "", func(r *http.Request) {
		r.Header.Set("Origin", "http://localhost:3000")
		r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	})
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("credentials not allowed")
	}

	rec = request(router, http.MethodOptions, "/api/auth/login", "", func(r *http.Request) {
		r.Header.Set("Origin", "http://evil.example")
		r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	})
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin allowed: %q", got)
	}
}

func TestRouter_PanicIsLoggedAndTimed(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	mux, ok := router.(*chi.Mux)
	if !ok {
		t.Fatalf("router is %T, want *chi.Mux", router)
	}
	mux.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := request(router, http.MethodGet, "/boom", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	metrics := request(router, http.MethodGet, "/metrics", "").Body.String()
	want := `myauth_http_request_duration_seconds_count{method="GET",route="/boom",status="500"} 1`
	if !strings.Contains(metrics, want) {
		t.Errorf("panicking request not recorded, want %s in:\n%s", want, metrics)
	}
}
