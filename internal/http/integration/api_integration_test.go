package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/hypnohub/internal/auth"
	"github.com/geocoder89/hypnohub/internal/config"
	apphttp "github.com/geocoder89/hypnohub/internal/http"
	"github.com/geocoder89/hypnohub/internal/observability"
	"github.com/geocoder89/hypnohub/internal/ratelimit"
	"github.com/geocoder89/hypnohub/internal/repo/memory"
	"github.com/geocoder89/hypnohub/internal/security"
	"github.com/geocoder89/hypnohub/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
)

func testConfig() config.Config {
	return config.Config{
		Env:            "test",
		StoreDriver:    config.DriverMemory,
		JWTSecret:      "test-secret-key",
		JWTAccessTTL:   time.Hour,
		AuthRateLimit:  100,
		AuthRateWindow: time.Minute,
		CORSOrigins:    []string{"http://localhost:3000"},
		MaxBodyBytes:   1 << 20,
		RequestTimeout: 2 * time.Second,
	}
}

type testApp struct {
	router *gin.Engine
	auth   *service.AuthService
}

func setupTestRouter(t *testing.T, limiter ratelimit.Limiter) testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))

	users := memory.NewUsersRepo()
	tokens := auth.NewManager(cfg.JWTSecret, cfg.JWTAccessTTL)
	authSvc := service.NewAuthService(users, security.BcryptHasher{Cost: bcrypt.MinCost}, tokens, logger)

	reg := prometheus.NewRegistry()

	router := apphttp.NewRouter(logger, cfg, apphttp.Deps{
		Auth:        authSvc,
		Suggestions: service.NewSuggestionsService(memory.NewSessionsRepo()),
		Tokens:      tokens,
		Limiter:     limiter,
		Ping:        users.Ping,
		Prom:        observability.NewProm(reg),
		Gatherer:    reg,
	})

	return testApp{router: router, auth: authSvc}
}

// function that runs a request and returns the recorder

func doRequest(router http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}

	req := httptest.NewRequest(method, path, reader)

	if method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch {
		req.Header.Set("Content-Type", "application/json")
	}

	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func mustReadJSON[T any](t *testing.T, w *httptest.ResponseRecorder, out *T) {
	t.Helper()
	err := json.Unmarshal(w.Body.Bytes(), out)
	if err != nil {
		t.Fatalf("failed to unmarshal json: %v, body=%s", err, w.Body.String())
	}
}

type errorResponse struct {
	Error struct {
		StatusCode int    `json:"statusCode"`
		Type       string `json:"type"`
		Code       string `json:"code"`
		Message    string `json:"message"`
		RequestID  string `json:"requestId"`
	} `json:"error"`
}

func TestAuthIntegration_Register_Login_Me(t *testing.T) {
	app := setupTestRouter(t, nil)
	router := app.router

	registerBody := `{"name":"Sam Doe","email":"Sam@Example.com","password":"Password123"}`

	w := doRequest(router, http.MethodPost, "/auth/register", registerBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("register got status %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
	}

	var registered struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	mustReadJSON(t, w, &registered)

	if registered.Email != "sam@example.com" || registered.Role != "USER" || registered.ID == "" {
		t.Fatalf("unexpected register body: %s", w.Body.String())
	}
	if bytes.Contains(w.Body.Bytes(), []byte("password")) {
		t.Fatalf("register response leaked password data: %s", w.Body.String())
	}

	// duplicate, case-folded
	w = doRequest(router, http.MethodPost, "/auth/register", `{"name":"Sam","email":"SAM@example.com","password":"Password123"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate register got status %d, want %d", w.Code, http.StatusConflict)
	}

	// wrong password and unknown email look the same
	wrongPw := doRequest(router, http.MethodPost, "/auth/login", `{"email":"sam@example.com","password":"Nope12345"}`)
	unknown := doRequest(router, http.MethodPost, "/auth/login", `{"email":"ghost@example.com","password":"Password123"}`)

	if wrongPw.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Fatalf("bad logins got %d and %d, want 401", wrongPw.Code, unknown.Code)
	}

	var e1, e2 errorResponse
	mustReadJSON(t, wrongPw, &e1)
	mustReadJSON(t, unknown, &e2)
	if e1.Error.Message != e2.Error.Message || e1.Error.Code != e2.Error.Code {
		t.Fatalf("login failures must be indistinguishable: %+v vs %+v", e1, e2)
	}

	w = doRequest(router, http.MethodPost, "/auth/login", `{"email":"sam@example.com","password":"Password123"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login got status %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
	}

	var login service.LoginResult
	mustReadJSON(t, w, &login)
	if login.AccessToken == "" || login.User.ID != registered.ID {
		t.Fatalf("unexpected login body: %s", w.Body.String())
	}

	w = doRequest(router, http.MethodGet, "/auth/me", "", "Authorization", "Bearer "+login.AccessToken)
	if w.Code != http.StatusOK {
		t.Fatalf("me got status %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
	}

	w = doRequest(router, http.MethodGet, "/auth/me", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("me without token got status %d, want %d", w.Code, http.StatusUnauthorized)
	}

	w = doRequest(router, http.MethodGet, "/auth/me", "", "Authorization", "Bearer not-a-token")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("me with garbage token got status %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthIntegration_AdminSeedCanLogin(t *testing.T) {
	app := setupTestRouter(t, nil)

	if err := app.auth.EnsureAdmin(context.Background(), "Root", "admin@example.com", "Admin123!"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}

	w := doRequest(app.router, http.MethodPost, "/auth/login", `{"email":"admin@example.com","password":"Admin123!"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("admin login got status %d, body=%s", w.Code, w.Body.String())
	}

	var login service.LoginResult
	mustReadJSON(t, w, &login)
	if login.User.Role != "ADMIN" {
		t.Fatalf("expected ADMIN role, got %q", login.User.Role)
	}
}

func TestAuthIntegration_RateLimited(t *testing.T) {
	app := setupTestRouter(t, ratelimit.NewMemory(2, time.Minute))

	for i := 0; i < 2; i++ {
		w := doRequest(app.router, http.MethodPost, "/auth/login", `{"email":"x@example.com","password":"Password123"}`)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d got status %d, want 401", i+1, w.Code)
		}
	}

	w := doRequest(app.router, http.MethodPost, "/auth/login", `{"email":"x@example.com","password":"Password123"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("got status %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	// suggestions are not behind the auth limiter
	w = doRequest(app.router, http.MethodGet, "/suggestions", "")
	if w.Code != http.StatusOK {
		t.Fatalf("suggestions got status %d, want 200", w.Code)
	}
}

const sessionBody = `{
	"goal": {"text": "Sleep better"},
	"induction": {"technique": "progressive_relaxation", "duration": 5},
	"deepening": {"method": "countdown", "duration": 3},
	"workingPhase": {"techniques": [{"name": "Body scan", "duration": 5}, {"id": "keep-me", "name": "Safe place", "duration": 4}]},
	"integration": {"method": "future_pacing"},
	"emergence": {"pace": "gradual", "focus": "body", "energyState": "calm"},
	"tags": ["sleep", "night"]
}`

type sessionJSON struct {
	ID   string `json:"id"`
	Goal struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"goal"`
	WorkingPhase struct {
		Techniques []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"techniques"`
	} `json:"workingPhase"`
	EffectivenessRating *int     `json:"effectivenessRating"`
	Tags                []string `json:"tags"`
}

func TestSuggestionsIntegration_Lifecycle(t *testing.T) {
	router := setupTestRouter(t, nil).router

	w := doRequest(router, http.MethodPost, "/suggestions", sessionBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("create got status %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
	}

	var created struct {
		Success bool        `json:"success"`
		Message string      `json:"message"`
		Data    sessionJSON `json:"data"`
	}
	mustReadJSON(t, w, &created)

	s := created.Data
	if !created.Success || s.ID == "" || s.Goal.ID == "" {
		t.Fatalf("unexpected create body: %s", w.Body.String())
	}
	if len(s.WorkingPhase.Techniques) != 2 || s.WorkingPhase.Techniques[0].ID == "" || s.WorkingPhase.Techniques[1].ID != "keep-me" {
		t.Fatalf("technique ids not filled correctly: %+v", s.WorkingPhase.Techniques)
	}

	// list and filters
	var list struct {
		Success bool          `json:"success"`
		Data    []sessionJSON `json:"data"`
		Total   int           `json:"total"`
	}

	w = doRequest(router, http.MethodGet, "/suggestions", "")
	mustReadJSON(t, w, &list)
	if w.Code != http.StatusOK || list.Total != 1 {
		t.Fatalf("list got status %d total %d", w.Code, list.Total)
	}

	w = doRequest(router, http.MethodGet, "/suggestions?goalId="+s.Goal.ID, "")
	mustReadJSON(t, w, &list)
	if list.Total != 1 || list.Data[0].ID != s.ID {
		t.Fatalf("goal filter got %s", w.Body.String())
	}

	w = doRequest(router, http.MethodGet, "/suggestions?tags=focus,night", "")
	mustReadJSON(t, w, &list)
	if list.Total != 1 {
		t.Fatalf("tags filter got %s", w.Body.String())
	}

	w = doRequest(router, http.MethodGet, "/suggestions?tags=focus", "")
	mustReadJSON(t, w, &list)
	if list.Total != 0 || list.Data == nil {
		t.Fatalf("empty tags filter should return an empty array, got %s", w.Body.String())
	}

	// get with etag
	w = doRequest(router, http.MethodGet, "/suggestions/"+s.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get got status %d", w.Code)
	}
	etag := w.Header().Get("ETag")

	w = doRequest(router, http.MethodGet, "/suggestions/"+s.ID, "", "If-None-Match", etag)
	if w.Code != http.StatusNotModified {
		t.Fatalf("conditional get got status %d, want 304", w.Code)
	}

	// patch
	w = doRequest(router, http.MethodPatch, "/suggestions/"+s.ID, `{"effectivenessRating":9,"tags":["focus"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("patch got status %d, body=%s", w.Code, w.Body.String())
	}

	var patched sessionJSON
	mustReadJSON(t, w, &patched)
	if patched.EffectivenessRating == nil || *patched.EffectivenessRating != 9 {
		t.Fatalf("rating not applied: %s", w.Body.String())
	}
	if patched.Goal.ID != s.Goal.ID || patched.Goal.Text != "Sleep better" {
		t.Fatalf("untouched fields changed: %s", w.Body.String())
	}

	w = doRequest(router, http.MethodGet, "/suggestions/"+s.ID, "", "If-None-Match", etag)
	if w.Code != http.StatusOK {
		t.Fatalf("stale etag got status %d, want 200", w.Code)
	}

	// delete
	w = doRequest(router, http.MethodDelete, "/suggestions/"+s.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete got status %d", w.Code)
	}

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		w = doRequest(router, method, "/suggestions/"+s.ID, "")
		if w.Code != http.StatusNotFound {
			t.Fatalf("%s after delete got status %d, want 404", method, w.Code)
		}
	}

	w = doRequest(router, http.MethodPatch, "/suggestions/"+s.ID, `{"effectivenessRating":3}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("patch after delete got status %d, want 404", w.Code)
	}
}

func TestRouter_Plumbing(t *testing.T) {
	router := setupTestRouter(t, nil).router

	w := doRequest(router, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("healthz got %d", w.Code)
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected X-Request-Id header")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected security headers")
	}

	w = doRequest(router, http.MethodGet, "/readyz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("readyz got %d", w.Code)
	}

	// non-json body
	req := httptest.NewRequest(http.MethodPost, "/suggestions", bytes.NewBufferString("goal=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Request-Id", "req-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("form post got %d, want 415", rec.Code)
	}

	var e errorResponse
	mustReadJSON(t, rec, &e)
	if e.Error.RequestID != "req-123" {
		t.Fatalf("expected request id to be echoed, got %q", e.Error.RequestID)
	}

	w = doRequest(router, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("hypnohub_http_requests_total")) {
		t.Fatalf("metrics endpoint missing request counter, status %d", w.Code)
	}
}
