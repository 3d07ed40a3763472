package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ideajournal/internal/authpw"
	"ideajournal/internal/credentials"
	"ideajournal/internal/export"
	"ideajournal/internal/history"
	"ideajournal/internal/ideas"
	"ideajournal/internal/session"
)

const (
	testAdmin         = "root"
	testAdminPassword = "admin-secret"
)

type testEnv struct {
	server  *HTTPServer
	handler http.Handler
	repo    *ideas.Repository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	blob, err := credentials.NewFileBlob(filepath.Join(dir, "users", "users.enc"))
	if err != nil {
		t.Fatalf("file blob: %v", err)
	}
	store, err := credentials.NewStore(blob, testAdminPassword)
	if err != nil {
		t.Fatalf("credential store: %v", err)
	}
	vault, err := credentials.NewPasswordVault("master-key", nil)
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	authSvc := authpw.NewService(store, vault, session.NewMemoryStore(), authpw.Options{
		AdminUsername: testAdmin,
		AdminPassword: testAdminPassword,
		SessionTTL:    time.Hour,
	})

	ideasDir := filepath.Join(dir, "ideas")
	journal, err := history.Open(ideasDir)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	repo, err := ideas.NewRepository(ideasDir, export.NewRenderer(export.NewPDFEngine(), nil, nil), ideas.WithJournal(journal))
	if err != nil {
		t.Fatalf("repository: %v", err)
	}

	server := NewHTTPServer(authSvc, repo, Options{CookieSecret: []byte("cookie-secret"), History: journal})
	return &testEnv{server: server, handler: server.Handler(), repo: repo}
}

func (e *testEnv) do(t *testing.T, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) login(t *testing.T, username, password string) *http.Cookie {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	rr := e.do(t, http.MethodPost, "/login", string(body), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d body=%s", username, rr.Code, rr.Body.String())
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	t.Fatalf("login %s: no session cookie", username)
	return nil
}

func (e *testEnv) signupAndLogin(t *testing.T, username, password string) *http.Cookie {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	if rr := e.do(t, http.MethodPost, "/signup", string(body), nil); rr.Code != http.StatusOK {
		t.Fatalf("signup %s: expected 200, got %d body=%s", username, rr.Code, rr.Body.String())
	}
	return e.login(t, username, password)
}

func decodeMap(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/api/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if ok, _ := decodeMap(t, rr)["ok"].(bool); !ok {
		t.Fatalf("expected ok=true, got %s", rr.Body.String())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header")
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-ID"); got != "req-123" {
		t.Fatalf("expected echoed request id, got %q", got)
	}
}

func TestLoginGateRedirects(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/api/dashboard/ideas", "/api/idea/anything", "/api/idea/anything/pdf"} {
		rr := env.do(t, http.MethodGet, path, "", nil)
		if rr.Code != http.StatusFound {
			t.Fatalf("%s: expected 302, got %d", path, rr.Code)
		}
		if loc := rr.Header().Get("Location"); loc != "/" {
			t.Fatalf("%s: expected redirect to /, got %q", path, loc)
		}
	}

	forged := &http.Cookie{Name: SessionCookie, Value: "sess_abc.forged"}
	if rr := env.do(t, http.MethodGet, "/api/dashboard/ideas", "", forged); rr.Code != http.StatusFound {
		t.Fatalf("expected forged cookie to redirect, got %d", rr.Code)
	}
}

func TestSignupContract(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/signup", `{"username":"alice","password":"pw1"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if msg, _ := decodeMap(t, rr)["message"].(string); msg == "" {
		t.Fatal("expected message")
	}

	rr = env.do(t, http.MethodPost, "/signup", `{"username":"alice","password":"pw2"}`, nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if code := decodeMap(t, rr)["code"]; code != "USER_EXISTS" {
		t.Fatalf("expected USER_EXISTS, got %v", code)
	}

	rr = env.do(t, http.MethodPost, "/signup", `{"username":"","password":"pw"}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodPost, "/signup", `{"username":`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", rr.Code)
	}

	env.login(t, "alice", "pw1")
	body, _ := json.Marshal(map[string]string{"username": "alice", "password": "pw2"})
	if rr := env.do(t, http.MethodPost, "/login", string(body), nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected original password to stay, got %d", rr.Code)
	}
}

func TestSignupAndLoginAcceptForms(t *testing.T) {
	env := newTestEnv(t)
	form := url.Values{"username": {"bob"}, "password": {"hunter2"}}

	req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr = httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if redirect := decodeMap(t, rr)["redirect"]; redirect != "/dashboard" {
		t.Fatalf("expected redirect /dashboard, got %v", redirect)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/login", `{"username":"ghost","password":"nope"}`, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if code := decodeMap(t, rr)["code"]; code != "INVALID_CREDENTIALS" {
		t.Fatalf("expected INVALID_CREDENTIALS, got %v", code)
	}
	if len(rr.Result().Cookies()) != 0 {
		t.Fatal("expected no cookie on failed login")
	}
	rr = env.do(t, http.MethodPost, "/login", `{"username":"ghost"}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing password, got %d", rr.Code)
	}
}

func TestAdminGate(t *testing.T) {
	env := newTestEnv(t)
	userCookie := env.signupAndLogin(t, "alice", "pw1")

	if rr := env.do(t, http.MethodGet, "/admin", "", nil); rr.Code != http.StatusFound {
		t.Fatalf("expected 302 without session, got %d", rr.Code)
	}
	rr := env.do(t, http.MethodGet, "/admin", "", userCookie)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for user role, got %d", rr.Code)
	}
	if code := decodeMap(t, rr)["code"]; code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %v", code)
	}

	adminCookie := env.login(t, testAdmin, testAdminPassword)
	rr = env.do(t, http.MethodGet, "/admin", "", adminCookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload struct {
		Users []map[string]any `json:"users"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(payload.Users) != 1 || payload.Users[0]["username"] != "alice" {
		t.Fatalf("expected alice only, got %+v", payload.Users)
	}
	if _, leaked := payload.Users[0]["password_hash"]; leaked {
		t.Fatal("expected no secrets in admin listing")
	}
	if bytes.Contains(rr.Body.Bytes(), []byte("password")) {
		t.Fatal("expected no password fields in admin listing")
	}

	if rr := env.do(t, http.MethodGet, "/api/dashboard/ideas", "", adminCookie); rr.Code != http.StatusOK {
		t.Fatalf("expected admin to pass the login gate, got %d", rr.Code)
	}
}

func TestIdeaLifecycle(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signupAndLogin(t, "alice", "pw1")

	rr := env.do(t, http.MethodPost, "/api/save-idea",
		`{"title":"Rocket engine","summary":"Cheap thrust","useCases":["hobby","teaching"]}`, cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("save: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if folder := decodeMap(t, rr)["folder"]; folder != "Rocket engine" {
		t.Fatalf("expected folder Rocket engine, got %v", folder)
	}
	rr = env.do(t, http.MethodPost, "/api/save-idea", `{"title":"Rocket engine"}`, cookie)
	if folder := decodeMap(t, rr)["folder"]; folder != "Rocket engine (2)" {
		t.Fatalf("expected folder Rocket engine (2), got %v", folder)
	}

	rr = env.do(t, http.MethodGet, "/api/dashboard/ideas", "", cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rr.Code)
	}
	var summaries []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &summaries); err != nil {
		t.Fatalf("parse list: %v", err)
	}
	if len(summaries) != 2 || summaries[0]["folder"] != "Rocket engine" || summaries[0]["updatesCount"] != float64(0) {
		t.Fatalf("unexpected summaries %+v", summaries)
	}

	rr = env.do(t, http.MethodPost, "/api/add-update", `{"ideaTitle":"Rocket engine","updateText":"found a supplier"}`, cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/api/idea/Rocket%20engine", "", cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "\n  \"title\": \"Rocket engine\"") {
		t.Fatalf("expected pretty-printed idea, got %s", rr.Body.String())
	}
	var idea struct {
		Updates []struct {
			Date string `json:"date"`
			Text string `json:"text"`
		} `json:"updates"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &idea); err != nil {
		t.Fatalf("parse idea: %v", err)
	}
	if len(idea.Updates) != 1 || idea.Updates[0].Text != "found a supplier" {
		t.Fatalf("unexpected updates %+v", idea.Updates)
	}

	rr = env.do(t, http.MethodGet, "/api/idea/Rocket%20engine/pdf", "", cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("pdf: expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("expected application/pdf, got %q", ct)
	}
	if !bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF-")) {
		t.Fatal("expected PDF body")
	}

	rr = env.do(t, http.MethodGet, "/api/idea/Rocket%20engine/history", "", cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("history: expected 200, got %d", rr.Code)
	}
	var entries []history.Entry
	if err := json.Unmarshal(rr.Body.Bytes(), &entries); err != nil {
		t.Fatalf("parse history: %v", err)
	}
	if len(entries) != 2 || entries[0].Author != "alice" {
		t.Fatalf("expected two commits by alice, got %+v", entries)
	}

	rr = env.do(t, http.MethodDelete, "/api/idea/Rocket%20engine", "", cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rr.Code)
	}
	for _, path := range []string{"/api/idea/Rocket%20engine", "/api/idea/Rocket%20engine/pdf"} {
		if rr := env.do(t, http.MethodGet, path, "", cookie); rr.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404 after delete, got %d", path, rr.Code)
		}
	}
	if rr := env.do(t, http.MethodDelete, "/api/idea/Rocket%20engine", "", cookie); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rr.Code)
	}
}

func TestNumberedIdeaRoutes(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signupAndLogin(t, "alice", "pw1")

	for _, body := range []string{
		`{"title":"Rocket engine","summary":"first"}`,
		`{"title":"Rocket engine","summary":"second"}`,
		`{"title":"Rocket engine 2","summary":"other"}`,
	} {
		if rr := env.do(t, http.MethodPost, "/api/save-idea", body, cookie); rr.Code != http.StatusOK {
			t.Fatalf("save: expected 200, got %d body=%s", rr.Code, rr.Body.String())
		}
	}

	const numbered = "/api/idea/Rocket%20engine%20%282%29"
	rr := env.do(t, http.MethodGet, numbered, "", cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rr.Code)
	}
	if got := decodeMap(t, rr); got["folder"] != "Rocket engine (2)" || got["summary"] != "second" {
		t.Fatalf("expected the second idea, got %v", got)
	}
	if rr := env.do(t, http.MethodGet, numbered+"/pdf", "", cookie); rr.Code != http.StatusOK {
		t.Fatalf("pdf: expected 200, got %d", rr.Code)
	}
	if rr := env.do(t, http.MethodDelete, numbered, "", cookie); rr.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, numbered, "", cookie); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/idea/Rocket%20engine%202", "", cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected Rocket engine 2 to survive, got %d", rr.Code)
	}
	if summary := decodeMap(t, rr)["summary"]; summary != "other" {
		t.Fatalf("expected summary other, got %v", summary)
	}
}

func TestIdeaValidationAndNotFound(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signupAndLogin(t, "alice", "pw1")

	rr := env.do(t, http.MethodPost, "/api/save-idea", `{"summary":"no title"}`, cookie)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without title, got %d", rr.Code)
	}
	if code := decodeMap(t, rr)["code"]; code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %v", code)
	}
	if rr := env.do(t, http.MethodPost, "/api/save-idea", `not json`, cookie); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/api/add-update", `{"ideaTitle":"Missing","updateText":"x"}`, cookie)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown idea, got %d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/api/idea/..%2F..%2Fusers", "", cookie); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for traversal attempt, got %d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/api/unknown", "", cookie); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown route, got %d", rr.Code)
	}
}

func TestLogoutEndsSession(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signupAndLogin(t, "alice", "pw1")

	rr := env.do(t, http.MethodPost, "/logout", "", cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	cleared := false
	for _, c := range rr.Result().Cookies() {
		if c.Name == SessionCookie && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("expected session cookie to be cleared")
	}
	if rr := env.do(t, http.MethodGet, "/api/dashboard/ideas", "", cookie); rr.Code != http.StatusFound {
		t.Fatalf("expected old cookie to be rejected, got %d", rr.Code)
	}
}

func TestReadyEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.server.checks = map[string]func(context.Context) error{
		"credentials": func(context.Context) error { return nil },
	}
	rr := env.do(t, http.MethodGet, "/api/ready", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	env.server.checks["sessions"] = func(context.Context) error { return errors.New("redis down") }
	rr = env.do(t, http.MethodGet, "/api/ready", "", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	payload := decodeMap(t, rr)
	if payload["status"] != "not_ready" {
		t.Fatalf("expected not_ready, got %v", payload["status"])
	}
	checks, _ := payload["checks"].(map[string]any)
	sessions, _ := checks["sessions"].(map[string]any)
	if sessions["error"] != "redis down" {
		t.Fatalf("expected sessions error, got %v", checks)
	}
}
