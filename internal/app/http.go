// Package app serves the idea journal over HTTP.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ideajournal/internal/auth"
	"ideajournal/internal/authpw"
	"ideajournal/internal/history"
	"ideajournal/internal/ideas"
	"ideajournal/internal/logging"
	"ideajournal/internal/rbac"
	"ideajournal/internal/session"
)

// SessionCookie carries the signed session ID.
const SessionCookie = "ideajournal_session"

const maxBodyBytes = 1 << 20

// HistoryReader lists the commits of one idea.
type HistoryReader interface {
	Log(ctx context.Context, folder string, limit int) ([]history.Entry, error)
}

type Options struct {
	// CookieSecret signs session cookies.
	CookieSecret []byte
	CookieSecure bool
	// History is optional; without it the history route returns an empty list.
	History HistoryReader
	// Checks back /api/ready, keyed by dependency name.
	Checks map[string]func(context.Context) error
	Logger *zap.Logger
}

type HTTPServer struct {
	auth         *authpw.Service
	ideas        *ideas.Repository
	history      HistoryReader
	checks       map[string]func(context.Context) error
	cookieSecret []byte
	cookieSecure bool
	log          *zap.Logger
}

func NewHTTPServer(authSvc *authpw.Service, repo *ideas.Repository, opts Options) *HTTPServer {
	return &HTTPServer{
		auth:         authSvc,
		ideas:        repo,
		history:      opts.History,
		checks:       opts.Checks,
		cookieSecret: opts.CookieSecret,
		cookieSecure: opts.CookieSecure,
		log:          logging.OrNop(opts.Logger).Named("http"),
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/signup":
		s.handleSignUp(w, r)
		return
	case r.Method == http.MethodPost && r.URL.Path == "/login":
		s.handleLogin(w, r)
		return
	case r.Method == http.MethodPost && r.URL.Path == "/logout":
		s.handleLogout(w, r)
		return
	case r.Method == http.MethodGet && r.URL.Path == "/admin":
		if r, ok := s.gate(w, r, rbac.RoleAdmin); ok {
			s.handleAdminUsers(w, r)
		}
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	r, ok := s.gate(w, r, rbac.RoleUser)
	if !ok {
		return
	}

	switch {
	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "save-idea":
		s.handleSaveIdea(w, r)
	case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "add-update":
		s.handleAddUpdate(w, r)
	case r.Method == http.MethodGet && len(parts) == 3 && parts[1] == "dashboard" && parts[2] == "ideas":
		s.handleListIdeas(w, r)
	case len(parts) == 3 && parts[1] == "idea":
		switch r.Method {
		case http.MethodGet:
			s.handleGetIdea(w, r, parts[2])
		case http.MethodDelete:
			s.handleDeleteIdea(w, r, parts[2])
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
	case r.Method == http.MethodGet && len(parts) == 4 && parts[1] == "idea" && parts[3] == "pdf":
		s.handleIdeaPDF(w, r, parts[2])
	case r.Method == http.MethodGet && len(parts) == 4 && parts[1] == "idea" && parts[3] == "history":
		s.handleIdeaHistory(w, r, parts[2])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ready := true
	checks := make(map[string]any, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			ready = false
			checks[name] = map[string]any{"status": "error", "error": err.Error()}
			continue
		}
		checks[name] = map[string]any{"status": "ok"}
	}

	status, statusCode := "ready", http.StatusOK
	if !ready {
		status, statusCode = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, map[string]any{
		"ok":     ready,
		"status": status,
		"checks": checks,
	})
}

// gate applies rbac.Authorize to the request's session. On success the
// session is attached to the returned request's context.
func (s *HTTPServer) gate(w http.ResponseWriter, r *http.Request, required rbac.Role) (*http.Request, bool) {
	sess, found, err := s.currentSession(r)
	if err != nil {
		s.log.Error("session lookup failed", zap.String("request_id", requestID(r.Context())), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return nil, false
	}
	var role rbac.Role
	if found {
		role = sess.Role
	}
	switch rbac.Authorize(role, required) {
	case rbac.RedirectToLogin:
		http.Redirect(w, r, "/", http.StatusFound)
		return nil, false
	case rbac.Forbidden:
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
		return nil, false
	}
	return r.WithContext(session.WithSession(r.Context(), sess)), true
}

// currentSession resolves the session cookie. A missing, forged or expired
// cookie is no session, not an error.
func (s *HTTPServer) currentSession(r *http.Request) (session.Session, bool, error) {
	id := s.sessionID(r)
	if id == "" {
		return session.Session{}, false, nil
	}
	sess, err := s.auth.Resume(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return session.Session{}, false, nil
		}
		return session.Session{}, false, err
	}
	return sess, true, nil
}

func (s *HTTPServer) sessionID(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return ""
	}
	id, err := auth.Verify(s.cookieSecret, cookie.Value)
	if err != nil {
		return ""
	}
	return id
}

func (s *HTTPServer) setSessionCookie(w http.ResponseWriter, sess session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    auth.Sign(s.cookieSecret, sess.ID),
		Path:     "/",
		MaxAge:   int(s.auth.SessionTTL() / time.Second),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *HTTPServer) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		writer.Header().Set("Cache-Control", "no-store")
		writer.Header().Set("Content-Type", "application/json")
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.log.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Int64("duration_ms", time.Since(started).Milliseconds()),
		)
	})
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeIndentedJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
