package app

import (
	"net/http"

	"go.uber.org/zap"

	"ideajournal/internal/authpw"
)

type credentialsBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// readCredentials accepts a JSON body or an urlencoded/multipart form.
func readCredentials(r *http.Request) (credentialsBody, error) {
	var body credentialsBody
	if isJSON(r) {
		if err := decodeBody(r, &body); err != nil {
			return body, errInvalidBody
		}
		return body, nil
	}
	if r.Body != nil {
		r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	}
	body.Username = r.PostFormValue("username")
	body.Password = r.PostFormValue("password")
	return body, nil
}

func (s *HTTPServer) handleSignUp(w http.ResponseWriter, r *http.Request) {
	body, err := readCredentials(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.auth.SignUp(r.Context(), authpw.SignUpRequest{Username: body.Username, Password: body.Password}); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Signup successful"})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	body, err := readCredentials(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.auth.Login(r.Context(), authpw.LoginRequest{Username: body.Username, Password: body.Password})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.setSessionCookie(w, sess)
	writeJSON(w, http.StatusOK, map[string]any{"redirect": "/dashboard"})
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	if id := s.sessionID(r); id != "" {
		if err := s.auth.Logout(r.Context(), id); err != nil {
			s.log.Warn("logout failed", zap.String("request_id", requestID(r.Context())), zap.Error(err))
		}
	}
	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"redirect": "/"})
}

func (s *HTTPServer) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.auth.ListUsers(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}
