// Package authpw provides username/password signup and login.
package authpw

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"ideajournal/internal/credentials"
	"ideajournal/internal/logging"
	"ideajournal/internal/rbac"
	"ideajournal/internal/session"
	"ideajournal/internal/util"
)

var (
	ErrInvalidInput       = errors.New("username and password are required")
	ErrAlreadyExists      = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// CredentialStore is the part of credentials.Store the service needs.
type CredentialStore interface {
	Load(ctx context.Context) (map[string]credentials.User, error)
	Update(ctx context.Context, fn func(users map[string]credentials.User) error) error
}

// Sealer produces the reversible password copy stored next to the hash.
type Sealer interface {
	Seal(password string) (string, error)
}

type Options struct {
	AdminUsername string
	AdminPassword string
	SessionTTL    time.Duration
	Logger        *zap.Logger
}

// Service validates credentials and issues sessions
type Service struct {
	store         CredentialStore
	vault         Sealer
	sessions      session.Store
	adminUsername string
	adminPassword string
	sessionTTL    time.Duration
	hashCost      int
	now           func() time.Time
	log           *zap.Logger
}

func NewService(store CredentialStore, vault Sealer, sessions session.Store, opts Options) *Service {
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Service{
		store:         store,
		vault:         vault,
		sessions:      sessions,
		adminUsername: opts.AdminUsername,
		adminPassword: opts.AdminPassword,
		sessionTTL:    ttl,
		hashCost:      bcrypt.DefaultCost,
		now:           time.Now,
		log:           logging.OrNop(opts.Logger).Named("auth"),
	}
}

// SignUpRequest contains sign-up parameters
type SignUpRequest struct {
	Username string
	Password string
}

// SignUp registers a user. Both password forms are derived here, from the
// same plaintext, and never again.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) error {
	username := strings.TrimSpace(req.Username)
	if username == "" || strings.TrimSpace(req.Password) == "" {
		return ErrInvalidInput
	}
	if s.isAdminName(username) {
		return ErrAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	sealed, err := s.vault.Seal(req.Password)
	if err != nil {
		return fmt.Errorf("seal password: %w", err)
	}

	err = s.store.Update(ctx, func(users map[string]credentials.User) error {
		if _, exists := users[username]; exists {
			return ErrAlreadyExists
		}
		users[username] = credentials.User{
			PasswordHash:      string(hash),
			PasswordEncrypted: sealed,
			CreatedAt:         s.now().UTC().Format(time.RFC3339),
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("user signed up", zap.String("username", username))
	return nil
}

// LoginRequest contains login parameters
type LoginRequest struct {
	Username string
	Password string
}

// Login checks the bootstrap admin first, then the credential store, and
// saves a new session on success.
func (s *Service) Login(ctx context.Context, req LoginRequest) (session.Session, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || strings.TrimSpace(req.Password) == "" {
		return session.Session{}, ErrInvalidInput
	}

	role, err := s.authenticate(ctx, username, req.Password)
	if err != nil {
		s.log.Info("login rejected", zap.String("username", username))
		return session.Session{}, err
	}

	id, err := util.NewToken("sess", 32)
	if err != nil {
		return session.Session{}, fmt.Errorf("generate session id: %w", err)
	}
	sess := session.Session{
		ID:        id,
		User:      username,
		Role:      role,
		CreatedAt: s.now().UTC(),
	}
	if err := s.sessions.Save(ctx, sess, s.sessionTTL); err != nil {
		return session.Session{}, fmt.Errorf("save session: %w", err)
	}

	s.log.Info("user logged in", zap.String("username", username), zap.String("role", string(role)))
	return sess, nil
}

func (s *Service) authenticate(ctx context.Context, username, password string) (rbac.Role, error) {
	if s.isAdminName(username) {
		if subtle.ConstantTimeCompare([]byte(password), []byte(s.adminPassword)) == 1 {
			return rbac.RoleAdmin, nil
		}
		return "", ErrInvalidCredentials
	}

	users, err := s.store.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load users: %w", err)
	}
	user, ok := users[username]
	if !ok {
		return "", ErrInvalidCredentials
	}
	if !checkPassword(user.PasswordHash, password) {
		return "", ErrInvalidCredentials
	}
	return rbac.RoleUser, nil
}

// Resume returns the live session for id.
func (s *Service) Resume(ctx context.Context, id string) (session.Session, error) {
	return s.sessions.Lookup(ctx, id)
}

func (s *Service) Logout(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.sessions.Delete(ctx, id)
}

func (s *Service) SessionTTL() time.Duration {
	return s.sessionTTL
}

// UserInfo is the admin view of a registered user; secrets are left out.
type UserInfo struct {
	Username  string `json:"username"`
	CreatedAt string `json:"createdAt"`
}

// ListUsers returns registered users sorted by username.
func (s *Service) ListUsers(ctx context.Context) ([]UserInfo, error) {
	users, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	out := make([]UserInfo, 0, len(users))
	for name, user := range users {
		out = append(out, UserInfo{Username: name, CreatedAt: user.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Service) isAdminName(username string) bool {
	return s.adminUsername != "" && subtle.ConstantTimeCompare([]byte(username), []byte(s.adminUsername)) == 1
}
