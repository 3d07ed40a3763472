// Package session holds server-side login sessions.
package session

import (
	"context"
	"errors"
	"time"

	"ideajournal/internal/rbac"
)

var ErrNotFound = errors.New("session not found or expired")

// Session is the server-held login state. The client only ever sees the
// signed ID.
type Session struct {
	ID        string    `json:"-"`
	User      string    `json:"user"`
	Role      rbac.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists sessions by ID. Implementations key entries by
// auth.HashToken(id) rather than the raw ID.
type Store interface {
	Save(ctx context.Context, s Session, ttl time.Duration) error
	Lookup(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
}

type contextKey struct{}

// WithSession attaches the caller's session to a request context.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored by WithSession.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	return s, ok
}
