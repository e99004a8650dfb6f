package auth

import (
	"context"
	"time"
)

type contextKey struct{}

// Session is the per-request application context: who is calling and until
// when the credential is good. It is the only input trusted for visibility
// scoping.
type Session struct {
	UserID    string
	ExpiresAt time.Time
}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	return s, ok
}

// UserID returns the caller's id, or "" when the request is anonymous.
func UserID(ctx context.Context) string {
	s, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return s.UserID
}
