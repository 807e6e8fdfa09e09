package user

import (
	"context"
)

// Session is the read-only view of the current user. The zero value is a
// guest.
type Session struct {
	UserID string
	Email  string
}

// Guest reports whether no user is signed in.
func (s Session) Guest() bool { return s.UserID == "" }

// Provider supplies the current session.
type Provider interface {
	Current(ctx context.Context) (Session, error)
}

type ctxKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// ContextProvider reads the session placed on the context by WithSession.
// A context without a session yields a guest.
type ContextProvider struct{}

// Current implements Provider.
func (ContextProvider) Current(ctx context.Context) (Session, error) {
	s, _ := ctx.Value(ctxKey{}).(Session)
	return s, nil
}

// Resolve builds a session for id through repo. An empty id yields a guest.
func Resolve(ctx context.Context, repo Repository, id string) (Session, error) {
	if id == "" {
		return Session{}, nil
	}
	u, err := repo.GetByID(ctx, id)
	if err != nil {
		return Session{}, err
	}
	return Session{UserID: u.ID, Email: u.Email}, nil
}
