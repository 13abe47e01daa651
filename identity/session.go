package identity

import (
	"context"

	"github.com/cutekitten000/backlog/models"
	"github.com/cutekitten000/backlog/reactive"
)

// Session is one client's identity stream. It starts signed out (nil user)
// and emits the current user on every sign-in or sign-out.
type Session struct {
	provider *Provider
	user     *reactive.Subject[*models.User]
}

func newSession(p *Provider) *Session {
	return &Session{
		provider: p,
		user:     reactive.NewSubject[*models.User](nil),
	}
}

func (s *Session) SignIn(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.provider.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.user.Next(user)
	return user, nil
}

// SignInAs marks an already authenticated user as current.
func (s *Session) SignInAs(user *models.User) {
	s.user.Next(user)
}

func (s *Session) SignOut() {
	s.user.Next(nil)
}

func (s *Session) CurrentUser() *models.User {
	return s.user.Value()
}

// Watch calls fn with the current user now and after every change.
func (s *Session) Watch(fn func(*models.User)) *reactive.Subscription {
	return s.user.Subscribe(fn)
}

func (s *Session) Close() {
	s.user.Close()
}
