package backlog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cutekitten000/backlog/identity"
	"github.com/cutekitten000/backlog/models"
	"github.com/cutekitten000/backlog/monitoring"
	"github.com/cutekitten000/backlog/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var ErrSessionNotFound = errors.New("session not found or expired")

// Entry is one signed-in client: its identity stream and the backlog
// following it.
type Entry struct {
	ID       string
	Identity *identity.Session
	Backlog  *Backlog
	Expires  time.Time
}

// Sessions maps login session ids to live backlogs.
type Sessions struct {
	provider *identity.Provider
	store    GameStore
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*Entry
}

func NewSessions(provider *identity.Provider, store GameStore, ttl time.Duration) *Sessions {
	return &Sessions{
		provider: provider,
		store:    store,
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[string]*Entry),
	}
}

// SignIn checks the credentials on a fresh identity session and starts a
// backlog that follows it.
func (s *Sessions) SignIn(ctx context.Context, email, password string) (*Entry, error) {
	ident := s.provider.NewSession()
	b := New(ident, s.store)
	user, err := ident.SignIn(ctx, email, password)
	if err != nil {
		b.Close()
		ident.Close()
		return nil, err
	}
	return s.add(ident, b, user), nil
}

// Open starts a session for an already authenticated user.
func (s *Sessions) Open(user *models.User) *Entry {
	ident := s.provider.NewSession()
	b := New(ident, s.store)
	ident.SignInAs(user)
	return s.add(ident, b, user)
}

func (s *Sessions) add(ident *identity.Session, b *Backlog, user *models.User) *Entry {
	e := &Entry{
		ID:       uuid.NewString(),
		Identity: ident,
		Backlog:  b,
		Expires:  s.now().Add(s.ttl),
	}

	s.mu.Lock()
	s.entries[e.ID] = e
	count := len(s.entries)
	s.mu.Unlock()

	monitoring.ActiveSessions.Set(float64(count))
	utils.Log.WithFields(logrus.Fields{
		"session_id": e.ID,
		"user_id":    user.ID,
	}).Info("Session opened")
	return e
}

func (s *Sessions) Get(id string) (*Entry, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok || !s.now().Before(e.Expires) {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// Close signs the session out and releases its backlog. Unknown ids are ignored.
func (s *Sessions) Close(id string) {
	s.mu.Lock()
	e, ok := s.entries[id]
	delete(s.entries, id)
	count := len(s.entries)
	s.mu.Unlock()

	if !ok {
		return
	}
	shutdown(e)
	monitoring.ActiveSessions.Set(float64(count))
	utils.Log.WithField("session_id", id).Info("Session closed")
}

// Sweep closes every session that expired before now.
func (s *Sessions) Sweep(now time.Time) int {
	var expired []*Entry
	s.mu.Lock()
	for id, e := range s.entries {
		if !now.Before(e.Expires) {
			expired = append(expired, e)
			delete(s.entries, id)
		}
	}
	count := len(s.entries)
	s.mu.Unlock()

	for _, e := range expired {
		shutdown(e)
	}
	if len(expired) > 0 {
		monitoring.ActiveSessions.Set(float64(count))
		utils.Log.WithField("expired", len(expired)).Info("Expired sessions swept")
	}
	return len(expired)
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// CloseAll is called on shutdown.
func (s *Sessions) CloseAll() {
	s.mu.Lock()
	entries := s.entries
	s.entries = make(map[string]*Entry)
	s.mu.Unlock()

	for _, e := range entries {
		shutdown(e)
	}
	monitoring.ActiveSessions.Set(0)
}

func shutdown(e *Entry) {
	e.Identity.SignOut()
	e.Backlog.Close()
	e.Identity.Close()
}
