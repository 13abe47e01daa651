package backlog

import (
	"errors"
	"testing"
	"time"

	"github.com/cutekitten000/backlog/identity"
	"github.com/cutekitten000/backlog/models"
)

func TestSessionsLifecycle(t *testing.T) {
	st := newScriptedStore()
	sessions := NewSessions(identity.NewProvider(nil), st, time.Hour)
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	sessions.now = func() time.Time { return start }

	e := sessions.Open(&models.User{ID: "u1"})
	if e.ID == "" || e.Backlog.CurrentUser() == nil || e.Backlog.CurrentUser().ID != "u1" {
		t.Fatalf("session not bound to user: %+v", e)
	}
	if e.Identity.CurrentUser().ID != "u1" {
		t.Fatal("identity stream not signed in")
	}

	got, err := sessions.Get(e.ID)
	if err != nil || got != e {
		t.Fatalf("get: %v", err)
	}
	if _, err := sessions.Get("unknown"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	sessions.Close(e.ID)
	sessions.Close(e.ID)
	if _, err := sessions.Get(e.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatal("closed session still reachable")
	}
	if !st.isClosed("u1") {
		t.Fatal("closing the session must drop the store query")
	}
}

func TestSessionsSweepExpired(t *testing.T) {
	st := newScriptedStore()
	sessions := NewSessions(identity.NewProvider(nil), st, time.Hour)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	sessions.now = func() time.Time { return now }

	old := sessions.Open(&models.User{ID: "old"})
	now = now.Add(30 * time.Minute)
	fresh := sessions.Open(&models.User{ID: "fresh"})

	now = now.Add(45 * time.Minute)
	if _, err := sessions.Get(old.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatal("expired session must not be returned")
	}
	if n := sessions.Sweep(now); n != 1 {
		t.Fatalf("expected 1 swept, got %d", n)
	}
	if sessions.Len() != 1 {
		t.Fatalf("expected 1 live session, got %d", sessions.Len())
	}
	if _, err := sessions.Get(fresh.ID); err != nil {
		t.Fatalf("fresh session swept: %v", err)
	}

	sessions.CloseAll()
	if sessions.Len() != 0 || !st.isClosed("fresh") {
		t.Fatal("CloseAll left sessions open")
	}
}
