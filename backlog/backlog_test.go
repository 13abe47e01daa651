package backlog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cutekitten000/backlog/db"
	"github.com/cutekitten000/backlog/models"
	"github.com/cutekitten000/backlog/reactive"
	"github.com/cutekitten000/backlog/store"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T, opts ...store.Option) *store.Store {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := conn.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := db.Migrate(conn); err != nil {
		t.Fatal(err)
	}
	return store.New(conn, opts...)
}

// fakeIdentity is an identity stream driven by the test.
type fakeIdentity struct {
	user *reactive.Subject[*models.User]
}

func newFakeIdentity(u *models.User) *fakeIdentity {
	return &fakeIdentity{user: reactive.NewSubject(u)}
}

func (f *fakeIdentity) Watch(fn func(*models.User)) *reactive.Subscription {
	return f.user.Subscribe(fn)
}

func (f *fakeIdentity) set(u *models.User) { f.user.Next(u) }

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func hadesInput() models.NewGameInput {
	return models.NewGameInput{
		APIGameID: 101,
		Title:     "Hades",
		Status:    models.StatusPlaying,
		Platforms: []models.Platform{models.PlatformSteam},
	}
}

func TestAddGameEndToEnd(t *testing.T) {
	s := newTestStore(t)
	b := New(newFakeIdentity(&models.User{ID: "u1"}), s)
	defer b.Close()
	ctx := context.Background()

	id, err := b.AddGame(ctx, hadesInput())
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if id == "" {
		t.Fatal("expected new id")
	}

	eventually(t, func() bool { return b.IsGameInBacklog(101) })

	snap := b.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 game, got %d", len(snap))
	}
	g := snap[0]
	if g.ID != id || g.UserID != "u1" || g.AddedAt.IsZero() {
		t.Fatalf("unexpected record: %+v", g)
	}
	if b.IsGameInBacklog(102) {
		t.Fatal("unknown catalog id reported as tracked")
	}

	// default filter is Playing, so Hades is visible
	if b.Filter() != DefaultFilter || len(b.View()) != 1 {
		t.Fatalf("expected Hades in default view, got %v", b.View())
	}
}

func TestNewerGameListedFirst(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	s := newTestStore(t, store.WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Hour)
		return now
	}))
	b := New(newFakeIdentity(&models.User{ID: "u1"}), s)
	defer b.Close()
	ctx := context.Background()

	first := hadesInput()
	first.Title, first.APIGameID = "T1 game", 1
	second := hadesInput()
	second.Title, second.APIGameID = "T2 game", 2
	b.AddGame(ctx, first)
	b.AddGame(ctx, second)

	if err := b.SetFilter(FilterAll); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool { return len(b.View()) == 2 })
	if v := b.View(); v[0].Title != "T2 game" {
		t.Fatalf("expected T2 first, got %s", v[0].Title)
	}
}

func TestUpdateGameIsPartial(t *testing.T) {
	s := newTestStore(t)
	b := New(newFakeIdentity(&models.User{ID: "u1"}), s)
	defer b.Close()
	ctx := context.Background()

	in := hadesInput()
	in.Playtime = "12h"
	in.AchievementsGotten = 10
	id, _ := b.AddGame(ctx, in)
	eventually(t, func() bool { return b.IsGameInBacklog(101) })

	dropped := models.StatusDropped
	if err := b.UpdateGame(ctx, id, models.UpdateGameInput{Status: &dropped}); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool {
		snap := b.Snapshot()
		return len(snap) == 1 && snap[0].Status == models.StatusDropped
	})
	g := b.Snapshot()[0]
	if g.Title != "Hades" || g.Playtime != "12h" || g.AchievementsGotten != 10 || g.UserID != "u1" {
		t.Fatalf("update touched other fields: %+v", g)
	}
}

func TestDeleteMissingGameIsNoop(t *testing.T) {
	s := newTestStore(t)
	b := New(newFakeIdentity(&models.User{ID: "u1"}), s)
	defer b.Close()
	ctx := context.Background()

	b.AddGame(ctx, hadesInput())
	eventually(t, func() bool { return len(b.Snapshot()) == 1 })

	if err := b.DeleteGame(ctx, "does-not-exist"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if len(b.Snapshot()) != 1 {
		t.Fatal("snapshot changed after deleting a missing id")
	}
}

func TestMutationsReportMissingPreconditions(t *testing.T) {
	s := newTestStore(t)
	ident := newFakeIdentity(nil)
	b := New(ident, s)
	defer b.Close()
	ctx := context.Background()

	if _, err := b.AddGame(ctx, hadesInput()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	games, _ := s.ListGames(ctx, "")
	if len(games) != 0 {
		t.Fatal("store written while signed out")
	}
	if err := b.DeleteGame(ctx, "x"); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}

	ident.set(&models.User{ID: "u1"})
	if err := b.UpdateGame(ctx, "", models.UpdateGameInput{}); !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
	if err := b.DeleteGame(ctx, ""); !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
	if _, err := b.AddDlc(ctx, "", models.NewDlcInput{Title: "x"}); !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
	if err := b.DeleteDlc(ctx, "game", ""); !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
	if err := b.SetFilter("Wishlist"); !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestSearchTermAndWatchView(t *testing.T) {
	s := newTestStore(t)
	b := New(newFakeIdentity(&models.User{ID: "u1"}), s)
	defer b.Close()
	ctx := context.Background()

	var mu sync.Mutex
	var last []models.Game
	calls := 0
	sub := b.WatchView(func(v []models.Game) {
		mu.Lock()
		last, calls = v, calls+1
		mu.Unlock()
	})
	defer sub.Unsubscribe()

	for i, title := range []string{"Elden Ring", "Hollow Knight", "Ring Fit"} {
		in := hadesInput()
		in.Title, in.APIGameID = title, int64(i+1)
		b.AddGame(ctx, in)
	}
	b.SetFilter(FilterAll)
	eventually(t, func() bool { return len(b.View()) == 3 })

	b.SetSearchTerm("RING")
	mu.Lock()
	got := len(last)
	mu.Unlock()
	if got != 2 || b.SearchTerm() != "RING" {
		t.Fatalf("expected 2 matches pushed to watcher, got %d", got)
	}
	if calls < 2 {
		t.Fatalf("expected several view emissions, got %d", calls)
	}
}

// scriptedStore hands control of live query deliveries to the test.
type scriptedStore struct {
	GameStore

	mu       sync.Mutex
	watchers map[string]func([]models.Game)
	closed   map[string]bool
}

func newScriptedStore() *scriptedStore {
	return &scriptedStore{
		watchers: make(map[string]func([]models.Game)),
		closed:   make(map[string]bool),
	}
}

func (s *scriptedStore) WatchGames(_ context.Context, userID string, fn func([]models.Game)) *reactive.Subscription {
	s.mu.Lock()
	s.watchers[userID] = fn
	s.closed[userID] = false
	s.mu.Unlock()
	return reactive.NewSubscription(func() {
		s.mu.Lock()
		s.closed[userID] = true
		s.mu.Unlock()
	})
}

func (s *scriptedStore) deliver(userID string, games ...models.Game) {
	s.mu.Lock()
	fn := s.watchers[userID]
	s.mu.Unlock()
	fn(games)
}

func (s *scriptedStore) isClosed(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed[userID]
}

func owned(userID, id string) models.Game {
	return models.Game{ID: id, UserID: userID, Title: id, Status: models.StatusPlaying, AddedAt: base}
}

func TestIdentitySwitchNeverMixesUsers(t *testing.T) {
	st := newScriptedStore()
	ident := newFakeIdentity(&models.User{ID: "A"})
	b := New(ident, st)
	defer b.Close()
	b.SetFilter(FilterAll)

	st.deliver("A", owned("A", "a1"), owned("A", "a2"))
	if len(b.View()) != 2 {
		t.Fatalf("expected A's games, got %v", ids(b.View()))
	}

	ident.set(&models.User{ID: "B"})
	if !st.isClosed("A") {
		t.Fatal("A's query still open after switch")
	}
	if len(b.View()) != 0 {
		t.Fatalf("view must be empty until B's snapshot arrives, got %v", ids(b.View()))
	}

	// a late emission from A's query is ignored
	st.deliver("A", owned("A", "a3"))
	if len(b.View()) != 0 {
		t.Fatalf("stale emission applied: %v", ids(b.View()))
	}

	st.deliver("B", owned("B", "b1"))
	for _, g := range b.View() {
		if g.UserID != "B" {
			t.Fatalf("record of %s in B's view", g.UserID)
		}
	}
	if len(b.View()) != 1 {
		t.Fatalf("expected B's game, got %v", ids(b.View()))
	}

	ident.set(nil)
	if !st.isClosed("B") || len(b.View()) != 0 || b.CurrentUser() != nil {
		t.Fatal("sign out must drop the query and clear the view")
	}
}

func TestDlcOperations(t *testing.T) {
	s := newTestStore(t)
	b := New(newFakeIdentity(&models.User{ID: "u1"}), s)
	defer b.Close()
	ctx := context.Background()

	id, err := b.AddGameWithDlcs(ctx, hadesInput(), []models.NewDlcInput{
		{Title: "Hearts of Stone"},
		{Title: "Blood and Wine", Status: models.StatusPlaying},
	})
	if err != nil {
		t.Fatalf("add with dlcs: %v", err)
	}

	dlcs, err := b.Dlcs(ctx, id)
	if err != nil || len(dlcs) != 2 {
		t.Fatalf("expected 2 dlcs, got %d (%v)", len(dlcs), err)
	}

	var mu sync.Mutex
	var seen []models.Dlc
	sub, err := b.WatchDlcs(ctx, id, func(d []models.Dlc) {
		mu.Lock()
		seen = d
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	dlcID, err := b.AddDlc(ctx, id, models.NewDlcInput{Title: "Extra"})
	if err != nil {
		t.Fatal(err)
	}
	done := models.StatusCompleted
	if err := b.UpdateDlc(ctx, id, dlcID, models.UpdateDlcInput{Status: &done}); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, d := range seen {
			if d.ID == dlcID && d.Status == models.StatusCompleted {
				return len(seen) == 3
			}
		}
		return false
	})

	if err := b.DeleteDlc(ctx, id, "missing"); err != nil {
		t.Fatalf("deleting a missing dlc: %v", err)
	}

	// another user cannot reach these DLCs
	other := New(newFakeIdentity(&models.User{ID: "u2"}), s)
	defer other.Close()
	if _, err := other.Dlcs(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign game, got %v", err)
	}

	// plain delete leaves DLCs, cascade removes them
	if err := b.DeleteGame(ctx, id); err != nil {
		t.Fatal(err)
	}
	left, _ := s.ListDlcs(ctx, id)
	if len(left) != 3 {
		t.Fatalf("delete must not cascade, %d dlcs left", len(left))
	}

	id2, _ := b.AddGameWithDlcs(ctx, hadesInput(), []models.NewDlcInput{{Title: "One"}})
	if err := b.DeleteGameCascade(ctx, id2); err != nil {
		t.Fatal(err)
	}
	left, _ = s.ListDlcs(ctx, id2)
	if len(left) != 0 {
		t.Fatalf("cascade left %d dlcs", len(left))
	}
	if owned, _ := s.GameOwnedBy(ctx, id2, "u1"); owned {
		t.Fatal("cascade left the game")
	}
}
