package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cutekitten000/backlog/db"
	"github.com/cutekitten000/backlog/models"
	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// every new :memory: connection is a fresh database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(conn, opts...)
}

func sampleGame(userID, title string) *models.Game {
	return &models.Game{
		UserID:    userID,
		APIGameID: 1942,
		Title:     title,
		Genres:    datatypes.NewJSONSlice([]string{"RPG"}),
		Status:    models.StatusPlaying,
		Platforms: datatypes.NewJSONSlice([]models.Platform{models.PlatformSteam}),
	}
}

// collector records every snapshot a live query delivers.
type collector[T any] struct {
	mu    sync.Mutex
	snaps []T
}

func (c *collector[T]) add(v T) {
	c.mu.Lock()
	c.snaps = append(c.snaps, v)
	c.mu.Unlock()
}

func (c *collector[T]) last() (T, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	if len(c.snaps) == 0 {
		return zero, 0
	}
	return c.snaps[len(c.snaps)-1], len(c.snaps)
}

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

func TestCreateGameStampsAddedAt(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	g := sampleGame("u1", "Elden Ring")
	if err := s.CreateGame(ctx, g); err != nil {
		t.Fatalf("create: %v", err)
	}
	if g.ID == "" {
		t.Fatal("expected generated id")
	}

	games, err := s.ListGames(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(games) != 1 || !games[0].AddedAt.Equal(fixed) {
		t.Fatalf("unexpected games: %+v", games)
	}
	if games[0].Genres[0] != "RPG" || games[0].Platforms[0] != models.PlatformSteam {
		t.Fatalf("json columns not round-tripped: %+v", games[0])
	}
}

func TestCreateGameRequiresOwner(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateGame(context.Background(), sampleGame("", "x")); err == nil {
		t.Fatal("expected error for game without owner")
	}
}

func TestListGamesNewestFirstAndScopedToUser(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newTestStore(t, WithClock(func() time.Time {
		now = now.Add(time.Minute)
		return now
	}))
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		if err := s.CreateGame(ctx, sampleGame("u1", title)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.CreateGame(ctx, sampleGame("u2", "other")); err != nil {
		t.Fatal(err)
	}

	games, err := s.ListGames(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(games) != 3 {
		t.Fatalf("expected 3 games, got %d", len(games))
	}
	if games[0].Title != "third" || games[2].Title != "first" {
		t.Fatalf("wrong order: %s, %s, %s", games[0].Title, games[1].Title, games[2].Title)
	}
}

func TestUpdateGame(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	g := sampleGame("u1", "Hades")
	if err := s.CreateGame(ctx, g); err != nil {
		t.Fatal(err)
	}

	if err := s.UpdateGame(ctx, "u1", g.ID, map[string]any{"status": models.StatusCompleted, "playtime": "40h"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	games, _ := s.ListGames(ctx, "u1")
	if games[0].Status != models.StatusCompleted || games[0].Playtime != "40h" || games[0].Title != "Hades" {
		t.Fatalf("partial update wrong: %+v", games[0])
	}

	err := s.UpdateGame(ctx, "u2", g.ID, map[string]any{"title": "stolen"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign user, got %v", err)
	}
	err = s.UpdateGame(ctx, "u1", "missing", map[string]any{"title": "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing game, got %v", err)
	}
}

func TestDeleteGameMissingIsNoError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.DeleteGame(ctx, "u1", "nope"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	g := sampleGame("u1", "Celeste")
	s.CreateGame(ctx, g)
	if err := s.DeleteGame(ctx, "u2", g.ID); err != nil {
		t.Fatal(err)
	}
	if owned, _ := s.GameOwnedBy(ctx, g.ID, "u1"); !owned {
		t.Fatal("another user must not delete the game")
	}
	if err := s.DeleteGame(ctx, "u1", g.ID); err != nil {
		t.Fatal(err)
	}
	if owned, _ := s.GameOwnedBy(ctx, g.ID, "u1"); owned {
		t.Fatal("game should be gone")
	}
}

func TestWatchGamesDeliversInitialAndChanges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.CreateGame(ctx, sampleGame("u1", "Outer Wilds"))

	var c collector[[]models.Game]
	sub := s.WatchGames(ctx, "u1", c.add)
	defer sub.Unsubscribe()

	eventually(t, func() bool {
		snap, n := c.last()
		return n >= 1 && len(snap) == 1
	})

	s.CreateGame(ctx, sampleGame("u1", "Tunic"))
	eventually(t, func() bool {
		snap, _ := c.last()
		return len(snap) == 2
	})

	// another user's writes never reach this query
	_, before := c.last()
	s.CreateGame(ctx, sampleGame("u2", "Other"))
	time.Sleep(30 * time.Millisecond)
	if _, after := c.last(); after != before {
		t.Fatalf("unrelated write delivered a snapshot")
	}
}

func TestWatchUnsubscribeStopsDeliveries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var c collector[[]models.Game]
	sub := s.WatchGames(ctx, "u1", c.add)
	eventually(t, func() bool { _, n := c.last(); return n == 1 })

	sub.Unsubscribe()
	sub.Unsubscribe()
	eventually(t, func() bool { return s.hub.watchers(gamesTopic("u1")) == 0 })

	s.CreateGame(ctx, sampleGame("u1", "late"))
	time.Sleep(30 * time.Millisecond)
	if _, n := c.last(); n != 1 {
		t.Fatalf("expected no delivery after unsubscribe, got %d", n)
	}
}

func TestDlcSubCollection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	g := sampleGame("u1", "The Witcher 3")
	s.CreateGame(ctx, g)

	var c collector[[]models.Dlc]
	sub := s.WatchDlcs(ctx, g.ID, c.add)
	defer sub.Unsubscribe()

	hos := models.NewDlcInput{Title: "Hearts of Stone"}.ToDlc(g.ID)
	bw := models.NewDlcInput{Title: "Blood and Wine", Status: models.StatusPlaying}.ToDlc(g.ID)
	if err := s.CreateDlc(ctx, &hos); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateDlc(ctx, &bw); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool { snap, _ := c.last(); return len(snap) == 2 })

	dlcs, _ := s.ListDlcs(ctx, g.ID)
	for _, d := range dlcs {
		if d.ID == hos.ID && d.Status != models.StatusBacklog {
			t.Fatalf("default dlc status should be Backlog, got %s", d.Status)
		}
	}

	if err := s.UpdateDlc(ctx, g.ID, hos.ID, map[string]any{"status": models.StatusCompleted}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateDlc(ctx, "other-game", hos.ID, map[string]any{"title": "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.DeleteDlc(ctx, g.ID, bw.ID); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool {
		snap, _ := c.last()
		return len(snap) == 1 && snap[0].Status == models.StatusCompleted
	})

	if err := s.DeleteGameCascade(ctx, "u2", g.ID); err != nil {
		t.Fatal(err)
	}
	if left, _ := s.ListDlcs(ctx, g.ID); len(left) != 1 {
		t.Fatalf("foreign cascade must not touch dlcs, %d left", len(left))
	}

	if err := s.DeleteGameCascade(ctx, "u1", g.ID); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool { snap, n := c.last(); return n > 0 && len(snap) == 0 })
	if owned, _ := s.GameOwnedBy(ctx, g.ID, "u1"); owned {
		t.Fatal("cascade left the game")
	}
}

func TestDeleteGameCascadeRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	g := sampleGame("u1", "Hades")
	if err := s.CreateGame(ctx, g); err != nil {
		t.Fatal(err)
	}

	// the DLC delete fails inside the transaction
	if err := s.db.Migrator().DropTable(&models.Dlc{}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteGameCascade(ctx, "u1", g.ID); err == nil {
		t.Fatal("expected an error without the dlcs table")
	}
	if owned, _ := s.GameOwnedBy(ctx, g.ID, "u1"); !owned {
		t.Fatal("game must survive a failed cascade")
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	topics []string
	remote chan string
}

func (r *recordingNotifier) Publish(_ context.Context, topic string) error {
	r.mu.Lock()
	r.topics = append(r.topics, topic)
	r.mu.Unlock()
	return nil
}

func (r *recordingNotifier) Listen(ctx context.Context, fn func(string)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case topic := <-r.remote:
			fn(topic)
		}
	}
}

func TestNotifierPublishesAndForwardsRemoteChanges(t *testing.T) {
	n := &recordingNotifier{remote: make(chan string)}
	s := newTestStore(t, WithNotifier(n))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	g := sampleGame("u1", "Hollow Knight")
	s.CreateGame(ctx, g)
	n.mu.Lock()
	published := append([]string(nil), n.topics...)
	n.mu.Unlock()
	if len(published) != 1 || published[0] != gamesTopic("u1") {
		t.Fatalf("unexpected published topics: %v", published)
	}

	var c collector[[]models.Game]
	sub := s.WatchGames(ctx, "u1", c.add)
	defer sub.Unsubscribe()
	eventually(t, func() bool { _, n := c.last(); return n == 1 })

	n.remote <- gamesTopic("u1")
	eventually(t, func() bool { _, n := c.last(); return n == 2 })
}
