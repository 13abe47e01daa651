package backlog

import (
	"context"
	"fmt"
	"sync"

	"github.com/cutekitten000/backlog/models"
	"github.com/cutekitten000/backlog/monitoring"
	"github.com/cutekitten000/backlog/reactive"
	"github.com/cutekitten000/backlog/utils"
)

// UserSource is the identity stream the backlog follows.
type UserSource interface {
	Watch(fn func(*models.User)) *reactive.Subscription
}

// GameStore is the slice of the document store the backlog writes to.
type GameStore interface {
	CreateGame(ctx context.Context, g *models.Game) error
	UpdateGame(ctx context.Context, userID, id string, fields map[string]any) error
	DeleteGame(ctx context.Context, userID, id string) error
	DeleteGameCascade(ctx context.Context, userID, id string) error
	GameOwnedBy(ctx context.Context, gameID, userID string) (bool, error)
	WatchGames(ctx context.Context, userID string, fn func([]models.Game)) *reactive.Subscription

	CreateDlc(ctx context.Context, d *models.Dlc) error
	UpdateDlc(ctx context.Context, gameID, dlcID string, fields map[string]any) error
	DeleteDlc(ctx context.Context, gameID, dlcID string) error
	ListDlcs(ctx context.Context, gameID string) ([]models.Dlc, error)
	WatchDlcs(ctx context.Context, gameID string, fn func([]models.Dlc)) *reactive.Subscription
}

// Backlog is the signed-in user's live list of games. It follows the
// identity stream, keeps exactly one store query scoped to the current user
// and republishes a derived view whenever the snapshot, the filter or the
// search term changes.
type Backlog struct {
	store GameStore

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	user     *models.User
	gen      uint64
	storeSub *reactive.Subscription
	snapshot []models.Game
	filter   Filter
	term     string
	closed   bool

	// pubMu orders recomputations so the view always ends on the latest state.
	pubMu       sync.Mutex
	view        *reactive.Subject[[]models.Game]
	identitySub *reactive.Subscription
}

func New(identity UserSource, store GameStore) *Backlog {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Backlog{
		store:  store,
		ctx:    ctx,
		cancel: cancel,
		filter: DefaultFilter,
		view:   reactive.NewSubject([]models.Game{}),
	}
	b.identitySub = identity.Watch(b.onUser)
	return b
}

// onUser switches the store query to the new identity. Bumping gen first
// makes every callback of the previous query a no-op, even one already
// running.
func (b *Backlog) onUser(u *models.User) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.gen++
	gen := b.gen
	prev := b.storeSub
	b.storeSub = nil
	b.user = u
	b.snapshot = nil
	b.mu.Unlock()

	prev.Unsubscribe()
	b.publish()

	if u == nil {
		return
	}

	utils.Log.WithField("user_id", u.ID).Debug("Backlog following user")
	sub := b.store.WatchGames(b.ctx, u.ID, func(games []models.Game) {
		b.onSnapshot(gen, games)
	})

	b.mu.Lock()
	if b.closed || b.gen != gen {
		b.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	b.storeSub = sub
	b.mu.Unlock()
}

func (b *Backlog) onSnapshot(gen uint64, games []models.Game) {
	b.mu.Lock()
	if b.closed || b.gen != gen {
		b.mu.Unlock()
		return
	}
	b.snapshot = games
	b.mu.Unlock()
	b.publish()
}

func (b *Backlog) publish() {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	b.mu.Lock()
	snapshot, filter, term := b.snapshot, b.filter, b.term
	b.mu.Unlock()

	b.view.Next(Derive(snapshot, filter, term))
}

// ==================== VIEW ====================

func (b *Backlog) SetFilter(f Filter) error {
	if !f.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFilter, f)
	}
	b.mu.Lock()
	b.filter = f
	b.mu.Unlock()
	b.publish()
	return nil
}

func (b *Backlog) SetSearchTerm(term string) {
	b.mu.Lock()
	b.term = term
	b.mu.Unlock()
	b.publish()
}

func (b *Backlog) Filter() Filter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filter
}

func (b *Backlog) SearchTerm() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.term
}

// View returns the latest derived list.
func (b *Backlog) View() []models.Game {
	return b.view.Value()
}

// Snapshot returns the raw store snapshot in store order.
func (b *Backlog) Snapshot() []models.Game {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Game(nil), b.snapshot...)
}

// WatchView calls fn with the current view and after every recomputation.
// fn must not call SetFilter or SetSearchTerm.
func (b *Backlog) WatchView(fn func([]models.Game)) *reactive.Subscription {
	return b.view.Subscribe(fn)
}

// IsGameInBacklog reports whether the current snapshot tracks apiGameID.
func (b *Backlog) IsGameInBacklog(apiGameID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, g := range b.snapshot {
		if g.APIGameID == apiGameID {
			return true
		}
	}
	return false
}

func (b *Backlog) CurrentUser() *models.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.user
}

func (b *Backlog) userID() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.user == nil {
		return "", ErrNotAuthenticated
	}
	return b.user.ID, nil
}

// ==================== GAME MUTATIONS ====================

// AddGame stores a new game for the current user and returns its id. The
// game shows up in the view once the store delivers the next snapshot.
func (b *Backlog) AddGame(ctx context.Context, in models.NewGameInput) (string, error) {
	uid, err := b.userID()
	if err != nil {
		return "", err
	}
	g := in.ToGame()
	g.UserID = uid
	err = b.store.CreateGame(ctx, &g)
	monitoring.ObserveMutation("addGame", err)
	if err != nil {
		return "", fmt.Errorf("add game: %w", err)
	}
	return g.ID, nil
}

// AddGameWithDlcs adds the game and then its DLCs. The game id is returned
// even when some DLC writes fail.
func (b *Backlog) AddGameWithDlcs(ctx context.Context, in models.NewGameInput, dlcs []models.NewDlcInput) (string, error) {
	id, err := b.AddGame(ctx, in)
	if err != nil || len(dlcs) == 0 {
		return id, err
	}
	if _, err := b.AddDlcs(ctx, id, dlcs); err != nil {
		return id, err
	}
	return id, nil
}

// UpdateGame writes only the fields set in in.
func (b *Backlog) UpdateGame(ctx context.Context, id string, in models.UpdateGameInput) error {
	if id == "" {
		return ErrMissingID
	}
	uid, err := b.userID()
	if err != nil {
		return err
	}
	err = b.store.UpdateGame(ctx, uid, id, in.Fields())
	monitoring.ObserveMutation("updateGame", err)
	if err != nil {
		return fmt.Errorf("update game: %w", err)
	}
	return nil
}

// DeleteGame removes the game but not its DLCs. Unknown ids are not an error.
func (b *Backlog) DeleteGame(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}
	uid, err := b.userID()
	if err != nil {
		return err
	}
	err = b.store.DeleteGame(ctx, uid, id)
	monitoring.ObserveMutation("deleteGame", err)
	if err != nil {
		return fmt.Errorf("delete game: %w", err)
	}
	return nil
}

// DeleteGameCascade removes the game and its DLCs atomically. Unknown ids
// are not an error.
func (b *Backlog) DeleteGameCascade(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}
	uid, err := b.userID()
	if err != nil {
		return err
	}
	err = b.store.DeleteGameCascade(ctx, uid, id)
	monitoring.ObserveMutation("deleteGameCascade", err)
	if err != nil {
		return fmt.Errorf("delete game: %w", err)
	}
	return nil
}

// Close stops following the identity stream and drops the store query.
func (b *Backlog) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.gen++
	storeSub := b.storeSub
	b.storeSub = nil
	b.mu.Unlock()

	b.identitySub.Unsubscribe()
	storeSub.Unsubscribe()
	b.cancel()
	b.view.Close()
}
