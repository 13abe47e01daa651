package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cutekitten000/backlog/models"
	"github.com/cutekitten000/backlog/reactive"
	"github.com/cutekitten000/backlog/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

// Store is the document store: games owned by a user and the DLC
// sub-collection of each game, with live query subscriptions.
type Store struct {
	db       *gorm.DB
	hub      *hub
	notifier Notifier
	now      func() time.Time
}

type Option func(*Store)

func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithClock overrides the server timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:       db,
		hub:      newHub(),
		notifier: NoopNotifier{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run forwards remote changes into local live queries until ctx is done.
func (s *Store) Run(ctx context.Context) error {
	return s.notifier.Listen(ctx, s.hub.notify)
}

func (s *Store) changed(ctx context.Context, topic string) {
	s.hub.notify(topic)
	if err := s.notifier.Publish(ctx, topic); err != nil {
		utils.Log.WithFields(logrus.Fields{
			"topic": topic,
			"error": err.Error(),
		}).Warn("Failed to publish store change")
	}
}

// ==================== GAMES ====================

// CreateGame writes a new game and stamps the server-side addedAt.
func (s *Store) CreateGame(ctx context.Context, g *models.Game) error {
	if g.UserID == "" {
		return fmt.Errorf("create game: missing owner")
	}
	g.AddedAt = s.now().UTC()
	if err := s.db.WithContext(ctx).Create(g).Error; err != nil {
		return fmt.Errorf("create game: %w", err)
	}
	s.changed(ctx, gamesTopic(g.UserID))
	return nil
}

// UpdateGame writes only the given columns of a game owned by userID.
func (s *Store) UpdateGame(ctx context.Context, userID, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&models.Game{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update game %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update game %s: %w", id, ErrNotFound)
	}
	s.changed(ctx, gamesTopic(userID))
	return nil
}

// DeleteGame removes a game owned by userID. Deleting a missing game is not
// an error. DLCs are left in place.
func (s *Store) DeleteGame(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Game{})
	if res.Error != nil {
		return fmt.Errorf("delete game %s: %w", id, res.Error)
	}
	if res.RowsAffected > 0 {
		s.changed(ctx, gamesTopic(userID))
	}
	return nil
}

// ListGames returns the user's games, newest first.
func (s *Store) ListGames(ctx context.Context, userID string) ([]models.Game, error) {
	var games []models.Game
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("added_at DESC").
		Order("id").
		Find(&games).Error
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return games, nil
}

// GameOwnedBy reports whether gameID exists and belongs to userID.
func (s *Store) GameOwnedBy(ctx context.Context, gameID, userID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Game{}).
		Where("id = ? AND user_id = ?", gameID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check game owner: %w", err)
	}
	return count > 0, nil
}

// WatchGames delivers the user's full game list now and after every change.
func (s *Store) WatchGames(ctx context.Context, userID string, fn func([]models.Game)) *reactive.Subscription {
	return watch(ctx, s.hub, gamesTopic(userID), "games", func(ctx context.Context) ([]models.Game, error) {
		return s.ListGames(ctx, userID)
	}, fn)
}
