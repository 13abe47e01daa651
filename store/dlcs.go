package store

import (
	"context"
	"fmt"

	"github.com/cutekitten000/backlog/models"
	"github.com/cutekitten000/backlog/reactive"
	"gorm.io/gorm"
)

// ==================== DLCS (games/{id}/dlcs) ====================

func (s *Store) CreateDlc(ctx context.Context, d *models.Dlc) error {
	if d.ParentID == "" {
		return fmt.Errorf("create dlc: missing parent game")
	}
	if err := s.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("create dlc: %w", err)
	}
	s.changed(ctx, dlcsTopic(d.ParentID))
	return nil
}

func (s *Store) UpdateDlc(ctx context.Context, gameID, dlcID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&models.Dlc{}).
		Where("id = ? AND parent_id = ?", dlcID, gameID).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update dlc %s: %w", dlcID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update dlc %s: %w", dlcID, ErrNotFound)
	}
	s.changed(ctx, dlcsTopic(gameID))
	return nil
}

func (s *Store) DeleteDlc(ctx context.Context, gameID, dlcID string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND parent_id = ?", dlcID, gameID).
		Delete(&models.Dlc{})
	if res.Error != nil {
		return fmt.Errorf("delete dlc %s: %w", dlcID, res.Error)
	}
	if res.RowsAffected > 0 {
		s.changed(ctx, dlcsTopic(gameID))
	}
	return nil
}

// DeleteGameCascade removes a game owned by userID together with its DLC
// sub-collection in one transaction. A missing game is not an error and
// leaves any DLCs in place.
func (s *Store) DeleteGameCascade(ctx context.Context, userID, id string) error {
	deleted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Game{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Where("parent_id = ?", id).Delete(&models.Dlc{}).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete game %s with dlcs: %w", id, err)
	}
	if deleted {
		s.changed(ctx, gamesTopic(userID))
		s.changed(ctx, dlcsTopic(id))
	}
	return nil
}

func (s *Store) ListDlcs(ctx context.Context, gameID string) ([]models.Dlc, error) {
	var dlcs []models.Dlc
	err := s.db.WithContext(ctx).
		Where("parent_id = ?", gameID).
		Order("created_at").
		Order("id").
		Find(&dlcs).Error
	if err != nil {
		return nil, fmt.Errorf("list dlcs: %w", err)
	}
	return dlcs, nil
}

func (s *Store) WatchDlcs(ctx context.Context, gameID string, fn func([]models.Dlc)) *reactive.Subscription {
	return watch(ctx, s.hub, dlcsTopic(gameID), "dlcs", func(ctx context.Context) ([]models.Dlc, error) {
		return s.ListDlcs(ctx, gameID)
	}, fn)
}
