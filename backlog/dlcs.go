package backlog

import (
	"context"
	"fmt"

	"github.com/cutekitten000/backlog/concurrent"
	"github.com/cutekitten000/backlog/models"
	"github.com/cutekitten000/backlog/monitoring"
	"github.com/cutekitten000/backlog/reactive"
	"github.com/cutekitten000/backlog/store"
	"github.com/cutekitten000/backlog/utils"
	"github.com/sirupsen/logrus"
)

// ownGame checks that gameID is one of the current user's games.
func (b *Backlog) ownGame(ctx context.Context, gameID string) error {
	if gameID == "" {
		return ErrMissingID
	}
	uid, err := b.userID()
	if err != nil {
		return err
	}
	owned, err := b.store.GameOwnedBy(ctx, gameID, uid)
	if err != nil {
		return err
	}
	if !owned {
		return fmt.Errorf("game %s: %w", gameID, store.ErrNotFound)
	}
	return nil
}

// WatchDlcs is a live query over one game's DLCs.
func (b *Backlog) WatchDlcs(ctx context.Context, gameID string, fn func([]models.Dlc)) (*reactive.Subscription, error) {
	if err := b.ownGame(ctx, gameID); err != nil {
		return nil, err
	}
	return b.store.WatchDlcs(ctx, gameID, fn), nil
}

func (b *Backlog) Dlcs(ctx context.Context, gameID string) ([]models.Dlc, error) {
	if err := b.ownGame(ctx, gameID); err != nil {
		return nil, err
	}
	dlcs, err := b.store.ListDlcs(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("list dlcs: %w", err)
	}
	return dlcs, nil
}

func (b *Backlog) AddDlc(ctx context.Context, gameID string, in models.NewDlcInput) (string, error) {
	if err := b.ownGame(ctx, gameID); err != nil {
		return "", err
	}
	d := in.ToDlc(gameID)
	err := b.store.CreateDlc(ctx, &d)
	monitoring.ObserveMutation("addDlc", err)
	if err != nil {
		return "", fmt.Errorf("add dlc: %w", err)
	}
	return d.ID, nil
}

const dlcWorkers = 4

// AddDlcs creates several DLCs of one game concurrently. The ids come back
// in input order, empty for the DLCs that failed.
func (b *Backlog) AddDlcs(ctx context.Context, gameID string, dlcs []models.NewDlcInput) ([]string, error) {
	if err := b.ownGame(ctx, gameID); err != nil {
		return nil, err
	}
	ids := make([]string, len(dlcs))
	idx := make([]int, len(dlcs))
	for i := range idx {
		idx[i] = i
	}
	// each job writes only its own slot of ids
	results := concurrent.Process(ctx, idx, dlcWorkers, func(ctx context.Context, i int) error {
		d := dlcs[i].ToDlc(gameID)
		err := b.store.CreateDlc(ctx, &d)
		monitoring.ObserveMutation("addDlc", err)
		if err != nil {
			return err
		}
		ids[i] = d.ID
		return nil
	})
	if err := concurrent.Errors(results); err != nil {
		utils.Log.WithFields(logrus.Fields{
			"game_id": gameID,
			"dlcs":    len(dlcs),
			"error":   err.Error(),
		}).Warn("Some DLCs failed to save")
		return ids, fmt.Errorf("add dlcs: %w", err)
	}
	return ids, nil
}

func (b *Backlog) UpdateDlc(ctx context.Context, gameID, dlcID string, in models.UpdateDlcInput) error {
	if dlcID == "" {
		return ErrMissingID
	}
	if err := b.ownGame(ctx, gameID); err != nil {
		return err
	}
	err := b.store.UpdateDlc(ctx, gameID, dlcID, in.Fields())
	monitoring.ObserveMutation("updateDlc", err)
	if err != nil {
		return fmt.Errorf("update dlc: %w", err)
	}
	return nil
}

// DeleteDlc removes one DLC. A missing DLC is not an error.
func (b *Backlog) DeleteDlc(ctx context.Context, gameID, dlcID string) error {
	if dlcID == "" {
		return ErrMissingID
	}
	if err := b.ownGame(ctx, gameID); err != nil {
		return err
	}
	err := b.store.DeleteDlc(ctx, gameID, dlcID)
	monitoring.ObserveMutation("deleteDlc", err)
	if err != nil {
		return fmt.Errorf("delete dlc: %w", err)
	}
	return nil
}
