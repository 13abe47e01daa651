package backlog

import (
	"slices"
	"strings"

	"github.com/cutekitten000/backlog/models"
)

// Filter selects which games the derived view shows. "All", "Platinum" and
// "PlatinumPending" look at the completion flags; any other game status is
// matched against the status field exactly.
type Filter string

const (
	FilterAll             Filter = "All"
	FilterPlatinum        Filter = "Platinum"
	FilterPlatinumPending Filter = "PlatinumPending"

	DefaultFilter = Filter(models.StatusPlaying)
)

func (f Filter) Valid() bool {
	switch f {
	case FilterAll, FilterPlatinum, FilterPlatinumPending:
		return true
	}
	return models.GameStatus(f).Valid()
}

func (f Filter) match(g models.Game) bool {
	switch f {
	case FilterAll:
		return true
	case FilterPlatinum:
		return g.IsPlatinum
	case FilterPlatinumPending:
		return g.WillPlatinum && !g.IsPlatinum
	default:
		return g.Status == models.GameStatus(f)
	}
}

// Derive computes the view: newest addedAt first (stable), then the status
// filter, then a case-insensitive title substring match. It never modifies
// snapshot and always returns a fresh, non-nil slice.
func Derive(snapshot []models.Game, filter Filter, term string) []models.Game {
	sorted := slices.Clone(snapshot)
	slices.SortStableFunc(sorted, func(a, b models.Game) int {
		return b.AddedAt.Compare(a.AddedAt)
	})

	needle := strings.ToLower(term)
	out := make([]models.Game, 0, len(sorted))
	for _, g := range sorted {
		if !filter.match(g) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(g.Title), needle) {
			continue
		}
		out = append(out, g)
	}
	return out
}

// FilterOptions is the order the filter tabs are offered in.
var FilterOptions = []Filter{
	Filter(models.StatusPlaying),
	Filter(models.StatusBacklog),
	Filter(models.StatusCompleted),
	Filter(models.StatusDropped),
	FilterPlatinum,
	FilterPlatinumPending,
	FilterAll,
}
