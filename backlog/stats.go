package backlog

import "github.com/cutekitten000/backlog/models"

// Stats summarizes a snapshot for the filter tabs.
type Stats struct {
	Total              int            `json:"total"`
	ByFilter           map[Filter]int `json:"byFilter"`
	AchievementsGotten int            `json:"achievementsGotten"`
	AchievementsTotal  int            `json:"achievementsTotal"`
	// AchievementProgress is 0-100, 0 when nothing is tracked.
	AchievementProgress float64 `json:"achievementProgress"`
}

func ComputeStats(snapshot []models.Game) Stats {
	s := Stats{
		Total:    len(snapshot),
		ByFilter: make(map[Filter]int, len(FilterOptions)),
	}
	for _, f := range FilterOptions {
		s.ByFilter[f] = 0
	}
	for _, g := range snapshot {
		for _, f := range FilterOptions {
			if f.match(g) {
				s.ByFilter[f]++
			}
		}
		s.AchievementsGotten += g.AchievementsGotten
		s.AchievementsTotal += g.AchievementsTotal
	}
	total := models.Game{AchievementsGotten: s.AchievementsGotten, AchievementsTotal: s.AchievementsTotal}
	s.AchievementProgress = total.AchievementProgress()
	return s
}

// Stats summarizes the current raw snapshot.
func (b *Backlog) Stats() Stats {
	return ComputeStats(b.Snapshot())
}
