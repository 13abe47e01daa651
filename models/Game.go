package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Game struct {
	ID                 string                        `gorm:"primaryKey;size:36" json:"id"`
	UserID             string                        `gorm:"not null;index;size:36" json:"userId"`
	APIGameID          int64                         `gorm:"not null;index" json:"apiGameId"`
	Title              string                        `gorm:"not null" json:"title"`
	CoverURL           string                        `json:"coverUrl"`
	Genres             datatypes.JSONSlice[string]   `json:"genres"`
	Status             GameStatus                    `gorm:"not null;size:32" json:"status"`
	IsPlatinum         bool                          `gorm:"not null" json:"isPlatinum"`
	WillPlatinum       bool                          `gorm:"not null" json:"willPlatinum"`
	Playtime           string                        `json:"playtime"`
	AchievementsGotten int                           `gorm:"not null" json:"achievementsGotten"`
	AchievementsTotal  int                           `gorm:"not null" json:"achievementsTotal"`
	Platforms          datatypes.JSONSlice[Platform] `json:"platforms"`
	StartDate          *time.Time                    `json:"startDate,omitempty"`
	FinishDate         *time.Time                    `json:"finishDate,omitempty"`
	AddedAt            time.Time                     `gorm:"not null;index" json:"addedAt"`
}

// BeforeCreate assigns the store id.
func (g *Game) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}

// NewGameInput - fields a user supplies when adding a game
type NewGameInput struct {
	APIGameID          int64         `json:"apiGameId" validate:"required,gte=1"`
	Title              string        `json:"title" validate:"required,max=200"`
	CoverURL           string        `json:"coverUrl" validate:"omitempty,url"`
	Genres             []string      `json:"genres" validate:"omitempty,dive,max=64"`
	Status             GameStatus    `json:"status" validate:"required,gamestatus"`
	IsPlatinum         bool          `json:"isPlatinum"`
	WillPlatinum       bool          `json:"willPlatinum"`
	Playtime           string        `json:"playtime" validate:"max=32"`
	AchievementsGotten int           `json:"achievementsGotten" validate:"gte=0"`
	AchievementsTotal  int           `json:"achievementsTotal" validate:"gte=0"`
	Platforms          []Platform    `json:"platforms" validate:"required,min=1,unique,dive,platform"`
	StartDate          *time.Time    `json:"startDate"`
	FinishDate         *time.Time    `json:"finishDate"`
	Dlcs               []NewDlcInput `json:"dlcs" validate:"omitempty,dive"`
}

// ToGame builds the record without owner, id or addedAt.
func (in NewGameInput) ToGame() Game {
	return Game{
		APIGameID:          in.APIGameID,
		Title:              in.Title,
		CoverURL:           in.CoverURL,
		Genres:             datatypes.NewJSONSlice(nonNil(in.Genres)),
		Status:             in.Status,
		IsPlatinum:         in.IsPlatinum,
		WillPlatinum:       in.WillPlatinum,
		Playtime:           in.Playtime,
		AchievementsGotten: in.AchievementsGotten,
		AchievementsTotal:  in.AchievementsTotal,
		Platforms:          datatypes.NewJSONSlice(in.Platforms),
		StartDate:          in.StartDate,
		FinishDate:         in.FinishDate,
	}
}

// UpdateGameInput - partial update, nil fields stay untouched
type UpdateGameInput struct {
	Title              *string     `json:"title" validate:"omitempty,min=1,max=200"`
	CoverURL           *string     `json:"coverUrl" validate:"omitempty,url"`
	Genres             *[]string   `json:"genres" validate:"omitempty,dive,max=64"`
	Status             *GameStatus `json:"status" validate:"omitempty,gamestatus"`
	IsPlatinum         *bool       `json:"isPlatinum"`
	WillPlatinum       *bool       `json:"willPlatinum"`
	Playtime           *string     `json:"playtime" validate:"omitempty,max=32"`
	AchievementsGotten *int        `json:"achievementsGotten" validate:"omitempty,gte=0"`
	AchievementsTotal  *int        `json:"achievementsTotal" validate:"omitempty,gte=0"`
	Platforms          *[]Platform `json:"platforms" validate:"omitempty,min=1,unique,dive,platform"`
	StartDate          *time.Time  `json:"startDate"`
	FinishDate         *time.Time  `json:"finishDate"`
}

// Fields maps the supplied values to column names. Owner, id and addedAt
// are not part of the input and so can never be written.
func (in UpdateGameInput) Fields() map[string]any {
	f := make(map[string]any)
	if in.Title != nil {
		f["title"] = *in.Title
	}
	if in.CoverURL != nil {
		f["cover_url"] = *in.CoverURL
	}
	if in.Genres != nil {
		f["genres"] = datatypes.NewJSONSlice(nonNil(*in.Genres))
	}
	if in.Status != nil {
		f["status"] = *in.Status
	}
	if in.IsPlatinum != nil {
		f["is_platinum"] = *in.IsPlatinum
	}
	if in.WillPlatinum != nil {
		f["will_platinum"] = *in.WillPlatinum
	}
	if in.Playtime != nil {
		f["playtime"] = *in.Playtime
	}
	if in.AchievementsGotten != nil {
		f["achievements_gotten"] = *in.AchievementsGotten
	}
	if in.AchievementsTotal != nil {
		f["achievements_total"] = *in.AchievementsTotal
	}
	if in.Platforms != nil {
		f["platforms"] = datatypes.NewJSONSlice(*in.Platforms)
	}
	if in.StartDate != nil {
		f["start_date"] = *in.StartDate
	}
	if in.FinishDate != nil {
		f["finish_date"] = *in.FinishDate
	}
	return f
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// AchievementProgress is the share of achievements unlocked, 0-100.
func (g Game) AchievementProgress() float64 {
	if g.AchievementsTotal == 0 {
		return 0
	}
	return float64(g.AchievementsGotten) / float64(g.AchievementsTotal) * 100
}
