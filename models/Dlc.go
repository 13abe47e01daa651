package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Dlc is an expansion tracked under a parent game.
type Dlc struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	ParentID   string     `gorm:"not null;index;size:36" json:"parentId"`
	Title      string     `gorm:"not null" json:"title"`
	Status     GameStatus `gorm:"not null;size:32" json:"status"`
	Playtime   string     `json:"playtime,omitempty"`
	FinishDate *time.Time `json:"finishDate,omitempty"`
	CreatedAt  time.Time  `json:"-"`
}

func (d *Dlc) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// NewDlcInput - DLC fields supplied on creation; status defaults to Backlog
type NewDlcInput struct {
	Title      string     `json:"title" validate:"required,max=200"`
	Status     GameStatus `json:"status" validate:"omitempty,dlcstatus"`
	Playtime   string     `json:"playtime" validate:"max=32"`
	FinishDate *time.Time `json:"finishDate"`
}

func (in NewDlcInput) ToDlc(parentID string) Dlc {
	status := in.Status
	if status == "" {
		status = StatusBacklog
	}
	return Dlc{
		ParentID:   parentID,
		Title:      in.Title,
		Status:     status,
		Playtime:   in.Playtime,
		FinishDate: in.FinishDate,
	}
}

// UpdateDlcInput - partial DLC update
type UpdateDlcInput struct {
	Title      *string     `json:"title" validate:"omitempty,min=1,max=200"`
	Status     *GameStatus `json:"status" validate:"omitempty,dlcstatus"`
	Playtime   *string     `json:"playtime" validate:"omitempty,max=32"`
	FinishDate *time.Time  `json:"finishDate"`
}

func (in UpdateDlcInput) Fields() map[string]any {
	f := make(map[string]any)
	if in.Title != nil {
		f["title"] = *in.Title
	}
	if in.Status != nil {
		f["status"] = *in.Status
	}
	if in.Playtime != nil {
		f["playtime"] = *in.Playtime
	}
	if in.FinishDate != nil {
		f["finish_date"] = *in.FinishDate
	}
	return f
}
