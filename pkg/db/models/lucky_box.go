package models

import (
	"time"

	"github.com/google/uuid"
)

// LuckyBox is a promotional pool awarding random loyalty points to the first
// MaxWinners claimants. CurrentWinners only ever moves through the guarded
// increment in the repository, never through a plain save.
type LuckyBox struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name           string     `gorm:"column:name;type:text;not null"`
	Description    *string    `gorm:"column:description;type:text"`
	MinPoints      int64      `gorm:"column:min_points;not null"`
	MaxPoints      int64      `gorm:"column:max_points;not null"`
	MaxWinners     int        `gorm:"column:max_winners;not null"`
	CurrentWinners int        `gorm:"column:current_winners;not null;default:0"`
	IsActive       bool       `gorm:"column:is_active;not null;default:true"`
	StartsAt       *time.Time `gorm:"column:starts_at"`
	EndsAt         *time.Time `gorm:"column:ends_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
