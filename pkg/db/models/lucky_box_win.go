package models

import (
	"time"

	"github.com/google/uuid"
)

// LuckyBoxWin records a user's single win for a box.
type LuckyBoxWin struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	LuckyBoxID    uuid.UUID `gorm:"column:lucky_box_id;type:uuid;not null;uniqueIndex:idx_lucky_box_wins_box_user"`
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_lucky_box_wins_box_user"`
	PointsAwarded int64     `gorm:"column:points_awarded;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}
