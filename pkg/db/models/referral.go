package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bawabati/bawabati-backend/pkg/enums"
)

// Referral links a referred signup to the referrer. It stays pending until
// the referred user's first delivered order, when both sides get the bonus.
type Referral struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReferrerID  uuid.UUID            `gorm:"column:referrer_id;type:uuid;not null;index"`
	ReferredID  uuid.UUID            `gorm:"column:referred_id;type:uuid;not null;uniqueIndex"`
	Status      enums.ReferralStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	BonusPoints int64                `gorm:"column:bonus_points;not null"`
	CompletedAt *time.Time           `gorm:"column:completed_at"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime"`
}
