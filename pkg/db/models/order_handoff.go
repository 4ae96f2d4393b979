package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bawabati/bawabati-backend/pkg/enums"
)

// OrderHandoff is the audit record written whenever custody of an order
// changes hands, whether proven by code or recorded manually by an admin.
type OrderHandoff struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Phase       enums.HandoffPhase  `gorm:"column:phase;type:text;not null"`
	Method      enums.HandoffMethod `gorm:"column:method;type:text;not null"`
	FromUserID  uuid.UUID           `gorm:"column:from_user_id;type:uuid;not null"`
	ToUserID    uuid.UUID           `gorm:"column:to_user_id;type:uuid;not null"`
	CompletedAt time.Time           `gorm:"column:completed_at;not null"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
}
