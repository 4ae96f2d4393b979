package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bawabati/bawabati-backend/pkg/enums"
)

// LoyaltyTransaction is an append-only ledger entry. The signed Points value
// plus users.loyalty_points must stay consistent, so entries are only written
// inside the same transaction that adjusts the balance.
type LoyaltyTransaction struct {
	ID          uuid.UUID                    `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID                    `gorm:"column:user_id;type:uuid;not null;index"`
	Type        enums.LoyaltyTransactionType `gorm:"column:type;type:text;not null"`
	Points      int64                        `gorm:"column:points;not null"`
	OrderID     *uuid.UUID                   `gorm:"column:order_id;type:uuid"`
	LuckyBoxID  *uuid.UUID                   `gorm:"column:lucky_box_id;type:uuid"`
	Description string                       `gorm:"column:description;type:text;not null"`
	CreatedAt   time.Time                    `gorm:"column:created_at;autoCreateTime"`
}
