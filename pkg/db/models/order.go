package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bawabati/bawabati-backend/pkg/enums"
)

// Order is the delivery order moving between customer, vendor, and driver.
//
// The pickup_* and delivery_* code columns hold the active handoff challenge
// for each phase. OTP and QR token always share the nonce and expiry, so
// consuming or regenerating one invalidates the other.
type Order struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Number     int64      `gorm:"column:number;not null;uniqueIndex;default:nextval('order_number_seq')"`
	CustomerID uuid.UUID  `gorm:"column:customer_id;type:uuid;not null;index"`
	VendorID   uuid.UUID  `gorm:"column:vendor_id;type:uuid;not null;index"`
	DriverID   *uuid.UUID `gorm:"column:driver_id;type:uuid;index"`

	Status          enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Total           decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null"`
	Currency        string            `gorm:"column:currency;type:text;not null;default:'USD'"`
	DeliveryAddress string            `gorm:"column:delivery_address;type:text;not null"`
	Notes           *string           `gorm:"column:notes"`

	PickupOTP             *string    `gorm:"column:pickup_otp;type:text"`
	PickupCodeNonce       *string    `gorm:"column:pickup_code_nonce;type:text"`
	PickupCodeExpiresAt   *time.Time `gorm:"column:pickup_code_expires_at"`
	DeliveryOTP           *string    `gorm:"column:delivery_otp;type:text"`
	DeliveryCodeNonce     *string    `gorm:"column:delivery_code_nonce;type:text"`
	DeliveryCodeExpiresAt *time.Time `gorm:"column:delivery_code_expires_at"`

	ConfirmedAt      *time.Time `gorm:"column:confirmed_at"`
	ReadyAt          *time.Time `gorm:"column:ready_at"`
	PickedUpAt       *time.Time `gorm:"column:picked_up_at"`
	InTransitAt      *time.Time `gorm:"column:in_transit_at"`
	OutForDeliveryAt *time.Time `gorm:"column:out_for_delivery_at"`
	DeliveredAt      *time.Time `gorm:"column:delivered_at"`
	CompletedAt      *time.Time `gorm:"column:completed_at"`
	CancelledAt      *time.Time `gorm:"column:cancelled_at"`

	Items    []OrderItem    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Handoffs []OrderHandoff `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
