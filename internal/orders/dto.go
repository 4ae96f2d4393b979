package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bawabati/bawabati-backend/pkg/db/models"
	"github.com/bawabati/bawabati-backend/pkg/enums"
)

// Actor identifies who is performing an order operation.
type Actor struct {
	ID   uuid.UUID
	Role enums.UserRole
}

// OrderItemInput is one requested line in a new order.
type OrderItemInput struct {
	Name      string  `json:"name" validate:"required"`
	UnitPrice string  `json:"unit_price" validate:"required"`
	Qty       int     `json:"qty" validate:"required,gt=0"`
	Notes     *string `json:"notes,omitempty"`
}

// CreateOrderRequest is the payload for placing a new order.
type CreateOrderRequest struct {
	VendorID        uuid.UUID        `json:"vendor_id" validate:"required"`
	DeliveryAddress string           `json:"delivery_address" validate:"required"`
	Notes           *string          `json:"notes,omitempty"`
	Items           []OrderItemInput `json:"items" validate:"required,min=1,dive"`
}

// UpdateStatusRequest moves an order along its lifecycle.
type UpdateStatusRequest struct {
	Status enums.OrderStatus `json:"status" validate:"required"`
}

// AssignDriverRequest attaches a driver to an order (admin only).
type AssignDriverRequest struct {
	DriverID uuid.UUID `json:"driver_id" validate:"required"`
}

// OrderItemDTO is the transport shape of a line item.
type OrderItemDTO struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Qty       int             `json:"qty"`
	Total     decimal.Decimal `json:"total"`
	Notes     *string         `json:"notes,omitempty"`
}

// OrderDTO is the transport shape of an order. Handoff codes are deliberately
// absent; they are only returned by the code issuing endpoints.
type OrderDTO struct {
	ID               uuid.UUID         `json:"id"`
	Number           int64             `json:"number"`
	CustomerID       uuid.UUID         `json:"customer_id"`
	VendorID         uuid.UUID         `json:"vendor_id"`
	DriverID         *uuid.UUID        `json:"driver_id,omitempty"`
	Status           enums.OrderStatus `json:"status"`
	Total            decimal.Decimal   `json:"total"`
	Currency         string            `json:"currency"`
	DeliveryAddress  string            `json:"delivery_address"`
	Notes            *string           `json:"notes,omitempty"`
	Items            []OrderItemDTO    `json:"items,omitempty"`
	ConfirmedAt      *time.Time        `json:"confirmed_at,omitempty"`
	ReadyAt          *time.Time        `json:"ready_at,omitempty"`
	PickedUpAt       *time.Time        `json:"picked_up_at,omitempty"`
	InTransitAt      *time.Time        `json:"in_transit_at,omitempty"`
	OutForDeliveryAt *time.Time        `json:"out_for_delivery_at,omitempty"`
	DeliveredAt      *time.Time        `json:"delivered_at,omitempty"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	CancelledAt      *time.Time        `json:"cancelled_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// ListResult wraps returned orders and the cursor for the next page.
type ListResult struct {
	Items  []OrderDTO `json:"items"`
	Cursor string     `json:"cursor"`
}

// FromModel maps the persisted order onto its transport shape.
func FromModel(o *models.Order) *OrderDTO {
	if o == nil {
		return nil
	}

	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemDTO{
			ID:        item.ID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Qty:       item.Qty,
			Total:     item.Total,
			Notes:     item.Notes,
		})
	}

	return &OrderDTO{
		ID:               o.ID,
		Number:           o.Number,
		CustomerID:       o.CustomerID,
		VendorID:         o.VendorID,
		DriverID:         o.DriverID,
		Status:           o.Status,
		Total:            o.Total,
		Currency:         o.Currency,
		DeliveryAddress:  o.DeliveryAddress,
		Notes:            o.Notes,
		Items:            items,
		ConfirmedAt:      o.ConfirmedAt,
		ReadyAt:          o.ReadyAt,
		PickedUpAt:       o.PickedUpAt,
		InTransitAt:      o.InTransitAt,
		OutForDeliveryAt: o.OutForDeliveryAt,
		DeliveredAt:      o.DeliveredAt,
		CompletedAt:      o.CompletedAt,
		CancelledAt:      o.CancelledAt,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}
