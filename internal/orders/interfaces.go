package orders

import (
	"context"

	"github.com/bawabati/bawabati-backend/pkg/db/models"
	"github.com/bawabati/bawabati-backend/pkg/enums"
	"github.com/bawabati/bawabati-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateItems(ctx context.Context, items []models.OrderItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Order, *pagination.Cursor, error)
	UpdateGuarded(ctx context.Context, orderID uuid.UUID, from []enums.OrderStatus, updates map[string]any) (bool, error)
	ClaimUnassigned(ctx context.Context, orderID, driverID uuid.UUID) (bool, error)
}

// ListFilters scopes the order list query to one party and optional status.
type ListFilters struct {
	CustomerID *uuid.UUID
	VendorID   *uuid.UUID
	DriverID   *uuid.UUID
	Status     *enums.OrderStatus
}
