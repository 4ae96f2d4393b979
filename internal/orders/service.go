package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bawabati/bawabati-backend/internal/notifications"
	"github.com/bawabati/bawabati-backend/pkg/db/models"
	"github.com/bawabati/bawabati-backend/pkg/enums"
	pkgerrors "github.com/bawabati/bawabati-backend/pkg/errors"
	"github.com/bawabati/bawabati-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TxRunner abstracts the transactional boundary so tests can run without a database.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines order lifecycle operations.
type Service interface {
	Create(ctx context.Context, customerID uuid.UUID, req CreateOrderRequest) (*OrderDTO, error)
	Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error)
	List(ctx context.Context, actor Actor, status *enums.OrderStatus, params pagination.Params) (*ListResult, error)
	UpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, next enums.OrderStatus) (*OrderDTO, error)
	AssignDriver(ctx context.Context, actor Actor, orderID, driverID uuid.UUID) (*OrderDTO, error)
	ClaimOrder(ctx context.Context, driverID, orderID uuid.UUID) (*OrderDTO, error)
}

// ServiceParams bundles the dependencies required to build an orders service.
type ServiceParams struct {
	TxRunner      TxRunner
	Repo          Repository
	Notifications notifications.Service
}

type service struct {
	tx       TxRunner
	repo     Repository
	notifier notifications.Service
}

// NewService wires orders dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.TxRunner == nil {
		return nil, fmt.Errorf("tx runner is required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository is required")
	}
	if params.Notifications == nil {
		return nil, fmt.Errorf("notifications service is required")
	}
	return &service{
		tx:       params.TxRunner,
		repo:     params.Repo,
		notifier: params.Notifications,
	}, nil
}

// statusTimestampColumns maps each transition target to the column stamped on entry.
var statusTimestampColumns = map[enums.OrderStatus]string{
	enums.OrderStatusConfirmed:      "confirmed_at",
	enums.OrderStatusReady:          "ready_at",
	enums.OrderStatusPickedUp:       "picked_up_at",
	enums.OrderStatusInTransit:      "in_transit_at",
	enums.OrderStatusOutForDelivery: "out_for_delivery_at",
	enums.OrderStatusDelivered:      "delivered_at",
	enums.OrderStatusCompleted:      "completed_at",
	enums.OrderStatusCancelled:      "cancelled_at",
}

// roleTransitions lists which lifecycle targets each role may set directly.
// picked_up and delivered are intentionally absent: those edges only happen
// through handoff verification or an admin-recorded manual handoff.
var roleTransitions = map[enums.UserRole]map[enums.OrderStatus]bool{
	enums.UserRoleVendor: {
		enums.OrderStatusConfirmed: true,
		enums.OrderStatusPreparing: true,
		enums.OrderStatusReady:     true,
		enums.OrderStatusCancelled: true,
	},
	enums.UserRoleDriver: {
		enums.OrderStatusInTransit:      true,
		enums.OrderStatusOutForDelivery: true,
	},
	enums.UserRoleCustomer: {
		enums.OrderStatusCompleted: true,
		enums.OrderStatusCancelled: true,
	},
	enums.UserRoleAdmin: {
		enums.OrderStatusConfirmed:      true,
		enums.OrderStatusPreparing:      true,
		enums.OrderStatusReady:          true,
		enums.OrderStatusInTransit:      true,
		enums.OrderStatusOutForDelivery: true,
		enums.OrderStatusCompleted:      true,
		enums.OrderStatusCancelled:      true,
	},
}

// customerCancellable is the window in which customers may still back out.
var customerCancellable = map[enums.OrderStatus]bool{
	enums.OrderStatusPending:   true,
	enums.OrderStatusConfirmed: true,
}

func (s *service) Create(ctx context.Context, customerID uuid.UUID, req CreateOrderRequest) (*OrderDTO, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if req.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	if req.DeliveryAddress == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
	}
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item required")
	}

	total := decimal.Zero
	items := make([]models.OrderItem, 0, len(req.Items))
	for _, input := range req.Items {
		if input.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item qty must be positive")
		}
		unitPrice, err := decimal.NewFromString(input.UnitPrice)
		if err != nil || unitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid unit price for %q", input.Name))
		}
		lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(input.Qty)))
		items = append(items, models.OrderItem{
			Name:      input.Name,
			UnitPrice: unitPrice,
			Qty:       input.Qty,
			Total:     lineTotal,
			Notes:     input.Notes,
		})
		total = total.Add(lineTotal)
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.Create(ctx, &models.Order{
			CustomerID:      customerID,
			VendorID:        req.VendorID,
			Status:          enums.OrderStatusPending,
			Total:           total,
			Currency:        "USD",
			DeliveryAddress: req.DeliveryAddress,
			Notes:           req.Notes,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := repo.CreateItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}
		order.Items = items

		if err := s.notifier.NotifyTx(ctx, tx, notifications.NotifyInput{
			UserID:  req.VendorID,
			Type:    enums.NotificationOrderStatus,
			Title:   "New order",
			Message: fmt.Sprintf("Order #%d was placed.", order.Number),
		}); err != nil {
			return err
		}

		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(created), nil
}

func (s *service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actorMayView(actor, order) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this order")
	}
	return FromModel(order), nil
}

func (s *service) List(ctx context.Context, actor Actor, status *enums.OrderStatus, params pagination.Params) (*ListResult, error) {
	filters := ListFilters{Status: status}
	switch actor.Role {
	case enums.UserRoleCustomer:
		filters.CustomerID = &actor.ID
	case enums.UserRoleVendor:
		filters.VendorID = &actor.ID
	case enums.UserRoleDriver:
		filters.DriverID = &actor.ID
	case enums.UserRoleAdmin:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "unknown role")
	}

	rows, next, err := s.repo.List(ctx, filters, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	items := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *FromModel(&rows[i]))
	}
	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: items, Cursor: cursor}, nil
}

func (s *service) UpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, next enums.OrderStatus) (*OrderDTO, error) {
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status")
	}
	if next == enums.OrderStatusPickedUp || next == enums.OrderStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status requires handoff verification")
	}

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeTransition(actor, order, next); err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move order from %s to %s", order.Status, next)).
			WithDetails(map[string]any{"from": order.Status, "to": next})
	}

	now := time.Now().UTC()
	updates := map[string]any{"status": next}
	if column, ok := statusTimestampColumns[next]; ok {
		updates[column] = now
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		updated, err := repo.UpdateGuarded(ctx, orderID, []enums.OrderStatus{order.Status}, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}
		return s.notifier.NotifyTx(ctx, tx, notifications.NotifyInput{
			UserID:  order.CustomerID,
			Type:    enums.NotificationOrderStatus,
			Title:   "Order update",
			Message: fmt.Sprintf("Order #%d is now %s.", order.Number, next),
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, actor, orderID)
}

func (s *service) AssignDriver(ctx context.Context, actor Actor, orderID, driverID uuid.UUID) (*OrderDTO, error) {
	if actor.Role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins assign drivers")
	}
	if driverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver id required")
	}

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	assignable := []enums.OrderStatus{
		enums.OrderStatusConfirmed,
		enums.OrderStatusPreparing,
		enums.OrderStatusReady,
	}
	updated, err := s.repo.UpdateGuarded(ctx, orderID, assignable, map[string]any{"driver_id": driverID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign driver")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order in status %s cannot take a driver", order.Status))
	}
	return s.Get(ctx, actor, orderID)
}

func (s *service) ClaimOrder(ctx context.Context, driverID, orderID uuid.UUID) (*OrderDTO, error) {
	if driverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver id required")
	}

	if _, err := s.loadOrder(ctx, orderID); err != nil {
		return nil, err
	}

	claimed, err := s.repo.ClaimUnassigned(ctx, orderID, driverID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim order")
	}
	if !claimed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not claimable")
	}
	return s.Get(ctx, Actor{ID: driverID, Role: enums.UserRoleDriver}, orderID)
}

func (s *service) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) authorizeTransition(actor Actor, order *models.Order, next enums.OrderStatus) error {
	allowed, ok := roleTransitions[actor.Role]
	if !ok || !allowed[next] {
		return pkgerrors.New(pkgerrors.CodeForbidden, "role cannot set this status")
	}

	switch actor.Role {
	case enums.UserRoleVendor:
		if order.VendorID != actor.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not the vendor for this order")
		}
	case enums.UserRoleDriver:
		if order.DriverID == nil || *order.DriverID != actor.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not the driver for this order")
		}
	case enums.UserRoleCustomer:
		if order.CustomerID != actor.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not the customer for this order")
		}
		if next == enums.OrderStatusCancelled && !customerCancellable[order.Status] {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled by the customer")
		}
	}
	return nil
}

func actorMayView(actor Actor, order *models.Order) bool {
	switch actor.Role {
	case enums.UserRoleAdmin:
		return true
	case enums.UserRoleCustomer:
		return order.CustomerID == actor.ID
	case enums.UserRoleVendor:
		return order.VendorID == actor.ID
	case enums.UserRoleDriver:
		return order.DriverID != nil && *order.DriverID == actor.ID
	default:
		return false
	}
}
