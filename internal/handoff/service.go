package handoff

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/bawabati/bawabati-backend/internal/loyalty"
	"github.com/bawabati/bawabati-backend/internal/notifications"
	"github.com/bawabati/bawabati-backend/internal/orders"
	"github.com/bawabati/bawabati-backend/pkg/config"
	"github.com/bawabati/bawabati-backend/pkg/db/models"
	"github.com/bawabati/bawabati-backend/pkg/enums"
	pkgerrors "github.com/bawabati/bawabati-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TxRunner abstracts the transactional boundary so tests can run without a database.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service covers issuing and verifying handoff codes plus the audit trail.
type Service interface {
	IssueCodes(ctx context.Context, actor orders.Actor, orderID uuid.UUID, phase enums.HandoffPhase) (*IssueResult, error)
	Verify(ctx context.Context, actor orders.Actor, req VerifyRequest) (*VerifyResult, error)
	ManualComplete(ctx context.Context, actor orders.Actor, orderID uuid.UUID, phase enums.HandoffPhase) (*VerifyResult, error)
	History(ctx context.Context, actor orders.Actor, orderID uuid.UUID) ([]models.OrderHandoff, error)
}

// IssueResult carries a freshly issued code pair back to the issuer. This is
// the only place the OTP or QR token ever leaves the service.
type IssueResult struct {
	OTP       string    `json:"otp"`
	QRToken   string    `json:"qr_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VerifyRequest submits one proof for a handoff. Exactly one of OTP or
// QRToken must be set.
type VerifyRequest struct {
	OrderID uuid.UUID          `json:"order_id" validate:"required"`
	Phase   enums.HandoffPhase `json:"phase" validate:"required"`
	OTP     string             `json:"otp,omitempty"`
	QRToken string             `json:"qr_token,omitempty"`
}

// VerifyResult reports the outcome of a verification attempt. A failed check
// is a normal outcome, not an error: Verified is false and Message says why.
type VerifyResult struct {
	Verified     bool                `json:"verified"`
	Message      string              `json:"message,omitempty"`
	Method       enums.HandoffMethod `json:"method,omitempty"`
	Order        *orders.OrderDTO    `json:"order,omitempty"`
	PointsEarned int64               `json:"points_earned,omitempty"`
}

// ServiceParams bundles the dependencies required to build a handoff service.
type ServiceParams struct {
	TxRunner      TxRunner
	Repo          Repository
	Orders        orders.Repository
	Loyalty       loyalty.Service
	Notifications notifications.Service
	Config        config.HandoffConfig
}

type service struct {
	tx       TxRunner
	repo     Repository
	orders   orders.Repository
	loyalty  loyalty.Service
	notifier notifications.Service
	cfg      config.HandoffConfig
}

// NewService wires handoff dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.TxRunner == nil {
		return nil, fmt.Errorf("tx runner is required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("handoff repository is required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository is required")
	}
	if params.Loyalty == nil {
		return nil, fmt.Errorf("loyalty service is required")
	}
	if params.Notifications == nil {
		return nil, fmt.Errorf("notifications service is required")
	}
	if params.Config.TokenSecret == "" {
		return nil, fmt.Errorf("handoff token secret is required")
	}
	if params.Config.CodeTTL <= 0 {
		return nil, fmt.Errorf("handoff code ttl must be positive")
	}
	return &service{
		tx:       params.TxRunner,
		repo:     params.Repo,
		orders:   params.Orders,
		loyalty:  params.Loyalty,
		notifier: params.Notifications,
		cfg:      params.Config,
	}, nil
}

// IssueCodes mints a fresh OTP/QR pair for the phase, replacing whatever pair
// was stored before. Both proofs share one nonce and expiry, so regeneration
// invalidates the previous OTP and every previously issued QR token at once.
func (s *service) IssueCodes(ctx context.Context, actor orders.Actor, orderID uuid.UUID, phase enums.HandoffPhase) (*IssueResult, error) {
	if !phase.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid handoff phase")
	}

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeIssuer(actor, order, phase); err != nil {
		return nil, err
	}
	if !statusInPhase(order.Status, phase) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order in status %s has no %s handoff pending", order.Status, phase))
	}

	otp, err := newOTP()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issue handoff code")
	}
	nonce, err := newNonce()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issue handoff code")
	}

	now := time.Now().UTC()
	expiresAt := now.Add(s.cfg.CodeTTL)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		stored, err := s.repo.WithTx(tx).SetCode(ctx, order.ID, phase, IssuedCode{
			OTP:       otp,
			Nonce:     nonce,
			ExpiresAt: expiresAt,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store handoff code")
		}
		if !stored {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed, code not issued")
		}
		return s.notifyCodeIssued(ctx, tx, order, phase)
	})
	if err != nil {
		return nil, err
	}

	qrToken, err := mintQRToken(s.cfg, order.ID, phase, nonce, now, expiresAt)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint handoff token")
	}

	return &IssueResult{OTP: otp, QRToken: qrToken, ExpiresAt: expiresAt}, nil
}

// Verify checks a submitted proof and, on success, advances the order in the
// same transaction that records the audit row and delivery side effects.
func (s *service) Verify(ctx context.Context, actor orders.Actor, req VerifyRequest) (*VerifyResult, error) {
	if !req.Phase.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid handoff phase")
	}
	if (req.OTP == "") == (req.QRToken == "") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provide exactly one of otp or qr_token")
	}

	order, err := s.loadOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeVerifier(actor, order, req.Phase); err != nil {
		return nil, err
	}
	if !statusInPhase(order.Status, req.Phase) {
		return failed(fmt.Sprintf("order is not awaiting %s confirmation", req.Phase)), nil
	}

	storedOTP, storedNonce, expiresAt := storedCode(order, req.Phase)
	if storedOTP == nil || storedNonce == nil || expiresAt == nil {
		return failed("no active code for this order"), nil
	}
	now := time.Now().UTC()
	if now.After(*expiresAt) {
		return failed("code has expired"), nil
	}

	method := enums.HandoffMethodOTP
	if req.OTP != "" {
		if subtle.ConstantTimeCompare([]byte(req.OTP), []byte(*storedOTP)) != 1 {
			return failed("incorrect code"), nil
		}
	} else {
		method = enums.HandoffMethodQR
		claims, err := parseQRToken(s.cfg, req.QRToken)
		if err != nil {
			return failed("QR code could not be read"), nil
		}
		if claims.OrderID != order.ID || claims.Phase != req.Phase || claims.Nonce != *storedNonce {
			return failed("QR code is not valid for this order"), nil
		}
	}

	return s.completeHandoff(ctx, actor, order, req.Phase, method)
}

// ManualComplete lets an admin record a handoff that was confirmed outside
// the app, e.g. when the counterparty's device is unavailable.
func (s *service) ManualComplete(ctx context.Context, actor orders.Actor, orderID uuid.UUID, phase enums.HandoffPhase) (*VerifyResult, error) {
	if actor.Role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins record manual handoffs")
	}
	if !phase.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid handoff phase")
	}

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.DriverID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no driver assigned")
	}
	if !statusInPhase(order.Status, phase) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order is not awaiting %s confirmation", phase))
	}

	return s.completeHandoff(ctx, actor, order, phase, enums.HandoffMethodManual)
}

func (s *service) History(ctx context.Context, actor orders.Actor, orderID uuid.UUID) ([]models.OrderHandoff, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !partyToOrder(actor, order) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this order")
	}
	records, err := s.repo.ListAudits(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list handoffs")
	}
	return records, nil
}

// completeHandoff performs the guarded transition, writes the audit row, and
// on delivery pays out loyalty and referral credits, all in one transaction.
func (s *service) completeHandoff(ctx context.Context, actor orders.Actor, order *models.Order, phase enums.HandoffPhase, method enums.HandoffMethod) (*VerifyResult, error) {
	if order.DriverID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no driver assigned")
	}

	now := time.Now().UTC()
	otpCol, nonceCol, expiresCol := codeColumns(phase)
	updates := map[string]any{
		"status":   phase.TerminalStatus(),
		otpCol:     nil,
		nonceCol:   nil,
		expiresCol: nil,
	}
	if phase == enums.HandoffPhasePickup {
		updates["picked_up_at"] = now
	} else {
		updates["delivered_at"] = now
	}

	fromUser, toUser := handoffParties(order, phase)

	var pointsEarned int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		updated, err := s.orders.WithTx(tx).UpdateGuarded(ctx, order.ID, phase.PredecessorStatuses(), updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete handoff")
		}
		if !updated {
			return errHandoffRace
		}

		if err := s.repo.WithTx(tx).CreateAudit(ctx, &models.OrderHandoff{
			OrderID:     order.ID,
			Phase:       phase,
			Method:      method,
			FromUserID:  fromUser,
			ToUserID:    toUser,
			CompletedAt: now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record handoff")
		}

		if err := s.notifier.NotifyTx(ctx, tx, notifications.NotifyInput{
			UserID:  order.CustomerID,
			Type:    enums.NotificationOrderStatus,
			Title:   "Order update",
			Message: fmt.Sprintf("Order #%d is now %s.", order.Number, phase.TerminalStatus()),
		}); err != nil {
			return err
		}

		if phase == enums.HandoffPhaseDelivery {
			points, err := s.loyalty.EarnForOrderTx(ctx, tx, order)
			if err != nil {
				return err
			}
			pointsEarned = points
			if points > 0 {
				if err := s.notifier.NotifyTx(ctx, tx, notifications.NotifyInput{
					UserID:  order.CustomerID,
					Type:    enums.NotificationLoyaltyPoints,
					Title:   "Points earned",
					Message: fmt.Sprintf("You earned %d points for order #%d.", points, order.Number),
				}); err != nil {
					return err
				}
			}

			payout, err := s.loyalty.CompleteReferralTx(ctx, tx, order.CustomerID)
			if err != nil {
				return err
			}
			if payout != nil {
				for _, userID := range []uuid.UUID{payout.ReferrerID, payout.ReferredID} {
					if err := s.notifier.NotifyTx(ctx, tx, notifications.NotifyInput{
						UserID:  userID,
						Type:    enums.NotificationReferral,
						Title:   "Referral bonus",
						Message: fmt.Sprintf("You received %d referral bonus points.", payout.Bonus),
					}); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
	if errors.Is(err, errHandoffRace) {
		return failed("order state changed, try again"), nil
	}
	if err != nil {
		return nil, err
	}

	updated, err := s.loadOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{
		Verified:     true,
		Method:       method,
		Order:        orders.FromModel(updated),
		PointsEarned: pointsEarned,
	}, nil
}

var errHandoffRace = errors.New("handoff lost status race")

func (s *service) notifyCodeIssued(ctx context.Context, tx *gorm.DB, order *models.Order, phase enums.HandoffPhase) error {
	var recipient uuid.UUID
	var message string
	if phase == enums.HandoffPhasePickup {
		if order.DriverID == nil {
			return nil
		}
		recipient = *order.DriverID
		message = fmt.Sprintf("A pickup code is ready for order #%d.", order.Number)
	} else {
		recipient = order.CustomerID
		message = fmt.Sprintf("Your driver has a delivery code for order #%d.", order.Number)
	}
	return s.notifier.NotifyTx(ctx, tx, notifications.NotifyInput{
		UserID:  recipient,
		Type:    enums.NotificationHandoffCode,
		Title:   "Handoff code issued",
		Message: message,
	})
}

func (s *service) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// authorizeIssuer enforces who may mint codes: the vendor hands the order to
// the driver, the driver hands it to the customer.
func authorizeIssuer(actor orders.Actor, order *models.Order, phase enums.HandoffPhase) error {
	if actor.Role == enums.UserRoleAdmin {
		return nil
	}
	switch phase {
	case enums.HandoffPhasePickup:
		if actor.Role == enums.UserRoleVendor && order.VendorID == actor.ID {
			return nil
		}
	case enums.HandoffPhaseDelivery:
		if actor.Role == enums.UserRoleDriver && order.DriverID != nil && *order.DriverID == actor.ID {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to issue codes for this handoff")
}

// authorizeVerifier enforces that only the receiving party confirms: the
// assigned driver at pickup, the customer at delivery.
func authorizeVerifier(actor orders.Actor, order *models.Order, phase enums.HandoffPhase) error {
	switch phase {
	case enums.HandoffPhasePickup:
		if actor.Role == enums.UserRoleDriver && order.DriverID != nil && *order.DriverID == actor.ID {
			return nil
		}
	case enums.HandoffPhaseDelivery:
		if actor.Role == enums.UserRoleCustomer && order.CustomerID == actor.ID {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to verify this handoff")
}

func partyToOrder(actor orders.Actor, order *models.Order) bool {
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

func handoffParties(order *models.Order, phase enums.HandoffPhase) (from, to uuid.UUID) {
	if phase == enums.HandoffPhasePickup {
		return order.VendorID, *order.DriverID
	}
	return *order.DriverID, order.CustomerID
}

func statusInPhase(status enums.OrderStatus, phase enums.HandoffPhase) bool {
	for _, candidate := range phase.PredecessorStatuses() {
		if status == candidate {
			return true
		}
	}
	return false
}

func storedCode(order *models.Order, phase enums.HandoffPhase) (otp, nonce *string, expiresAt *time.Time) {
	if phase == enums.HandoffPhasePickup {
		return order.PickupOTP, order.PickupCodeNonce, order.PickupCodeExpiresAt
	}
	return order.DeliveryOTP, order.DeliveryCodeNonce, order.DeliveryCodeExpiresAt
}

func failed(message string) *VerifyResult {
	return &VerifyResult{Verified: false, Message: message}
}
