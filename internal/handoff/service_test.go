package handoff

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/bawabati/bawabati-backend/internal/loyalty"
	"github.com/bawabati/bawabati-backend/internal/notifications"
	"github.com/bawabati/bawabati-backend/internal/orders"
	"github.com/bawabati/bawabati-backend/pkg/config"
	"github.com/bawabati/bawabati-backend/pkg/db/models"
	"github.com/bawabati/bawabati-backend/pkg/enums"
	pkgerrors "github.com/bawabati/bawabati-backend/pkg/errors"
	"github.com/bawabati/bawabati-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

// world is the shared in-memory state behind the fake repositories.
type world struct {
	orders map[uuid.UUID]*models.Order
	audits []models.OrderHandoff
}

type fakeOrdersRepo struct{ w *world }

func (f *fakeOrdersRepo) WithTx(tx *gorm.DB) orders.Repository { return f }

func (f *fakeOrdersRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	f.w.orders[order.ID] = order
	return order, nil
}

func (f *fakeOrdersRepo) CreateItems(ctx context.Context, items []models.OrderItem) error {
	return nil
}

func (f *fakeOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := f.w.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	return &copied, nil
}

func (f *fakeOrdersRepo) List(ctx context.Context, filters orders.ListFilters, params pagination.Params) ([]models.Order, *pagination.Cursor, error) {
	return nil, nil, nil
}

func (f *fakeOrdersRepo) UpdateGuarded(ctx context.Context, orderID uuid.UUID, from []enums.OrderStatus, updates map[string]any) (bool, error) {
	order, ok := f.w.orders[orderID]
	if !ok {
		return false, nil
	}
	matched := false
	for _, status := range from {
		if order.Status == status {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	for column, value := range updates {
		switch column {
		case "status":
			order.Status = value.(enums.OrderStatus)
		case "picked_up_at":
			t := value.(time.Time)
			order.PickedUpAt = &t
		case "delivered_at":
			t := value.(time.Time)
			order.DeliveredAt = &t
		case "pickup_otp":
			order.PickupOTP = nil
		case "pickup_code_nonce":
			order.PickupCodeNonce = nil
		case "pickup_code_expires_at":
			order.PickupCodeExpiresAt = nil
		case "delivery_otp":
			order.DeliveryOTP = nil
		case "delivery_code_nonce":
			order.DeliveryCodeNonce = nil
		case "delivery_code_expires_at":
			order.DeliveryCodeExpiresAt = nil
		}
	}
	return true, nil
}

func (f *fakeOrdersRepo) ClaimUnassigned(ctx context.Context, orderID, driverID uuid.UUID) (bool, error) {
	return false, nil
}

type fakeHandoffRepo struct{ w *world }

func (f *fakeHandoffRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeHandoffRepo) SetCode(ctx context.Context, orderID uuid.UUID, phase enums.HandoffPhase, code IssuedCode) (bool, error) {
	order, ok := f.w.orders[orderID]
	if !ok {
		return false, nil
	}
	matched := false
	for _, status := range phase.PredecessorStatuses() {
		if order.Status == status {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	otp, nonce, expiresAt := code.OTP, code.Nonce, code.ExpiresAt
	if phase == enums.HandoffPhasePickup {
		order.PickupOTP = &otp
		order.PickupCodeNonce = &nonce
		order.PickupCodeExpiresAt = &expiresAt
	} else {
		order.DeliveryOTP = &otp
		order.DeliveryCodeNonce = &nonce
		order.DeliveryCodeExpiresAt = &expiresAt
	}
	return true, nil
}

func (f *fakeHandoffRepo) CreateAudit(ctx context.Context, record *models.OrderHandoff) error {
	f.w.audits = append(f.w.audits, *record)
	return nil
}

func (f *fakeHandoffRepo) ListAudits(ctx context.Context, orderID uuid.UUID) ([]models.OrderHandoff, error) {
	var out []models.OrderHandoff
	for _, record := range f.w.audits {
		if record.OrderID == orderID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (f *fakeHandoffRepo) ClearExpiredCodes(ctx context.Context, phase enums.HandoffPhase, now time.Time) (int64, error) {
	return 0, nil
}

type fakeLoyalty struct {
	earnPoints  int64
	earnedFor   []uuid.UUID
	payout      *loyalty.ReferralPayout
	payoutCalls int
}

func (f *fakeLoyalty) Summary(ctx context.Context, userID uuid.UUID) (*loyalty.Summary, error) {
	return &loyalty.Summary{}, nil
}

func (f *fakeLoyalty) ListTransactions(ctx context.Context, params loyalty.ListParams) (*loyalty.ListResult, error) {
	return &loyalty.ListResult{}, nil
}

func (f *fakeLoyalty) ListReferrals(ctx context.Context, referrerID uuid.UUID) ([]models.Referral, error) {
	return nil, nil
}

func (f *fakeLoyalty) Redeem(ctx context.Context, userID uuid.UUID, req loyalty.RedeemRequest) (*loyalty.Summary, error) {
	return &loyalty.Summary{}, nil
}

func (f *fakeLoyalty) EarnForOrderTx(ctx context.Context, tx *gorm.DB, order *models.Order) (int64, error) {
	f.earnedFor = append(f.earnedFor, order.ID)
	return f.earnPoints, nil
}

func (f *fakeLoyalty) CompleteReferralTx(ctx context.Context, tx *gorm.DB, referredID uuid.UUID) (*loyalty.ReferralPayout, error) {
	f.payoutCalls++
	payout := f.payout
	f.payout = nil
	return payout, nil
}

func (f *fakeLoyalty) AwardTx(ctx context.Context, tx *gorm.DB, input loyalty.AwardInput) error {
	return nil
}

type fakeNotifier struct {
	sent []notifications.NotifyInput
}

func (f *fakeNotifier) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{}, nil
}

func (f *fakeNotifier) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return nil
}

func (f *fakeNotifier) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeNotifier) NotifyTx(ctx context.Context, tx *gorm.DB, input notifications.NotifyInput) error {
	f.sent = append(f.sent, input)
	return nil
}

func (f *fakeNotifier) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeNotifier) countType(t enums.NotificationType) int {
	count := 0
	for _, input := range f.sent {
		if input.Type == t {
			count++
		}
	}
	return count
}

type fixture struct {
	svc      Service
	world    *world
	loyalty  *fakeLoyalty
	notifier *fakeNotifier
	cfg      config.HandoffConfig
}

func newFixture(t *testing.T, seed ...*models.Order) *fixture {
	t.Helper()
	w := &world{orders: map[uuid.UUID]*models.Order{}}
	for _, order := range seed {
		w.orders[order.ID] = order
	}
	fl := &fakeLoyalty{earnPoints: 45}
	fn := &fakeNotifier{}
	cfg := config.HandoffConfig{
		CodeTTL:     24 * time.Hour,
		TokenSecret: "test-handoff-secret",
		TokenIssuer: "bawabati-handoff",
	}
	svc, err := NewService(ServiceParams{
		TxRunner:      stubTxRunner{},
		Repo:          &fakeHandoffRepo{w: w},
		Orders:        &fakeOrdersRepo{w: w},
		Loyalty:       fl,
		Notifications: fn,
		Config:        cfg,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &fixture{svc: svc, world: w, loyalty: fl, notifier: fn, cfg: cfg}
}

func readyOrder() *models.Order {
	driverID := uuid.New()
	return &models.Order{
		ID:         uuid.New(),
		Number:     1042,
		CustomerID: uuid.New(),
		VendorID:   uuid.New(),
		DriverID:   &driverID,
		Status:     enums.OrderStatusReady,
		Total:      decimal.RequireFromString("45.50"),
	}
}

func transitOrder() *models.Order {
	order := readyOrder()
	order.Status = enums.OrderStatusInTransit
	return order
}

func vendorActor(order *models.Order) orders.Actor {
	return orders.Actor{ID: order.VendorID, Role: enums.UserRoleVendor}
}

func driverActor(order *models.Order) orders.Actor {
	return orders.Actor{ID: *order.DriverID, Role: enums.UserRoleDriver}
}

func customerActor(order *models.Order) orders.Actor {
	return orders.Actor{ID: order.CustomerID, Role: enums.UserRoleCustomer}
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error with code %s, got %v", code, err)
	}
	if typed.Code() != code {
		t.Fatalf("expected code %s, got %s", code, typed.Code())
	}
}

var otpPattern = regexp.MustCompile(`^\d{6}$`)

func TestIssuePickupCodes(t *testing.T) {
	order := readyOrder()
	fx := newFixture(t, order)

	issued, err := fx.svc.IssueCodes(context.Background(), vendorActor(order), order.ID, enums.HandoffPhasePickup)
	if err != nil {
		t.Fatalf("IssueCodes: %v", err)
	}
	if !otpPattern.MatchString(issued.OTP) {
		t.Fatalf("expected six digit OTP, got %q", issued.OTP)
	}
	if issued.QRToken == "" {
		t.Fatal("expected QR token")
	}

	claims, err := parseQRToken(fx.cfg, issued.QRToken)
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if claims.OrderID != order.ID || claims.Phase != enums.HandoffPhasePickup {
		t.Fatalf("token bound to wrong order/phase: %+v", claims)
	}
	if order.PickupCodeNonce == nil || claims.Nonce != *order.PickupCodeNonce {
		t.Fatal("token nonce does not match stored nonce")
	}
	if fx.notifier.countType(enums.NotificationHandoffCode) != 1 {
		t.Fatalf("expected code issued notification, got %+v", fx.notifier.sent)
	}
}

func TestIssueCodesAuthorization(t *testing.T) {
	order := readyOrder()
	fx := newFixture(t, order)
	ctx := context.Background()

	_, err := fx.svc.IssueCodes(ctx, orders.Actor{ID: uuid.New(), Role: enums.UserRoleVendor}, order.ID, enums.HandoffPhasePickup)
	requireCode(t, err, pkgerrors.CodeForbidden)

	// The driver issues delivery codes, not pickup codes.
	_, err = fx.svc.IssueCodes(ctx, driverActor(order), order.ID, enums.HandoffPhasePickup)
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = fx.svc.IssueCodes(ctx, vendorActor(order), order.ID, enums.HandoffPhaseDelivery)
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestIssueCodesWrongStatus(t *testing.T) {
	order := readyOrder()
	order.Status = enums.OrderStatusPending
	fx := newFixture(t, order)

	_, err := fx.svc.IssueCodes(context.Background(), vendorActor(order), order.ID, enums.HandoffPhasePickup)
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestVerifyPickupWithOTP(t *testing.T) {
	order := readyOrder()
	fx := newFixture(t, order)
	ctx := context.Background()

	issued, err := fx.svc.IssueCodes(ctx, vendorActor(order), order.ID, enums.HandoffPhasePickup)
	if err != nil {
		t.Fatalf("IssueCodes: %v", err)
	}

	result, err := fx.svc.Verify(ctx, driverActor(order), VerifyRequest{
		OrderID: order.ID,
		Phase:   enums.HandoffPhasePickup,
		OTP:     issued.OTP,
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !result.Verified {
		t.Fatalf("expected success, got %q", result.Message)
	}
	if result.Method != enums.HandoffMethodOTP {
		t.Fatalf("expected otp method, got %s", result.Method)
	}
	if result.Order.Status != enums.OrderStatusPickedUp {
		t.Fatalf("expected picked_up, got %s", result.Order.Status)
	}
	if order.PickupOTP != nil || order.PickupCodeNonce != nil || order.PickupCodeExpiresAt != nil {
		t.Fatal("expected pickup code columns cleared")
	}
	if len(fx.world.audits) != 1 {
		t.Fatalf("expected one audit row, got %d", len(fx.world.audits))
	}
	audit := fx.world.audits[0]
	if audit.Phase != enums.HandoffPhasePickup || audit.FromUserID != order.VendorID || audit.ToUserID != *order.DriverID {
		t.Fatalf("unexpected audit row: %+v", audit)
	}
	if len(fx.loyalty.earnedFor) != 0 {
		t.Fatal("pickup must not award loyalty points")
	}
}

func TestVerifyRejectsWrongOTP(t *testing.T) {
	order := readyOrder()
	fx := newFixture(t, order)
	ctx := context.Background()

	if _, err := fx.svc.IssueCodes(ctx, vendorActor(order), order.ID, enums.HandoffPhasePickup); err != nil {
		t.Fatalf("IssueCodes: %v", err)
	}

	result, err := fx.svc.Verify(ctx, driverActor(order), VerifyRequest{
		OrderID: order.ID,
		Phase:   enums.HandoffPhasePickup,
		OTP:     "000000",
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Verified {
		t.Fatal("expected failure for wrong OTP")
	}
	if order.Status != enums.OrderStatusReady {
		t.Fatalf("order must not advance, got %s", order.Status)
	}
}

func TestVerifyExpiredCode(t *testing.T) {
	order := readyOrder()
	otp := "123456"
	nonce := "stale"
	expired := time.Now().UTC().Add(-time.Minute)
	order.PickupOTP = &otp
	order.PickupCodeNonce = &nonce
	order.PickupCodeExpiresAt = &expired
	fx := newFixture(t, order)

	result, err := fx.svc.Verify(context.Background(), driverActor(order), VerifyRequest{
		OrderID: order.ID,
		Phase:   enums.HandoffPhasePickup,
		OTP:     otp,
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Verified {
		t.Fatal("expired code must not verify even when it matches")
	}
}

func TestRegenerationInvalidatesPreviousPair(t *testing.T) {
	order := readyOrder()
	fx := newFixture(t, order)
	ctx := context.Background()

	first, err := fx.svc.IssueCodes(ctx, vendorActor(order), order.ID, enums.HandoffPhasePickup)
	if err != nil {
		t.Fatalf("first issue: %v", err)
	}
	second, err := fx.svc.IssueCodes(ctx, vendorActor(order), order.ID, enums.HandoffPhasePickup)
	if err != nil {
		t.Fatalf("second issue: %v", err)
	}

	result, err := fx.svc.Verify(ctx, driverActor(order), VerifyRequest{
		OrderID: order.ID, Phase: enums.HandoffPhasePickup, OTP: first.OTP,
	})
	if err != nil {
		t.Fatalf("Verify old otp: %v", err)
	}
	if result.Verified && first.OTP != second.OTP {
		t.Fatal("old OTP must stop working after regeneration")
	}

	result, err = fx.svc.Verify(ctx, driverActor(order), VerifyRequest{
		OrderID: order.ID, Phase: enums.HandoffPhasePickup, QRToken: first.QRToken,
	})
	if err != nil {
		t.Fatalf("Verify old token: %v", err)
	}
	if result.Verified {
		t.Fatal("old QR token must stop working after regeneration")
	}

	result, err = fx.svc.Verify(ctx, driverActor(order), VerifyRequest{
		OrderID: order.ID, Phase: enums.HandoffPhasePickup, OTP: second.OTP,
	})
	if err != nil {
		t.Fatalf("Verify new otp: %v", err)
	}
	if !result.Verified {
		t.Fatalf("fresh OTP must verify, got %q", result.Message)
	}
}

func TestVerifyPickupWithQR(t *testing.T) {
	order := readyOrder()
	fx := newFixture(t, order)
	ctx := context.Background()

	issued, err := fx.svc.IssueCodes(ctx, vendorActor(order), order.ID, enums.HandoffPhasePickup)
	if err != nil {
		t.Fatalf("IssueCodes: %v", err)
	}

	result, err := fx.svc.Verify(ctx, driverActor(order), VerifyRequest{
		OrderID: order.ID,
		Phase:   enums.HandoffPhasePickup,
		QRToken: issued.QRToken,
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !result.Verified || result.Method != enums.HandoffMethodQR {
		t.Fatalf("expected qr success, got %+v", result)
	}
}

func TestVerifyRejectsGarbageQR(t *testing.T) {
	order := readyOrder()
	fx := newFixture(t, order)
	ctx := context.Background()

	if _, err := fx.svc.IssueCodes(ctx, vendorActor(order), order.ID, enums.HandoffPhasePickup); err != nil {
		t.Fatalf("IssueCodes: %v", err)
	}

	result, err := fx.svc.Verify(ctx, driverActor(order), VerifyRequest{
		OrderID: order.ID,
		Phase:   enums.HandoffPhasePickup,
		QRToken: "not-a-jwt",
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Verified {
		t.Fatal("expected failure for unreadable token")
	}
	if result.Message != "QR code could not be read" {
		t.Fatalf("unexpected message %q", result.Message)
	}
}

func TestVerifyRejectsCrossOrderQR(t *testing.T) {
	order := readyOrder()
	other := readyOrder()
	fx := newFixture(t, order, other)
	ctx := context.Background()

	issued, err := fx.svc.IssueCodes(ctx, vendorActor(other), other.ID, enums.HandoffPhasePickup)
	if err != nil {
		t.Fatalf("IssueCodes: %v", err)
	}
	if _, err := fx.svc.IssueCodes(ctx, vendorActor(order), order.ID, enums.HandoffPhasePickup); err != nil {
		t.Fatalf("IssueCodes: %v", err)
	}

	// A valid token for a different order must not open this one.
	result, err := fx.svc.Verify(ctx, driverActor(order), VerifyRequest{
		OrderID: order.ID,
		Phase:   enums.HandoffPhasePickup,
		QRToken: issued.QRToken,
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Verified {
		t.Fatal("cross-order token must not verify")
	}
}

func TestVerifyIsNotRepeatable(t *testing.T) {
	order := readyOrder()
	fx := newFixture(t, order)
	ctx := context.Background()

	issued, err := fx.svc.IssueCodes(ctx, vendorActor(order), order.ID, enums.HandoffPhasePickup)
	if err != nil {
		t.Fatalf("IssueCodes: %v", err)
	}
	first, err := fx.svc.Verify(ctx, driverActor(order), VerifyRequest{
		OrderID: order.ID, Phase: enums.HandoffPhasePickup, OTP: issued.OTP,
	})
	if err != nil || !first.Verified {
		t.Fatalf("first verify should succeed: %v %+v", err, first)
	}

	second, err := fx.svc.Verify(ctx, driverActor(order), VerifyRequest{
		OrderID: order.ID, Phase: enums.HandoffPhasePickup, OTP: issued.OTP,
	})
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if second.Verified {
		t.Fatal("a consumed code must not verify again")
	}
	if len(fx.world.audits) != 1 {
		t.Fatalf("expected a single audit row, got %d", len(fx.world.audits))
	}
}

func TestVerifyAuthorization(t *testing.T) {
	order := readyOrder()
	fx := newFixture(t, order)
	ctx := context.Background()
	req := VerifyRequest{OrderID: order.ID, Phase: enums.HandoffPhasePickup, OTP: "123456"}

	// Only the assigned driver confirms pickup.
	_, err := fx.svc.Verify(ctx, customerActor(order), req)
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = fx.svc.Verify(ctx, orders.Actor{ID: uuid.New(), Role: enums.UserRoleDriver}, req)
	requireCode(t, err, pkgerrors.CodeForbidden)

	// Only the customer confirms delivery.
	transit := transitOrder()
	fx = newFixture(t, transit)
	_, err = fx.svc.Verify(ctx, driverActor(transit), VerifyRequest{
		OrderID: transit.ID, Phase: enums.HandoffPhaseDelivery, OTP: "123456",
	})
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestVerifyRequiresExactlyOneProof(t *testing.T) {
	order := readyOrder()
	fx := newFixture(t, order)
	ctx := context.Background()

	_, err := fx.svc.Verify(ctx, driverActor(order), VerifyRequest{
		OrderID: order.ID, Phase: enums.HandoffPhasePickup,
	})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = fx.svc.Verify(ctx, driverActor(order), VerifyRequest{
		OrderID: order.ID, Phase: enums.HandoffPhasePickup, OTP: "123456", QRToken: "token",
	})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestDeliveryVerifyPaysOutLoyaltyAndReferral(t *testing.T) {
	order := transitOrder()
	fx := newFixture(t, order)
	fx.loyalty.payout = &loyalty.ReferralPayout{
		ReferrerID: uuid.New(),
		ReferredID: order.CustomerID,
		Bonus:      50,
	}
	ctx := context.Background()

	issued, err := fx.svc.IssueCodes(ctx, driverActor(order), order.ID, enums.HandoffPhaseDelivery)
	if err != nil {
		t.Fatalf("IssueCodes: %v", err)
	}

	result, err := fx.svc.Verify(ctx, customerActor(order), VerifyRequest{
		OrderID: order.ID,
		Phase:   enums.HandoffPhaseDelivery,
		OTP:     issued.OTP,
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !result.Verified {
		t.Fatalf("expected success, got %q", result.Message)
	}
	if result.Order.Status != enums.OrderStatusDelivered {
		t.Fatalf("expected delivered, got %s", result.Order.Status)
	}
	if result.PointsEarned != 45 {
		t.Fatalf("expected 45 points earned, got %d", result.PointsEarned)
	}
	if len(fx.loyalty.earnedFor) != 1 || fx.loyalty.earnedFor[0] != order.ID {
		t.Fatalf("expected loyalty earn for order, got %+v", fx.loyalty.earnedFor)
	}
	if fx.loyalty.payoutCalls != 1 {
		t.Fatalf("expected referral completion attempt, got %d", fx.loyalty.payoutCalls)
	}
	if fx.notifier.countType(enums.NotificationLoyaltyPoints) != 1 {
		t.Fatal("expected loyalty points notification")
	}
	if fx.notifier.countType(enums.NotificationReferral) != 2 {
		t.Fatal("expected referral notifications for both sides")
	}
}

func TestManualCompleteAdminOnly(t *testing.T) {
	order := transitOrder()
	fx := newFixture(t, order)
	ctx := context.Background()

	_, err := fx.svc.ManualComplete(ctx, driverActor(order), order.ID, enums.HandoffPhaseDelivery)
	requireCode(t, err, pkgerrors.CodeForbidden)

	result, err := fx.svc.ManualComplete(ctx, orders.Actor{ID: uuid.New(), Role: enums.UserRoleAdmin}, order.ID, enums.HandoffPhaseDelivery)
	if err != nil {
		t.Fatalf("ManualComplete: %v", err)
	}
	if !result.Verified || result.Method != enums.HandoffMethodManual {
		t.Fatalf("expected manual success, got %+v", result)
	}
	if result.Order.Status != enums.OrderStatusDelivered {
		t.Fatalf("expected delivered, got %s", result.Order.Status)
	}
	if len(fx.loyalty.earnedFor) != 1 {
		t.Fatal("manual delivery must still award loyalty points")
	}
}

func TestManualCompleteRequiresDriver(t *testing.T) {
	order := readyOrder()
	order.DriverID = nil
	fx := newFixture(t, order)

	_, err := fx.svc.ManualComplete(context.Background(), orders.Actor{ID: uuid.New(), Role: enums.UserRoleAdmin}, order.ID, enums.HandoffPhasePickup)
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestHistoryRestrictedToParties(t *testing.T) {
	order := readyOrder()
	fx := newFixture(t, order)
	ctx := context.Background()

	issued, err := fx.svc.IssueCodes(ctx, vendorActor(order), order.ID, enums.HandoffPhasePickup)
	if err != nil {
		t.Fatalf("IssueCodes: %v", err)
	}
	if _, err := fx.svc.Verify(ctx, driverActor(order), VerifyRequest{
		OrderID: order.ID, Phase: enums.HandoffPhasePickup, OTP: issued.OTP,
	}); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	records, err := fx.svc.History(ctx, customerActor(order), order.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}

	_, err = fx.svc.History(ctx, orders.Actor{ID: uuid.New(), Role: enums.UserRoleCustomer}, order.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)
}
