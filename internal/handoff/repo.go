package handoff

import (
	"context"
	"time"

	"github.com/bawabati/bawabati-backend/pkg/db/models"
	"github.com/bawabati/bawabati-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IssuedCode is the stored challenge for one handoff phase.
type IssuedCode struct {
	OTP       string
	Nonce     string
	ExpiresAt time.Time
}

// Repository persists handoff codes and audit records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// SetCode stores a fresh OTP/nonce/expiry triple for the phase while the
	// order still sits in one of the phase's predecessor statuses. Returns
	// false when the status guard rejects the write.
	SetCode(ctx context.Context, orderID uuid.UUID, phase enums.HandoffPhase, code IssuedCode) (bool, error)
	CreateAudit(ctx context.Context, record *models.OrderHandoff) error
	ListAudits(ctx context.Context, orderID uuid.UUID) ([]models.OrderHandoff, error)
	// ClearExpiredCodes blanks the phase's code columns whose expiry has
	// passed and returns how many orders were touched.
	ClearExpiredCodes(ctx context.Context, phase enums.HandoffPhase, now time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a handoff repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// codeColumns returns the order columns backing the phase's challenge.
func codeColumns(phase enums.HandoffPhase) (otp, nonce, expires string) {
	if phase == enums.HandoffPhasePickup {
		return "pickup_otp", "pickup_code_nonce", "pickup_code_expires_at"
	}
	return "delivery_otp", "delivery_code_nonce", "delivery_code_expires_at"
}

func (r *repository) SetCode(ctx context.Context, orderID uuid.UUID, phase enums.HandoffPhase, code IssuedCode) (bool, error) {
	otpCol, nonceCol, expiresCol := codeColumns(phase)
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", orderID, phase.PredecessorStatuses()).
		Updates(map[string]any{
			otpCol:     code.OTP,
			nonceCol:   code.Nonce,
			expiresCol: code.ExpiresAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) CreateAudit(ctx context.Context, record *models.OrderHandoff) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) ListAudits(ctx context.Context, orderID uuid.UUID) ([]models.OrderHandoff, error) {
	var records []models.OrderHandoff
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("completed_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) ClearExpiredCodes(ctx context.Context, phase enums.HandoffPhase, now time.Time) (int64, error) {
	otpCol, nonceCol, expiresCol := codeColumns(phase)
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where(expiresCol+" IS NOT NULL AND "+expiresCol+" < ?", now).
		Updates(map[string]any{
			otpCol:     nil,
			nonceCol:   nil,
			expiresCol: nil,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
