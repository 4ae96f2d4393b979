package loyalty

import (
	"context"
	"time"

	"github.com/bawabati/bawabati-backend/pkg/db/models"
	"github.com/bawabati/bawabati-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateReferralDTO holds the data for a new pending referral.
type CreateReferralDTO struct {
	ReferrerID  uuid.UUID
	ReferredID  uuid.UUID
	BonusPoints int64
}

// ReferralRepository exposes persistence for referral records.
type ReferralRepository struct {
	db *gorm.DB
}

// NewReferralRepository constructs a referral repo bound to the provided GORM DB.
func NewReferralRepository(db *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// WithTx rebinds the repo to the provided transaction.
func (r *ReferralRepository) WithTx(tx *gorm.DB) *ReferralRepository {
	if tx == nil {
		return r
	}
	return &ReferralRepository{db: tx}
}

// Create inserts a pending referral.
func (r *ReferralRepository) Create(ctx context.Context, dto CreateReferralDTO) error {
	referral := &models.Referral{
		ReferrerID:  dto.ReferrerID,
		ReferredID:  dto.ReferredID,
		Status:      enums.ReferralStatusPending,
		BonusPoints: dto.BonusPoints,
	}
	return r.db.WithContext(ctx).Create(referral).Error
}

// FindPendingByReferred loads the pending referral for the given referred user.
func (r *ReferralRepository) FindPendingByReferred(ctx context.Context, referredID uuid.UUID) (*models.Referral, error) {
	var referral models.Referral
	err := r.db.WithContext(ctx).
		Where("referred_id = ? AND status = ?", referredID, enums.ReferralStatusPending).
		First(&referral).Error
	if err != nil {
		return nil, err
	}
	return &referral, nil
}

// ListByReferrer returns all referrals created from the user's code.
func (r *ReferralRepository) ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]models.Referral, error) {
	var referrals []models.Referral
	err := r.db.WithContext(ctx).
		Where("referrer_id = ?", referrerID).
		Order("created_at DESC").
		Find(&referrals).Error
	if err != nil {
		return nil, err
	}
	return referrals, nil
}

// Complete flips a pending referral to completed. The status guard makes the
// payout idempotent under concurrent delivery confirmations.
func (r *ReferralRepository) Complete(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Referral{}).
		Where("id = ? AND status = ?", id, enums.ReferralStatusPending).
		Updates(map[string]any{
			"status":       enums.ReferralStatusCompleted,
			"completed_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
