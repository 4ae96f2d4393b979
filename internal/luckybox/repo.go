package luckybox

import (
	"context"
	"time"

	"github.com/bawabati/bawabati-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists lucky boxes and their wins.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, box *models.LuckyBox) (*models.LuckyBox, error)
	Update(ctx context.Context, box *models.LuckyBox) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.LuckyBox, error)
	ListActive(ctx context.Context, now time.Time) ([]models.LuckyBox, error)
	ListAll(ctx context.Context) ([]models.LuckyBox, error)
	// ClaimSlot bumps current_winners while capacity remains and the box is
	// still active. Returns false when the cap is already reached.
	ClaimSlot(ctx context.Context, boxID uuid.UUID) (bool, error)
	CreateWin(ctx context.Context, win *models.LuckyBoxWin) error
	HasWin(ctx context.Context, boxID, userID uuid.UUID) (bool, error)
	ListWins(ctx context.Context, userID uuid.UUID) ([]models.LuckyBoxWin, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a lucky box repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, box *models.LuckyBox) (*models.LuckyBox, error) {
	if err := r.db.WithContext(ctx).Create(box).Error; err != nil {
		return nil, err
	}
	return box, nil
}

func (r *repository) Update(ctx context.Context, box *models.LuckyBox) error {
	return r.db.WithContext(ctx).
		Model(&models.LuckyBox{}).
		Where("id = ?", box.ID).
		Updates(map[string]any{
			"name":        box.Name,
			"description": box.Description,
			"min_points":  box.MinPoints,
			"max_points":  box.MaxPoints,
			"max_winners": box.MaxWinners,
			"is_active":   box.IsActive,
			"starts_at":   box.StartsAt,
			"ends_at":     box.EndsAt,
		}).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.LuckyBox, error) {
	var box models.LuckyBox
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&box).Error; err != nil {
		return nil, err
	}
	return &box, nil
}

func (r *repository) ListActive(ctx context.Context, now time.Time) ([]models.LuckyBox, error) {
	var boxes []models.LuckyBox
	err := r.db.WithContext(ctx).
		Where("is_active = TRUE").
		Where("starts_at IS NULL OR starts_at <= ?", now).
		Where("ends_at IS NULL OR ends_at > ?", now).
		Order("created_at DESC").
		Find(&boxes).Error
	if err != nil {
		return nil, err
	}
	return boxes, nil
}

func (r *repository) ListAll(ctx context.Context) ([]models.LuckyBox, error) {
	var boxes []models.LuckyBox
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&boxes).Error; err != nil {
		return nil, err
	}
	return boxes, nil
}

func (r *repository) ClaimSlot(ctx context.Context, boxID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.LuckyBox{}).
		Where("id = ? AND is_active = TRUE AND current_winners < max_winners", boxID).
		UpdateColumn("current_winners", gorm.Expr("current_winners + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) CreateWin(ctx context.Context, win *models.LuckyBoxWin) error {
	return r.db.WithContext(ctx).Create(win).Error
}

func (r *repository) HasWin(ctx context.Context, boxID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LuckyBoxWin{}).
		Where("lucky_box_id = ? AND user_id = ?", boxID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListWins(ctx context.Context, userID uuid.UUID) ([]models.LuckyBoxWin, error) {
	var wins []models.LuckyBoxWin
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&wins).Error
	if err != nil {
		return nil, err
	}
	return wins, nil
}
