package loyalty

import (
	"context"
	"errors"

	"github.com/bawabati/bawabati-backend/pkg/db/models"
	"github.com/bawabati/bawabati-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrInsufficientBalance is returned when a debit would take the balance negative.
var ErrInsufficientBalance = errors.New("insufficient loyalty balance")

// Repository exposes persistence for the loyalty ledger and user balances.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateTransaction(ctx context.Context, txn *models.LoyaltyTransaction) error
	AdjustBalance(ctx context.Context, userID uuid.UUID, delta int64) error
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
	ListTransactions(ctx context.Context, params listTransactionsParams) ([]models.LoyaltyTransaction, *pagination.Cursor, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a loyalty repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listTransactionsParams struct {
	UserID uuid.UUID
	Limit  int
	Cursor *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) CreateTransaction(ctx context.Context, txn *models.LoyaltyTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

// AdjustBalance applies the signed delta to users.loyalty_points. Debits are
// guarded in SQL so a concurrent spend can never drive the balance negative.
func (r *repositoryImpl) AdjustBalance(ctx context.Context, userID uuid.UUID, delta int64) error {
	query := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID)
	if delta < 0 {
		query = query.Where("loyalty_points + ? >= 0", delta)
	}
	result := query.UpdateColumn("loyalty_points", gorm.Expr("loyalty_points + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if delta < 0 {
			return ErrInsufficientBalance
		}
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repositoryImpl) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Select("loyalty_points").First(&user, "id = ?", userID).Error; err != nil {
		return 0, err
	}
	return user.LoyaltyPoints, nil
}

func (r *repositoryImpl) ListTransactions(ctx context.Context, params listTransactionsParams) ([]models.LoyaltyTransaction, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Model(&models.LoyaltyTransaction{}).
		Where("user_id = ?", params.UserID)
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var transactions []models.LoyaltyTransaction
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&transactions).Error; err != nil {
		return nil, nil, err
	}

	if len(transactions) > normalized {
		transactions = transactions[:normalized]
		last := transactions[normalized-1]
		return transactions, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return transactions, nil, nil
}
