package loyalty

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bawabati/bawabati-backend/pkg/config"
	"github.com/bawabati/bawabati-backend/pkg/db/models"
	"github.com/bawabati/bawabati-backend/pkg/enums"
	pkgerrors "github.com/bawabati/bawabati-backend/pkg/errors"
	"github.com/bawabati/bawabati-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service defines loyalty balance, ledger, and payout operations.
type Service interface {
	Summary(ctx context.Context, userID uuid.UUID) (*Summary, error)
	ListTransactions(ctx context.Context, params ListParams) (*ListResult, error)
	ListReferrals(ctx context.Context, referrerID uuid.UUID) ([]models.Referral, error)
	Redeem(ctx context.Context, userID uuid.UUID, req RedeemRequest) (*Summary, error)
	EarnForOrderTx(ctx context.Context, tx *gorm.DB, order *models.Order) (int64, error)
	CompleteReferralTx(ctx context.Context, tx *gorm.DB, referredID uuid.UUID) (*ReferralPayout, error)
	AwardTx(ctx context.Context, tx *gorm.DB, input AwardInput) error
}

// Summary reports a user's current balance and derived tier.
type Summary struct {
	UserID  uuid.UUID         `json:"user_id"`
	Balance int64             `json:"balance"`
	Tier    enums.LoyaltyTier `json:"tier"`
}

// ListParams configures ledger pagination.
type ListParams struct {
	UserID uuid.UUID
	Limit  int
	Cursor string
}

// ListResult wraps ledger entries and the cursor for the next page.
type ListResult struct {
	Items  []models.LoyaltyTransaction `json:"items"`
	Cursor string                      `json:"cursor"`
}

// RedeemRequest debits points from the user's balance.
type RedeemRequest struct {
	Points      int64  `json:"points" validate:"required,gt=0"`
	Description string `json:"description" validate:"required"`
}

// ReferralPayout reports a completed referral bonus.
type ReferralPayout struct {
	ReferrerID uuid.UUID
	ReferredID uuid.UUID
	Bonus      int64
}

// AwardInput credits points from a promotion such as a lucky box win.
type AwardInput struct {
	UserID      uuid.UUID
	Points      int64
	Type        enums.LoyaltyTransactionType
	LuckyBoxID  *uuid.UUID
	Description string
}

// TxRunner abstracts the transactional boundary so tests can run without a database.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type referralStore interface {
	Create(ctx context.Context, dto CreateReferralDTO) error
	FindPendingByReferred(ctx context.Context, referredID uuid.UUID) (*models.Referral, error)
	ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]models.Referral, error)
	Complete(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
}

// ServiceParams bundles the dependencies required to build a loyalty service.
type ServiceParams struct {
	TxRunner            TxRunner
	Repo                Repository
	ReferralRepo        referralStore
	ReferralRepoFactory func(tx *gorm.DB) referralStore
	Config              config.LoyaltyConfig
}

type service struct {
	tx               TxRunner
	repo             Repository
	referrals        referralStore
	referralsFactory func(tx *gorm.DB) referralStore
	earnRate         decimal.Decimal
}

// NewService wires loyalty dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.TxRunner == nil {
		return nil, fmt.Errorf("tx runner is required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("loyalty repository is required")
	}
	if params.ReferralRepo == nil {
		return nil, fmt.Errorf("referral repository is required")
	}
	rate, err := decimal.NewFromString(params.Config.EarnRate)
	if err != nil {
		return nil, fmt.Errorf("invalid loyalty earn rate %q: %w", params.Config.EarnRate, err)
	}
	if rate.IsNegative() {
		return nil, fmt.Errorf("loyalty earn rate must not be negative")
	}
	referralsFactory := params.ReferralRepoFactory
	if referralsFactory == nil {
		referralsFactory = func(tx *gorm.DB) referralStore {
			return NewReferralRepository(tx)
		}
	}
	return &service{
		tx:               params.TxRunner,
		repo:             params.Repo,
		referrals:        params.ReferralRepo,
		referralsFactory: referralsFactory,
		earnRate:         rate,
	}, nil
}

func (s *service) Summary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	balance, err := s.repo.Balance(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load balance")
	}
	return &Summary{
		UserID:  userID,
		Balance: balance,
		Tier:    enums.TierForPoints(balance),
	}, nil
}

func (s *service) ListTransactions(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	query := listTransactionsParams{
		UserID: params.UserID,
		Limit:  pagination.LimitWithBuffer(params.Limit),
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.ListTransactions(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) ListReferrals(ctx context.Context, referrerID uuid.UUID) ([]models.Referral, error) {
	if referrerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	referrals, err := s.referrals.ListByReferrer(ctx, referrerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list referrals")
	}
	return referrals, nil
}

func (s *service) Redeem(ctx context.Context, userID uuid.UUID, req RedeemRequest) (*Summary, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if req.Points <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "points must be positive")
	}
	if req.Description == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "description required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.AdjustBalance(ctx, userID, -req.Points); err != nil {
			if errors.Is(err, ErrInsufficientBalance) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient loyalty balance")
			}
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit balance")
		}
		return repo.CreateTransaction(ctx, &models.LoyaltyTransaction{
			UserID:      userID,
			Type:        enums.LoyaltyTransactionRedeem,
			Points:      -req.Points,
			Description: req.Description,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Summary(ctx, userID)
}

// EarnForOrderTx credits delivery points for the order inside the caller's
// transaction and returns the amount credited.
func (s *service) EarnForOrderTx(ctx context.Context, tx *gorm.DB, order *models.Order) (int64, error) {
	if order == nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}

	points := order.Total.Mul(s.earnRate).Floor().IntPart()
	if points <= 0 {
		return 0, nil
	}

	repo := s.repo.WithTx(tx)
	if err := repo.AdjustBalance(ctx, order.CustomerID, points); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit order points")
	}
	orderID := order.ID
	err := repo.CreateTransaction(ctx, &models.LoyaltyTransaction{
		UserID:      order.CustomerID,
		Type:        enums.LoyaltyTransactionEarn,
		Points:      points,
		OrderID:     &orderID,
		Description: fmt.Sprintf("Points earned for order #%d", order.Number),
	})
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record earn transaction")
	}
	return points, nil
}

// CompleteReferralTx pays out the referred user's pending referral, if any.
// Returns nil when there is nothing to complete.
func (s *service) CompleteReferralTx(ctx context.Context, tx *gorm.DB, referredID uuid.UUID) (*ReferralPayout, error) {
	referralRepo := s.referralsFactory(tx)
	referral, err := referralRepo.FindPendingByReferred(ctx, referredID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find pending referral")
	}

	completed, err := referralRepo.Complete(ctx, referral.ID, time.Now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete referral")
	}
	if !completed {
		return nil, nil
	}

	repo := s.repo.WithTx(tx)
	for _, userID := range []uuid.UUID{referral.ReferrerID, referral.ReferredID} {
		if err := repo.AdjustBalance(ctx, userID, referral.BonusPoints); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit referral bonus")
		}
		if err := repo.CreateTransaction(ctx, &models.LoyaltyTransaction{
			UserID:      userID,
			Type:        enums.LoyaltyTransactionReferralBonus,
			Points:      referral.BonusPoints,
			Description: "Referral bonus",
		}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record referral transaction")
		}
	}

	return &ReferralPayout{
		ReferrerID: referral.ReferrerID,
		ReferredID: referral.ReferredID,
		Bonus:      referral.BonusPoints,
	}, nil
}

// AwardTx credits promotional points inside the caller's transaction.
func (s *service) AwardTx(ctx context.Context, tx *gorm.DB, input AwardInput) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.Points <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "points must be positive")
	}
	if !input.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction type")
	}

	repo := s.repo.WithTx(tx)
	if err := repo.AdjustBalance(ctx, input.UserID, input.Points); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit award points")
	}
	err := repo.CreateTransaction(ctx, &models.LoyaltyTransaction{
		UserID:      input.UserID,
		Type:        input.Type,
		Points:      input.Points,
		LuckyBoxID:  input.LuckyBoxID,
		Description: input.Description,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record award transaction")
	}
	return nil
}
