package luckybox

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/bawabati/bawabati-backend/internal/loyalty"
	"github.com/bawabati/bawabati-backend/internal/notifications"
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

// Service covers claiming lucky boxes and the admin box lifecycle.
type Service interface {
	ListActive(ctx context.Context) ([]models.LuckyBox, error)
	ListAll(ctx context.Context) ([]models.LuckyBox, error)
	Claim(ctx context.Context, userID, boxID uuid.UUID) (*ClaimResult, error)
	ListWins(ctx context.Context, userID uuid.UUID) ([]models.LuckyBoxWin, error)
	Create(ctx context.Context, req UpsertBoxRequest) (*models.LuckyBox, error)
	Update(ctx context.Context, boxID uuid.UUID, req UpsertBoxRequest) (*models.LuckyBox, error)
	Deactivate(ctx context.Context, boxID uuid.UUID) error
}

// ClaimResult reports a successful lucky box draw.
type ClaimResult struct {
	BoxID         uuid.UUID `json:"box_id"`
	PointsAwarded int64     `json:"points_awarded"`
}

// UpsertBoxRequest is the admin payload for creating or updating a box.
type UpsertBoxRequest struct {
	Name        string     `json:"name" validate:"required"`
	Description *string    `json:"description,omitempty"`
	MinPoints   int64      `json:"min_points" validate:"gte=0"`
	MaxPoints   int64      `json:"max_points" validate:"gt=0"`
	MaxWinners  int        `json:"max_winners" validate:"gt=0"`
	IsActive    *bool      `json:"is_active,omitempty"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
}

// ServiceParams bundles the dependencies required to build a lucky box service.
type ServiceParams struct {
	TxRunner      TxRunner
	Repo          Repository
	Loyalty       loyalty.Service
	Notifications notifications.Service
}

type service struct {
	tx       TxRunner
	repo     Repository
	loyalty  loyalty.Service
	notifier notifications.Service
}

// NewService wires lucky box dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.TxRunner == nil {
		return nil, fmt.Errorf("tx runner is required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("lucky box repository is required")
	}
	if params.Loyalty == nil {
		return nil, fmt.Errorf("loyalty service is required")
	}
	if params.Notifications == nil {
		return nil, fmt.Errorf("notifications service is required")
	}
	return &service{
		tx:       params.TxRunner,
		repo:     params.Repo,
		loyalty:  params.Loyalty,
		notifier: params.Notifications,
	}, nil
}

func (s *service) ListActive(ctx context.Context) ([]models.LuckyBox, error) {
	boxes, err := s.repo.ListActive(ctx, time.Now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list lucky boxes")
	}
	return boxes, nil
}

func (s *service) ListAll(ctx context.Context) ([]models.LuckyBox, error) {
	boxes, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list lucky boxes")
	}
	return boxes, nil
}

// Claim draws a random award for the user. The winner cap is enforced by the
// guarded increment, so two racing claims on the last slot cannot both win.
func (s *service) Claim(ctx context.Context, userID, boxID uuid.UUID) (*ClaimResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	box, err := s.loadBox(ctx, boxID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if !box.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "lucky box is not active")
	}
	if box.StartsAt != nil && now.Before(*box.StartsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "lucky box has not started yet")
	}
	if box.EndsAt != nil && !now.Before(*box.EndsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "lucky box has ended")
	}

	won, err := s.repo.HasWin(ctx, boxID, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check previous win")
	}
	if won {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "lucky box already claimed")
	}

	points, err := drawPoints(box.MinPoints, box.MaxPoints)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "draw award")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		claimed, err := repo.ClaimSlot(ctx, boxID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim slot")
		}
		if !claimed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "lucky box has no slots left")
		}

		if err := repo.CreateWin(ctx, &models.LuckyBoxWin{
			LuckyBoxID:    boxID,
			UserID:        userID,
			PointsAwarded: points,
		}); err != nil {
			// Two claims by the same user can race past the HasWin check; the
			// unique (box, user) index aborts the loser.
			if pkgerrors.IsUniqueViolation(err) {
				return pkgerrors.New(pkgerrors.CodeConflict, "lucky box already claimed")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record win")
		}

		luckyBoxID := boxID
		if err := s.loyalty.AwardTx(ctx, tx, loyalty.AwardInput{
			UserID:      userID,
			Points:      points,
			Type:        enums.LoyaltyTransactionLuckyBox,
			LuckyBoxID:  &luckyBoxID,
			Description: fmt.Sprintf("Lucky box: %s", box.Name),
		}); err != nil {
			return err
		}

		return s.notifier.NotifyTx(ctx, tx, notifications.NotifyInput{
			UserID:  userID,
			Type:    enums.NotificationLuckyBox,
			Title:   "Lucky box",
			Message: fmt.Sprintf("You won %d points from %s.", points, box.Name),
		})
	})
	if err != nil {
		return nil, err
	}

	return &ClaimResult{BoxID: boxID, PointsAwarded: points}, nil
}

func (s *service) ListWins(ctx context.Context, userID uuid.UUID) ([]models.LuckyBoxWin, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	wins, err := s.repo.ListWins(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wins")
	}
	return wins, nil
}

func (s *service) Create(ctx context.Context, req UpsertBoxRequest) (*models.LuckyBox, error) {
	if err := validateBox(req); err != nil {
		return nil, err
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	box, err := s.repo.Create(ctx, &models.LuckyBox{
		Name:        req.Name,
		Description: req.Description,
		MinPoints:   req.MinPoints,
		MaxPoints:   req.MaxPoints,
		MaxWinners:  req.MaxWinners,
		IsActive:    isActive,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create lucky box")
	}
	return box, nil
}

func (s *service) Update(ctx context.Context, boxID uuid.UUID, req UpsertBoxRequest) (*models.LuckyBox, error) {
	if err := validateBox(req); err != nil {
		return nil, err
	}
	box, err := s.loadBox(ctx, boxID)
	if err != nil {
		return nil, err
	}
	if req.MaxWinners < box.CurrentWinners {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "max winners below current winner count")
	}

	box.Name = req.Name
	box.Description = req.Description
	box.MinPoints = req.MinPoints
	box.MaxPoints = req.MaxPoints
	box.MaxWinners = req.MaxWinners
	if req.IsActive != nil {
		box.IsActive = *req.IsActive
	}
	box.StartsAt = req.StartsAt
	box.EndsAt = req.EndsAt

	if err := s.repo.Update(ctx, box); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update lucky box")
	}
	return box, nil
}

func (s *service) Deactivate(ctx context.Context, boxID uuid.UUID) error {
	box, err := s.loadBox(ctx, boxID)
	if err != nil {
		return err
	}
	box.IsActive = false
	if err := s.repo.Update(ctx, box); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate lucky box")
	}
	return nil
}

func (s *service) loadBox(ctx context.Context, boxID uuid.UUID) (*models.LuckyBox, error) {
	if boxID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lucky box id required")
	}
	box, err := s.repo.FindByID(ctx, boxID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "lucky box not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load lucky box")
	}
	return box, nil
}

func validateBox(req UpsertBoxRequest) error {
	if req.Name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name required")
	}
	if req.MinPoints < 0 || req.MaxPoints <= 0 || req.MinPoints > req.MaxPoints {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid points range")
	}
	if req.MaxWinners <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "max winners must be positive")
	}
	if req.StartsAt != nil && req.EndsAt != nil && !req.StartsAt.Before(*req.EndsAt) {
		return pkgerrors.New(pkgerrors.CodeValidation, "starts_at must precede ends_at")
	}
	return nil
}

// drawPoints picks a uniform award in [min, max].
func drawPoints(min, max int64) (int64, error) {
	if min == max {
		return min, nil
	}
	n, err := rand.Int(rand.Reader, big.NewInt(max-min+1))
	if err != nil {
		return 0, err
	}
	return min + n.Int64(), nil
}
