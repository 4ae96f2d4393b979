package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"

	"github.com/bawabati/bawabati-backend/internal/loyalty"
	"github.com/bawabati/bawabati-backend/internal/users"
	"github.com/bawabati/bawabati-backend/pkg/config"
	"github.com/bawabati/bawabati-backend/pkg/db/models"
	"github.com/bawabati/bawabati-backend/pkg/enums"
	pkgerrors "github.com/bawabati/bawabati-backend/pkg/errors"
	"github.com/bawabati/bawabati-backend/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// referralCodeAlphabet omits easily confused characters (0/O, 1/I/L).
const (
	referralCodeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"
	referralCodeLength   = 8
	maxReferralCodeTries = 5
)

// TxRunner abstracts the transactional boundary so tests can run without a database.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type registerUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByReferralCode(ctx context.Context, code string) (*models.User, error)
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
}

type registerReferralRepository interface {
	Create(ctx context.Context, dto loyalty.CreateReferralDTO) error
}

// RegisterRequest contains the payload required for onboarding a new user.
type RegisterRequest struct {
	FirstName    string         `json:"first_name" validate:"required"`
	LastName     string         `json:"last_name" validate:"required"`
	Email        string         `json:"email" validate:"required,email"`
	Password     string         `json:"password" validate:"required,min=8"`
	Phone        *string        `json:"phone,omitempty"`
	Role         enums.UserRole `json:"role" validate:"required"`
	ReferralCode *string        `json:"referral_code,omitempty"`
}

// RegisterResponse returns the created user.
type RegisterResponse struct {
	User *users.UserDTO `json:"user"`
}

// RegisterService handles the onboarding transaction.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	TxRunner            TxRunner
	PasswordConfig      config.PasswordConfig
	LoyaltyConfig       config.LoyaltyConfig
	UserRepoFactory     func(tx *gorm.DB) registerUserRepository
	ReferralRepoFactory func(tx *gorm.DB) registerReferralRepository
}

type registerService struct {
	tx            TxRunner
	passwordCfg   config.PasswordConfig
	loyaltyCfg    config.LoyaltyConfig
	userRepos     func(tx *gorm.DB) registerUserRepository
	referralRepos func(tx *gorm.DB) registerReferralRepository
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tx runner required")
	}
	userRepos := params.UserRepoFactory
	if userRepos == nil {
		userRepos = func(tx *gorm.DB) registerUserRepository {
			return users.NewRepository(tx)
		}
	}
	referralRepos := params.ReferralRepoFactory
	if referralRepos == nil {
		referralRepos = func(tx *gorm.DB) registerReferralRepository {
			return loyalty.NewReferralRepository(tx)
		}
	}
	return &registerService{
		tx:            params.TxRunner,
		passwordCfg:   params.PasswordConfig,
		loyaltyCfg:    params.LoyaltyConfig,
		userRepos:     userRepos,
		referralRepos: referralRepos,
	}, nil
}

func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if !req.Role.IsValid() || req.Role == enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var response *RegisterResponse
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := s.userRepos(tx)
		referralRepo := s.referralRepos(tx)

		if _, err := userRepo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}

		var referrerID *uuid.UUID
		if req.ReferralCode != nil && strings.TrimSpace(*req.ReferralCode) != "" {
			code := strings.ToUpper(strings.TrimSpace(*req.ReferralCode))
			referrer, err := userRepo.FindByReferralCode(ctx, code)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeValidation, "unknown referral code")
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup referral code")
			}
			referrerID = &referrer.ID
		}

		ownCode, err := s.uniqueReferralCode(ctx, userRepo)
		if err != nil {
			return err
		}

		user, err := userRepo.Create(ctx, users.CreateUserDTO{
			Email:        email,
			PasswordHash: passwordHash,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Phone:        req.Phone,
			Role:         req.Role,
			ReferralCode: ownCode,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}

		if referrerID != nil {
			if *referrerID == user.ID {
				return pkgerrors.New(pkgerrors.CodeValidation, "cannot refer yourself")
			}
			if err := referralRepo.Create(ctx, loyalty.CreateReferralDTO{
				ReferrerID:  *referrerID,
				ReferredID:  user.ID,
				BonusPoints: s.loyaltyCfg.ReferralBonus,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create referral")
			}
		}

		response = &RegisterResponse{User: users.FromModel(user)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return response, nil
}

func (s *registerService) uniqueReferralCode(ctx context.Context, repo registerUserRepository) (string, error) {
	for attempt := 0; attempt < maxReferralCodeTries; attempt++ {
		code, err := generateReferralCode()
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate referral code")
		}
		_, err = repo.FindByReferralCode(ctx, code)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return code, nil
		}
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check referral code")
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeInternal, "could not allocate referral code")
}

func generateReferralCode() (string, error) {
	out := make([]byte, referralCodeLength)
	max := big.NewInt(int64(len(referralCodeAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = referralCodeAlphabet[n.Int64()]
	}
	return string(out), nil
}
