package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/thalibox/marketplace-backend/internal/users"
	"github.com/thalibox/marketplace-backend/pkg/config"
	"github.com/thalibox/marketplace-backend/pkg/db"
	"github.com/thalibox/marketplace-backend/pkg/db/models"
	"github.com/thalibox/marketplace-backend/pkg/enums"
	pkgerrors "github.com/thalibox/marketplace-backend/pkg/errors"
	"github.com/thalibox/marketplace-backend/pkg/security"
)

const minPasswordLength = 8

// RegisterService handles account creation.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*TokenResponse, error)
	CreateAdmin(ctx context.Context, name, email, password string) (*users.UserDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	DB             txRunner
	SessionManager sessionManager
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
}

type registerService struct {
	db          txRunner
	session     sessionManager
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	return &registerService{
		db:          params.DB,
		session:     params.SessionManager,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordConfig,
	}, nil
}

// Register creates a buyer (the default) or a seller and signs them in.
// Sellers start with KYC pending.
func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*TokenResponse, error) {
	if s.session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session manager unavailable")
	}
	role := req.Role
	if role == "" {
		role = enums.UserRoleUser
	}
	if role != enums.UserRoleUser && role != enums.UserRoleSeller {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "role must be user or seller")
	}

	user, err := s.create(ctx, req.Name, req.Email, req.Password, req.Phone, role)
	if err != nil {
		return nil, err
	}
	return issueTokens(ctx, s.session, s.jwtCfg, user, time.Now().UTC())
}

// CreateAdmin bootstraps an admin account from the command line.
func (s *registerService) CreateAdmin(ctx context.Context, name, email, password string) (*users.UserDTO, error) {
	user, err := s.create(ctx, name, email, password, nil, enums.UserRoleAdmin)
	if err != nil {
		return nil, err
	}
	return users.FromModel(user), nil
}

func (s *registerService) create(ctx context.Context, name, email, password string, phone *string, role enums.UserRole) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if len(password) < minPasswordLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}
	if phone != nil {
		trimmed := strings.TrimSpace(*phone)
		phone = &trimmed
		if trimmed == "" {
			phone = nil
		}
	}

	passwordHash, err := security.HashPassword(password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var created *models.User
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)

		if _, err := userRepo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}

		user, err := userRepo.Create(ctx, users.CreateUserDTO{
			Name:         name,
			Email:        email,
			PasswordHash: passwordHash,
			Phone:        phone,
			Role:         role,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}
		created = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
