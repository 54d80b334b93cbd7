package users

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/thalibox/marketplace-backend/pkg/db/models"
	"github.com/thalibox/marketplace-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID               uuid.UUID        `json:"id"`
	Name             string           `json:"name"`
	Email            string           `json:"email"`
	Phone            *string          `json:"phone,omitempty"`
	Role             enums.UserRole   `json:"role"`
	KYCStatus        *enums.KYCStatus `json:"kycStatus,omitempty"`
	CustomCommission *decimal.Decimal `json:"customCommission,omitempty"`
	CustomGST        *decimal.Decimal `json:"customGst,omitempty"`
	EarningsBalance  *decimal.Decimal `json:"earningsBalance,omitempty"`
	IsActive         bool             `json:"isActive"`
	LastLoginAt      *time.Time       `json:"lastLoginAt,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Name         string
	Email        string
	PasswordHash string
	Phone        *string
	Role         enums.UserRole
}

// FromModel hides seller-only fields for other roles.
func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	dto := &UserDTO{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Phone:       u.Phone,
		Role:        u.Role,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
	if u.Role == enums.UserRoleSeller {
		kyc := u.KYCStatus
		balance := u.EarningsBalance
		dto.KYCStatus = &kyc
		dto.EarningsBalance = &balance
		dto.CustomCommission = u.CustomCommission
		dto.CustomGST = u.CustomGST
	}
	return dto
}

func (c CreateUserDTO) ToModel() *models.User {
	role := c.Role
	if role == "" {
		role = enums.UserRoleUser
	}
	return &models.User{
		ID:              uuid.New(),
		Name:            strings.TrimSpace(c.Name),
		Email:           strings.ToLower(strings.TrimSpace(c.Email)),
		PasswordHash:    c.PasswordHash,
		Phone:           c.Phone,
		Role:            role,
		KYCStatus:       enums.KYCStatusPending,
		EarningsBalance: decimal.Zero,
		IsActive:        true,
	}
}
