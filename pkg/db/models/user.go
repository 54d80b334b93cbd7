package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/thalibox/marketplace-backend/pkg/enums"
)

// User is any account: buyer, seller or admin. Seller-only columns stay at
// their defaults for other roles.
type User struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name             string           `gorm:"column:name;not null" json:"name"`
	Email            string           `gorm:"column:email;type:text;not null;uniqueIndex" json:"email"`
	Phone            *string          `gorm:"column:phone" json:"phone,omitempty"`
	PasswordHash     string           `gorm:"column:password_hash;not null" json:"-"`
	Role             enums.UserRole   `gorm:"column:role;type:text;not null;default:'user'" json:"role"`
	KYCStatus        enums.KYCStatus  `gorm:"column:kyc_status;type:text;not null;default:'pending'" json:"kycStatus"`
	CustomCommission *decimal.Decimal `gorm:"column:custom_commission;type:numeric(5,2)" json:"customCommission,omitempty"`
	CustomGST        *decimal.Decimal `gorm:"column:custom_gst;type:numeric(5,2)" json:"customGst,omitempty"`
	EarningsBalance  decimal.Decimal  `gorm:"column:earnings_balance;type:numeric(12,2);not null;default:0" json:"earningsBalance"`
	IsActive         bool             `gorm:"column:is_active;not null;default:true" json:"isActive"`
	LastLoginAt      *time.Time       `gorm:"column:last_login_at" json:"lastLoginAt,omitempty"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}
