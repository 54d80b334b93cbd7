package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/thalibox/marketplace-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID    uuid.UUID
	Role      enums.UserRole
	KYCStatus *enums.KYCStatus
	JTI       string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID    uuid.UUID        `json:"user_id"`
	Role      enums.UserRole   `json:"role"`
	KYCStatus *enums.KYCStatus `json:"kyc_status,omitempty"`
	jwt.RegisteredClaims
}

// IsSeller reports whether the token belongs to a seller account.
func (c *AccessTokenClaims) IsSeller() bool {
	return c != nil && c.Role == enums.UserRoleSeller
}

// IsAdmin reports whether the token belongs to an administrator.
func (c *AccessTokenClaims) IsAdmin() bool {
	return c != nil && c.Role == enums.UserRoleAdmin
}
