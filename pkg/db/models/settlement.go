package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/thalibox/marketplace-backend/pkg/enums"
)

// Settlement is the payout owed to a seller for one order.
type Settlement struct {
	ID             uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SellerID       uuid.UUID              `gorm:"column:seller_id;type:uuid;not null" json:"sellerId"`
	OrderID        uuid.UUID              `gorm:"column:order_id;type:uuid;not null;uniqueIndex" json:"orderId"`
	OrderAmount    decimal.Decimal        `gorm:"column:order_amount;type:numeric(12,2);not null" json:"orderAmount"`
	CommissionRate decimal.Decimal        `gorm:"column:commission_rate;type:numeric(5,2);not null" json:"commissionRate"`
	GSTRate        decimal.Decimal        `gorm:"column:gst_rate;type:numeric(5,2);not null" json:"gstRate"`
	Commission     decimal.Decimal        `gorm:"column:commission;type:numeric(12,2);not null" json:"commission"`
	GST            decimal.Decimal        `gorm:"column:gst;type:numeric(12,2);not null" json:"gst"`
	NetAmount      decimal.Decimal        `gorm:"column:net_amount;type:numeric(12,2);not null" json:"netAmount"`
	Status         enums.SettlementStatus `gorm:"column:status;type:text;not null;default:'pending'" json:"status"`
	SettlementDate *time.Time             `gorm:"column:settlement_date" json:"settlementDate,omitempty"`
	TransactionID  *string                `gorm:"column:transaction_id" json:"transactionId,omitempty"`
	ProcessedBy    *uuid.UUID             `gorm:"column:processed_by;type:uuid" json:"processedBy,omitempty"`
	FailureReason  *string                `gorm:"column:failure_reason" json:"failureReason,omitempty"`
	CreatedAt      time.Time              `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time              `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}
