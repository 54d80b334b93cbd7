package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/thalibox/marketplace-backend/pkg/enums"
	"github.com/thalibox/marketplace-backend/pkg/types"
)

// Order is a buyer's purchase from a single seller. Rows are never deleted;
// cancellation and disputes are tracked through status columns.
type Order struct {
	ID                 uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID             uuid.UUID             `gorm:"column:user_id;type:uuid;not null" json:"userId"`
	SellerID           uuid.UUID             `gorm:"column:seller_id;type:uuid;not null" json:"sellerId"`
	Items              types.OrderItems      `gorm:"column:items;type:jsonb;serializer:json;not null" json:"items"`
	Total              decimal.Decimal       `gorm:"column:total;type:numeric(12,2);not null" json:"total"`
	DeliveryAddress    types.DeliveryAddress `gorm:"column:delivery_address;type:jsonb;serializer:json;not null" json:"deliveryAddress"`
	Status             enums.OrderStatus     `gorm:"column:status;type:text;not null;default:'pending'" json:"status"`
	DisputeStatus      enums.DisputeStatus   `gorm:"column:dispute_status;type:text;not null;default:'none'" json:"disputeStatus"`
	DisputeReason      *string               `gorm:"column:dispute_reason" json:"disputeReason,omitempty"`
	DisputeResolution  *string               `gorm:"column:dispute_resolution" json:"disputeResolution,omitempty"`
	PaymentMethod      enums.PaymentMethod   `gorm:"column:payment_method;type:text;not null" json:"paymentMethod"`
	PaymentStatus      enums.PaymentStatus   `gorm:"column:payment_status;type:text;not null;default:'pending'" json:"paymentStatus"`
	PaymentGateway     *enums.PaymentGateway `gorm:"column:payment_gateway;type:text" json:"paymentGateway,omitempty"`
	GatewayOrderID     *string               `gorm:"column:gateway_order_id" json:"gatewayOrderId,omitempty"`
	GatewayPaymentID   *string               `gorm:"column:gateway_payment_id" json:"gatewayPaymentId,omitempty"`
	Notes              *string               `gorm:"column:notes" json:"notes,omitempty"`
	EstimatedTime      *string               `gorm:"column:estimated_time" json:"estimatedTime,omitempty"`
	CancellationReason *string               `gorm:"column:cancellation_reason" json:"cancellationReason,omitempty"`
	Rating             *int                  `gorm:"column:rating" json:"rating,omitempty"`
	Feedback           *string               `gorm:"column:feedback" json:"feedback,omitempty"`
	CreatedAt          time.Time             `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt          time.Time             `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}
