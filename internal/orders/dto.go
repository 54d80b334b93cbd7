package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/thalibox/marketplace-backend/pkg/enums"
	"github.com/thalibox/marketplace-backend/pkg/types"
)

// NewOrderInput is the buyer-supplied snapshot shared by every order path.
type NewOrderInput struct {
	SellerID        uuid.UUID             `json:"sellerId" validate:"required"`
	Items           types.OrderItems      `json:"items" validate:"required,min=1,dive"`
	Total           decimal.Decimal       `json:"totalAmount"`
	DeliveryAddress types.DeliveryAddress `json:"deliveryAddress" validate:"required"`
	Notes           *string               `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// PaidOrderInput materializes an order after a verified online payment.
type PaidOrderInput struct {
	BuyerID          uuid.UUID
	Order            NewOrderInput
	Gateway          enums.PaymentGateway
	GatewayOrderID   *string
	GatewayPaymentID string
}

type UpdateStatusInput struct {
	OrderID            uuid.UUID
	Status             enums.OrderStatus
	CancellationReason *string
	EstimatedTime      *string
	Actor              Actor
}

type ResolveDisputeInput struct {
	OrderID    uuid.UUID
	AdminID    uuid.UUID
	Status     enums.DisputeStatus
	Resolution string
}

type RateInput struct {
	OrderID  uuid.UUID
	BuyerID  uuid.UUID
	Rating   int
	Feedback *string
}
