package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/thalibox/marketplace-backend/pkg/enums"
)

// OrderCreatedEvent is emitted when an order is placed, COD or paid online.
type OrderCreatedEvent struct {
	OrderID        uuid.UUID             `json:"orderId"`
	UserID         uuid.UUID             `json:"userId"`
	SellerID       uuid.UUID             `json:"sellerId"`
	Total          decimal.Decimal       `json:"total"`
	ItemCount      int                   `json:"itemCount"`
	PaymentMethod  enums.PaymentMethod   `json:"paymentMethod"`
	PaymentStatus  enums.PaymentStatus   `json:"paymentStatus"`
	PaymentGateway *enums.PaymentGateway `json:"paymentGateway,omitempty"`
}

// OrderStatusChangedEvent records one accepted state-machine transition.
type OrderStatusChangedEvent struct {
	OrderID  uuid.UUID         `json:"orderId"`
	UserID   uuid.UUID         `json:"userId"`
	SellerID uuid.UUID         `json:"sellerId"`
	From     enums.OrderStatus `json:"from"`
	To       enums.OrderStatus `json:"to"`
	Reason   string            `json:"reason,omitempty"`
}

type OrderRefundedEvent struct {
	OrderID  uuid.UUID       `json:"orderId"`
	UserID   uuid.UUID       `json:"userId"`
	SellerID uuid.UUID       `json:"sellerId"`
	Amount   decimal.Decimal `json:"amount"`
}

type DisputeOpenedEvent struct {
	OrderID  uuid.UUID `json:"orderId"`
	UserID   uuid.UUID `json:"userId"`
	SellerID uuid.UUID `json:"sellerId"`
	Reason   string    `json:"reason"`
}

type DisputeResolvedEvent struct {
	OrderID    uuid.UUID           `json:"orderId"`
	SellerID   uuid.UUID           `json:"sellerId"`
	Status     enums.DisputeStatus `json:"status"`
	Resolution string              `json:"resolution"`
}

// SettlementCreatedEvent carries the computed split for a delivered order.
type SettlementCreatedEvent struct {
	SettlementID uuid.UUID       `json:"settlementId"`
	OrderID      uuid.UUID       `json:"orderId"`
	SellerID     uuid.UUID       `json:"sellerId"`
	OrderAmount  decimal.Decimal `json:"orderAmount"`
	Commission   decimal.Decimal `json:"commission"`
	GST          decimal.Decimal `json:"gst"`
	NetAmount    decimal.Decimal `json:"netAmount"`
}

type SettlementProcessedEvent struct {
	SettlementID uuid.UUID       `json:"settlementId"`
	SellerID     uuid.UUID       `json:"sellerId"`
	NetAmount    decimal.Decimal `json:"netAmount"`
	ProcessedBy  uuid.UUID       `json:"processedBy"`
	SettledAt    time.Time       `json:"settledAt"`
}

type SettlementFailedEvent struct {
	SettlementID uuid.UUID `json:"settlementId"`
	SellerID     uuid.UUID `json:"sellerId"`
	Reason       string    `json:"reason"`
}

type SellerKYCDecidedEvent struct {
	SellerID uuid.UUID       `json:"sellerId"`
	Status   enums.KYCStatus `json:"status"`
	Reason   string          `json:"reason,omitempty"`
}

type SellerRatesUpdatedEvent struct {
	SellerID          uuid.UUID        `json:"sellerId"`
	CommissionPercent *decimal.Decimal `json:"commissionPercent,omitempty"`
	GSTPercent        *decimal.Decimal `json:"gstPercent,omitempty"`
}
