package router

import (
	"github.com/thalibox/marketplace-backend/internal/analytics/types"
	"github.com/thalibox/marketplace-backend/pkg/enums"
	"github.com/thalibox/marketplace-backend/pkg/outbox/payloads"
)

func orderCreatedRow(row *types.MarketplaceEventRow, event *payloads.OrderCreatedEvent) {
	row.OrderID = nullID(event.OrderID)
	row.BuyerID = nullID(event.UserID)
	row.SellerID = nullID(event.SellerID)
	row.OrderStatus = nullString(string(enums.OrderStatusPending))
	row.PaymentMethod = nullString(string(event.PaymentMethod))
	if event.PaymentGateway != nil {
		row.PaymentGateway = nullString(string(*event.PaymentGateway))
	}
	row.AmountPaise = paise(event.Total)
}

func orderStatusChangedRow(row *types.MarketplaceEventRow, event *payloads.OrderStatusChangedEvent) {
	row.OrderID = nullID(event.OrderID)
	row.BuyerID = nullID(event.UserID)
	row.SellerID = nullID(event.SellerID)
	row.OrderStatus = nullString(string(event.To))
}

func orderRefundedRow(row *types.MarketplaceEventRow, event *payloads.OrderRefundedEvent) {
	row.OrderID = nullID(event.OrderID)
	row.BuyerID = nullID(event.UserID)
	row.SellerID = nullID(event.SellerID)
	row.AmountPaise = paise(event.Amount)
}

func disputeOpenedRow(row *types.MarketplaceEventRow, event *payloads.DisputeOpenedEvent) {
	row.OrderID = nullID(event.OrderID)
	row.BuyerID = nullID(event.UserID)
	row.SellerID = nullID(event.SellerID)
}

func disputeResolvedRow(row *types.MarketplaceEventRow, event *payloads.DisputeResolvedEvent) {
	row.OrderID = nullID(event.OrderID)
	row.SellerID = nullID(event.SellerID)
}
