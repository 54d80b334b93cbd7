package router

import (
	"github.com/thalibox/marketplace-backend/internal/analytics/types"
	"github.com/thalibox/marketplace-backend/pkg/outbox/payloads"
)

func settlementCreatedRow(row *types.MarketplaceEventRow, event *payloads.SettlementCreatedEvent) {
	row.SettlementID = nullID(event.SettlementID)
	row.OrderID = nullID(event.OrderID)
	row.SellerID = nullID(event.SellerID)
	row.AmountPaise = paise(event.OrderAmount)
	row.CommissionPaise = paise(event.Commission)
	row.GSTPaise = paise(event.GST)
	row.NetPaise = paise(event.NetAmount)
}

func settlementProcessedRow(row *types.MarketplaceEventRow, event *payloads.SettlementProcessedEvent) {
	row.SettlementID = nullID(event.SettlementID)
	row.SellerID = nullID(event.SellerID)
	row.NetPaise = paise(event.NetAmount)
}

func settlementFailedRow(row *types.MarketplaceEventRow, event *payloads.SettlementFailedEvent) {
	row.SettlementID = nullID(event.SettlementID)
	row.SellerID = nullID(event.SellerID)
}

// Seller events only carry the seller; the decision itself stays in payload.
func sellerKYCDecidedRow(row *types.MarketplaceEventRow, event *payloads.SellerKYCDecidedEvent) {
	row.SellerID = nullID(event.SellerID)
}

func sellerRatesUpdatedRow(row *types.MarketplaceEventRow, event *payloads.SellerRatesUpdatedEvent) {
	row.SellerID = nullID(event.SellerID)
}
