package settlements

import (
	"github.com/shopspring/decimal"

	"github.com/thalibox/marketplace-backend/pkg/config"
	"github.com/thalibox/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/thalibox/marketplace-backend/pkg/errors"
	"github.com/thalibox/marketplace-backend/pkg/money"
)

// InvalidOrderDetail is attached to the validation error for non-positive amounts.
const InvalidOrderDetail = "INVALID_ORDER"

// Rates are percentages, e.g. 10 for 10%.
type Rates struct {
	CommissionPercent decimal.Decimal
	GSTPercent        decimal.Decimal
}

// Breakdown is the monetary split of one order amount.
type Breakdown struct {
	OrderAmount    decimal.Decimal `json:"orderAmount"`
	CommissionRate decimal.Decimal `json:"commissionRate"`
	GSTRate        decimal.Decimal `json:"gstRate"`
	Commission     decimal.Decimal `json:"commission"`
	GST            decimal.Decimal `json:"gst"`
	NetAmount      decimal.Decimal `json:"netAmount"`
}

// Calculate splits orderAmount into commission, GST and the seller's net.
// Commission and GST are each rounded to paise; net absorbs the remainder so
// the three always add back to the order amount.
func Calculate(orderAmount decimal.Decimal, rates Rates) (Breakdown, error) {
	amount := money.Round(orderAmount)
	if !money.Positive(amount) {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "order amount must be positive").
			WithDetails(map[string]string{"code": InvalidOrderDetail})
	}
	commission := money.Percent(amount, rates.CommissionPercent)
	gst := money.Percent(amount, rates.GSTPercent)
	return Breakdown{
		OrderAmount:    amount,
		CommissionRate: rates.CommissionPercent,
		GSTRate:        rates.GSTPercent,
		Commission:     commission,
		GST:            gst,
		NetAmount:      amount.Sub(commission).Sub(gst),
	}, nil
}

// RateResolver picks per-seller overrides over the platform defaults.
type RateResolver struct {
	defaults Rates
}

func NewRateResolver(cfg config.SettlementConfig) RateResolver {
	return RateResolver{defaults: Rates{
		CommissionPercent: decimal.NewFromFloat(cfg.DefaultCommissionPercent),
		GSTPercent:        decimal.NewFromFloat(cfg.DefaultGSTPercent),
	}}
}

func (r RateResolver) Defaults() Rates {
	return r.defaults
}

func (r RateResolver) Resolve(seller *models.User) Rates {
	rates := r.defaults
	if seller == nil {
		return rates
	}
	if seller.CustomCommission != nil {
		rates.CommissionPercent = *seller.CustomCommission
	}
	if seller.CustomGST != nil {
		rates.GSTPercent = *seller.CustomGST
	}
	return rates
}
