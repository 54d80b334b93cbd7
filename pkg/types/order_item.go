package types

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/thalibox/marketplace-backend/pkg/money"
)

// OrderItem is the line-item snapshot taken when the order is created.
type OrderItem struct {
	ProductID     uuid.UUID        `json:"productId" validate:"required"`
	Name          string           `json:"name" validate:"required"`
	Quantity      int              `json:"quantity" validate:"required,gt=0"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discountPrice,omitempty"`
}

// LineTotal is price × quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return money.Round(i.Price.Mul(decimal.NewFromInt(int64(i.Quantity))))
}

// OrderItems is an ordered list of line items.
type OrderItems []OrderItem

// Sum adds up every line total.
func (items OrderItems) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return money.Round(total)
}
