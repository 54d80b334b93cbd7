package router

import (
	"strings"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/thalibox/marketplace-backend/pkg/money"
)

// nullString is NULL for blank input.
func nullString(value string) cbigquery.NullString {
	trimmed := strings.TrimSpace(value)
	return cbigquery.NullString{StringVal: trimmed, Valid: trimmed != ""}
}

func nullID(id uuid.UUID) cbigquery.NullString {
	if id == uuid.Nil {
		return cbigquery.NullString{}
	}
	return cbigquery.NullString{StringVal: id.String(), Valid: true}
}

func paise(amount decimal.Decimal) cbigquery.NullInt64 {
	return cbigquery.NullInt64{Int64: money.ToMinor(amount), Valid: true}
}
