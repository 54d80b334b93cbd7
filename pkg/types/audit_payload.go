package types

import (
	"github.com/shopspring/decimal"
)

// StatusChange records a from/to pair for any status-like field.
type StatusChange struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// RatesChange records a seller commission / GST override update.
type RatesChange struct {
	CommissionPercent *decimal.Decimal `json:"commissionPercent,omitempty"`
	GSTPercent        *decimal.Decimal `json:"gstPercent,omitempty"`
}

// AuditPayload is stored as jsonb on audit_logs. The action column tells
// readers which branch to expect.
type AuditPayload struct {
	Status *StatusChange    `json:"status,omitempty"`
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Rates  *RatesChange     `json:"rates,omitempty"`
}
