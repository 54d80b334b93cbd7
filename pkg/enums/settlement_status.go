package enums

import "slices"

// SettlementStatus is the payout state of a settlement.
type SettlementStatus string

const (
	SettlementStatusPending SettlementStatus = "pending"
	SettlementStatusSettled SettlementStatus = "settled"
	SettlementStatusFailed  SettlementStatus = "failed"
)

var validSettlementStatuses = []SettlementStatus{
	SettlementStatusPending,
	SettlementStatusSettled,
	SettlementStatusFailed,
}

// String implements fmt.Stringer.
func (s SettlementStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SettlementStatus.
func (s SettlementStatus) IsValid() bool {
	return slices.Contains(validSettlementStatuses, s)
}

// ParseSettlementStatus converts raw input into a SettlementStatus.
func ParseSettlementStatus(value string) (SettlementStatus, error) {
	return parse(value, validSettlementStatuses, "settlement status")
}

// IsFinal reports whether the settlement can no longer change.
func (s SettlementStatus) IsFinal() bool {
	return s == SettlementStatusSettled || s == SettlementStatusFailed
}
