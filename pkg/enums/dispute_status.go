package enums

import "slices"

// DisputeStatus tracks a buyer dispute independently of fulfilment.
type DisputeStatus string

const (
	DisputeStatusNone     DisputeStatus = "none"
	DisputeStatusOpen     DisputeStatus = "open"
	DisputeStatusResolved DisputeStatus = "resolved"
	DisputeStatusRefunded DisputeStatus = "refunded"
)

var validDisputeStatuses = []DisputeStatus{
	DisputeStatusNone,
	DisputeStatusOpen,
	DisputeStatusResolved,
	DisputeStatusRefunded,
}

// IsValid reports whether the value is a known DisputeStatus.
func (d DisputeStatus) IsValid() bool {
	return slices.Contains(validDisputeStatuses, d)
}

// ParseDisputeStatus converts raw input into a DisputeStatus.
func ParseDisputeStatus(value string) (DisputeStatus, error) {
	return parse(value, validDisputeStatuses, "dispute status")
}
