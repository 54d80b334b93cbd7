package enums

import "slices"

// AuditAction labels an audit log entry.
type AuditAction string

const (
	AuditOrderStatusChanged  AuditAction = "order.status_changed"
	AuditOrderRefunded       AuditAction = "order.refunded"
	AuditDisputeOpened       AuditAction = "dispute.opened"
	AuditDisputeResolved     AuditAction = "dispute.resolved"
	AuditSettlementProcessed AuditAction = "settlement.processed"
	AuditSettlementFailed    AuditAction = "settlement.failed"
	AuditSellerKYCApproved   AuditAction = "seller.kyc_approved"
	AuditSellerKYCRejected   AuditAction = "seller.kyc_rejected"
	AuditSellerRatesUpdated  AuditAction = "seller.rates_updated"
)

var validAuditActions = []AuditAction{
	AuditOrderStatusChanged,
	AuditOrderRefunded,
	AuditDisputeOpened,
	AuditDisputeResolved,
	AuditSettlementProcessed,
	AuditSettlementFailed,
	AuditSellerKYCApproved,
	AuditSellerKYCRejected,
	AuditSellerRatesUpdated,
}

// IsValid reports whether the value is a known AuditAction.
func (a AuditAction) IsValid() bool {
	return slices.Contains(validAuditActions, a)
}

// ParseAuditAction converts raw input into a AuditAction.
func ParseAuditAction(value string) (AuditAction, error) {
	return parse(value, validAuditActions, "audit action")
}
