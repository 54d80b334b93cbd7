package enums

import "slices"

// KYCStatus is the seller identity verification state.
type KYCStatus string

const (
	KYCStatusPending   KYCStatus = "pending"
	KYCStatusSubmitted KYCStatus = "submitted"
	KYCStatusVerified  KYCStatus = "verified"
	KYCStatusRejected  KYCStatus = "rejected"
)

var validKYCStatuses = []KYCStatus{
	KYCStatusPending,
	KYCStatusSubmitted,
	KYCStatusVerified,
	KYCStatusRejected,
}

// IsValid reports whether the value is a known KYCStatus.
func (k KYCStatus) IsValid() bool {
	return slices.Contains(validKYCStatuses, k)
}

// ParseKYCStatus converts raw input into a KYCStatus.
func ParseKYCStatus(value string) (KYCStatus, error) {
	return parse(value, validKYCStatuses, "kyc status")
}
