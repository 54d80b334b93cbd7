package types

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/thalibox/marketplace-backend/pkg/enums"
)

// PayloadKind selects which branch of NotificationPayload is populated.
type PayloadKind string

const (
	PayloadKindOrder      PayloadKind = "order"
	PayloadKindSettlement PayloadKind = "settlement"
	PayloadKindKYC        PayloadKind = "kyc"
	PayloadKindDispute    PayloadKind = "dispute"
)

type OrderRef struct {
	OrderID uuid.UUID         `json:"orderId"`
	Status  enums.OrderStatus `json:"status"`
}

type SettlementRef struct {
	SettlementID uuid.UUID              `json:"settlementId"`
	OrderID      uuid.UUID              `json:"orderId"`
	NetAmount    decimal.Decimal        `json:"netAmount"`
	Status       enums.SettlementStatus `json:"status"`
}

type KYCRef struct {
	Status enums.KYCStatus `json:"status"`
	Reason string          `json:"reason,omitempty"`
}

type DisputeRef struct {
	OrderID    uuid.UUID           `json:"orderId"`
	Status     enums.DisputeStatus `json:"status"`
	Resolution string              `json:"resolution,omitempty"`
}

// NotificationPayload is a tagged union. Exactly the branch named by Kind is
// set.
type NotificationPayload struct {
	Kind       PayloadKind    `json:"kind"`
	Order      *OrderRef      `json:"order,omitempty"`
	Settlement *SettlementRef `json:"settlement,omitempty"`
	KYC        *KYCRef        `json:"kyc,omitempty"`
	Dispute    *DisputeRef    `json:"dispute,omitempty"`
}

func OrderPayload(orderID uuid.UUID, status enums.OrderStatus) NotificationPayload {
	return NotificationPayload{Kind: PayloadKindOrder, Order: &OrderRef{OrderID: orderID, Status: status}}
}

func SettlementPayload(ref SettlementRef) NotificationPayload {
	return NotificationPayload{Kind: PayloadKindSettlement, Settlement: &ref}
}

func KYCPayload(status enums.KYCStatus, reason string) NotificationPayload {
	return NotificationPayload{Kind: PayloadKindKYC, KYC: &KYCRef{Status: status, Reason: reason}}
}

func DisputePayload(ref DisputeRef) NotificationPayload {
	return NotificationPayload{Kind: PayloadKindDispute, Dispute: &ref}
}

// Validate checks the union discipline.
func (p NotificationPayload) Validate() error {
	set := 0
	for _, present := range []bool{p.Order != nil, p.Settlement != nil, p.KYC != nil, p.Dispute != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("notification payload: expected exactly one branch, got %d", set)
	}

	var ok bool
	switch p.Kind {
	case PayloadKindOrder:
		ok = p.Order != nil
	case PayloadKindSettlement:
		ok = p.Settlement != nil
	case PayloadKindKYC:
		ok = p.KYC != nil
	case PayloadKindDispute:
		ok = p.Dispute != nil
	default:
		return fmt.Errorf("notification payload: unknown kind %q", p.Kind)
	}
	if !ok {
		return fmt.Errorf("notification payload: kind %q does not match populated branch", p.Kind)
	}
	return nil
}
