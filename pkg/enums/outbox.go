package enums

import "slices"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateOrder      OutboxAggregateType = "order"
	AggregateSettlement OutboxAggregateType = "settlement"
	AggregateSeller     OutboxAggregateType = "seller"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateSettlement,
	AggregateSeller,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(value, validAggregateTypes, "aggregate type")
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventOrderCreated        OutboxEventType = "order_created"
	EventOrderStatusChanged  OutboxEventType = "order_status_changed"
	EventOrderRefunded       OutboxEventType = "order_refunded"
	EventDisputeOpened       OutboxEventType = "dispute_opened"
	EventDisputeResolved     OutboxEventType = "dispute_resolved"
	EventSettlementCreated   OutboxEventType = "settlement_created"
	EventSettlementProcessed OutboxEventType = "settlement_processed"
	EventSettlementFailed    OutboxEventType = "settlement_failed"
	EventSellerKYCDecided    OutboxEventType = "seller_kyc_decided"
	EventSellerRatesUpdated  OutboxEventType = "seller_rates_updated"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventOrderRefunded,
	EventDisputeOpened,
	EventDisputeResolved,
	EventSettlementCreated,
	EventSettlementProcessed,
	EventSettlementFailed,
	EventSellerKYCDecided,
	EventSellerRatesUpdated,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validOutboxEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(value, validOutboxEventTypes, "event type")
}

type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
