package registry

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/thalibox/marketplace-backend/pkg/db/models"
	"github.com/thalibox/marketplace-backend/pkg/enums"
	"github.com/thalibox/marketplace-backend/pkg/outbox"
	"github.com/thalibox/marketplace-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate/topic/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// NewEventRegistry routes every marketplace event to the domain topic.
func NewEventRegistry(domainTopic string) (*EventRegistry, error) {
	if domainTopic == "" {
		return nil, fmt.Errorf("domain topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	for _, desc := range []EventDescriptor{
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, PayloadFactory: func() interface{} { return &payloads.OrderCreatedEvent{} }},
		{EventType: enums.EventOrderStatusChanged, AggregateType: enums.AggregateOrder, PayloadFactory: func() interface{} { return &payloads.OrderStatusChangedEvent{} }},
		{EventType: enums.EventOrderRefunded, AggregateType: enums.AggregateOrder, PayloadFactory: func() interface{} { return &payloads.OrderRefundedEvent{} }},
		{EventType: enums.EventDisputeOpened, AggregateType: enums.AggregateOrder, PayloadFactory: func() interface{} { return &payloads.DisputeOpenedEvent{} }},
		{EventType: enums.EventDisputeResolved, AggregateType: enums.AggregateOrder, PayloadFactory: func() interface{} { return &payloads.DisputeResolvedEvent{} }},
		{EventType: enums.EventSettlementCreated, AggregateType: enums.AggregateSettlement, PayloadFactory: func() interface{} { return &payloads.SettlementCreatedEvent{} }},
		{EventType: enums.EventSettlementProcessed, AggregateType: enums.AggregateSettlement, PayloadFactory: func() interface{} { return &payloads.SettlementProcessedEvent{} }},
		{EventType: enums.EventSettlementFailed, AggregateType: enums.AggregateSettlement, PayloadFactory: func() interface{} { return &payloads.SettlementFailedEvent{} }},
		{EventType: enums.EventSellerKYCDecided, AggregateType: enums.AggregateSeller, PayloadFactory: func() interface{} { return &payloads.SellerKYCDecidedEvent{} }},
		{EventType: enums.EventSellerRatesUpdated, AggregateType: enums.AggregateSeller, PayloadFactory: func() interface{} { return &payloads.SellerRatesUpdatedEvent{} }},
	} {
		desc.Topic = domainTopic
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	envelope, payload, err := r.decode(desc, event.Payload)
	if err != nil {
		return nil, err
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}

// Decode parses a raw envelope as delivered to consumers, keyed by event type.
func (r *EventRegistry) Decode(eventType enums.OutboxEventType, raw []byte) (*ResolvedEvent, error) {
	desc, ok := r.entries[eventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", eventType))
	}
	envelope, payload, err := r.decode(desc, raw)
	if err != nil {
		return nil, err
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}

func (r *EventRegistry) decode(desc EventDescriptor, raw []byte) (outbox.PayloadEnvelope, interface{}, error) {
	envelope, err := outbox.DecodeEnvelope(raw)
	if err != nil {
		return envelope, nil, NewNonRetryableError(fmt.Errorf("%s: %w", desc.EventType, err))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return envelope, nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", desc.EventType, err))
	}
	return envelope, payload, nil
}
