package types

import (
	"encoding/json"
	"time"

	"github.com/thalibox/marketplace-backend/pkg/enums"
	"github.com/thalibox/marketplace-backend/pkg/outbox"
)

// Envelope is a domain event as read off the Pub/Sub topic.
type Envelope struct {
	EventID       string
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	OccurredAt    time.Time
	Actor         *outbox.ActorRef
	Payload       json.RawMessage
}
