package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/thalibox/marketplace-backend/internal/analytics/router"
	"github.com/thalibox/marketplace-backend/internal/analytics/types"
	"github.com/thalibox/marketplace-backend/pkg/enums"
	"github.com/thalibox/marketplace-backend/pkg/logger"
	"github.com/thalibox/marketplace-backend/pkg/outbox"
	"github.com/thalibox/marketplace-backend/pkg/outbox/idempotency"
)

const consumerName = "analytics"

// Handler processes one decoded domain event.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

type idempotencyChecker interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (idempotency.State, error)
	Complete(ctx context.Context, consumer string, eventID uuid.UUID) error
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Service consumes the domain topic. Each event id is handled at most once
// per idempotency window. A handler failure releases the claim and nacks so
// Pub/Sub redelivers.
type Service struct {
	subscription *gcppubsub.Subscriber
	handler      Handler
	manager      idempotencyChecker
	logg         *logger.Logger
}

func NewService(subscription *gcppubsub.Subscriber, handler Handler, manager idempotencyChecker, logg *logger.Logger) (*Service, error) {
	switch {
	case subscription == nil:
		return nil, errors.New("analytics subscription is required")
	case handler == nil:
		return nil, errors.New("analytics handler is required")
	case manager == nil:
		return nil, errors.New("idempotency manager is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}
	return &Service{
		subscription: subscription,
		handler:      handler,
		manager:      manager,
		logg:         logg,
	}, nil
}

// Run blocks until ctx is canceled or the subscription fails.
func (s *Service) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(msgCtx context.Context, msg *gcppubsub.Message) {
		if s.process(msgCtx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process reports whether msg should be acked.
func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) bool {
	ctx = s.logg.WithField(ctx, "message_id", msg.ID)

	envelope, err := decodeEnvelope(msg)
	if err != nil {
		// malformed messages never become valid on redelivery
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "invalid analytics envelope")
		return true
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":       envelope.EventID,
		"event_type":     envelope.EventType,
		"aggregate_type": envelope.AggregateType,
		"aggregate_id":   envelope.AggregateID,
	})

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		s.logg.Warn(ctx, "invalid event id")
		return true
	}

	state, err := s.manager.Claim(ctx, consumerName, eventID)
	if err != nil {
		s.logg.Error(ctx, "idempotency claim failed", err)
		return false
	}
	switch state {
	case idempotency.Done:
		s.logg.Info(ctx, "event already processed")
		return true
	case idempotency.InFlight:
		s.logg.Info(ctx, "event in flight on another consumer")
		return false
	}

	if err := s.handler.Handle(ctx, *envelope); err != nil {
		if errors.Is(err, router.ErrUnsupportedEventType) {
			s.logg.Warn(ctx, "no analytics route for event")
			s.complete(ctx, eventID)
			return true
		}
		s.logg.Error(ctx, "analytics handler failed", err)
		if relErr := s.manager.Release(ctx, consumerName, eventID); relErr != nil {
			s.logg.Error(ctx, "failed to release idempotency claim", relErr)
		}
		return false
	}

	s.complete(ctx, eventID)
	s.logg.Info(ctx, "analytics event handled")
	return true
}

// complete failures are logged only: the lease expires and a redelivery
// would at worst be handled twice.
func (s *Service) complete(ctx context.Context, eventID uuid.UUID) {
	if err := s.manager.Complete(ctx, consumerName, eventID); err != nil {
		s.logg.Error(ctx, "failed to record processed event", err)
	}
}

// decodeEnvelope combines the stored outbox envelope in the body with the
// routing attributes set by the publisher.
func decodeEnvelope(msg *gcppubsub.Message) (*types.Envelope, error) {
	stored, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		return nil, err
	}

	eventType, err := enums.ParseOutboxEventType(attr(msg, "event_type"))
	if err != nil {
		return nil, fmt.Errorf("event_type: %w", err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(attr(msg, "aggregate_type"))
	if err != nil {
		return nil, fmt.Errorf("aggregate_type: %w", err)
	}
	aggregateID := attr(msg, "aggregate_id")
	if aggregateID == "" {
		return nil, errors.New("aggregate_id missing")
	}

	eventID := strings.TrimSpace(stored.EventID)
	if eventID == "" {
		eventID = attr(msg, "event_id")
	}
	if eventID == "" {
		return nil, errors.New("event_id missing")
	}

	occurredAt := stored.OccurredAt
	if occurredAt.IsZero() {
		if parsed, err := time.Parse(time.RFC3339Nano, attr(msg, "created_at")); err == nil {
			occurredAt = parsed
		} else {
			occurredAt = msg.PublishTime
		}
	}

	return &types.Envelope{
		EventID:       eventID,
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    occurredAt.UTC(),
		Actor:         stored.Actor,
		Payload:       stored.Data,
	}, nil
}

func attr(msg *gcppubsub.Message, key string) string {
	return strings.TrimSpace(msg.Attributes[key])
}
