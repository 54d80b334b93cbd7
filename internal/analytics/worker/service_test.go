package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/thalibox/marketplace-backend/internal/analytics/router"
	"github.com/thalibox/marketplace-backend/internal/analytics/types"
	"github.com/thalibox/marketplace-backend/pkg/enums"
	"github.com/thalibox/marketplace-backend/pkg/logger"
	"github.com/thalibox/marketplace-backend/pkg/outbox"
	"github.com/thalibox/marketplace-backend/pkg/outbox/idempotency"
)

func TestDecodeEnvelope(t *testing.T) {
	eventID := uuid.NewString()
	actorID := uuid.New()
	occurred := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := buildMessage(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: occurred,
		Actor:      &outbox.ActorRef{UserID: actorID, Role: enums.UserRoleSeller},
		Data:       json.RawMessage(`{"orderId":"o-1"}`),
	}, map[string]string{
		"event_type":     "order_status_changed",
		"aggregate_type": "order",
		"aggregate_id":   "o-1",
	})

	env, err := decodeEnvelope(msg)
	require.NoError(t, err)
	require.Equal(t, enums.EventOrderStatusChanged, env.EventType)
	require.Equal(t, enums.AggregateOrder, env.AggregateType)
	require.Equal(t, "o-1", env.AggregateID)
	require.Equal(t, eventID, env.EventID)
	require.True(t, env.OccurredAt.Equal(occurred))
	require.Equal(t, actorID, env.Actor.UserID)
	require.JSONEq(t, `{"orderId":"o-1"}`, string(env.Payload))
}

func TestDecodeEnvelopeFallsBackToAttributes(t *testing.T) {
	eventID := uuid.NewString()
	created := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	msg := buildMessage(outbox.PayloadEnvelope{Data: json.RawMessage(`{}`)}, map[string]string{
		"event_id":       eventID,
		"event_type":     "settlement_failed",
		"aggregate_type": "settlement",
		"aggregate_id":   "s-1",
		"created_at":     created.Format(time.RFC3339Nano),
	})

	env, err := decodeEnvelope(msg)
	require.NoError(t, err)
	require.Equal(t, eventID, env.EventID)
	require.True(t, env.OccurredAt.Equal(created))
}

func TestDecodeEnvelopeRejectsUnknownTypes(t *testing.T) {
	base := outbox.PayloadEnvelope{EventID: uuid.NewString(), Data: json.RawMessage(`{}`)}
	cases := []map[string]string{
		{"event_type": "cart_abandoned", "aggregate_type": "order", "aggregate_id": "x"},
		{"event_type": "order_created", "aggregate_type": "cart", "aggregate_id": "x"},
		{"event_type": "order_created", "aggregate_type": "order"},
	}
	for i, attrs := range cases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			_, err := decodeEnvelope(buildMessage(base, attrs))
			require.Error(t, err)
		})
	}
}

func TestProcessAlreadyProcessed(t *testing.T) {
	manager := &stubManager{state: idempotency.Done}
	handler := &stubHandler{}
	svc := newTestService(t, handler, manager)

	require.True(t, svc.process(context.Background(), orderCreatedMessage()))
	require.False(t, handler.called)
	require.Len(t, manager.claimed, 1)
}

func TestProcessInFlightNacksWithoutHandling(t *testing.T) {
	manager := &stubManager{state: idempotency.InFlight}
	handler := &stubHandler{}
	svc := newTestService(t, handler, manager)

	require.False(t, svc.process(context.Background(), orderCreatedMessage()))
	require.False(t, handler.called)
	require.Empty(t, manager.released)
}

func TestProcessHandlerErrorNacksAndReleasesClaim(t *testing.T) {
	manager := &stubManager{}
	handler := &stubHandler{err: errors.New("bigquery unavailable")}
	svc := newTestService(t, handler, manager)

	require.False(t, svc.process(context.Background(), orderCreatedMessage()))
	require.True(t, handler.called)
	require.Len(t, manager.released, 1)
	require.Equal(t, manager.claimed[0], manager.released[0])
	require.Empty(t, manager.completed)
}

func TestProcessIdempotencyErrorNacks(t *testing.T) {
	manager := &stubManager{claimErr: errors.New("redis down")}
	handler := &stubHandler{}
	svc := newTestService(t, handler, manager)

	require.False(t, svc.process(context.Background(), orderCreatedMessage()))
	require.False(t, handler.called)
}

func TestProcessInvalidEnvelopeAcks(t *testing.T) {
	manager := &stubManager{}
	handler := &stubHandler{}
	svc := newTestService(t, handler, manager)

	require.True(t, svc.process(context.Background(), &gcppubsub.Message{Data: []byte("not json")}))
	require.False(t, handler.called)
	require.Empty(t, manager.claimed)
}

func TestProcessUnsupportedEventAcks(t *testing.T) {
	manager := &stubManager{}
	handler := &stubHandler{err: fmt.Errorf("%w: x", router.ErrUnsupportedEventType)}
	svc := newTestService(t, handler, manager)

	require.True(t, svc.process(context.Background(), orderCreatedMessage()))
	require.Empty(t, manager.released)
	require.Len(t, manager.completed, 1)
}

func TestProcessSuccessPassesEnvelope(t *testing.T) {
	handler := &stubHandler{}
	svc := newTestService(t, handler, &stubManager{})

	require.True(t, svc.process(context.Background(), orderCreatedMessage()))
	require.Equal(t, enums.EventOrderCreated, handler.envelope.EventType)
	require.Equal(t, "abc-123", handler.envelope.AggregateID)
}

func orderCreatedMessage() *gcppubsub.Message {
	return buildMessage(outbox.PayloadEnvelope{
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{"orderId":"abc-123"}`),
	}, map[string]string{
		"event_type":     "order_created",
		"aggregate_type": "order",
		"aggregate_id":   "abc-123",
	})
}

func buildMessage(payload outbox.PayloadEnvelope, attrs map[string]string) *gcppubsub.Message {
	data, _ := json.Marshal(payload)
	return &gcppubsub.Message{ID: "msg-1", Data: data, Attributes: attrs}
}

func newTestService(t *testing.T, handler Handler, manager *stubManager) *Service {
	t.Helper()
	return &Service{
		handler: handler,
		manager: manager,
		logg:    logger.New(logger.Options{ServiceName: "analytics-test"}),
	}
}

type stubHandler struct {
	called   bool
	envelope types.Envelope
	err      error
}

func (h *stubHandler) Handle(_ context.Context, envelope types.Envelope) error {
	h.called = true
	h.envelope = envelope
	return h.err
}

type stubManager struct {
	state     idempotency.State
	claimErr  error
	claimed   []uuid.UUID
	completed []uuid.UUID
	released  []uuid.UUID
}

func (s *stubManager) Claim(_ context.Context, _ string, eventID uuid.UUID) (idempotency.State, error) {
	s.claimed = append(s.claimed, eventID)
	return s.state, s.claimErr
}

func (s *stubManager) Complete(_ context.Context, _ string, eventID uuid.UUID) error {
	s.completed = append(s.completed, eventID)
	return nil
}

func (s *stubManager) Release(_ context.Context, _ string, eventID uuid.UUID) error {
	s.released = append(s.released, eventID)
	return nil
}
