package router

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/thalibox/marketplace-backend/internal/analytics/types"
	"github.com/thalibox/marketplace-backend/pkg/enums"
	"github.com/thalibox/marketplace-backend/pkg/logger"
	"github.com/thalibox/marketplace-backend/pkg/outbox"
	"github.com/thalibox/marketplace-backend/pkg/outbox/payloads"
)

type fakeWriter struct {
	inserted []types.MarketplaceEventRow
	err      error
}

func (f *fakeWriter) InsertMarketplace(_ context.Context, row types.MarketplaceEventRow) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, row)
	return nil
}

func newTestRouter(t *testing.T, writer *fakeWriter) *Router {
	t.Helper()
	r, err := NewRouter(writer, logger.New(logger.Options{ServiceName: "router-test"}))
	require.NoError(t, err)
	return r
}

func envelopeFor(t *testing.T, eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, id uuid.UUID, data any) types.Envelope {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return types.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		AggregateType: aggregate,
		AggregateID:   id.String(),
		OccurredAt:    time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC),
		Payload:       raw,
	}
}

func TestRouterRejectsUnknownEvent(t *testing.T) {
	r := newTestRouter(t, &fakeWriter{})
	err := r.Handle(context.Background(), types.Envelope{
		EventType: enums.OutboxEventType("coupon_redeemed"),
		Payload:   []byte(`{}`),
	})
	require.True(t, errors.Is(err, ErrUnsupportedEventType))
}

func TestRouterRejectsEmptyPayload(t *testing.T) {
	r := newTestRouter(t, &fakeWriter{})
	err := r.Handle(context.Background(), types.Envelope{EventType: enums.EventOrderCreated})
	require.ErrorContains(t, err, "empty payload")
}

func TestOrderCreatedRow(t *testing.T) {
	writer := &fakeWriter{}
	r := newTestRouter(t, writer)

	orderID, buyerID, sellerID := uuid.New(), uuid.New(), uuid.New()
	gateway := enums.PaymentGatewayRazorpay
	env := envelopeFor(t, enums.EventOrderCreated, enums.AggregateOrder, orderID, payloads.OrderCreatedEvent{
		OrderID:        orderID,
		UserID:         buyerID,
		SellerID:       sellerID,
		Total:          decimal.RequireFromString("1249.50"),
		ItemCount:      3,
		PaymentMethod:  enums.PaymentMethodOnline,
		PaymentStatus:  enums.PaymentStatusPaid,
		PaymentGateway: &gateway,
	})
	env.Actor = &outbox.ActorRef{UserID: buyerID, Role: enums.UserRoleUser}

	require.NoError(t, r.Handle(context.Background(), env))
	require.Len(t, writer.inserted, 1)

	row := writer.inserted[0]
	require.Equal(t, env.EventID, row.EventID)
	require.Equal(t, "order_created", row.EventType)
	require.Equal(t, "order", row.AggregateType)
	require.Equal(t, orderID.String(), row.OrderID.StringVal)
	require.Equal(t, buyerID.String(), row.BuyerID.StringVal)
	require.Equal(t, sellerID.String(), row.SellerID.StringVal)
	require.Equal(t, buyerID.String(), row.ActorID.StringVal)
	require.Equal(t, "user", row.ActorRole.StringVal)
	require.Equal(t, "pending", row.OrderStatus.StringVal)
	require.Equal(t, string(enums.PaymentGatewayRazorpay), row.PaymentGateway.StringVal)
	require.Equal(t, int64(124950), row.AmountPaise.Int64)
	require.False(t, row.SettlementID.Valid)
	require.True(t, row.Payload.Valid)
}

func TestSettlementCreatedRowCarriesSplit(t *testing.T) {
	writer := &fakeWriter{}
	r := newTestRouter(t, writer)

	settlementID := uuid.New()
	env := envelopeFor(t, enums.EventSettlementCreated, enums.AggregateSettlement, settlementID, payloads.SettlementCreatedEvent{
		SettlementID: settlementID,
		OrderID:      uuid.New(),
		SellerID:     uuid.New(),
		OrderAmount:  decimal.NewFromInt(1000),
		Commission:   decimal.NewFromInt(100),
		GST:          decimal.NewFromInt(180),
		NetAmount:    decimal.NewFromInt(720),
	})

	require.NoError(t, r.Handle(context.Background(), env))
	row := writer.inserted[0]
	require.Equal(t, int64(100000), row.AmountPaise.Int64)
	require.Equal(t, int64(10000), row.CommissionPaise.Int64)
	require.Equal(t, int64(18000), row.GSTPaise.Int64)
	require.Equal(t, int64(72000), row.NetPaise.Int64)
	require.False(t, row.ActorID.Valid)
}

func TestStatusChangeRowUsesTargetStatus(t *testing.T) {
	writer := &fakeWriter{}
	r := newTestRouter(t, writer)

	orderID := uuid.New()
	env := envelopeFor(t, enums.EventOrderStatusChanged, enums.AggregateOrder, orderID, payloads.OrderStatusChangedEvent{
		OrderID: orderID,
		From:    enums.OrderStatusOutForDelivery,
		To:      enums.OrderStatusDelivered,
	})

	require.NoError(t, r.Handle(context.Background(), env))
	require.Equal(t, "delivered", writer.inserted[0].OrderStatus.StringVal)
}

func TestRouterSurfacesWriterError(t *testing.T) {
	r := newTestRouter(t, &fakeWriter{err: errors.New("quota")})
	sellerID := uuid.New()
	env := envelopeFor(t, enums.EventSellerKYCDecided, enums.AggregateSeller, sellerID, payloads.SellerKYCDecidedEvent{
		SellerID: sellerID,
		Status:   enums.KYCStatusVerified,
	})
	require.Error(t, r.Handle(context.Background(), env))
}

func TestRouterRejectsMalformedPayload(t *testing.T) {
	r := newTestRouter(t, &fakeWriter{})
	err := r.Handle(context.Background(), types.Envelope{
		EventType: enums.EventSettlementFailed,
		Payload:   []byte(`{"settlementId": 12}`),
	})
	require.ErrorContains(t, err, "decode settlement_failed payload")
}
