package orders

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/thalibox/marketplace-backend/internal/audit"
	"github.com/thalibox/marketplace-backend/internal/settlements"
	"github.com/thalibox/marketplace-backend/pkg/config"
	"github.com/thalibox/marketplace-backend/pkg/db"
	"github.com/thalibox/marketplace-backend/pkg/db/dbtest"
	"github.com/thalibox/marketplace-backend/pkg/db/models"
	"github.com/thalibox/marketplace-backend/pkg/enums"
	pkgerrors "github.com/thalibox/marketplace-backend/pkg/errors"
	"github.com/thalibox/marketplace-backend/pkg/outbox"
	"github.com/thalibox/marketplace-backend/pkg/pagination"
	"github.com/thalibox/marketplace-backend/pkg/realtime"
	"github.com/thalibox/marketplace-backend/pkg/types"
)

type sentNotification struct {
	userID  uuid.UUID
	typ     enums.NotificationType
	message string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (f *fakeNotifier) Notify(_ context.Context, userID uuid.UUID, typ enums.NotificationType, message string, _ types.NotificationPayload) (*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotification{userID: userID, typ: typ, message: message})
	return &models.Notification{ID: uuid.New(), UserID: userID, Type: typ, Message: message}, nil
}

func (f *fakeNotifier) forUser(id uuid.UUID) []sentNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentNotification
	for _, n := range f.sent {
		if n.userID == id {
			out = append(out, n)
		}
	}
	return out
}

type pushed struct {
	target string
	event  string
}

type fakeRealtime struct {
	mu     sync.Mutex
	events []pushed
}

func (f *fakeRealtime) Emit(_ context.Context, target, event string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, pushed{target: target, event: event})
	return nil
}

type fakeSMS struct {
	sent chan string
}

func (f *fakeSMS) Send(_ context.Context, to, body string) error {
	f.sent <- to + "|" + body
	return nil
}

type harness struct {
	conn        *gorm.DB
	svc         *Service
	settlements *settlements.Service
	notifier    *fakeNotifier
	realtime    *fakeRealtime
	sms         *fakeSMS
	buyer       models.User
	seller      models.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessOn(t, dbtest.Open(t))
}

func newHarnessOn(t *testing.T, conn *gorm.DB) *harness {
	t.Helper()
	client := db.NewFromGorm(conn)
	ob := outbox.NewService(outbox.NewRepository(conn), nil)
	auditRepo := audit.NewRepository(conn)
	notifier := &fakeNotifier{}
	rt := &fakeRealtime{}

	settlementSvc, err := settlements.NewService(settlements.ServiceParams{
		DB:       conn,
		Tx:       client,
		Outbox:   ob,
		Audit:    auditRepo,
		Rates:    settlements.NewRateResolver(config.SettlementConfig{DefaultCommissionPercent: 10, DefaultGSTPercent: 18}),
		Realtime: rt,
		Notifier: notifier,
	})
	require.NoError(t, err)

	sms := &fakeSMS{sent: make(chan string, 8)}
	svc, err := NewService(ServiceParams{
		DB:          conn,
		Tx:          client,
		Outbox:      ob,
		Audit:       auditRepo,
		Settlements: settlementSvc,
		Notifier:    notifier,
		Realtime:    rt,
		SMS:         sms,
		SMSTimeout:  time.Second,
	})
	require.NoError(t, err)

	phone := "+919800000001"
	h := &harness{
		conn:        conn,
		svc:         svc,
		settlements: settlementSvc,
		notifier:    notifier,
		realtime:    rt,
		sms:         sms,
		buyer:       models.User{ID: uuid.New(), Name: "Buyer", Email: "buyer@example.com", PasswordHash: "x", Role: enums.UserRoleUser, Phone: &phone, IsActive: true},
		seller:      models.User{ID: uuid.New(), Name: "Seller", Email: "seller@example.com", PasswordHash: "x", Role: enums.UserRoleSeller, KYCStatus: enums.KYCStatusVerified, IsActive: true},
	}
	require.NoError(t, conn.Create(&h.buyer).Error)
	require.NoError(t, conn.Create(&h.seller).Error)
	return h
}

func (h *harness) orderInput() NewOrderInput {
	return NewOrderInput{
		SellerID: h.seller.ID,
		Items: types.OrderItems{
			{ProductID: uuid.New(), Name: "Thali", Quantity: 2, Price: decimal.RequireFromString("400")},
			{ProductID: uuid.New(), Name: "Lassi", Quantity: 4, Price: decimal.RequireFromString("50")},
		},
		Total:           decimal.RequireFromString("1000"),
		DeliveryAddress: types.DeliveryAddress{Street: "1 MG Road", City: "Pune", State: "MH", Pincode: "411001"},
	}
}

func (h *harness) sellerActor() Actor {
	return Actor{UserID: h.seller.ID, Role: enums.UserRoleSeller}
}

func (h *harness) advance(t *testing.T, orderID uuid.UUID, to ...enums.OrderStatus) *models.Order {
	t.Helper()
	var order *models.Order
	for _, status := range to {
		var err error
		order, err = h.svc.UpdateStatus(context.Background(), UpdateStatusInput{OrderID: orderID, Status: status, Actor: h.sellerActor()})
		require.NoError(t, err, "advance to %s", status)
	}
	return order
}

func (h *harness) drainSMS(t *testing.T, n int) []string {
	t.Helper()
	var out []string
	for i := 0; i < n; i++ {
		select {
		case msg := <-h.sms.sent:
			out = append(out, msg)
		case <-time.After(2 * time.Second):
			t.Fatalf("expected %d sms, got %d", n, len(out))
		}
	}
	return out
}

func TestPlaceCODEnforcesTotal(t *testing.T) {
	h := newHarness(t)
	input := h.orderInput()
	input.Total = decimal.RequireFromString("999.99")

	_, err := h.svc.PlaceCOD(context.Background(), h.buyer.ID, input)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "got %v", err)

	order, err := h.svc.PlaceCOD(context.Background(), h.buyer.ID, h.orderInput())
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, enums.PaymentMethodCOD, order.PaymentMethod)
	assert.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
}

func TestPlaceCODRejectsUnknownSeller(t *testing.T) {
	h := newHarness(t)
	input := h.orderInput()
	input.SellerID = h.buyer.ID
	_, err := h.svc.PlaceCOD(context.Background(), uuid.New(), input)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "buyer is not a seller: %v", err)
}

func TestConfirmNotifiesBuyerExactlyOnce(t *testing.T) {
	h := newHarness(t)
	order, err := h.svc.PlaceCOD(context.Background(), h.buyer.ID, h.orderInput())
	require.NoError(t, err)
	before := len(h.notifier.forUser(h.buyer.ID))

	updated := h.advance(t, order.ID, enums.OrderStatusConfirmed)
	assert.Equal(t, enums.OrderStatusConfirmed, updated.Status)

	notes := h.notifier.forUser(h.buyer.ID)[before:]
	require.Len(t, notes, 1)
	assert.Equal(t, enums.NotificationTypeOrder, notes[0].typ)
	assert.Contains(t, notes[0].message, "confirmed")

	sms := h.drainSMS(t, 1)
	assert.Equal(t, "+919800000001|Your order is now confirmed!", sms[0])

	var auditCount, outboxCount int64
	require.NoError(t, h.conn.Model(&models.AuditLog{}).Where("target_id = ? AND action = ?", order.ID, enums.AuditOrderStatusChanged).Count(&auditCount).Error)
	require.NoError(t, h.conn.Model(&models.OutboxEvent{}).Where("aggregate_id = ? AND event_type = ?", order.ID, enums.EventOrderStatusChanged).Count(&outboxCount).Error)
	assert.EqualValues(t, 1, auditCount)
	assert.EqualValues(t, 1, outboxCount)
}

func TestUpdateStatusTrimsEstimatedTime(t *testing.T) {
	h := newHarness(t)
	order, err := h.svc.PlaceCOD(context.Background(), h.buyer.ID, h.orderInput())
	require.NoError(t, err)

	eta := "  30 mins "
	updated, err := h.svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:       order.ID,
		Status:        enums.OrderStatusConfirmed,
		Actor:         h.sellerActor(),
		EstimatedTime: &eta,
	})
	require.NoError(t, err)
	h.drainSMS(t, 1)
	require.NotNil(t, updated.EstimatedTime)
	assert.Equal(t, "30 mins", *updated.EstimatedTime)

	var stored models.Order
	require.NoError(t, h.conn.First(&stored, "id = ?", order.ID).Error)
	require.NotNil(t, stored.EstimatedTime)
	assert.Equal(t, "30 mins", *stored.EstimatedTime)
}

func TestDeliveredCreatesSettlement(t *testing.T) {
	h := newHarness(t)
	order, err := h.svc.PlaceCOD(context.Background(), h.buyer.ID, h.orderInput())
	require.NoError(t, err)

	h.advance(t, order.ID,
		enums.OrderStatusConfirmed,
		enums.OrderStatusPreparing,
		enums.OrderStatusReady,
		enums.OrderStatusOutForDelivery,
		enums.OrderStatusDelivered,
	)
	h.drainSMS(t, 5)

	var settlement models.Settlement
	require.NoError(t, h.conn.First(&settlement, "order_id = ?", order.ID).Error)
	assert.Equal(t, enums.SettlementStatusPending, settlement.Status)
	assert.Equal(t, h.seller.ID, settlement.SellerID)
	assert.True(t, settlement.Commission.Equal(decimal.NewFromInt(100)), "commission %s", settlement.Commission)
	assert.True(t, settlement.GST.Equal(decimal.NewFromInt(180)), "gst %s", settlement.GST)
	assert.True(t, settlement.NetAmount.Equal(decimal.NewFromInt(720)), "net %s", settlement.NetAmount)

	_, err = h.svc.UpdateStatus(context.Background(), UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusCancelled, Actor: h.sellerActor()})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidTransition))
}

func TestCancelStoresReason(t *testing.T) {
	h := newHarness(t)
	order, err := h.svc.PlaceCOD(context.Background(), h.buyer.ID, h.orderInput())
	require.NoError(t, err)

	reason := "out of stock"
	updated, err := h.svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID:            order.ID,
		Status:             enums.OrderStatusCancelled,
		CancellationReason: &reason,
		Actor:              h.sellerActor(),
	})
	require.NoError(t, err)
	h.drainSMS(t, 1)

	var reloaded models.Order
	require.NoError(t, h.conn.First(&reloaded, "id = ?", updated.ID).Error)
	assert.Equal(t, enums.OrderStatusCancelled, reloaded.Status)
	require.NotNil(t, reloaded.CancellationReason)
	assert.Equal(t, reason, *reloaded.CancellationReason)
}

func TestUpdateStatusForbiddenForOtherSeller(t *testing.T) {
	h := newHarness(t)
	order, err := h.svc.PlaceCOD(context.Background(), h.buyer.ID, h.orderInput())
	require.NoError(t, err)

	_, err = h.svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: order.ID,
		Status:  enums.OrderStatusConfirmed,
		Actor:   Actor{UserID: uuid.New(), Role: enums.UserRoleSeller},
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden))
}

func TestCreatePaidReplayReturnsExistingOrder(t *testing.T) {
	h := newHarness(t)
	input := PaidOrderInput{
		BuyerID:          h.buyer.ID,
		Order:            h.orderInput(),
		Gateway:          enums.PaymentGatewayRazorpay,
		GatewayPaymentID: "pay_123",
	}

	first, created, err := h.svc.CreatePaid(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, enums.OrderStatusConfirmed, first.Status)
	assert.Equal(t, enums.PaymentStatusPaid, first.PaymentStatus)

	again, created, err := h.svc.CreatePaid(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	placed := 0
	for _, n := range h.notifier.forUser(h.buyer.ID) {
		if strings.Contains(n.message, "placed successfully") {
			placed++
		}
	}
	assert.Equal(t, 1, placed)
}

func TestCreatePaidReplayByOtherBuyerIsForbidden(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	input := PaidOrderInput{
		BuyerID:          h.buyer.ID,
		Order:            h.orderInput(),
		Gateway:          enums.PaymentGatewayStripe,
		GatewayPaymentID: "pi_owned",
	}
	_, _, err := h.svc.CreatePaid(ctx, input)
	require.NoError(t, err)

	other := models.User{ID: uuid.New(), Name: "Other", Email: "other@example.com", PasswordHash: "x", Role: enums.UserRoleUser, IsActive: true}
	require.NoError(t, h.conn.Create(&other).Error)

	input.BuyerID = other.ID
	order, created, err := h.svc.CreatePaid(ctx, input)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden), "got %v", err)
	assert.Nil(t, order)
	assert.False(t, created)
}

func TestDisputeResolvedAsRefund(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order, _, err := h.svc.CreatePaid(ctx, PaidOrderInput{
		BuyerID:          h.buyer.ID,
		Order:            h.orderInput(),
		Gateway:          enums.PaymentGatewayStripe,
		GatewayPaymentID: "pi_1",
	})
	require.NoError(t, err)

	_, err = h.svc.OpenDispute(ctx, h.buyer.ID, order.ID, "cold food")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict), "not delivered yet")

	h.advance(t, order.ID,
		enums.OrderStatusPreparing,
		enums.OrderStatusReady,
		enums.OrderStatusOutForDelivery,
		enums.OrderStatusDelivered,
	)
	h.drainSMS(t, 4)

	disputed, err := h.svc.OpenDispute(ctx, h.buyer.ID, order.ID, "cold food")
	require.NoError(t, err)
	assert.Equal(t, enums.DisputeStatusOpen, disputed.DisputeStatus)

	admin := uuid.New()
	resolved, err := h.svc.ResolveDispute(ctx, ResolveDisputeInput{
		OrderID:    order.ID,
		AdminID:    admin,
		Status:     enums.DisputeStatusRefunded,
		Resolution: "refund issued",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.DisputeStatusRefunded, resolved.DisputeStatus)
	assert.Equal(t, enums.PaymentStatusRefunded, resolved.PaymentStatus)

	h.realtime.mu.Lock()
	defer h.realtime.mu.Unlock()
	require.NotEmpty(t, h.realtime.events)
	last := h.realtime.events[len(h.realtime.events)-1]
	assert.Equal(t, realtime.SellerTarget(h.seller.ID), last.target)
	assert.Equal(t, realtime.EventDisputeResolved, last.event)

	_, err = h.svc.ResolveDispute(ctx, ResolveDisputeInput{OrderID: order.ID, AdminID: admin, Status: enums.DisputeStatusResolved, Resolution: "again"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
}

func TestRefundRequiresPaidOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cod, err := h.svc.PlaceCOD(ctx, h.buyer.ID, h.orderInput())
	require.NoError(t, err)

	_, err = h.svc.Refund(ctx, cod.ID, uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))

	paid, _, err := h.svc.CreatePaid(ctx, PaidOrderInput{BuyerID: h.buyer.ID, Order: h.orderInput(), Gateway: enums.PaymentGatewayStripe, GatewayPaymentID: "pi_2"})
	require.NoError(t, err)
	refunded, err := h.svc.Refund(ctx, paid.ID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusRefunded, refunded.PaymentStatus)

	_, err = h.svc.Refund(ctx, paid.ID, uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
}

func TestRefundVoidsPendingSettlement(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order, _, err := h.svc.CreatePaid(ctx, PaidOrderInput{BuyerID: h.buyer.ID, Order: h.orderInput(), Gateway: enums.PaymentGatewayStripe, GatewayPaymentID: "pi_refund"})
	require.NoError(t, err)
	h.advance(t, order.ID,
		enums.OrderStatusPreparing,
		enums.OrderStatusReady,
		enums.OrderStatusOutForDelivery,
		enums.OrderStatusDelivered,
	)
	h.drainSMS(t, 4)

	var pending models.Settlement
	require.NoError(t, h.conn.First(&pending, "order_id = ?", order.ID).Error)
	require.Equal(t, enums.SettlementStatusPending, pending.Status)

	admin := uuid.New()
	_, err = h.svc.Refund(ctx, order.ID, admin)
	require.NoError(t, err)

	var voided models.Settlement
	require.NoError(t, h.conn.First(&voided, "id = ?", pending.ID).Error)
	assert.Equal(t, enums.SettlementStatusFailed, voided.Status)
	require.NotNil(t, voided.FailureReason)
	assert.Equal(t, settlements.ReasonOrderRefunded, *voided.FailureReason)

	_, err = h.settlements.Process(ctx, settlements.ProcessInput{SettlementID: pending.ID, AdminID: admin})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict), "got %v", err)

	var seller models.User
	require.NoError(t, h.conn.First(&seller, "id = ?", h.seller.ID).Error)
	assert.True(t, seller.EarningsBalance.IsZero(), "balance %s", seller.EarningsBalance)
}

func TestBuyerReadsAreOwnerScoped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order, err := h.svc.PlaceCOD(ctx, h.buyer.ID, h.orderInput())
	require.NoError(t, err)

	_, err = h.svc.GetForBuyer(ctx, uuid.New(), order.ID)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	got, err := h.svc.GetForBuyer(ctx, h.buyer.ID, order.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 2)

	page, err := h.svc.ListForBuyer(ctx, h.buyer.ID, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	pending := enums.OrderStatusPending
	sellerPage, err := h.svc.ListForSeller(ctx, h.seller.ID, &pending, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, sellerPage.Items, 1)

	confirmed := enums.OrderStatusConfirmed
	sellerPage, err = h.svc.ListForSeller(ctx, h.seller.ID, &confirmed, pagination.Params{})
	require.NoError(t, err)
	assert.Empty(t, sellerPage.Items)
}

func TestRateDeliveredOrderOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order, err := h.svc.PlaceCOD(ctx, h.buyer.ID, h.orderInput())
	require.NoError(t, err)

	_, err = h.svc.Rate(ctx, RateInput{OrderID: order.ID, BuyerID: h.buyer.ID, Rating: 5})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))

	h.advance(t, order.ID,
		enums.OrderStatusConfirmed,
		enums.OrderStatusPreparing,
		enums.OrderStatusReady,
		enums.OrderStatusOutForDelivery,
		enums.OrderStatusDelivered,
	)
	h.drainSMS(t, 5)

	_, err = h.svc.Rate(ctx, RateInput{OrderID: order.ID, BuyerID: h.buyer.ID, Rating: 6})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	feedback := "  hot and fresh  "
	rated, err := h.svc.Rate(ctx, RateInput{OrderID: order.ID, BuyerID: h.buyer.ID, Rating: 4, Feedback: &feedback})
	require.NoError(t, err)
	require.NotNil(t, rated.Rating)
	assert.Equal(t, 4, *rated.Rating)
	require.NotNil(t, rated.Feedback)
	assert.Equal(t, "hot and fresh", *rated.Feedback)

	var stored models.Order
	require.NoError(t, h.conn.First(&stored, "id = ?", order.ID).Error)
	require.NotNil(t, stored.Feedback)
	assert.Equal(t, *stored.Feedback, *rated.Feedback)

	_, err = h.svc.Rate(ctx, RateInput{OrderID: order.ID, BuyerID: h.buyer.ID, Rating: 3})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
}
