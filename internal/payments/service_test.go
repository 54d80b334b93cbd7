package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/thalibox/marketplace-backend/internal/orders"
	"github.com/thalibox/marketplace-backend/pkg/db/models"
	"github.com/thalibox/marketplace-backend/pkg/enums"
	pkgerrors "github.com/thalibox/marketplace-backend/pkg/errors"
	"github.com/thalibox/marketplace-backend/pkg/razorpay"
	"github.com/thalibox/marketplace-backend/pkg/security"
	stripegw "github.com/thalibox/marketplace-backend/pkg/stripe"
	"github.com/thalibox/marketplace-backend/pkg/types"
)

const testSecret = "rzp_secret"

func TestConfirmStripeRequiresSucceededIntent(t *testing.T) {
	gateway := &stubStripe{intent: &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusRequiresPaymentMethod, Amount: 100000}}
	creator := &stubOrders{}
	svc := newService(t, gateway, nil, creator)

	_, err := svc.ConfirmStripe(context.Background(), uuid.New(), ConfirmStripeInput{PaymentIntentID: "pi_1", Order: cart("1000")})
	if !pkgerrors.Is(err, pkgerrors.CodePaymentNotCompleted) {
		t.Fatalf("expected PAYMENT_NOT_COMPLETED, got %v", err)
	}
	if len(creator.calls) != 0 {
		t.Fatal("no order may be created for an incomplete payment")
	}
}

func TestConfirmStripeChecksAmount(t *testing.T) {
	gateway := &stubStripe{intent: &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusSucceeded, Amount: 99900}}
	creator := &stubOrders{}
	svc := newService(t, gateway, nil, creator)

	_, err := svc.ConfirmStripe(context.Background(), uuid.New(), ConfirmStripeInput{PaymentIntentID: "pi_1", Order: cart("1000")})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
	if len(creator.calls) != 0 {
		t.Fatal("no order may be created on amount mismatch")
	}
}

func TestConfirmStripeCreatesPaidOrder(t *testing.T) {
	gateway := &stubStripe{intent: &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusSucceeded, Amount: 100000}}
	creator := &stubOrders{}
	svc := newService(t, gateway, nil, creator)
	buyer := uuid.New()

	order, err := svc.ConfirmStripe(context.Background(), buyer, ConfirmStripeInput{PaymentIntentID: " pi_1 ", Order: cart("1000")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order == nil || len(creator.calls) != 1 {
		t.Fatalf("expected one CreatePaid call, got %d", len(creator.calls))
	}
	call := creator.calls[0]
	if gateway.fetched != "pi_1" {
		t.Fatalf("expected intent re-fetch by trimmed id, got %q", gateway.fetched)
	}
	if call.BuyerID != buyer || call.Gateway != enums.PaymentGatewayStripe || call.GatewayPaymentID != "pi_1" {
		t.Fatalf("unexpected CreatePaid input: %+v", call)
	}
	if call.GatewayOrderID != nil {
		t.Fatal("stripe payments carry no gateway order id")
	}
}

func TestVerifyRazorpayRejectsBadSignature(t *testing.T) {
	creator := &stubOrders{}
	svc := newService(t, nil, &stubRazorpay{secret: testSecret}, creator)

	_, err := svc.VerifyRazorpay(context.Background(), uuid.New(), VerifyRazorpayInput{
		GatewayOrderID: "order_1",
		PaymentID:      "pay_1",
		Signature:      security.SignHMACSHA256Hex("wrong", "order_1|pay_1"),
		Order:          cart("1000"),
	})
	if !pkgerrors.Is(err, pkgerrors.CodeInvalidSignature) {
		t.Fatalf("expected INVALID_SIGNATURE, got %v", err)
	}
	if len(creator.calls) != 0 {
		t.Fatal("no order may be created for a forged signature")
	}
}

func TestVerifyRazorpayChecksAmount(t *testing.T) {
	creator := &stubOrders{}
	gateway := &stubRazorpay{secret: testSecret, orderAmount: 100}
	svc := newService(t, nil, gateway, creator)

	_, err := svc.VerifyRazorpay(context.Background(), uuid.New(), VerifyRazorpayInput{
		GatewayOrderID: "order_1",
		PaymentID:      "pay_1",
		Signature:      security.SignHMACSHA256Hex(testSecret, "order_1|pay_1"),
		Order:          cart("1000"),
	})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
	if gateway.fetched != "order_1" {
		t.Fatalf("expected gateway order fetch, got %q", gateway.fetched)
	}
	if len(creator.calls) != 0 {
		t.Fatal("no order may be created when the gateway order amount differs from the cart")
	}
}

func TestVerifyRazorpayCreatesPaidOrder(t *testing.T) {
	creator := &stubOrders{}
	svc := newService(t, nil, &stubRazorpay{secret: testSecret, orderAmount: 100000}, creator)

	_, err := svc.VerifyRazorpay(context.Background(), uuid.New(), VerifyRazorpayInput{
		GatewayOrderID: "order_1",
		PaymentID:      "pay_1",
		Signature:      security.SignHMACSHA256Hex(testSecret, "order_1|pay_1"),
		Order:          cart("1000"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(creator.calls) != 1 {
		t.Fatalf("expected one CreatePaid call, got %d", len(creator.calls))
	}
	call := creator.calls[0]
	if call.Gateway != enums.PaymentGatewayRazorpay || call.GatewayPaymentID != "pay_1" {
		t.Fatalf("unexpected CreatePaid input: %+v", call)
	}
	if call.GatewayOrderID == nil || *call.GatewayOrderID != "order_1" {
		t.Fatal("expected gateway order id to be recorded")
	}
}

func TestMissingGatewayIsNotConfigured(t *testing.T) {
	svc := newService(t, nil, nil, &stubOrders{})
	ctx := context.Background()

	if _, err := svc.CreateStripeIntent(ctx, uuid.New(), CreateIntentInput{Amount: decimal.NewFromInt(10)}); !pkgerrors.Is(err, pkgerrors.CodeNotConfigured) {
		t.Fatalf("stripe intent: expected NOT_CONFIGURED, got %v", err)
	}
	if _, err := svc.ConfirmStripe(ctx, uuid.New(), ConfirmStripeInput{PaymentIntentID: "pi"}); !pkgerrors.Is(err, pkgerrors.CodeNotConfigured) {
		t.Fatalf("stripe confirm: expected NOT_CONFIGURED, got %v", err)
	}
	if _, err := svc.CreateRazorpayOrder(ctx, CreateGatewayOrderInput{Amount: decimal.NewFromInt(10)}); !pkgerrors.Is(err, pkgerrors.CodeNotConfigured) {
		t.Fatalf("razorpay order: expected NOT_CONFIGURED, got %v", err)
	}
	if _, err := svc.VerifyRazorpay(ctx, uuid.New(), VerifyRazorpayInput{}); !pkgerrors.Is(err, pkgerrors.CodeNotConfigured) {
		t.Fatalf("razorpay verify: expected NOT_CONFIGURED, got %v", err)
	}
}

func TestCreateStripeIntentConvertsToPaise(t *testing.T) {
	gateway := &stubStripe{}
	svc := newService(t, gateway, nil, &stubOrders{})
	buyer := uuid.New()

	result, err := svc.CreateStripeIntent(context.Background(), buyer, CreateIntentInput{Amount: decimal.RequireFromString("499.50"), IdempotencyKey: "chk-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gateway.created == nil || gateway.created.AmountMinor != 49950 {
		t.Fatalf("expected amount 49950 paise")
	}
	if gateway.created.Metadata["buyer_id"] != buyer.String() {
		t.Fatal("expected buyer id metadata")
	}
	if gateway.created.IdempotencyKey != buyer.String()+":chk-1" {
		t.Fatalf("expected buyer-scoped idempotency key, got %q", gateway.created.IdempotencyKey)
	}
	if result.ClientSecret != "secret_1" {
		t.Fatalf("unexpected client secret %q", result.ClientSecret)
	}

	if _, err := svc.CreateStripeIntent(context.Background(), buyer, CreateIntentInput{Amount: decimal.Zero}); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR for zero amount, got %v", err)
	}
	if _, err := svc.CreateStripeIntent(context.Background(), buyer, CreateIntentInput{Amount: decimal.RequireFromString("0.004")}); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR for sub-paise amount, got %v", err)
	}
}

func TestCreateRazorpayOrderWrapsGatewayErrors(t *testing.T) {
	svc := newService(t, nil, &stubRazorpay{secret: testSecret, createErr: errors.New("boom")}, &stubOrders{})
	_, err := svc.CreateRazorpayOrder(context.Background(), CreateGatewayOrderInput{Amount: decimal.NewFromInt(10)})
	if !pkgerrors.Is(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected DEPENDENCY_ERROR, got %v", err)
	}
}

func newService(t *testing.T, s stripeGateway, r razorpayGateway, o paidOrderCreator) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Stripe: s, Razorpay: r, Orders: o})
	if err != nil {
		t.Fatalf("setup error: %v", err)
	}
	return svc
}

func cart(total string) orders.NewOrderInput {
	return orders.NewOrderInput{
		SellerID: uuid.New(),
		Items:    types.OrderItems{{ProductID: uuid.New(), Name: "Thali", Quantity: 1, Price: decimal.RequireFromString(total)}},
		Total:    decimal.RequireFromString(total),
	}
}

type stubStripe struct {
	intent  *stripe.PaymentIntent
	fetched string
	created *stripegw.IntentRequest
}

func (s *stubStripe) CreatePaymentIntent(_ context.Context, req stripegw.IntentRequest) (*stripe.PaymentIntent, error) {
	s.created = &req
	return &stripe.PaymentIntent{ID: "pi_new", ClientSecret: "secret_1", Amount: req.AmountMinor, Currency: stripe.CurrencyINR}, nil
}

func (s *stubStripe) GetPaymentIntent(_ context.Context, id string) (*stripe.PaymentIntent, error) {
	s.fetched = id
	return s.intent, nil
}

type stubRazorpay struct {
	secret      string
	createErr   error
	orderAmount int64
	fetched     string
}

func (s *stubRazorpay) CreateOrder(_ context.Context, amount int64, currency, receipt string) (*razorpay.Order, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &razorpay.Order{ID: "order_new", Amount: amount, Currency: "INR", Receipt: receipt}, nil
}

func (s *stubRazorpay) FetchOrder(_ context.Context, gatewayOrderID string) (*razorpay.Order, error) {
	s.fetched = gatewayOrderID
	return &razorpay.Order{ID: gatewayOrderID, Amount: s.orderAmount, Currency: "INR", Status: "paid"}, nil
}

func (s *stubRazorpay) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return security.VerifyHMACSHA256Hex(s.secret, orderID+"|"+paymentID, signature)
}

func (s *stubRazorpay) KeyID() string { return "rzp_key" }

type stubOrders struct {
	calls []orders.PaidOrderInput
}

func (s *stubOrders) CreatePaid(_ context.Context, input orders.PaidOrderInput) (*models.Order, bool, error) {
	s.calls = append(s.calls, input)
	return &models.Order{ID: uuid.New(), UserID: input.BuyerID, Status: enums.OrderStatusConfirmed, PaymentStatus: enums.PaymentStatusPaid}, true, nil
}
