package payments

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/thalibox/marketplace-backend/internal/orders"
	"github.com/thalibox/marketplace-backend/pkg/db/models"
	"github.com/thalibox/marketplace-backend/pkg/enums"
	pkgerrors "github.com/thalibox/marketplace-backend/pkg/errors"
	"github.com/thalibox/marketplace-backend/pkg/logger"
	"github.com/thalibox/marketplace-backend/pkg/metrics"
	"github.com/thalibox/marketplace-backend/pkg/money"
	"github.com/thalibox/marketplace-backend/pkg/razorpay"
	stripegw "github.com/thalibox/marketplace-backend/pkg/stripe"
)

type stripeGateway interface {
	CreatePaymentIntent(ctx context.Context, req stripegw.IntentRequest) (*stripe.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
}

type razorpayGateway interface {
	CreateOrder(ctx context.Context, amountPaise int64, currency, receipt string) (*razorpay.Order, error)
	FetchOrder(ctx context.Context, gatewayOrderID string) (*razorpay.Order, error)
	VerifyPaymentSignature(gatewayOrderID, paymentID, signature string) bool
	KeyID() string
}

type paidOrderCreator interface {
	CreatePaid(ctx context.Context, input orders.PaidOrderInput) (*models.Order, bool, error)
}

// ServiceParams groups the gateway adapters. A nil gateway means the
// deployment has no credentials for it.
type ServiceParams struct {
	Stripe   stripeGateway
	Razorpay razorpayGateway
	Orders   paidOrderCreator
	Metrics  *metrics.PaymentMetrics
	Logger   *logger.Logger
}

// Service confirms gateway payments and turns them into paid orders. Client
// claims of success are never trusted: Stripe intents are re-fetched and
// Razorpay signatures are recomputed. Both paths check the paid amount
// against the cart total.
type Service struct {
	stripe   stripeGateway
	razorpay razorpayGateway
	orders   paidOrderCreator
	metrics  *metrics.PaymentMetrics
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order creator required")
	}
	return &Service{
		stripe:   params.Stripe,
		razorpay: params.Razorpay,
		orders:   params.Orders,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// CreateIntentInput is the amount in rupees the checkout is about to charge.
type CreateIntentInput struct {
	Amount      decimal.Decimal
	Currency    string
	Description string

	// IdempotencyKey is forwarded to Stripe so a retried checkout reuses
	// the first intent.
	IdempotencyKey string
}

type IntentResult struct {
	PaymentIntentID string `json:"paymentIntentId"`
	ClientSecret    string `json:"clientSecret"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
}

// ConfirmStripeInput carries the intent id plus the cart snapshot to
// materialize once the intent is verified.
type ConfirmStripeInput struct {
	PaymentIntentID string
	Order           orders.NewOrderInput
}

type CreateGatewayOrderInput struct {
	Amount   decimal.Decimal
	Currency string
	Receipt  string
}

type GatewayOrderResult struct {
	GatewayOrderID string `json:"gatewayOrderId"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	KeyID          string `json:"keyId"`
}

type VerifyRazorpayInput struct {
	GatewayOrderID string
	PaymentID      string
	Signature      string
	Order          orders.NewOrderInput
}

func (s *Service) CreateStripeIntent(ctx context.Context, buyerID uuid.UUID, input CreateIntentInput) (*IntentResult, error) {
	if s.stripe == nil {
		return nil, notConfigured(enums.PaymentGatewayStripe)
	}
	amount, err := minorAmount(input.Amount)
	if err != nil {
		return nil, err
	}

	req := stripegw.IntentRequest{
		AmountMinor: amount,
		Currency:    input.Currency,
		Description: input.Description,
		Metadata:    map[string]string{"buyer_id": buyerID.String()},
	}
	if key := strings.TrimSpace(input.IdempotencyKey); key != "" {
		req.IdempotencyKey = buyerID.String() + ":" + key
	}

	intent, err := s.stripe.CreatePaymentIntent(ctx, req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe payment intent")
	}
	return &IntentResult{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Amount:          intent.Amount,
		Currency:        string(intent.Currency),
	}, nil
}

// ConfirmStripe verifies the intent with Stripe and creates the paid order.
func (s *Service) ConfirmStripe(ctx context.Context, buyerID uuid.UUID, input ConfirmStripeInput) (order *models.Order, err error) {
	defer func() { s.observe(enums.PaymentGatewayStripe, err) }()

	if s.stripe == nil {
		return nil, notConfigured(enums.PaymentGatewayStripe)
	}
	intentID := strings.TrimSpace(input.PaymentIntentID)
	if intentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paymentIntentId required")
	}

	intent, err := s.stripe.GetPaymentIntent(ctx, intentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve stripe payment intent")
	}
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, pkgerrors.New(pkgerrors.CodePaymentNotCompleted, "payment not completed").
			WithDetails(map[string]string{"status": string(intent.Status)})
	}
	if err := matchAmount(intent.Amount, input.Order.Total); err != nil {
		return nil, err
	}

	order, _, err = s.orders.CreatePaid(ctx, orders.PaidOrderInput{
		BuyerID:          buyerID,
		Order:            input.Order,
		Gateway:          enums.PaymentGatewayStripe,
		GatewayPaymentID: intent.ID,
	})
	return order, err
}

func (s *Service) CreateRazorpayOrder(ctx context.Context, input CreateGatewayOrderInput) (*GatewayOrderResult, error) {
	if s.razorpay == nil {
		return nil, notConfigured(enums.PaymentGatewayRazorpay)
	}
	amount, err := minorAmount(input.Amount)
	if err != nil {
		return nil, err
	}
	created, err := s.razorpay.CreateOrder(ctx, amount, input.Currency, input.Receipt)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create razorpay order")
	}
	return &GatewayOrderResult{
		GatewayOrderID: created.ID,
		Amount:         created.Amount,
		Currency:       created.Currency,
		KeyID:          s.razorpay.KeyID(),
	}, nil
}

// VerifyRazorpay checks the checkout signature, matches the gateway order's
// amount to the cart and creates the paid order.
func (s *Service) VerifyRazorpay(ctx context.Context, buyerID uuid.UUID, input VerifyRazorpayInput) (order *models.Order, err error) {
	defer func() { s.observe(enums.PaymentGatewayRazorpay, err) }()

	if s.razorpay == nil {
		return nil, notConfigured(enums.PaymentGatewayRazorpay)
	}
	gatewayOrderID := strings.TrimSpace(input.GatewayOrderID)
	paymentID := strings.TrimSpace(input.PaymentID)
	if gatewayOrderID == "" || paymentID == "" || strings.TrimSpace(input.Signature) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gatewayOrderId, paymentId and signature are required")
	}
	if !s.razorpay.VerifyPaymentSignature(gatewayOrderID, paymentID, input.Signature) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidSignature, "invalid payment signature")
	}
	gatewayOrder, err := s.razorpay.FetchOrder(ctx, gatewayOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch razorpay order")
	}
	if err := matchAmount(gatewayOrder.Amount, input.Order.Total); err != nil {
		return nil, err
	}

	order, _, err = s.orders.CreatePaid(ctx, orders.PaidOrderInput{
		BuyerID:          buyerID,
		Order:            input.Order,
		Gateway:          enums.PaymentGatewayRazorpay,
		GatewayOrderID:   &gatewayOrderID,
		GatewayPaymentID: paymentID,
	})
	return order, err
}

func (s *Service) observe(gateway enums.PaymentGateway, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(pkgerrors.CodeInternal)
		if typed := pkgerrors.As(err); typed != nil {
			outcome = string(typed.Code())
		}
	}
	s.metrics.Confirmation(string(gateway), outcome)
}

func notConfigured(gateway enums.PaymentGateway) error {
	return pkgerrors.New(pkgerrors.CodeNotConfigured, string(gateway)+" is not configured")
}

func minorAmount(amount decimal.Decimal) (int64, error) {
	minor := money.ToMinor(amount)
	if minor <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	return minor, nil
}

func matchAmount(paidMinor int64, total decimal.Decimal) error {
	expected := money.ToMinor(total)
	if paidMinor != expected {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment amount does not match order total").
			WithDetails(map[string]string{"paid": money.FromMinor(paidMinor).StringFixed(2), "total": money.Round(total).StringFixed(2)})
	}
	return nil
}
