// Package payments exposes gateway intent creation and confirmation.
package payments

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/thalibox/marketplace-backend/api/middleware"
	"github.com/thalibox/marketplace-backend/api/responses"
	"github.com/thalibox/marketplace-backend/api/validators"
	ordersvc "github.com/thalibox/marketplace-backend/internal/orders"
	paymentsvc "github.com/thalibox/marketplace-backend/internal/payments"
	"github.com/thalibox/marketplace-backend/pkg/db/models"
	"github.com/thalibox/marketplace-backend/pkg/logger"
	"github.com/thalibox/marketplace-backend/pkg/types"
)

type Service interface {
	CreateStripeIntent(ctx context.Context, buyerID uuid.UUID, input paymentsvc.CreateIntentInput) (*paymentsvc.IntentResult, error)
	ConfirmStripe(ctx context.Context, buyerID uuid.UUID, input paymentsvc.ConfirmStripeInput) (*models.Order, error)
	CreateRazorpayOrder(ctx context.Context, input paymentsvc.CreateGatewayOrderInput) (*paymentsvc.GatewayOrderResult, error)
	VerifyRazorpay(ctx context.Context, buyerID uuid.UUID, input paymentsvc.VerifyRazorpayInput) (*models.Order, error)
}

type amountRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency,omitempty" validate:"omitempty,len=3"`
	Description string          `json:"description,omitempty" validate:"omitempty,max=255"`
	Receipt     string          `json:"receipt,omitempty" validate:"omitempty,max=40"`
}

// cartSnapshot is the order the client wants materialized once payment is
// verified. The client's view of payment success is not part of it.
type cartSnapshot struct {
	SellerID        uuid.UUID             `json:"sellerId" validate:"required"`
	CartItems       types.OrderItems      `json:"cartItems" validate:"required,min=1,dive"`
	TotalAmount     decimal.Decimal       `json:"totalAmount"`
	DeliveryAddress types.DeliveryAddress `json:"deliveryAddress" validate:"required"`
	Notes           *string               `json:"notes,omitempty" validate:"omitempty,max=500"`
}

func (c cartSnapshot) orderInput() ordersvc.NewOrderInput {
	return ordersvc.NewOrderInput{
		SellerID:        c.SellerID,
		Items:           c.CartItems,
		Total:           c.TotalAmount,
		DeliveryAddress: c.DeliveryAddress,
		Notes:           c.Notes,
	}
}

type stripeConfirmRequest struct {
	PaymentIntentID string `json:"paymentIntentId" validate:"required"`
	cartSnapshot
}

type razorpayVerifyRequest struct {
	GatewayOrderID string `json:"gatewayOrderId" validate:"required"`
	PaymentID      string `json:"paymentId" validate:"required"`
	Signature      string `json:"signature" validate:"required"`
	cartSnapshot
}

type confirmResponse struct {
	Success bool          `json:"success"`
	Order   *models.Order `json:"order"`
}

func StripeCreateIntent(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, _, err := middleware.RequirePrincipal(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body amountRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateStripeIntent(r.Context(), buyerID, paymentsvc.CreateIntentInput{
			Amount:         body.Amount,
			Currency:       body.Currency,
			Description:    body.Description,
			IdempotencyKey: r.Header.Get("Idempotency-Key"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func StripeConfirm(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, _, err := middleware.RequirePrincipal(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body stripeConfirmRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.ConfirmStripe(r.Context(), buyerID, paymentsvc.ConfirmStripeInput{
			PaymentIntentID: body.PaymentIntentID,
			Order:           body.orderInput(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, confirmResponse{Success: true, Order: order})
	}
}

func RazorpayCreateOrder(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := middleware.RequirePrincipal(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body amountRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateRazorpayOrder(r.Context(), paymentsvc.CreateGatewayOrderInput{
			Amount:   body.Amount,
			Currency: body.Currency,
			Receipt:  body.Receipt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func RazorpayVerify(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, _, err := middleware.RequirePrincipal(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body razorpayVerifyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.VerifyRazorpay(r.Context(), buyerID, paymentsvc.VerifyRazorpayInput{
			GatewayOrderID: body.GatewayOrderID,
			PaymentID:      body.PaymentID,
			Signature:      body.Signature,
			Order:          body.orderInput(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, confirmResponse{Success: true, Order: order})
	}
}
