// Package orders exposes buyer and seller order endpoints.
package orders

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/thalibox/marketplace-backend/api/middleware"
	"github.com/thalibox/marketplace-backend/api/responses"
	"github.com/thalibox/marketplace-backend/api/validators"
	ordersvc "github.com/thalibox/marketplace-backend/internal/orders"
	"github.com/thalibox/marketplace-backend/pkg/db/models"
	"github.com/thalibox/marketplace-backend/pkg/enums"
	pkgerrors "github.com/thalibox/marketplace-backend/pkg/errors"
	"github.com/thalibox/marketplace-backend/pkg/logger"
	"github.com/thalibox/marketplace-backend/pkg/pagination"
)

const maxReasonLen = 1000

// BuyerService is the buyer-facing slice of the order service.
type BuyerService interface {
	PlaceCOD(ctx context.Context, buyerID uuid.UUID, input ordersvc.NewOrderInput) (*models.Order, error)
	ListForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (pagination.Page[models.Order], error)
	GetForBuyer(ctx context.Context, buyerID, orderID uuid.UUID) (*models.Order, error)
	OpenDispute(ctx context.Context, buyerID, orderID uuid.UUID, reason string) (*models.Order, error)
	Rate(ctx context.Context, input ordersvc.RateInput) (*models.Order, error)
}

// SellerService is the fulfilment slice of the order service.
type SellerService interface {
	ListForSeller(ctx context.Context, sellerID uuid.UUID, status *enums.OrderStatus, params pagination.Params) (pagination.Page[models.Order], error)
	UpdateStatus(ctx context.Context, input ordersvc.UpdateStatusInput) (*models.Order, error)
}

// SettlementLister lists a seller's own settlements.
type SettlementLister interface {
	ListForSeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (pagination.Page[models.Settlement], error)
}

func List(svc BuyerService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, _, err := middleware.RequirePrincipal(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePage(r, pagination.DefaultLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListForBuyer(r.Context(), buyerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func Detail(svc BuyerService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, _, err := middleware.RequirePrincipal(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetForBuyer(r.Context(), buyerID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// Place creates a cash-on-delivery order. Online orders are created by the
// payment confirmation endpoints instead.
func Place(svc BuyerService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, _, err := middleware.RequirePrincipal(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body ordersvc.NewOrderInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.PlaceCOD(r.Context(), buyerID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

func Dispute(svc BuyerService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, _, err := middleware.RequirePrincipal(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body disputeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reason := validators.SanitizeString(body.Reason, maxReasonLen)
		if reason == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "reason is required"))
			return
		}

		order, err := svc.OpenDispute(r.Context(), buyerID, orderID, reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func Rate(svc BuyerService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, _, err := middleware.RequirePrincipal(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body ratingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Rate(r.Context(), ordersvc.RateInput{
			OrderID:  orderID,
			BuyerID:  buyerID,
			Rating:   body.Rating,
			Feedback: body.Feedback,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// SellerList returns the caller's incoming orders, optionally filtered by ?status=.
func SellerList(svc SellerService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, _, err := middleware.RequirePrincipal(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := validators.ParseOrderStatusFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePage(r, pagination.DefaultLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListForSeller(r.Context(), sellerID, status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// UpdateStatus moves an order through the fulfilment state machine. Sellers
// may only touch their own orders; admins may touch any.
func UpdateStatus(svc SellerService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, role, err := middleware.RequirePrincipal(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body statusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.UpdateStatus(r.Context(), ordersvc.UpdateStatusInput{
			OrderID:            orderID,
			Status:             enums.OrderStatus(body.Status),
			CancellationReason: body.CancellationReason,
			EstimatedTime:      body.EstimatedTime,
			Actor:              ordersvc.Actor{UserID: actorID, Role: role},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func SellerSettlements(svc SettlementLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, _, err := middleware.RequirePrincipal(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePage(r, pagination.DefaultLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListForSeller(r.Context(), sellerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
