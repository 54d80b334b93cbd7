// Package admin exposes the back-office endpoints. Every handler expects the
// router to have enforced the admin role.
package admin

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/thalibox/marketplace-backend/api/middleware"
	"github.com/thalibox/marketplace-backend/api/responses"
	"github.com/thalibox/marketplace-backend/api/validators"
	ordersvc "github.com/thalibox/marketplace-backend/internal/orders"
	"github.com/thalibox/marketplace-backend/internal/sellers"
	"github.com/thalibox/marketplace-backend/internal/settlements"
	"github.com/thalibox/marketplace-backend/internal/users"
	"github.com/thalibox/marketplace-backend/pkg/db/models"
	"github.com/thalibox/marketplace-backend/pkg/enums"
	"github.com/thalibox/marketplace-backend/pkg/logger"
	"github.com/thalibox/marketplace-backend/pkg/pagination"
)

const maxTextLen = 1000

type SettlementService interface {
	List(ctx context.Context, status *enums.SettlementStatus, params pagination.Params) (pagination.Page[models.Settlement], error)
	Process(ctx context.Context, input settlements.ProcessInput) (*models.Settlement, error)
	Fail(ctx context.Context, input settlements.FailInput) (*models.Settlement, error)
}

type OrderService interface {
	ListAll(ctx context.Context, status *enums.OrderStatus, params pagination.Params) (pagination.Page[models.Order], error)
	Refund(ctx context.Context, orderID, adminID uuid.UUID) (*models.Order, error)
	ResolveDispute(ctx context.Context, input ordersvc.ResolveDisputeInput) (*models.Order, error)
}

type SellerService interface {
	ApproveKYC(ctx context.Context, input sellers.KYCDecisionInput) (*users.UserDTO, error)
	RejectKYC(ctx context.Context, input sellers.KYCDecisionInput) (*users.UserDTO, error)
	UpdateRates(ctx context.Context, input sellers.RatesInput) (*users.UserDTO, error)
}

type AuditLister interface {
	ListRecent(ctx context.Context, limit int) ([]models.AuditLog, error)
}

type processRequest struct {
	TransactionID *string `json:"transactionId,omitempty" validate:"omitempty,max=120"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

type optionalReasonRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=1000"`
}

type resolveRequest struct {
	Status     string `json:"status" validate:"required,oneof=resolved refunded"`
	Resolution string `json:"resolution" validate:"required,max=1000"`
}

// ratesRequest replaces both overrides. A null or absent rate clears the
// override back to the platform default.
type ratesRequest struct {
	CustomCommission *decimal.Decimal `json:"customCommission"`
	CustomGST        *decimal.Decimal `json:"customGst"`
}

func ListSettlements(svc SettlementService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := validators.ParseSettlementStatusFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePage(r, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// ProcessSettlement pays out a pending settlement. The body is optional and
// may carry the bank transaction reference.
func ProcessSettlement(svc SettlementService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, _, err := middleware.RequirePrincipal(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "settlementId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body processRequest
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		st, err := svc.Process(r.Context(), settlements.ProcessInput{
			SettlementID:  id,
			AdminID:       adminID,
			TransactionID: body.TransactionID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, st)
	}
}

func FailSettlement(svc SettlementService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, _, err := middleware.RequirePrincipal(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "settlementId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body reasonRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		st, err := svc.Fail(r.Context(), settlements.FailInput{
			SettlementID: id,
			AdminID:      adminID,
			Reason:       validators.SanitizeString(body.Reason, maxTextLen),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, st)
	}
}

func ListOrders(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := validators.ParseOrderStatusFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePage(r, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListAll(r.Context(), status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func RefundOrder(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, _, err := middleware.RequirePrincipal(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Refund(r.Context(), orderID, adminID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func ResolveDispute(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, _, err := middleware.RequirePrincipal(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body resolveRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.ResolveDispute(r.Context(), ordersvc.ResolveDisputeInput{
			OrderID:    orderID,
			AdminID:    adminID,
			Status:     enums.DisputeStatus(body.Status),
			Resolution: validators.SanitizeString(body.Resolution, maxTextLen),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func ApproveKYC(svc SellerService, logg *logger.Logger) http.HandlerFunc {
	return kycDecision(svc.ApproveKYC, logg)
}

func RejectKYC(svc SellerService, logg *logger.Logger) http.HandlerFunc {
	return kycDecision(svc.RejectKYC, logg)
}

func kycDecision(decide func(context.Context, sellers.KYCDecisionInput) (*users.UserDTO, error), logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, _, err := middleware.RequirePrincipal(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sellerID, err := validators.ParseUUIDParam(r, "sellerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body optionalReasonRequest
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		seller, err := decide(r.Context(), sellers.KYCDecisionInput{
			SellerID: sellerID,
			AdminID:  adminID,
			Reason:   validators.SanitizeString(body.Reason, maxTextLen),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, seller)
	}
}

func UpdateRates(svc SellerService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, _, err := middleware.RequirePrincipal(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sellerID, err := validators.ParseUUIDParam(r, "sellerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body ratesRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		seller, err := svc.UpdateRates(r.Context(), sellers.RatesInput{
			SellerID:          sellerID,
			AdminID:           adminID,
			CommissionPercent: body.CustomCommission,
			GSTPercent:        body.CustomGST,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, seller)
	}
}

func ListAuditLogs(svc AuditLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.ListRecent(r.Context(), 0)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": rows})
	}
}
