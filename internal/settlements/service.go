package settlements

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thalibox/marketplace-backend/internal/audit"
	"github.com/thalibox/marketplace-backend/internal/repo"
	"github.com/thalibox/marketplace-backend/internal/users"
	"github.com/thalibox/marketplace-backend/pkg/db/models"
	"github.com/thalibox/marketplace-backend/pkg/enums"
	pkgerrors "github.com/thalibox/marketplace-backend/pkg/errors"
	"github.com/thalibox/marketplace-backend/pkg/logger"
	"github.com/thalibox/marketplace-backend/pkg/outbox"
	"github.com/thalibox/marketplace-backend/pkg/outbox/payloads"
	"github.com/thalibox/marketplace-backend/pkg/pagination"
	"github.com/thalibox/marketplace-backend/pkg/realtime"
	"github.com/thalibox/marketplace-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, typ enums.NotificationType, message string, payload types.NotificationPayload) (*models.Notification, error)
}

// ProcessInput marks a pending settlement as paid out.
type ProcessInput struct {
	SettlementID  uuid.UUID
	AdminID       uuid.UUID
	TransactionID *string
}

// ReasonOrderRefunded is the failure reason for settlements voided by a refund.
const ReasonOrderRefunded = "order refunded"

// FailInput marks a pending settlement as failed.
type FailInput struct {
	SettlementID uuid.UUID
	AdminID      uuid.UUID
	Reason       string
}

type ServiceParams struct {
	DB       *gorm.DB
	Tx       txRunner
	Outbox   outbox.Emitter
	Audit    audit.Recorder
	Rates    RateResolver
	Realtime realtime.Emitter
	Notifier notifier
	Logger   *logger.Logger
}

type Service struct {
	repo     *Repository
	tx       txRunner
	outbox   outbox.Emitter
	audit    audit.Recorder
	rates    RateResolver
	realtime realtime.Emitter
	notifier notifier
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if params.Realtime == nil {
		return nil, fmt.Errorf("realtime emitter required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &Service{
		repo:     NewRepository(params.DB),
		tx:       params.Tx,
		outbox:   params.Outbox,
		audit:    params.Audit,
		rates:    params.Rates,
		realtime: params.Realtime,
		notifier: params.Notifier,
		logg:     params.Logger,
	}, nil
}

// CreateForOrder records the pending settlement for a delivered order inside
// tx. An existing settlement for the order is returned unchanged.
func (s *Service) CreateForOrder(ctx context.Context, tx *gorm.DB, order *models.Order, actor *outbox.ActorRef) (*models.Settlement, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "settlement creation requires a transaction")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if order.Status != enums.OrderStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "settlements are created for delivered orders only")
	}
	if order.PaymentStatus == enums.PaymentStatusRefunded {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "refunded orders are not settled")
	}

	store := s.repo.WithTx(tx)
	existing, err := store.FindByOrderID(ctx, order.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settlement")
	}

	seller, err := users.NewRepository(tx).FindByID(ctx, order.SellerID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
	}
	breakdown, err := Calculate(order.Total, s.rates.Resolve(seller))
	if err != nil {
		return nil, err
	}

	settlement := &models.Settlement{
		ID:             uuid.New(),
		SellerID:       order.SellerID,
		OrderID:        order.ID,
		OrderAmount:    breakdown.OrderAmount,
		CommissionRate: breakdown.CommissionRate,
		GSTRate:        breakdown.GSTRate,
		Commission:     breakdown.Commission,
		GST:            breakdown.GST,
		NetAmount:      breakdown.NetAmount,
		Status:         enums.SettlementStatusPending,
	}
	if err := store.Create(ctx, settlement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert settlement")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventSettlementCreated,
		AggregateType: enums.AggregateSettlement,
		AggregateID:   settlement.ID,
		Actor:         actor,
		Data: payloads.SettlementCreatedEvent{
			SettlementID: settlement.ID,
			OrderID:      settlement.OrderID,
			SellerID:     settlement.SellerID,
			OrderAmount:  settlement.OrderAmount,
			Commission:   settlement.Commission,
			GST:          settlement.GST,
			NetAmount:    settlement.NetAmount,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit settlement created")
	}
	return settlement, nil
}

func (s *Service) ListForSeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (pagination.Page[models.Settlement], error) {
	page, err := s.repo.List(ctx, ListFilters{SellerID: &sellerID}, params)
	return page, wrapList(err)
}

func (s *Service) List(ctx context.Context, status *enums.SettlementStatus, params pagination.Params) (pagination.Page[models.Settlement], error) {
	if status != nil && !status.IsValid() {
		return pagination.Page[models.Settlement]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid settlement status")
	}
	page, err := s.repo.List(ctx, ListFilters{Status: status}, params)
	return page, wrapList(err)
}

// Process settles a pending settlement, credits the seller's earnings and
// pushes the updated row to the seller group.
func (s *Service) Process(ctx context.Context, input ProcessInput) (*models.Settlement, error) {
	if input.SettlementID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "settlement id required")
	}
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin identity missing")
	}

	var updated *models.Settlement
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		store := s.repo.WithTx(tx)
		settlement, err := s.loadPending(ctx, store, input.SettlementID)
		if err != nil {
			return err
		}
		refunded, err := store.OrderRefunded(ctx, settlement.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settlement order")
		}
		if refunded {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order was refunded, settlement cannot be processed")
		}

		now := time.Now().UTC()
		adminID := input.AdminID
		updates := map[string]any{
			"status":          enums.SettlementStatusSettled,
			"settlement_date": now,
			"processed_by":    adminID,
			"updated_at":      now,
		}
		if input.TransactionID != nil {
			updates["transaction_id"] = strings.TrimSpace(*input.TransactionID)
		}
		if err := store.Update(ctx, settlement.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update settlement")
		}
		if err := users.NewRepository(tx).CreditEarnings(ctx, settlement.SellerID, settlement.NetAmount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit seller earnings")
		}

		from := settlement.Status
		settlement.Status = enums.SettlementStatusSettled
		settlement.SettlementDate = &now
		settlement.ProcessedBy = &adminID
		settlement.UpdatedAt = now
		if input.TransactionID != nil {
			txID := strings.TrimSpace(*input.TransactionID)
			settlement.TransactionID = &txID
		}

		if err := s.audit.Record(ctx, tx, audit.Entry{
			ActorID:    adminID,
			Action:     enums.AuditSettlementProcessed,
			TargetType: audit.TargetSettlement,
			TargetID:   settlement.ID,
			Payload: types.AuditPayload{
				Status: &types.StatusChange{From: string(from), To: string(settlement.Status)},
				Amount: &settlement.NetAmount,
			},
		}); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventSettlementProcessed,
			AggregateType: enums.AggregateSettlement,
			AggregateID:   settlement.ID,
			Actor:         &outbox.ActorRef{UserID: adminID, Role: enums.UserRoleAdmin},
			Data: payloads.SettlementProcessedEvent{
				SettlementID: settlement.ID,
				SellerID:     settlement.SellerID,
				NetAmount:    settlement.NetAmount,
				ProcessedBy:  adminID,
				SettledAt:    now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit settlement processed")
		}
		updated = settlement
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.realtime.Emit(ctx, realtime.SellerTarget(updated.SellerID), realtime.EventSettlementProcessed, updated); err != nil {
		s.warn(ctx, "settlement realtime push failed", err)
	}
	message := fmt.Sprintf("Settlement of ₹%s for order %s has been processed", updated.NetAmount.StringFixed(2), updated.OrderID)
	if _, err := s.notifier.Notify(ctx, updated.SellerID, enums.NotificationTypeSettlement, message, settlementPayload(updated)); err != nil {
		s.warn(ctx, "settlement notification failed", err)
	}
	return updated, nil
}

func (s *Service) Fail(ctx context.Context, input FailInput) (*models.Settlement, error) {
	if input.SettlementID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "settlement id required")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "failure reason required")
	}

	var updated *models.Settlement
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		settlement, err := s.loadPending(ctx, s.repo.WithTx(tx), input.SettlementID)
		if err != nil {
			return err
		}
		if err := s.markFailed(ctx, tx, settlement, input.AdminID, reason); err != nil {
			return err
		}
		updated = settlement
		return nil
	})
	if err != nil {
		return nil, err
	}

	message := fmt.Sprintf("Settlement for order %s failed: %s", updated.OrderID, reason)
	if _, err := s.notifier.Notify(ctx, updated.SellerID, enums.NotificationTypeSettlement, message, settlementPayload(updated)); err != nil {
		s.warn(ctx, "settlement notification failed", err)
	}
	return updated, nil
}

// VoidForOrder fails the pending settlement of a refunded order inside tx.
// Orders with no settlement, or one already settled or failed, are left as is.
func (s *Service) VoidForOrder(ctx context.Context, tx *gorm.DB, orderID, adminID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "settlement void requires a transaction")
	}
	store := s.repo.WithTx(tx)
	existing, err := store.FindByOrderID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settlement")
	}
	if existing.Status != enums.SettlementStatusPending {
		return nil
	}
	settlement, err := s.loadPending(ctx, store, existing.ID)
	if err != nil {
		return err
	}
	return s.markFailed(ctx, tx, settlement, adminID, ReasonOrderRefunded)
}

func (s *Service) markFailed(ctx context.Context, tx *gorm.DB, settlement *models.Settlement, adminID uuid.UUID, reason string) error {
	now := time.Now().UTC()
	if err := s.repo.WithTx(tx).Update(ctx, settlement.ID, map[string]any{
		"status":         enums.SettlementStatusFailed,
		"failure_reason": reason,
		"processed_by":   adminID,
		"updated_at":     now,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update settlement")
	}

	from := settlement.Status
	settlement.Status = enums.SettlementStatusFailed
	settlement.FailureReason = &reason
	settlement.ProcessedBy = &adminID
	settlement.UpdatedAt = now

	if err := s.audit.Record(ctx, tx, audit.Entry{
		ActorID:    adminID,
		Action:     enums.AuditSettlementFailed,
		TargetType: audit.TargetSettlement,
		TargetID:   settlement.ID,
		Payload:    types.AuditPayload{Status: &types.StatusChange{From: string(from), To: string(settlement.Status), Reason: reason}},
	}); err != nil {
		return err
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSettlementFailed,
		AggregateType: enums.AggregateSettlement,
		AggregateID:   settlement.ID,
		Actor:         &outbox.ActorRef{UserID: adminID, Role: enums.UserRoleAdmin},
		Data:          payloads.SettlementFailedEvent{SettlementID: settlement.ID, SellerID: settlement.SellerID, Reason: reason},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit settlement failed")
	}
	return nil
}

func (s *Service) loadPending(ctx context.Context, r *Repository, id uuid.UUID) (*models.Settlement, error) {
	settlement, err := r.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, repo.MapLookupError(err, "settlement")
	}
	if settlement.Status != enums.SettlementStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("settlement is already %s", settlement.Status))
	}
	return settlement, nil
}

func (s *Service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}

func settlementPayload(st *models.Settlement) types.NotificationPayload {
	return types.SettlementPayload(types.SettlementRef{
		SettlementID: st.ID,
		OrderID:      st.OrderID,
		NetAmount:    st.NetAmount,
		Status:       st.Status,
	})
}

func wrapList(err error) error {
	if err == nil || pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list settlements")
}
