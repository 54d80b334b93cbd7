package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thalibox/marketplace-backend/internal/audit"
	"github.com/thalibox/marketplace-backend/internal/repo"
	"github.com/thalibox/marketplace-backend/pkg/db/models"
	"github.com/thalibox/marketplace-backend/pkg/enums"
	pkgerrors "github.com/thalibox/marketplace-backend/pkg/errors"
	"github.com/thalibox/marketplace-backend/pkg/outbox"
	"github.com/thalibox/marketplace-backend/pkg/outbox/payloads"
	"github.com/thalibox/marketplace-backend/pkg/realtime"
	"github.com/thalibox/marketplace-backend/pkg/types"
)

// Refund marks a paid order refunded. An open dispute on the order becomes
// refunded too.
func (s *Service) Refund(ctx context.Context, orderID, adminID uuid.UUID) (*models.Order, error) {
	if adminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin identity missing")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.repo.WithTx(tx).FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return repo.MapLookupError(err, "order")
		}
		if order.PaymentStatus != enums.PaymentStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot refund an order with payment %s", order.PaymentStatus))
		}
		return s.applyRefund(ctx, tx, order, adminID)
	})
	if err != nil {
		return nil, err
	}

	s.push(ctx, realtime.SellerTarget(order.SellerID), realtime.EventOrderRefunded, order)
	s.notify(ctx, order.UserID, enums.NotificationTypePayment,
		fmt.Sprintf("Refund processed for order %s", order.ID),
		types.OrderPayload(order.ID, order.Status))
	return order, nil
}

// ResolveDispute closes an open dispute as resolved or refunded. A refunded
// outcome also refunds a paid order.
func (s *Service) ResolveDispute(ctx context.Context, input ResolveDisputeInput) (*models.Order, error) {
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin identity missing")
	}
	if input.Status != enums.DisputeStatusResolved && input.Status != enums.DisputeStatusRefunded {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute status must be resolved or refunded")
	}
	resolution := strings.TrimSpace(input.Resolution)
	if resolution == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resolution required")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.repo.WithTx(tx).FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			return repo.MapLookupError(err, "order")
		}
		if order.DisputeStatus != enums.DisputeStatusOpen {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order has no open dispute")
		}

		if input.Status == enums.DisputeStatusRefunded && order.PaymentStatus == enums.PaymentStatusPaid {
			if err := s.applyRefund(ctx, tx, order, input.AdminID); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		if err := s.repo.WithTx(tx).Update(ctx, order.ID, map[string]any{
			"dispute_status":     input.Status,
			"dispute_resolution": resolution,
			"updated_at":         now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve dispute")
		}
		order.DisputeStatus = input.Status
		order.DisputeResolution = &resolution
		order.UpdatedAt = now

		if err := s.audit.Record(ctx, tx, audit.Entry{
			ActorID:    input.AdminID,
			Action:     enums.AuditDisputeResolved,
			TargetType: audit.TargetOrder,
			TargetID:   order.ID,
			Payload: types.AuditPayload{Status: &types.StatusChange{
				From:   string(enums.DisputeStatusOpen),
				To:     string(input.Status),
				Reason: resolution,
			}},
		}); err != nil {
			return err
		}
		return s.emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDisputeResolved,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.AdminID, Role: enums.UserRoleAdmin},
			Data: payloads.DisputeResolvedEvent{
				OrderID:    order.ID,
				SellerID:   order.SellerID,
				Status:     input.Status,
				Resolution: resolution,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.push(ctx, realtime.SellerTarget(order.SellerID), realtime.EventDisputeResolved, order)
	s.notify(ctx, order.UserID, enums.NotificationTypeDispute,
		fmt.Sprintf("Your dispute on order %s was %s", order.ID, order.DisputeStatus),
		types.DisputePayload(types.DisputeRef{OrderID: order.ID, Status: order.DisputeStatus, Resolution: resolution}))
	return order, nil
}

func (s *Service) applyRefund(ctx context.Context, tx *gorm.DB, order *models.Order, adminID uuid.UUID) error {
	now := time.Now().UTC()
	updates := map[string]any{"payment_status": enums.PaymentStatusRefunded, "updated_at": now}
	if order.DisputeStatus == enums.DisputeStatusOpen {
		updates["dispute_status"] = enums.DisputeStatusRefunded
	}
	if err := s.repo.WithTx(tx).Update(ctx, order.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refund order")
	}
	order.PaymentStatus = enums.PaymentStatusRefunded
	if order.DisputeStatus == enums.DisputeStatusOpen {
		order.DisputeStatus = enums.DisputeStatusRefunded
	}
	order.UpdatedAt = now

	if err := s.settlements.VoidForOrder(ctx, tx, order.ID, adminID); err != nil {
		return err
	}

	amount := order.Total
	if err := s.audit.Record(ctx, tx, audit.Entry{
		ActorID:    adminID,
		Action:     enums.AuditOrderRefunded,
		TargetType: audit.TargetOrder,
		TargetID:   order.ID,
		Payload: types.AuditPayload{
			Status: &types.StatusChange{From: string(enums.PaymentStatusPaid), To: string(enums.PaymentStatusRefunded)},
			Amount: &amount,
		},
	}); err != nil {
		return err
	}
	return s.emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderRefunded,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: adminID, Role: enums.UserRoleAdmin},
		Data:          payloads.OrderRefundedEvent{OrderID: order.ID, UserID: order.UserID, SellerID: order.SellerID, Amount: amount},
	})
}
