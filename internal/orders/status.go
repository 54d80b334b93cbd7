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
	"github.com/thalibox/marketplace-backend/internal/users"
	"github.com/thalibox/marketplace-backend/pkg/db/models"
	"github.com/thalibox/marketplace-backend/pkg/enums"
	pkgerrors "github.com/thalibox/marketplace-backend/pkg/errors"
	"github.com/thalibox/marketplace-backend/pkg/outbox"
	"github.com/thalibox/marketplace-backend/pkg/outbox/payloads"
	"github.com/thalibox/marketplace-backend/pkg/types"
)

// UpdateStatus applies one state-machine transition. The order row is locked
// for the transaction; a delivered transition creates the settlement in the
// same transaction. The buyer is notified after commit.
func (s *Service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var (
		order *models.Order
		from  enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		store := s.repo.WithTx(tx)
		var err error
		order, err = store.FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			return repo.MapLookupError(err, "order")
		}
		if err := Transition(order, input.Status, input.Actor); err != nil {
			return err
		}

		from = order.Status
		now := time.Now().UTC()
		updates := map[string]any{"status": input.Status, "updated_at": now}
		reason := ""
		if input.Status == enums.OrderStatusCancelled && input.CancellationReason != nil {
			reason = strings.TrimSpace(*input.CancellationReason)
			if reason != "" {
				updates["cancellation_reason"] = reason
				order.CancellationReason = &reason
			}
		}
		if input.EstimatedTime != nil {
			eta := strings.TrimSpace(*input.EstimatedTime)
			updates["estimated_time"] = eta
			order.EstimatedTime = &eta
		}
		if err := store.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		order.Status = input.Status
		order.UpdatedAt = now

		if err := s.audit.Record(ctx, tx, audit.Entry{
			ActorID:    input.Actor.UserID,
			Action:     enums.AuditOrderStatusChanged,
			TargetType: audit.TargetOrder,
			TargetID:   order.ID,
			Payload:    types.AuditPayload{Status: &types.StatusChange{From: string(from), To: string(order.Status), Reason: reason}},
		}); err != nil {
			return err
		}

		actor := &outbox.ActorRef{UserID: input.Actor.UserID, Role: input.Actor.Role}
		if err := s.emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:  order.ID,
				UserID:   order.UserID,
				SellerID: order.SellerID,
				From:     from,
				To:       order.Status,
				Reason:   reason,
			},
		}); err != nil {
			return err
		}

		if order.Status == enums.OrderStatusDelivered {
			if _, err := s.settlements.CreateForOrder(ctx, tx, order, actor); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, order.UserID, enums.NotificationTypeOrder,
		fmt.Sprintf("Order %s updated to %s", order.ID, order.Status),
		types.OrderPayload(order.ID, order.Status))
	s.sendStatusSMS(ctx, order.UserID, order.Status)
	return order, nil
}

// sendStatusSMS texts the buyer in the background. Failures are logged only.
func (s *Service) sendStatusSMS(ctx context.Context, buyerID uuid.UUID, status enums.OrderStatus) {
	buyer, err := users.NewRepository(s.db).FindByID(ctx, buyerID)
	if err != nil {
		s.warn(ctx, "sms recipient lookup failed", err)
		return
	}
	if buyer.Phone == nil || strings.TrimSpace(*buyer.Phone) == "" {
		return
	}
	to := strings.TrimSpace(*buyer.Phone)
	body := fmt.Sprintf("Your order is now %s!", status)

	smsCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.smsTimeout)
	go func() {
		defer cancel()
		if err := s.sms.Send(smsCtx, to, body); err != nil {
			s.warn(smsCtx, "order status sms failed", err)
		}
	}()
}
