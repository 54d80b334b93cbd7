package orders

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
	"github.com/thalibox/marketplace-backend/pkg/db"
	"github.com/thalibox/marketplace-backend/pkg/db/models"
	"github.com/thalibox/marketplace-backend/pkg/enums"
	pkgerrors "github.com/thalibox/marketplace-backend/pkg/errors"
	"github.com/thalibox/marketplace-backend/pkg/logger"
	"github.com/thalibox/marketplace-backend/pkg/money"
	"github.com/thalibox/marketplace-backend/pkg/outbox"
	"github.com/thalibox/marketplace-backend/pkg/outbox/payloads"
	"github.com/thalibox/marketplace-backend/pkg/pagination"
	"github.com/thalibox/marketplace-backend/pkg/realtime"
	"github.com/thalibox/marketplace-backend/pkg/sms"
	"github.com/thalibox/marketplace-backend/pkg/types"
)

const defaultSMSTimeout = 10 * time.Second

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, typ enums.NotificationType, message string, payload types.NotificationPayload) (*models.Notification, error)
}

// SettlementCreator records the pending settlement of a delivered order
// inside the transition's transaction, and voids it when the order is
// refunded.
type SettlementCreator interface {
	CreateForOrder(ctx context.Context, tx *gorm.DB, order *models.Order, actor *outbox.ActorRef) (*models.Settlement, error)
	VoidForOrder(ctx context.Context, tx *gorm.DB, orderID, adminID uuid.UUID) error
}

type ServiceParams struct {
	DB          *gorm.DB
	Tx          txRunner
	Outbox      outbox.Emitter
	Audit       audit.Recorder
	Settlements SettlementCreator
	Notifier    notifier
	Realtime    realtime.Emitter
	SMS         sms.Sender
	SMSTimeout  time.Duration
	Logger      *logger.Logger
}

type Service struct {
	db          *gorm.DB
	repo        *Repository
	tx          txRunner
	outbox      outbox.Emitter
	audit       audit.Recorder
	settlements SettlementCreator
	notifier    notifier
	realtime    realtime.Emitter
	sms         sms.Sender
	smsTimeout  time.Duration
	logg        *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.DB == nil:
		return nil, fmt.Errorf("database required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Audit == nil:
		return nil, fmt.Errorf("audit recorder required")
	case params.Settlements == nil:
		return nil, fmt.Errorf("settlement creator required")
	case params.Notifier == nil:
		return nil, fmt.Errorf("notifier required")
	case params.Realtime == nil:
		return nil, fmt.Errorf("realtime emitter required")
	}
	sender := params.SMS
	if sender == nil {
		sender = sms.Noop{}
	}
	timeout := params.SMSTimeout
	if timeout <= 0 {
		timeout = defaultSMSTimeout
	}
	return &Service{
		db:          params.DB,
		repo:        NewRepository(params.DB),
		tx:          params.Tx,
		outbox:      params.Outbox,
		audit:       params.Audit,
		settlements: params.Settlements,
		notifier:    params.Notifier,
		realtime:    params.Realtime,
		sms:         sender,
		smsTimeout:  timeout,
		logg:        params.Logger,
	}, nil
}

// PlaceCOD creates a cash-on-delivery order awaiting seller confirmation.
func (s *Service) PlaceCOD(ctx context.Context, buyerID uuid.UUID, input NewOrderInput) (*models.Order, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	order, err := s.newOrder(buyerID, input)
	if err != nil {
		return nil, err
	}
	order.Status = enums.OrderStatusPending
	order.PaymentMethod = enums.PaymentMethodCOD
	order.PaymentStatus = enums.PaymentStatusPending

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.insertOrder(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, order.UserID, enums.NotificationTypeOrder,
		fmt.Sprintf("Order %s placed successfully!", order.ID), types.OrderPayload(order.ID, order.Status))
	return order, nil
}

// CreatePaid materializes a confirmed, paid order for a verified gateway
// payment. Replaying the same gateway payment returns the existing order and
// created=false.
func (s *Service) CreatePaid(ctx context.Context, input PaidOrderInput) (order *models.Order, created bool, err error) {
	if input.BuyerID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Gateway.IsValid() {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment gateway")
	}
	paymentID := strings.TrimSpace(input.GatewayPaymentID)
	if paymentID == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "gateway payment id required")
	}

	if existing, err := s.findByPayment(ctx, input.BuyerID, input.Gateway, paymentID); err != nil || existing != nil {
		return existing, false, err
	}

	order, err = s.newOrder(input.BuyerID, input.Order)
	if err != nil {
		return nil, false, err
	}
	gateway := input.Gateway
	order.Status = enums.OrderStatusConfirmed
	order.PaymentMethod = enums.PaymentMethodOnline
	order.PaymentStatus = enums.PaymentStatusPaid
	order.PaymentGateway = &gateway
	order.GatewayOrderID = input.GatewayOrderID
	order.GatewayPaymentID = &paymentID

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.insertOrder(ctx, tx, order)
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			existing, findErr := s.findByPayment(ctx, input.BuyerID, input.Gateway, paymentID)
			if findErr != nil {
				return nil, false, findErr
			}
			if existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}

	s.notify(ctx, order.UserID, enums.NotificationTypeOrder,
		fmt.Sprintf("Order %s placed successfully!", order.ID), types.OrderPayload(order.ID, order.Status))
	return order, true, nil
}

func (s *Service) ListForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (pagination.Page[models.Order], error) {
	page, err := s.repo.List(ctx, ListFilters{UserID: &buyerID}, params)
	return page, wrapList(err)
}

// GetForBuyer hides other buyers' orders behind NOT_FOUND.
func (s *Service) GetForBuyer(ctx context.Context, buyerID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, repo.MapLookupError(err, "order")
	}
	if order.UserID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// ListForSeller lists the seller's orders, optionally filtered by status.
func (s *Service) ListForSeller(ctx context.Context, sellerID uuid.UUID, status *enums.OrderStatus, params pagination.Params) (pagination.Page[models.Order], error) {
	if status != nil && !status.IsValid() {
		return pagination.Page[models.Order]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	page, err := s.repo.List(ctx, ListFilters{SellerID: &sellerID, Status: status}, params)
	return page, wrapList(err)
}

func (s *Service) ListAll(ctx context.Context, status *enums.OrderStatus, params pagination.Params) (pagination.Page[models.Order], error) {
	if status != nil && !status.IsValid() {
		return pagination.Page[models.Order]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	page, err := s.repo.List(ctx, ListFilters{Status: status}, params)
	return page, wrapList(err)
}

// OpenDispute lets the buyer contest a delivered order once.
func (s *Service) OpenDispute(ctx context.Context, buyerID, orderID uuid.UUID, reason string) (*models.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute reason required")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.lockOwned(ctx, tx, buyerID, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only delivered orders can be disputed")
		}
		if order.DisputeStatus != enums.DisputeStatusNone {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already has a dispute")
		}

		now := time.Now().UTC()
		if err := s.repo.WithTx(tx).Update(ctx, order.ID, map[string]any{
			"dispute_status": enums.DisputeStatusOpen,
			"dispute_reason": reason,
			"updated_at":     now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open dispute")
		}
		order.DisputeStatus = enums.DisputeStatusOpen
		order.DisputeReason = &reason
		order.UpdatedAt = now

		if err := s.audit.Record(ctx, tx, audit.Entry{
			ActorID:    buyerID,
			Action:     enums.AuditDisputeOpened,
			TargetType: audit.TargetOrder,
			TargetID:   order.ID,
			Payload:    types.AuditPayload{Status: &types.StatusChange{From: string(enums.DisputeStatusNone), To: string(enums.DisputeStatusOpen), Reason: reason}},
		}); err != nil {
			return err
		}
		return s.emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDisputeOpened,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: buyerID, Role: enums.UserRoleUser},
			Data:          payloads.DisputeOpenedEvent{OrderID: order.ID, UserID: order.UserID, SellerID: order.SellerID, Reason: reason},
		})
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, order.SellerID, enums.NotificationTypeDispute,
		fmt.Sprintf("A dispute was raised on order %s", order.ID),
		types.DisputePayload(types.DisputeRef{OrderID: order.ID, Status: order.DisputeStatus}))
	return order, nil
}

// Rate stores the buyer's rating of a delivered order. Ratings are final.
func (s *Service) Rate(ctx context.Context, input RateInput) (*models.Order, error) {
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.lockOwned(ctx, tx, input.BuyerID, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only delivered orders can be rated")
		}
		if order.Rating != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already rated")
		}
		updates := map[string]any{"rating": input.Rating, "updated_at": time.Now().UTC()}
		var feedback *string
		if input.Feedback != nil {
			trimmed := strings.TrimSpace(*input.Feedback)
			feedback = &trimmed
			updates["feedback"] = trimmed
		}
		if err := s.repo.WithTx(tx).Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate order")
		}
		rating := input.Rating
		order.Rating = &rating
		order.Feedback = feedback
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) newOrder(buyerID uuid.UUID, input NewOrderInput) (*models.Order, error) {
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if input.SellerID == buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sellers cannot order from themselves")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	for i, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d: quantity must be positive", i))
		}
		if !money.Positive(item.Price) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d: price must be positive", i))
		}
	}
	if err := input.DeliveryAddress.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery address")
	}

	total := money.Round(input.Total)
	expected := input.Items.Sum()
	if !total.Equal(expected) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total does not match items").
			WithDetails(map[string]string{"expected": expected.StringFixed(2), "got": total.StringFixed(2)})
	}

	items := make(types.OrderItems, len(input.Items))
	copy(items, input.Items)
	return &models.Order{
		ID:              uuid.New(),
		UserID:          buyerID,
		SellerID:        input.SellerID,
		Items:           items,
		Total:           total,
		DeliveryAddress: input.DeliveryAddress,
		DisputeStatus:   enums.DisputeStatusNone,
		Notes:           input.Notes,
	}, nil
}

// insertOrder checks the seller, inserts the order and queues its event.
func (s *Service) insertOrder(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	seller, err := users.NewRepository(tx).FindByID(ctx, order.SellerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, "seller not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
	}
	if seller.Role != enums.UserRoleSeller || !seller.IsActive {
		return pkgerrors.New(pkgerrors.CodeValidation, "seller not found")
	}

	if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
		if db.IsUniqueViolation(err, "") {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert order")
	}
	return s.emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: order.UserID, Role: enums.UserRoleUser},
		Data: payloads.OrderCreatedEvent{
			OrderID:        order.ID,
			UserID:         order.UserID,
			SellerID:       order.SellerID,
			Total:          order.Total,
			ItemCount:      len(order.Items),
			PaymentMethod:  order.PaymentMethod,
			PaymentStatus:  order.PaymentStatus,
			PaymentGateway: order.PaymentGateway,
		},
	})
}

// findByPayment returns the order already created for a gateway payment.
// A payment owned by another buyer is FORBIDDEN.
func (s *Service) findByPayment(ctx context.Context, buyerID uuid.UUID, gateway enums.PaymentGateway, paymentID string) (*models.Order, error) {
	order, err := s.repo.FindByGatewayPayment(ctx, gateway, paymentID)
	if err == nil {
		if order.UserID != buyerID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment belongs to another buyer")
		}
		return order, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment")
}

func (s *Service) lockOwned(ctx context.Context, tx *gorm.DB, buyerID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.WithTx(tx).FindByIDForUpdate(ctx, orderID)
	if err != nil {
		return nil, repo.MapLookupError(err, "order")
	}
	if order.UserID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *Service) emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue "+string(event.EventType))
	}
	return nil
}

// notify is best effort; the primary operation has already committed.
func (s *Service) notify(ctx context.Context, userID uuid.UUID, typ enums.NotificationType, message string, payload types.NotificationPayload) {
	if _, err := s.notifier.Notify(ctx, userID, typ, message, payload); err != nil {
		s.warn(ctx, "order notification failed", err)
	}
}

func (s *Service) push(ctx context.Context, target, event string, data any) {
	if err := s.realtime.Emit(ctx, target, event, data); err != nil {
		s.warn(ctx, "order realtime push failed", err)
	}
}

func (s *Service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}

func wrapList(err error) error {
	if err == nil || pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
}
