package sellers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/thalibox/marketplace-backend/internal/audit"
	"github.com/thalibox/marketplace-backend/internal/repo"
	"github.com/thalibox/marketplace-backend/internal/users"
	"github.com/thalibox/marketplace-backend/pkg/db/models"
	"github.com/thalibox/marketplace-backend/pkg/enums"
	pkgerrors "github.com/thalibox/marketplace-backend/pkg/errors"
	"github.com/thalibox/marketplace-backend/pkg/logger"
	"github.com/thalibox/marketplace-backend/pkg/money"
	"github.com/thalibox/marketplace-backend/pkg/outbox"
	"github.com/thalibox/marketplace-backend/pkg/outbox/payloads"
	"github.com/thalibox/marketplace-backend/pkg/realtime"
	"github.com/thalibox/marketplace-backend/pkg/types"
)

var hundred = decimal.NewFromInt(100)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, typ enums.NotificationType, message string, payload types.NotificationPayload) (*models.Notification, error)
}

type ServiceParams struct {
	DB       *gorm.DB
	Tx       txRunner
	Outbox   outbox.Emitter
	Audit    audit.Recorder
	Notifier notifier
	Realtime realtime.Emitter
	Logger   *logger.Logger
}

// Service holds the admin operations on seller accounts.
type Service struct {
	users    *users.Repository
	tx       txRunner
	outbox   outbox.Emitter
	audit    audit.Recorder
	notifier notifier
	realtime realtime.Emitter
	logg     *logger.Logger
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
	case params.Notifier == nil:
		return nil, fmt.Errorf("notifier required")
	case params.Realtime == nil:
		return nil, fmt.Errorf("realtime emitter required")
	}
	return &Service{
		users:    users.NewRepository(params.DB),
		tx:       params.Tx,
		outbox:   params.Outbox,
		audit:    params.Audit,
		notifier: params.Notifier,
		realtime: params.Realtime,
		logg:     params.Logger,
	}, nil
}

type KYCDecisionInput struct {
	SellerID uuid.UUID
	AdminID  uuid.UUID
	Reason   string
}

// RatesInput replaces both overrides. A nil rate falls back to the platform
// default.
type RatesInput struct {
	SellerID          uuid.UUID
	AdminID           uuid.UUID
	CommissionPercent *decimal.Decimal
	GSTPercent        *decimal.Decimal
}

func (s *Service) ApproveKYC(ctx context.Context, input KYCDecisionInput) (*users.UserDTO, error) {
	return s.decideKYC(ctx, input, enums.KYCStatusVerified)
}

func (s *Service) RejectKYC(ctx context.Context, input KYCDecisionInput) (*users.UserDTO, error) {
	return s.decideKYC(ctx, input, enums.KYCStatusRejected)
}

func (s *Service) decideKYC(ctx context.Context, input KYCDecisionInput, status enums.KYCStatus) (*users.UserDTO, error) {
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin identity missing")
	}
	reason := strings.TrimSpace(input.Reason)

	var seller *models.User
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		store := s.users.WithTx(tx)
		var err error
		seller, err = lockSeller(ctx, store, input.SellerID)
		if err != nil {
			return err
		}
		if seller.KYCStatus == status {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "seller kyc is already "+string(status))
		}
		from := seller.KYCStatus
		if err := store.UpdateKYCStatus(ctx, seller.ID, status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update kyc status")
		}
		seller.KYCStatus = status

		action := enums.AuditSellerKYCApproved
		if status == enums.KYCStatusRejected {
			action = enums.AuditSellerKYCRejected
		}
		if err := s.audit.Record(ctx, tx, audit.Entry{
			ActorID:    input.AdminID,
			Action:     action,
			TargetType: audit.TargetSeller,
			TargetID:   seller.ID,
			Payload:    types.AuditPayload{Status: &types.StatusChange{From: string(from), To: string(status), Reason: reason}},
		}); err != nil {
			return err
		}
		return s.emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSellerKYCDecided,
			AggregateType: enums.AggregateSeller,
			AggregateID:   seller.ID,
			Actor:         &outbox.ActorRef{UserID: input.AdminID, Role: enums.UserRoleAdmin},
			Data:          payloads.SellerKYCDecidedEvent{SellerID: seller.ID, Status: status, Reason: reason},
		})
	})
	if err != nil {
		return nil, err
	}

	dto := users.FromModel(seller)
	event := realtime.EventKYCApproved
	message := "Your KYC has been approved"
	if status == enums.KYCStatusRejected {
		event = realtime.EventKYCRejected
		message = "Your KYC has been rejected"
		if reason != "" {
			message += ": " + reason
		}
	}
	if err := s.realtime.Emit(ctx, realtime.SellerTarget(seller.ID), event, dto); err != nil {
		s.warn(ctx, "kyc realtime push failed", err)
	}
	if _, err := s.notifier.Notify(ctx, seller.ID, enums.NotificationTypeKYC, message, types.KYCPayload(status, reason)); err != nil {
		s.warn(ctx, "kyc notification failed", err)
	}
	return dto, nil
}

// UpdateRates sets the seller's commission and GST overrides. Each rate is
// within [0, 100] and together they may not exceed 100.
func (s *Service) UpdateRates(ctx context.Context, input RatesInput) (*users.UserDTO, error) {
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin identity missing")
	}
	commission, err := normalizeRate("commissionPercent", input.CommissionPercent)
	if err != nil {
		return nil, err
	}
	gst, err := normalizeRate("gstPercent", input.GSTPercent)
	if err != nil {
		return nil, err
	}
	if commission != nil && gst != nil && commission.Add(*gst).GreaterThan(hundred) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "commission and gst together cannot exceed 100")
	}

	var seller *models.User
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		store := s.users.WithTx(tx)
		var err error
		seller, err = lockSeller(ctx, store, input.SellerID)
		if err != nil {
			return err
		}
		if err := store.UpdateRates(ctx, seller.ID, commission, gst); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update seller rates")
		}
		seller.CustomCommission = commission
		seller.CustomGST = gst

		if err := s.audit.Record(ctx, tx, audit.Entry{
			ActorID:    input.AdminID,
			Action:     enums.AuditSellerRatesUpdated,
			TargetType: audit.TargetSeller,
			TargetID:   seller.ID,
			Payload:    types.AuditPayload{Rates: &types.RatesChange{CommissionPercent: commission, GSTPercent: gst}},
		}); err != nil {
			return err
		}
		return s.emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSellerRatesUpdated,
			AggregateType: enums.AggregateSeller,
			AggregateID:   seller.ID,
			Actor:         &outbox.ActorRef{UserID: input.AdminID, Role: enums.UserRoleAdmin},
			Data:          payloads.SellerRatesUpdatedEvent{SellerID: seller.ID, CommissionPercent: commission, GSTPercent: gst},
		})
	})
	if err != nil {
		return nil, err
	}
	return users.FromModel(seller), nil
}

func lockSeller(ctx context.Context, store *users.Repository, id uuid.UUID) (*models.User, error) {
	seller, err := store.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, repo.MapLookupError(err, "seller")
	}
	if seller.Role != enums.UserRoleSeller {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
	}
	return seller, nil
}

func normalizeRate(field string, rate *decimal.Decimal) (*decimal.Decimal, error) {
	if rate == nil {
		return nil, nil
	}
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, field+" must be between 0 and 100")
	}
	rounded := money.Round(*rate)
	return &rounded, nil
}

func (s *Service) emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue "+string(event.EventType))
	}
	return nil
}

func (s *Service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}
