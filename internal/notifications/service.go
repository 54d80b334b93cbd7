package notifications

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thalibox/marketplace-backend/pkg/db/models"
	"github.com/thalibox/marketplace-backend/pkg/enums"
	pkgerrors "github.com/thalibox/marketplace-backend/pkg/errors"
	"github.com/thalibox/marketplace-backend/pkg/logger"
	"github.com/thalibox/marketplace-backend/pkg/pagination"
	"github.com/thalibox/marketplace-backend/pkg/realtime"
	"github.com/thalibox/marketplace-backend/pkg/types"
)

// DefaultListLimit is the page size when the caller does not pass one.
const DefaultListLimit = 100

// Service persists notifications and pushes them to live connections.
type Service interface {
	Notify(ctx context.Context, userID uuid.UUID, typ enums.NotificationType, message string, payload types.NotificationPayload) (*models.Notification, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[models.Notification], error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Delete(ctx context.Context, userID, notificationID uuid.UUID) error
	PurgeRead(ctx context.Context, olderThan time.Time) (int64, error)
}

type service struct {
	repo     Repository
	realtime realtime.Emitter
	logg     *logger.Logger
}

// NewService wires notifications dependencies. A nil emitter disables push.
func NewService(repo Repository, emitter realtime.Emitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo, realtime: emitter, logg: logg}, nil
}

// Notify stores the notification first; the realtime push is best effort.
func (s *service) Notify(ctx context.Context, userID uuid.UUID, typ enums.NotificationType, message string, payload types.NotificationPayload) (*models.Notification, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification user required")
	}
	if !typ.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid notification type")
	}
	if strings.TrimSpace(message) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification message required")
	}
	if err := payload.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification payload")
	}

	record := &models.Notification{
		ID:      uuid.New(),
		UserID:  userID,
		Type:    typ,
		Message: message,
		Data:    payload,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}

	if s.realtime != nil {
		if err := s.realtime.Emit(ctx, realtime.UserTarget(userID), realtime.EventNotification, record); err != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"notification_id": record.ID.String(),
				"error":           err.Error(),
			}), "notification push failed")
		}
	}
	return record, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[models.Notification], error) {
	if params.Limit <= 0 {
		params.Limit = DefaultListLimit
	}
	page, err := s.repo.List(ctx, userID, params)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return page, err
		}
		return page, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	return page, nil
}

func (s *service) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}
	return count, nil
}

func (s *service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	found, err := s.repo.MarkRead(ctx, userID, notificationID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	updated, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark all notifications read")
	}
	return updated, nil
}

func (s *service) Delete(ctx context.Context, userID, notificationID uuid.UUID) error {
	deleted, err := s.repo.Delete(ctx, userID, notificationID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete notification")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

// PurgeRead removes read notifications created before olderThan.
func (s *service) PurgeRead(ctx context.Context, olderThan time.Time) (int64, error) {
	deleted, err := s.repo.DeleteReadBefore(ctx, olderThan)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "purge read notifications")
	}
	return deleted, nil
}
