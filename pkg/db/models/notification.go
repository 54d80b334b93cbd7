package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/thalibox/marketplace-backend/pkg/enums"
	"github.com/thalibox/marketplace-backend/pkg/types"
)

// Notification stores an in-app notification for one user.
type Notification struct {
	ID        uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID                 `gorm:"column:user_id;type:uuid;not null" json:"userId"`
	Type      enums.NotificationType    `gorm:"column:type;type:text;not null" json:"type"`
	Message   string                    `gorm:"column:message;type:text;not null" json:"message"`
	Data      types.NotificationPayload `gorm:"column:data;type:jsonb;serializer:json" json:"data"`
	IsRead    bool                      `gorm:"column:is_read;not null;default:false" json:"isRead"`
	CreatedAt time.Time                 `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}
