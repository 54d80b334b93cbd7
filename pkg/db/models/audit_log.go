package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/thalibox/marketplace-backend/pkg/enums"
	"github.com/thalibox/marketplace-backend/pkg/types"
)

type AuditLog struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ActorID    uuid.UUID          `gorm:"column:actor_id;type:uuid;not null" json:"actorId"`
	Action     enums.AuditAction  `gorm:"column:action;type:text;not null" json:"action"`
	TargetType string             `gorm:"column:target_type;type:text;not null" json:"targetType"`
	TargetID   uuid.UUID          `gorm:"column:target_id;type:uuid;not null" json:"targetId"`
	Payload    types.AuditPayload `gorm:"column:payload;type:jsonb;serializer:json" json:"payload"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}
