// Package audit records administrative and state-machine actions.
package audit

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thalibox/marketplace-backend/internal/repo"
	"github.com/thalibox/marketplace-backend/pkg/db/models"
	"github.com/thalibox/marketplace-backend/pkg/enums"
	pkgerrors "github.com/thalibox/marketplace-backend/pkg/errors"
	"github.com/thalibox/marketplace-backend/pkg/types"
)

const DefaultListLimit = 100

// Target types stored in audit_logs.target_type.
const (
	TargetOrder      = "order"
	TargetSettlement = "settlement"
	TargetSeller     = "seller"
)

// Entry is one audited action.
type Entry struct {
	ActorID    uuid.UUID
	Action     enums.AuditAction
	TargetType string
	TargetID   uuid.UUID
	Payload    types.AuditPayload
}

// Recorder writes audit rows inside the caller's transaction.
type Recorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry) error
}

type Repository struct {
	repo.Base
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(conn)}
}

func (r *Repository) Record(ctx context.Context, tx *gorm.DB, entry Entry) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "audit record requires a transaction")
	}
	if !entry.Action.IsValid() {
		return pkgerrors.New(pkgerrors.CodeInternal, "unknown audit action")
	}
	row := models.AuditLog{
		ID:         uuid.New(),
		ActorID:    entry.ActorID,
		Action:     entry.Action,
		TargetType: entry.TargetType,
		TargetID:   entry.TargetID,
		Payload:    entry.Payload,
	}
	if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert audit log")
	}
	return nil
}

// ListRecent returns the newest audit rows first.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	var rows []models.AuditLog
	err := r.DB(ctx).Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list audit logs")
	}
	return rows, nil
}
