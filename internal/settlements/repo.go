package settlements

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thalibox/marketplace-backend/internal/repo"
	"github.com/thalibox/marketplace-backend/pkg/db"
	"github.com/thalibox/marketplace-backend/pkg/db/models"
	"github.com/thalibox/marketplace-backend/pkg/enums"
	"github.com/thalibox/marketplace-backend/pkg/pagination"
)

// ListFilters narrows settlement listings. Zero values mean no filter.
type ListFilters struct {
	SellerID *uuid.UUID
	Status   *enums.SettlementStatus
}

type Repository struct {
	repo.Base
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(conn)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return NewRepository(tx)
}

func (r *Repository) Create(ctx context.Context, s *models.Settlement) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return r.DB(ctx).Create(s).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Settlement, error) {
	var s models.Settlement
	if err := r.DB(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// FindByIDForUpdate locks the settlement row for the enclosing transaction.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Settlement, error) {
	var s models.Settlement
	if err := db.LockForUpdate(r.DB(ctx)).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Settlement, error) {
	var s models.Settlement
	if err := r.DB(ctx).First(&s, "order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repository) List(ctx context.Context, filters ListFilters, params pagination.Params) (pagination.Page[models.Settlement], error) {
	q := r.DB(ctx).Model(&models.Settlement{})
	if filters.SellerID != nil {
		q = q.Where("seller_id = ?", *filters.SellerID)
	}
	if filters.Status != nil {
		q = q.Where("status = ?", *filters.Status)
	}
	q, err := repo.Paginate(q, params)
	if err != nil {
		return pagination.Page[models.Settlement]{}, err
	}
	var rows []models.Settlement
	if err := q.Find(&rows).Error; err != nil {
		return pagination.Page[models.Settlement]{}, err
	}
	return pagination.Trim(rows, params.Limit, settlementCursor), nil
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.DB(ctx).Model(&models.Settlement{}).Where("id = ?", id).Updates(updates).Error
}

// OrderRefunded reports whether the order behind a settlement was refunded.
func (r *Repository) OrderRefunded(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", orderID, enums.PaymentStatusRefunded).
		Count(&count).Error
	return count > 0, err
}

// ListDeliveredWithoutSettlement finds delivered orders that never got a
// settlement row, oldest first.
func (r *Repository) ListDeliveredWithoutSettlement(ctx context.Context, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB(ctx).
		Model(&models.Order{}).
		Where("status = ?", enums.OrderStatusDelivered).
		Where("payment_status <> ?", enums.PaymentStatusRefunded).
		Where("NOT EXISTS (SELECT 1 FROM settlements s WHERE s.order_id = orders.id)").
		Order("updated_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func settlementCursor(s models.Settlement) pagination.Cursor {
	return pagination.Cursor{CreatedAt: s.CreatedAt, ID: s.ID}
}
