package orders

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

// ListFilters narrows order listings. Nil fields are not applied.
type ListFilters struct {
	UserID   *uuid.UUID
	SellerID *uuid.UUID
	Status   *enums.OrderStatus
}

// Repository persists orders. Rows are never deleted.
type Repository struct {
	repo.Base
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(conn)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return NewRepository(tx)
}

func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	return r.DB(ctx).Create(order).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.DB(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDForUpdate locks the order row so concurrent transitions serialize.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := db.LockForUpdate(r.DB(ctx)).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) FindByGatewayPayment(ctx context.Context, gateway enums.PaymentGateway, paymentID string) (*models.Order, error) {
	var order models.Order
	err := r.DB(ctx).
		Where("payment_gateway = ? AND gateway_payment_id = ?", gateway, paymentID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) List(ctx context.Context, filters ListFilters, params pagination.Params) (pagination.Page[models.Order], error) {
	q := r.DB(ctx).Model(&models.Order{})
	if filters.UserID != nil {
		q = q.Where("user_id = ?", *filters.UserID)
	}
	if filters.SellerID != nil {
		q = q.Where("seller_id = ?", *filters.SellerID)
	}
	if filters.Status != nil {
		q = q.Where("status = ?", *filters.Status)
	}
	q, err := repo.Paginate(q, params)
	if err != nil {
		return pagination.Page[models.Order]{}, err
	}
	var rows []models.Order
	if err := q.Find(&rows).Error; err != nil {
		return pagination.Page[models.Order]{}, err
	}
	return pagination.Trim(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	}), nil
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.DB(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error
}
