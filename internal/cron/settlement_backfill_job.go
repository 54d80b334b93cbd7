package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/thalibox/marketplace-backend/pkg/db/models"
	"github.com/thalibox/marketplace-backend/pkg/logger"
	"github.com/thalibox/marketplace-backend/pkg/outbox"
)

const defaultBackfillLimit = 200

type deliveredOrderFinder interface {
	ListDeliveredWithoutSettlement(ctx context.Context, limit int) ([]models.Order, error)
}

type settlementCreator interface {
	CreateForOrder(ctx context.Context, tx *gorm.DB, order *models.Order, actor *outbox.ActorRef) (*models.Settlement, error)
}

type SettlementBackfillJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Orders      deliveredOrderFinder
	Settlements settlementCreator
	Limit       int
}

// NewSettlementBackfillJob creates the pending settlement of delivered orders
// that have none, e.g. orders delivered before settlements existed.
func NewSettlementBackfillJob(params SettlementBackfillJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Orders == nil:
		return nil, fmt.Errorf("order finder required")
	case params.Settlements == nil:
		return nil, fmt.Errorf("settlement creator required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultBackfillLimit
	}
	return &settlementBackfillJob{
		logg:        params.Logger,
		db:          params.DB,
		orders:      params.Orders,
		settlements: params.Settlements,
		limit:       limit,
	}, nil
}

type settlementBackfillJob struct {
	logg        *logger.Logger
	db          txRunner
	orders      deliveredOrderFinder
	settlements settlementCreator
	limit       int
}

func (j *settlementBackfillJob) Name() string { return "settlement-backfill" }

func (j *settlementBackfillJob) Run(ctx context.Context) error {
	candidates, err := j.orders.ListDeliveredWithoutSettlement(ctx, j.limit)
	if err != nil {
		return fmt.Errorf("list delivered orders: %w", err)
	}

	var (
		created int
		errs    error
	)
	for i := range candidates {
		order := &candidates[i]
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			_, err := j.settlements.CreateForOrder(ctx, tx, order, nil)
			return err
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		created++
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(candidates),
		"created":    created,
		"failed":     len(multierr.Errors(errs)),
	}), "settlement backfill complete")
	return errs
}
