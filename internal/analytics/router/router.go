package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/thalibox/marketplace-backend/internal/analytics/types"
	analyticswriter "github.com/thalibox/marketplace-backend/internal/analytics/writer"
	"github.com/thalibox/marketplace-backend/pkg/enums"
	"github.com/thalibox/marketplace-backend/pkg/logger"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer delivers BigQuery rows produced by the row builders.
type Writer interface {
	InsertMarketplace(ctx context.Context, row types.MarketplaceEventRow) error
}

// rowBuilder fills the event-specific columns of row from a decoded payload.
type rowBuilder func(row *types.MarketplaceEventRow, payload any) error

type route struct {
	decode func(raw []byte) (any, error)
	build  rowBuilder
}

func routeFor[T any](build func(row *types.MarketplaceEventRow, event *T)) route {
	return route{
		decode: func(raw []byte) (any, error) {
			var event T
			if err := json.Unmarshal(raw, &event); err != nil {
				return nil, err
			}
			return &event, nil
		},
		build: func(row *types.MarketplaceEventRow, payload any) error {
			event, ok := payload.(*T)
			if !ok {
				return fmt.Errorf("unexpected payload %T", payload)
			}
			build(row, event)
			return nil
		},
	}
}

// Router turns every domain event into one marketplace_events row.
type Router struct {
	routes map[enums.OutboxEventType]route
	writer Writer
	logg   *logger.Logger
}

func NewRouter(writer Writer, logg *logger.Logger) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	routes := map[enums.OutboxEventType]route{
		enums.EventOrderCreated:        routeFor(orderCreatedRow),
		enums.EventOrderStatusChanged:  routeFor(orderStatusChangedRow),
		enums.EventOrderRefunded:       routeFor(orderRefundedRow),
		enums.EventDisputeOpened:       routeFor(disputeOpenedRow),
		enums.EventDisputeResolved:     routeFor(disputeResolvedRow),
		enums.EventSettlementCreated:   routeFor(settlementCreatedRow),
		enums.EventSettlementProcessed: routeFor(settlementProcessedRow),
		enums.EventSettlementFailed:    routeFor(settlementFailedRow),
		enums.EventSellerKYCDecided:    routeFor(sellerKYCDecidedRow),
		enums.EventSellerRatesUpdated:  routeFor(sellerRatesUpdatedRow),
	}

	return &Router{routes: routes, writer: writer, logg: logg}, nil
}

// Handle decodes the envelope payload and inserts the resulting row.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	rt, ok := r.routes[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("empty payload for %s", envelope.EventType)
	}
	payload, err := rt.decode(envelope.Payload)
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", envelope.EventType, err)
	}

	row, err := baseRow(envelope)
	if err != nil {
		return err
	}
	if err := rt.build(&row, payload); err != nil {
		return fmt.Errorf("build %s row: %w", envelope.EventType, err)
	}

	if err := r.writer.InsertMarketplace(ctx, row); err != nil {
		r.logg.Error(ctx, "failed to insert marketplace row", err)
		return err
	}
	return nil
}

func baseRow(envelope types.Envelope) (types.MarketplaceEventRow, error) {
	payloadJSON, err := analyticswriter.EncodeJSON(envelope.Payload)
	if err != nil {
		return types.MarketplaceEventRow{}, err
	}
	row := types.MarketplaceEventRow{
		EventID:       envelope.EventID,
		EventType:     string(envelope.EventType),
		AggregateType: string(envelope.AggregateType),
		AggregateID:   envelope.AggregateID,
		OccurredAt:    envelope.OccurredAt,
		Payload:       payloadJSON,
	}
	if actor := envelope.Actor; actor != nil {
		row.ActorID = nullID(actor.UserID)
		row.ActorRole = nullString(string(actor.Role))
	}
	return row, nil
}
