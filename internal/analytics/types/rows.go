package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// MarketplaceEventRow is one row of the marketplace_events table. Money
// columns are in paise; columns an event does not carry stay NULL.
type MarketplaceEventRow struct {
	EventID         string               `bigquery:"event_id"`
	EventType       string               `bigquery:"event_type"`
	AggregateType   string               `bigquery:"aggregate_type"`
	AggregateID     string               `bigquery:"aggregate_id"`
	OccurredAt      time.Time            `bigquery:"occurred_at"`
	ActorID         cbigquery.NullString `bigquery:"actor_id"`
	ActorRole       cbigquery.NullString `bigquery:"actor_role"`
	OrderID         cbigquery.NullString `bigquery:"order_id"`
	SettlementID    cbigquery.NullString `bigquery:"settlement_id"`
	BuyerID         cbigquery.NullString `bigquery:"buyer_id"`
	SellerID        cbigquery.NullString `bigquery:"seller_id"`
	OrderStatus     cbigquery.NullString `bigquery:"order_status"`
	PaymentMethod   cbigquery.NullString `bigquery:"payment_method"`
	PaymentGateway  cbigquery.NullString `bigquery:"payment_gateway"`
	AmountPaise     cbigquery.NullInt64  `bigquery:"amount_paise"`
	CommissionPaise cbigquery.NullInt64  `bigquery:"commission_paise"`
	GSTPaise        cbigquery.NullInt64  `bigquery:"gst_paise"`
	NetPaise        cbigquery.NullInt64  `bigquery:"net_paise"`
	Payload         cbigquery.NullJSON   `bigquery:"payload"`
}

// Save implements bigquery.ValueSaver so the event id doubles as the streaming
// insert id and BigQuery drops redelivered rows.
func (r *MarketplaceEventRow) Save() (map[string]cbigquery.Value, string, error) {
	saver := &cbigquery.StructSaver{Struct: r, InsertID: r.EventID}
	return saver.Save()
}
