package writer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/thalibox/marketplace-backend/internal/analytics/types"
)

func TestNewWriterValidation(t *testing.T) {
	if _, err := New(nil, Config{MarketplaceTable: "marketplace_events"}); err == nil {
		t.Fatal("expected error when client missing")
	}
	if _, err := New(&fakeInserter{}, Config{MarketplaceTable: " "}); err == nil {
		t.Fatal("expected error when table missing")
	}
}

func TestEncodeJSON(t *testing.T) {
	nj, err := EncodeJSON(map[string]any{"orderId": "o-1"})
	if err != nil {
		t.Fatalf("encode map: %v", err)
	}
	if !nj.Valid {
		t.Fatal("expected json to be marked valid")
	}

	nj, err = EncodeJSON(nil)
	if err != nil {
		t.Fatalf("encode nil: %v", err)
	}
	if nj.Valid {
		t.Fatal("expected nil json to be invalid")
	}

	raw := json.RawMessage(`{"settlementId":"s-1"}`)
	nj, err = EncodeJSON(raw)
	if err != nil {
		t.Fatalf("encode raw: %v", err)
	}
	if nj.JSONVal != string(raw) {
		t.Fatalf("expected raw json passed through, got %s", nj.JSONVal)
	}
}

func TestWriterRetriesOnTransientError(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)
	fake.responses = []error{
		&googleapi.Error{Code: http.StatusServiceUnavailable},
		status.Error(codes.Unavailable, "try later"),
		nil,
	}

	if err := writer.InsertMarketplace(context.Background(), types.MarketplaceEventRow{EventID: "1"}); err != nil {
		t.Fatalf("unexpected error writing row: %v", err)
	}
	if len(fake.calls) != 3 {
		t.Fatalf("expected three insert attempts, got %d", len(fake.calls))
	}
	if fake.calls[2].table != "marketplace_events" {
		t.Fatalf("unexpected table %s", fake.calls[2].table)
	}
	if len(writer.buffer) != 0 {
		t.Fatal("expected buffer to be empty after success")
	}
}

func TestWriterDoesNotRetryPermanentError(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)
	fake.responses = []error{&googleapi.Error{Code: http.StatusBadRequest}}

	if err := writer.InsertMarketplace(context.Background(), types.MarketplaceEventRow{EventID: "1"}); err == nil {
		t.Fatal("expected error")
	}
	if len(fake.calls) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(fake.calls))
	}
	if len(writer.buffer) != 0 {
		t.Fatal("failed rows should not stay buffered")
	}
}

func TestWriterGivesUpAfterMaxAttempts(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)
	transient := &googleapi.Error{Code: http.StatusTooManyRequests}
	fake.responses = []error{transient, transient, transient, transient}

	err := writer.InsertMarketplace(context.Background(), types.MarketplaceEventRow{EventID: "1"})
	if !errors.Is(err, transient) {
		t.Fatalf("expected wrapped transient error, got %v", err)
	}
	if len(fake.calls) != defaultMaxAttempts {
		t.Fatalf("expected %d attempts, got %d", defaultMaxAttempts, len(fake.calls))
	}
}

func TestWriterBatching(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)
	writer.batchSize = 2

	if err := writer.InsertMarketplace(context.Background(), types.MarketplaceEventRow{EventID: "1"}); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if len(fake.calls) != 0 {
		t.Fatalf("expected no insert before batch full, got %d", len(fake.calls))
	}
	if err := writer.InsertMarketplace(context.Background(), types.MarketplaceEventRow{EventID: "2"}); err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if len(fake.calls) != 1 || fake.calls[0].rowCount != 2 {
		t.Fatalf("expected one insert of two rows, got %+v", fake.calls)
	}
}

func TestWriterFlush(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)
	writer.batchSize = 10
	if err := writer.InsertMarketplace(context.Background(), types.MarketplaceEventRow{EventID: "1"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := writer.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(fake.calls) != 1 {
		t.Fatalf("expected flush to insert once, got %d", len(fake.calls))
	}
	if err := writer.Flush(context.Background()); err != nil {
		t.Fatalf("empty flush: %v", err)
	}
	if len(fake.calls) != 1 {
		t.Fatal("empty flush should not call BigQuery")
	}
}

func TestWriterStopsWhenContextCancelled(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)
	writer.retry.InitialBackoff = time.Hour
	writer.retry.MaximumBackoff = time.Hour
	fake.responses = []error{&googleapi.Error{Code: http.StatusServiceUnavailable}}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := writer.InsertMarketplace(ctx, types.MarketplaceEventRow{EventID: "1"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if len(fake.calls) != 1 {
		t.Fatalf("expected a single attempt before cancellation, got %d", len(fake.calls))
	}
}

func TestMarketplaceRowUsesEventIDAsInsertID(t *testing.T) {
	row := &types.MarketplaceEventRow{EventID: "evt-9", EventType: "order_created"}
	values, insertID, err := row.Save()
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if insertID != "evt-9" {
		t.Fatalf("expected insert id evt-9, got %q", insertID)
	}
	if values["event_type"] != "order_created" {
		t.Fatalf("unexpected event_type value %v", values["event_type"])
	}
}

type insertCall struct {
	table    string
	rowCount int
}

type fakeInserter struct {
	responses []error
	calls     []insertCall
}

func (f *fakeInserter) InsertRows(_ context.Context, table string, rows []any) error {
	idx := len(f.calls)
	f.calls = append(f.calls, insertCall{table: table, rowCount: len(rows)})
	if idx < len(f.responses) {
		return f.responses[idx]
	}
	return nil
}

func newWriterWithFakeInserter(t *testing.T) (*BigQueryWriter, *fakeInserter) {
	t.Helper()
	fake := &fakeInserter{}
	writer, err := New(fake, Config{
		MarketplaceTable: "marketplace_events",
		RetryPolicy:      RetryPolicy{InitialBackoff: time.Millisecond, MaximumBackoff: 2 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("construct writer: %v", err)
	}
	return writer, fake
}
