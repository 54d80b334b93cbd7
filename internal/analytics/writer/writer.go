package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/cenkalti/backoff/v4"

	"github.com/thalibox/marketplace-backend/internal/analytics/types"
	pkgbigquery "github.com/thalibox/marketplace-backend/pkg/bigquery"
)

const (
	defaultBatchSize      = 1
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second
)

// RowInserter is the BigQuery surface the writer needs.
type RowInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// Config controls the analytics writer behavior.
type Config struct {
	MarketplaceTable string
	// BatchSize above one trades delivery guarantees for fewer inserts: rows
	// buffered when the worker stops are lost unless Flush runs.
	BatchSize   int
	RetryPolicy RetryPolicy
}

// RetryPolicy bounds the exponential backoff between insert attempts.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = defaultInitialBackoff
	}
	if p.MaximumBackoff <= 0 {
		p.MaximumBackoff = defaultMaximumBackoff
	}
	p.MaximumBackoff = max(p.MaximumBackoff, p.InitialBackoff)
	return p
}

func (p RetryPolicy) backoff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialBackoff
	exp.MaxInterval = p.MaximumBackoff
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.MaxAttempts-1)), ctx)
}

// BigQueryWriter streams marketplace rows into BigQuery. Safe for concurrent
// use by Pub/Sub receive callbacks.
type BigQueryWriter struct {
	client    RowInserter
	table     string
	batchSize int
	retry     RetryPolicy

	mu     sync.Mutex
	buffer []types.MarketplaceEventRow
}

func New(client RowInserter, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table := strings.TrimSpace(cfg.MarketplaceTable)
	if table == "" {
		return nil, errors.New("marketplace table is required")
	}
	return &BigQueryWriter{
		client:    client,
		table:     table,
		batchSize: max(cfg.BatchSize, defaultBatchSize),
		retry:     cfg.RetryPolicy.withDefaults(),
	}, nil
}

// InsertMarketplace buffers row and flushes once the batch is full.
func (w *BigQueryWriter) InsertMarketplace(ctx context.Context, row types.MarketplaceEventRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buffer = append(w.buffer, row)
	if len(w.buffer) < w.batchSize {
		return nil
	}
	return w.flushLocked(ctx)
}

// Flush writes any buffered rows immediately.
func (w *BigQueryWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx)
}

func (w *BigQueryWriter) flushLocked(ctx context.Context) error {
	if len(w.buffer) == 0 {
		return nil
	}
	rows := make([]any, len(w.buffer))
	for i := range w.buffer {
		rows[i] = &w.buffer[i]
	}
	// failed rows are dropped too; the caller nacks and redelivery rebuilds them
	defer func() { w.buffer = w.buffer[:0] }()

	insert := func() error {
		err := w.client.InsertRows(ctx, w.table, rows)
		if err != nil && !pkgbigquery.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(insert, w.retry.backoff(ctx)); err != nil {
		return fmt.Errorf("insert %d rows into %s: %w", len(rows), w.table, err)
	}
	return nil
}

// EncodeJSON converts a payload into a BigQuery JSON column value. Raw JSON
// passes through untouched; empty input is NULL.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	var raw []byte
	switch v := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case cbigquery.NullJSON:
		return v, nil
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
		}
		raw = b
	}
	if len(raw) == 0 {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{JSONVal: string(raw), Valid: true}, nil
}
