package bigquery

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/thalibox/marketplace-backend/pkg/config"
)

type sampleRow struct {
	ID         string              `bigquery:"id"`
	OccurredAt time.Time           `bigquery:"occurred_at"`
	Amount     bigquery.NullInt64  `bigquery:"amount"`
	Note       bigquery.NullString `bigquery:"note"`
}

func TestTableMetadataInfersSchemaAndPartitioning(t *testing.T) {
	md, err := Table{Name: "events", Row: sampleRow{}, PartitionBy: "occurred_at"}.metadata()
	require.NoError(t, err)

	names := make([]string, 0, len(md.Schema))
	for _, f := range md.Schema {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"id", "occurred_at", "amount", "note"}, names)
	assert.False(t, md.Schema[2].Required)
	require.NotNil(t, md.TimePartitioning)
	assert.Equal(t, "occurred_at", md.TimePartitioning.Field)

	_, err = Table{Name: "bad", Row: 42}.metadata()
	assert.Error(t, err)
}

func TestNewClientValidatesInputs(t *testing.T) {
	ctx := context.Background()
	gcp := config.GCPConfig{ProjectID: "proj"}
	cfg := config.BigQueryConfig{Dataset: "ds"}

	_, err := NewClient(ctx, config.GCPConfig{}, cfg, nil, Table{Name: "t"})
	assert.ErrorIs(t, err, errProjectIDRequired)
	_, err = NewClient(ctx, gcp, config.BigQueryConfig{Dataset: " "}, nil, Table{Name: "t"})
	assert.ErrorIs(t, err, errDatasetRequired)
	_, err = NewClient(ctx, gcp, cfg, nil)
	assert.ErrorIs(t, err, errTableNameRequired)
	_, err = NewClient(ctx, gcp, cfg, nil, Table{Name: "  "})
	assert.ErrorIs(t, err, errTableNameRequired)
}

func TestAPIErrorClassifiers(t *testing.T) {
	assert.True(t, isNotFound(&googleapi.Error{Code: http.StatusNotFound}))
	assert.False(t, isNotFound(&googleapi.Error{Code: http.StatusForbidden}))
	assert.False(t, isNotFound(errors.New("boom")))
	assert.True(t, isAlreadyExists(&googleapi.Error{Code: http.StatusConflict}))
}

func TestNilClient(t *testing.T) {
	var c *Client
	assert.ErrorIs(t, c.InsertRows(context.Background(), "t", []any{1}), errClientNotInitialized)
	assert.ErrorIs(t, c.Ping(context.Background()), errClientNotInitialized)
	assert.NoError(t, c.Close())
}
