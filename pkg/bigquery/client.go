package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/thalibox/marketplace-backend/pkg/config"
	"github.com/thalibox/marketplace-backend/pkg/logger"
)

const metadataCheckTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// Table describes a sink table. Row is a struct with bigquery tags whose
// inferred schema is used when the table has to be created. PartitionBy names
// a TIMESTAMP column for daily partitioning.
type Table struct {
	Name        string
	Row         any
	PartitionBy string
}

func (t Table) metadata() (*bigquery.TableMetadata, error) {
	schema, err := bigquery.InferSchema(t.Row)
	if err != nil {
		return nil, fmt.Errorf("infer schema for %s: %w", t.Name, err)
	}
	md := &bigquery.TableMetadata{Schema: schema}
	if t.PartitionBy != "" {
		md.TimePartitioning = &bigquery.TimePartitioning{Type: bigquery.DayPartitioningType, Field: t.PartitionBy}
	}
	return md, nil
}

type Client struct {
	client  *bigquery.Client
	dataset *bigquery.Dataset
	tables  []Table
	create  bool
}

// NewClient opens a BigQuery client and checks that the dataset and every
// table exist. With cfg.AutoCreateTables missing tables are created instead.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger, tables ...Table) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	datasetID := strings.TrimSpace(cfg.Dataset)
	switch {
	case projectID == "":
		return nil, errProjectIDRequired
	case datasetID == "":
		return nil, errDatasetRequired
	case len(tables) == 0:
		return nil, errTableNameRequired
	}
	for i := range tables {
		tables[i].Name = strings.TrimSpace(tables[i].Name)
		if tables[i].Name == "" {
			return nil, errTableNameRequired
		}
	}

	bq, err := bigquery.NewClient(ctx, projectID, gcp.ClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{client: bq, dataset: bq.Dataset(datasetID), tables: tables, create: cfg.AutoCreateTables}
	if err := c.Ping(ctx); err != nil {
		_ = bq.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"dataset": datasetID, "tables": len(tables)}), "bigquery client initialized")
	}
	return c, nil
}

// Ping verifies the dataset and tables are reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataCheckTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("dataset %q does not exist", c.dataset.DatasetID)
		}
		return fmt.Errorf("checking dataset %q: %w", c.dataset.DatasetID, err)
	}
	for _, t := range c.tables {
		if err := c.ensureTable(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) ensureTable(ctx context.Context, t Table) error {
	ref := c.dataset.Table(t.Name)
	_, err := ref.Metadata(ctx)
	switch {
	case err == nil:
		return nil
	case !isNotFound(err):
		return fmt.Errorf("checking table %q: %w", t.Name, err)
	case !c.create || t.Row == nil:
		return fmt.Errorf("table %q does not exist", t.Name)
	}

	md, err := t.metadata()
	if err != nil {
		return err
	}
	if err := ref.Create(ctx, md); err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("creating table %q: %w", t.Name, err)
	}
	return nil
}

// InsertRows streams rows into table. Rows implementing bigquery.ValueSaver
// with an insert id are deduplicated best-effort by BigQuery.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.client == nil {
		return errClientNotInitialized
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errTableNameRequired
	}
	if len(rows) == 0 {
		return nil
	}
	if err := c.dataset.Table(table).Inserter().Put(ctx, rows); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

func isAlreadyExists(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict
}
