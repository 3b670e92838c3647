package bigquery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/cashflow-migration/internal/store"
)

// DefaultDatasetID is the dataset holding the destination collections.
const DefaultDatasetID = "cashflow"

// BigQueryStore is a store.Store backed by one BigQuery table per
// collection. It holds a shared BigQuery client to avoid creating a new
// connection for each operation.
type BigQueryStore struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewBigQueryStore creates a store with its own BigQuery client.
func NewBigQueryStore(ctx context.Context, projectID, datasetID string) (*BigQueryStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("NewBigQueryStore: project ID is required")
	}
	if datasetID == "" {
		datasetID = DefaultDatasetID
	}

	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryStore: creating client: %w", err)
	}
	return NewBigQueryStoreWithClient(client, projectID, datasetID), nil
}

// NewBigQueryStoreWithClient creates a store on an existing client.
func NewBigQueryStoreWithClient(client *bigquery.Client, projectID, datasetID string) *BigQueryStore {
	return &BigQueryStore{client: client, projectID: projectID, datasetID: datasetID}
}

// Close closes the BigQuery client connection.
func (s *BigQueryStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// EnsureTables creates the collection tables and the migration_runs table.
func (s *BigQueryStore) EnsureTables(ctx context.Context) error {
	for _, c := range []string{store.CollectionAccounts, store.CollectionCategories, store.CollectionTransactions} {
		if err := EnsureCollectionTableWithClient(ctx, s.client, s.projectID, s.datasetID, c); err != nil {
			return err
		}
	}
	return EnsureMigrationRunsTableWithClient(ctx, s.client, s.projectID, s.datasetID)
}

// Get implements store.Store.
func (s *BigQueryStore) Get(ctx context.Context, collection string) (map[string]store.Record, error) {
	rows, err := ListRecordsWithClient(ctx, s.client, s.projectID, s.datasetID, collection)
	if err != nil {
		return nil, err
	}

	records := make(map[string]store.Record, len(rows))
	for id, rec := range rows {
		records[id] = store.Record(rec)
	}
	return records, nil
}

// Append implements store.Store.
func (s *BigQueryStore) Append(ctx context.Context, collection string, record interface{}) (string, error) {
	return InsertRecordWithClient(ctx, s.client, s.projectID, s.datasetID, collection, record)
}

// RunSummary is what a finished migration run reports for auditing.
type RunSummary struct {
	RunID      string
	Source     string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time

	Closures, Accounts, Categories int
	Migrated, Skipped, Errors      int

	// Breakdown is stored as the JSON metadata column.
	Breakdown interface{}
}

// RecordRun writes the audit row of a migration run.
func (s *BigQueryStore) RecordRun(ctx context.Context, sum RunSummary) error {
	row := &MigrationRunRow{
		RunID:      sum.RunID,
		StartedTS:  sum.StartedAt,
		FinishedTS: bigquery.NullTimestamp{Timestamp: sum.FinishedAt, Valid: !sum.FinishedAt.IsZero()},
		Source:     sum.Source,
		DryRun:     sum.DryRun,
		Closures:   int64(sum.Closures),
		Accounts:   int64(sum.Accounts),
		Categories: int64(sum.Categories),
		Migrated:   int64(sum.Migrated),
		Skipped:    int64(sum.Skipped),
		Errors:     int64(sum.Errors),
	}

	if sum.Breakdown != nil {
		meta, err := json.Marshal(sum.Breakdown)
		if err != nil {
			return fmt.Errorf("RecordRun: encoding breakdown: %w", err)
		}
		row.Metadata = bigquery.NullJSON{JSONVal: string(meta), Valid: true}
	}

	return InsertMigrationRunWithClient(ctx, s.client, s.projectID, s.datasetID, row)
}

var _ store.Store = (*BigQueryStore)(nil)
