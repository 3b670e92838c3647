package bigquery

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

const migrationRunsTable = "migration_runs"

var tableNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// tableRef returns the fully qualified, backquoted table name.
func tableRef(projectID, datasetID, table string) (string, error) {
	if !tableNamePattern.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return "`" + projectID + "." + datasetID + "." + table + "`", nil
}

// runQuery runs a DDL or DML statement and waits for it to finish.
func runQuery(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

// EnsureCollectionTableWithClient creates the table backing a collection if
// it does not exist yet.
func EnsureCollectionTableWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID, collection string) error {
	ref, err := tableRef(projectID, datasetID, collection)
	if err != nil {
		return fmt.Errorf("EnsureCollectionTableWithClient: %w", err)
	}

	q := client.Query(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id          STRING NOT NULL,
			payload     JSON,
			created_ts  TIMESTAMP NOT NULL
		)
	`, ref))

	if err := runQuery(ctx, q); err != nil {
		return fmt.Errorf("EnsureCollectionTableWithClient: %s: %w", collection, err)
	}
	return nil
}

// EnsureMigrationRunsTableWithClient creates the migration_runs audit table.
func EnsureMigrationRunsTableWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string) error {
	ref, err := tableRef(projectID, datasetID, migrationRunsTable)
	if err != nil {
		return fmt.Errorf("EnsureMigrationRunsTableWithClient: %w", err)
	}

	q := client.Query(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			run_id       STRING NOT NULL,
			started_ts   TIMESTAMP NOT NULL,
			finished_ts  TIMESTAMP,
			source       STRING,
			dry_run      BOOL,
			closures     INT64,
			accounts     INT64,
			categories   INT64,
			migrated     INT64,
			skipped      INT64,
			errors       INT64,
			metadata     JSON
		)
	`, ref))

	if err := runQuery(ctx, q); err != nil {
		return fmt.Errorf("EnsureMigrationRunsTableWithClient: %w", err)
	}
	return nil
}

// ListRecordsWithClient returns every record of a collection keyed by id.
// Rows whose payload is not a JSON object are left out.
func ListRecordsWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID, collection string) (map[string]map[string]interface{}, error) {
	ref, err := tableRef(projectID, datasetID, collection)
	if err != nil {
		return nil, fmt.Errorf("ListRecordsWithClient: %w", err)
	}

	q := client.Query(fmt.Sprintf(`
		SELECT
			id,
			TO_JSON_STRING(payload) AS payload
		FROM %s
		ORDER BY created_ts, id
	`, ref))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRecordsWithClient: reading query: %w", err)
	}

	records := make(map[string]map[string]interface{})
	for {
		var row recordReadRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRecordsWithClient: iterating: %w", err)
		}

		rec, ok := decodePayload(row.Payload)
		if !ok {
			continue
		}
		records[row.ID] = rec
	}

	return records, nil
}

// decodePayload turns the JSON text of a payload into a record. Null and
// non-object payloads are reported as not ok.
func decodePayload(payload bigquery.NullString) (map[string]interface{}, bool) {
	if !payload.Valid || payload.StringVal == "" {
		return nil, false
	}
	var rec map[string]interface{}
	if err := json.Unmarshal([]byte(payload.StringVal), &rec); err != nil || rec == nil {
		return nil, false
	}
	return rec, true
}

// newRecordRow builds the row inserted for record. Ids are time-ordered
// UUIDs.
func newRecordRow(record interface{}, now time.Time) (*RecordRow, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating id: %w", err)
	}

	return &RecordRow{
		ID:        id.String(),
		Payload:   bigquery.NullJSON{JSONVal: string(payload), Valid: true},
		CreatedTS: now,
	}, nil
}

// InsertRecordWithClient streams one record into a collection table and
// returns its new id.
func InsertRecordWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID, collection string, record interface{}) (string, error) {
	if !tableNamePattern.MatchString(collection) {
		return "", fmt.Errorf("InsertRecordWithClient: invalid table name %q", collection)
	}

	row, err := newRecordRow(record, time.Now())
	if err != nil {
		return "", fmt.Errorf("InsertRecordWithClient: %w", err)
	}

	inserter := client.DatasetInProject(projectID, datasetID).Table(collection).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return "", fmt.Errorf("InsertRecordWithClient: inserting row: %w", err)
	}

	return row.ID, nil
}

// InsertMigrationRunWithClient writes the audit row of a finished run.
func InsertMigrationRunWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string, row *MigrationRunRow) error {
	inserter := client.DatasetInProject(projectID, datasetID).Table(migrationRunsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertMigrationRunWithClient: inserting row: %w", err)
	}
	return nil
}
