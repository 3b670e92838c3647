package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// RecordRow is one destination record. Every collection table shares this
// schema; the record itself lives in the JSON payload column.
type RecordRow struct {
	ID        string            `bigquery:"id"`         // REQUIRED
	Payload   bigquery.NullJSON `bigquery:"payload"`    // JSON, NULLABLE
	CreatedTS time.Time         `bigquery:"created_ts"` // TIMESTAMP, REQUIRED
}

// recordReadRow is what ListRecords selects. The payload is read back with
// TO_JSON_STRING so that it arrives as plain text.
type recordReadRow struct {
	ID      string              `bigquery:"id"`
	Payload bigquery.NullString `bigquery:"payload"`
}

// MigrationRunRow is the audit row written once per migration run.
type MigrationRunRow struct {
	RunID      string                 `bigquery:"run_id"`     // REQUIRED
	StartedTS  time.Time              `bigquery:"started_ts"` // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"`

	Source string `bigquery:"source"` // export location
	DryRun bool   `bigquery:"dry_run"`

	Closures   int64 `bigquery:"closures"`
	Accounts   int64 `bigquery:"accounts"`
	Categories int64 `bigquery:"categories"`
	Migrated   int64 `bigquery:"migrated"`
	Skipped    int64 `bigquery:"skipped"`
	Errors     int64 `bigquery:"errors"`

	Metadata bigquery.NullJSON `bigquery:"metadata"` // per-reason breakdown
}
