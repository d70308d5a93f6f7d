// Package bigquery keeps the audit trail of ingestion runs in BigQuery.
package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// Run statuses written to the status column.
const (
	StatusRunning = "RUNNING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// IngestionRunRow is one row of the ingestion_runs table.
type IngestionRunRow struct {
	RunID       string              `bigquery:"run_id"`       // REQUIRED
	ApplicantID bigquery.NullString `bigquery:"applicant_id"` // NULLABLE until the applicant exists
	Filename    bigquery.NullString `bigquery:"filename"`     // NULLABLE

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	Status           string              `bigquery:"status"`            // REQUIRED
	Stage            bigquery.NullString `bigquery:"stage"`             // NULLABLE, last stage reached
	ErrorKind        bigquery.NullString `bigquery:"error_kind"`        // NULLABLE
	ErrorMessage     bigquery.NullString `bigquery:"error_message"`     // NULLABLE
	TransactionCount bigquery.NullInt64  `bigquery:"transaction_count"` // NULLABLE
}
