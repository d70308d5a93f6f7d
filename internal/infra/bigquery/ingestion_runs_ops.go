package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/statement-kfi/internal/logger"
	"github.com/dvloznov/statement-kfi/internal/pipeline"
)

// IngestionRunsTable is the audit table name inside the configured dataset.
const IngestionRunsTable = "ingestion_runs"

const maxErrorMessageLen = 2000

// RunRecorder writes ingestion_runs rows with DML so rows can be updated right
// after they are inserted. The BigQuery client is shared and owned by the caller.
type RunRecorder struct {
	client  *bigquery.Client
	dataset string
}

// NewRunRecorder creates a RunRecorder for dataset.
func NewRunRecorder(client *bigquery.Client, dataset string) *RunRecorder {
	return &RunRecorder{client: client, dataset: dataset}
}

// EnsureTable creates the ingestion_runs table from IngestionRunRow when it
// does not exist yet.
func (r *RunRecorder) EnsureTable(ctx context.Context) error {
	schema, err := bigquery.InferSchema(IngestionRunRow{})
	if err != nil {
		return fmt.Errorf("EnsureTable: infer schema: %w", err)
	}

	meta := &bigquery.TableMetadata{
		Schema:           schema,
		TimePartitioning: &bigquery.TimePartitioning{Field: "started_ts"},
	}

	err = r.client.Dataset(r.dataset).Table(IngestionRunsTable).Create(ctx, meta)
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
		return nil
	}
	if err != nil {
		return fmt.Errorf("EnsureTable: create %s.%s: %w", r.dataset, IngestionRunsTable, err)
	}
	return nil
}

// StartRun inserts a RUNNING row for runID.
func (r *RunRecorder) StartRun(ctx context.Context, runID, filename string) error {
	q := r.client.Query(startRunSQL(r.dataset))
	q.Parameters = startRunParams(runID, filename, time.Now())

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("StartRun: %w", err)
	}
	return nil
}

// MarkRunFailed sets status=FAILED with the failure details. Problems are
// logged, never returned.
func (r *RunRecorder) MarkRunFailed(ctx context.Context, runID, applicantID, stage, kind string, runErr error) {
	log := logger.FromContext(ctx)

	q := r.client.Query(finishRunSQL(r.dataset))
	q.Parameters = failedRunParams(runID, applicantID, stage, kind, runErr, time.Now())

	if err := runDML(ctx, q); err != nil {
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("MarkRunFailed: updating ingestion run")
	}
}

// MarkRunSucceeded sets status=SUCCESS and the number of stored transactions.
func (r *RunRecorder) MarkRunSucceeded(ctx context.Context, runID, applicantID string, transactionCount int) error {
	q := r.client.Query(finishRunSQL(r.dataset))
	q.Parameters = succeededRunParams(runID, applicantID, transactionCount, time.Now())

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("MarkRunSucceeded: %w", err)
	}
	return nil
}

// ListRecentRuns returns up to limit runs, newest first.
func (r *RunRecorder) ListRecentRuns(ctx context.Context, limit int) ([]*IngestionRunRow, error) {
	if limit <= 0 {
		limit = 20
	}

	q := r.client.Query(fmt.Sprintf(`
		SELECT *
		FROM %s.%s
		ORDER BY started_ts DESC
		LIMIT @limit
	`, r.dataset, IngestionRunsTable))
	q.Parameters = []bigquery.QueryParameter{{Name: "limit", Value: limit}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRecentRuns: running query: %w", err)
	}

	var runs []*IngestionRunRow
	for {
		var row IngestionRunRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRecentRuns: reading row: %w", err)
		}
		runs = append(runs, &row)
	}
	return runs, nil
}

func runDML(ctx context.Context, q *bigquery.Query) error {
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

func startRunSQL(dataset string) string {
	return fmt.Sprintf(`
		INSERT %s.%s (
			run_id,
			filename,
			started_ts,
			status,
			stage
		)
		VALUES (
			@run_id,
			@filename,
			@started_ts,
			@status,
			@stage
		)
	`, dataset, IngestionRunsTable)
}

func finishRunSQL(dataset string) string {
	return fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    applicant_id = @applicant_id,
		    stage = @stage,
		    error_kind = @error_kind,
		    error_message = @error_message,
		    transaction_count = @transaction_count
		WHERE run_id = @run_id
	`, dataset, IngestionRunsTable)
}

func startRunParams(runID, filename string, started time.Time) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
		{Name: "filename", Value: nullString(filename)},
		{Name: "started_ts", Value: started},
		{Name: "status", Value: StatusRunning},
		{Name: "stage", Value: nullString(string(pipeline.StageStart))},
	}
}

func failedRunParams(runID, applicantID, stage, kind string, runErr error, finished time.Time) []bigquery.QueryParameter {
	msg := ""
	if runErr != nil {
		msg = truncate(runErr.Error(), maxErrorMessageLen)
	}
	return []bigquery.QueryParameter{
		{Name: "status", Value: StatusFailed},
		{Name: "finished_ts", Value: finished},
		{Name: "applicant_id", Value: nullString(applicantID)},
		{Name: "stage", Value: nullString(stage)},
		{Name: "error_kind", Value: nullString(kind)},
		{Name: "error_message", Value: nullString(msg)},
		{Name: "transaction_count", Value: bigquery.NullInt64{}},
		{Name: "run_id", Value: runID},
	}
}

func succeededRunParams(runID, applicantID string, transactionCount int, finished time.Time) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{
		{Name: "status", Value: StatusSuccess},
		{Name: "finished_ts", Value: finished},
		{Name: "applicant_id", Value: nullString(applicantID)},
		{Name: "stage", Value: nullString(string(pipeline.StageDone))},
		{Name: "error_kind", Value: bigquery.NullString{}},
		{Name: "error_message", Value: bigquery.NullString{}},
		{Name: "transaction_count", Value: bigquery.NullInt64{Int64: int64(transactionCount), Valid: true}},
		{Name: "run_id", Value: runID},
	}
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Ensure RunRecorder implements pipeline.RunAuditor.
var _ pipeline.RunAuditor = (*RunRecorder)(nil)
