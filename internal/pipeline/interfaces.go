package pipeline

import (
	"context"

	"github.com/dvloznov/statement-kfi/internal/domain"
)

// ApplicantStore is the remote record store the run persists into. GetApplicant
// returns an error wrapping domain.ErrApplicantNotFound for unknown ids.
type ApplicantStore interface {
	CreateApplicant(ctx context.Context, name string) (string, error)
	GetApplicant(ctx context.Context, id string) (*domain.Applicant, error)
	UpdateApplicant(ctx context.Context, id string, applicant *domain.Applicant) error
	CreateTransactions(ctx context.Context, applicantID string, txs []domain.Transaction) error
	CreateIndicators(ctx context.Context, applicantID string, kfi domain.KeyFinancialIndicator) error
}

// TextExtractor turns document bytes into plain text. ok is false when the
// document cannot be read or has no text.
type TextExtractor interface {
	Extract(data []byte) (text string, ok bool)
}

// TextExtractorFunc adapts a plain function to TextExtractor.
type TextExtractorFunc func(data []byte) (string, bool)

func (f TextExtractorFunc) Extract(data []byte) (string, bool) {
	return f(data)
}

// RecordExtractor produces candidate records from statement text. It never
// fails; problems yield an empty slice.
type RecordExtractor interface {
	ExtractRecords(ctx context.Context, text string) []Record
}

// Archiver keeps a copy of the uploaded statement and returns its location.
type Archiver interface {
	UploadStatement(ctx context.Context, applicantID string, data []byte) (string, error)
}

// RunAuditor records run bookkeeping. Audit problems never fail a run.
type RunAuditor interface {
	StartRun(ctx context.Context, runID, filename string) error
	MarkRunFailed(ctx context.Context, runID, applicantID, stage, kind string, runErr error)
	MarkRunSucceeded(ctx context.Context, runID, applicantID string, transactionCount int) error
}
