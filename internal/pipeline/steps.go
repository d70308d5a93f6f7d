package pipeline

import (
	"context"
	"fmt"
	"mime"

	"github.com/google/uuid"

	"github.com/dvloznov/statement-kfi/internal/domain"
	"github.com/dvloznov/statement-kfi/internal/kfi"
	"github.com/dvloznov/statement-kfi/internal/logger"
	"github.com/dvloznov/statement-kfi/internal/metrics"
)

// Stage is a state of the ingestion state machine.
type Stage string

const (
	StageStart              Stage = "start"
	StageTextExtracted      Stage = "text_extracted"
	StageApplicantCreated   Stage = "applicant_created"
	StageTextAttached       Stage = "text_attached"
	StageTransactionsStored Stage = "transactions_stored"
	StageIndicatorsStored   Stage = "indicators_stored"
	StageDone               Stage = "done"
	StageFailed             Stage = "failed"
)

// Document is an uploaded statement.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Step represents a single step in the ingestion pipeline. A step advances
// state.Stage when it succeeds.
type Step interface {
	Execute(ctx context.Context, state *RunState) error
}

// RunState holds the shared state across all pipeline steps.
type RunState struct {
	RunID        string
	Document     Document
	Stage        Stage
	Text         string
	ApplicantID  string
	PDFPath      string
	Transactions []domain.Transaction
	Indicators   domain.KeyFinancialIndicator
}

// Step 1: ExtractTextStep checks the upload and reads its text.
type ExtractTextStep struct {
	Extractor TextExtractor
}

func (s *ExtractTextStep) Execute(ctx context.Context, state *RunState) error {
	if !isPDF(state.Document.ContentType) {
		return runError(KindClientInput, state.Stage,
			fmt.Errorf("ExtractTextStep: %q: %w", state.Document.ContentType, ErrUnsupportedContentType))
	}

	text, ok := s.Extractor.Extract(state.Document.Data)
	if !ok {
		return runError(KindExtraction, state.Stage, fmt.Errorf("ExtractTextStep: %w", ErrNoText))
	}

	state.Text = text
	state.Stage = StageTextExtracted

	log := logger.FromContext(ctx)
	log.Info().Int("text_length", len(text)).Msg("Extracted statement text")
	return nil
}

func isPDF(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == PDFContentType
}

// Step 2: CreateApplicantStep creates the owning applicant record.
type CreateApplicantStep struct {
	Store ApplicantStore
}

func (s *CreateApplicantStep) Execute(ctx context.Context, state *RunState) error {
	name := ApplicantNamePrefix + uuid.NewString()

	id, err := s.Store.CreateApplicant(ctx, name)
	if err != nil {
		return runError(KindStore, state.Stage, fmt.Errorf("CreateApplicantStep: %w", err))
	}
	if id == "" {
		return runError(KindStore, state.Stage, fmt.Errorf("CreateApplicantStep: %w", ErrEmptyApplicantID))
	}

	state.ApplicantID = id
	state.Stage = StageApplicantCreated

	log := logger.FromContext(ctx)
	log.Info().Str("applicant_id", id).Str("name", name).Msg("Created applicant")
	return nil
}

// Step 3: AttachTextStep archives the PDF when an archiver is configured and
// stores the raw text (and archive path) on the applicant.
type AttachTextStep struct {
	Store    ApplicantStore
	Archiver Archiver
}

func (s *AttachTextStep) Execute(ctx context.Context, state *RunState) error {
	log := logger.FromContext(ctx)

	if s.Archiver != nil {
		path, err := s.Archiver.UploadStatement(ctx, state.ApplicantID, state.Document.Data)
		if err != nil {
			log.Warn().Err(err).Str("applicant_id", state.ApplicantID).Msg("Archiving statement failed, continuing")
		} else {
			state.PDFPath = path
		}
	}

	applicant, err := s.Store.GetApplicant(ctx, state.ApplicantID)
	if err != nil {
		return runError(KindStore, state.Stage, fmt.Errorf("AttachTextStep: get applicant: %w", err))
	}

	// associations are written through their own endpoints
	update := &domain.Applicant{
		ID:                   applicant.ID,
		Name:                 applicant.Name,
		BankStatementPDFPath: applicant.BankStatementPDFPath,
		RawBankStatementTxt:  state.Text,
	}
	if state.PDFPath != "" {
		update.BankStatementPDFPath = state.PDFPath
	}

	if err := s.Store.UpdateApplicant(ctx, state.ApplicantID, update); err != nil {
		return runError(KindStore, state.Stage, fmt.Errorf("AttachTextStep: update applicant: %w", err))
	}

	state.Stage = StageTextAttached
	log.Info().Str("applicant_id", state.ApplicantID).Str("pdf_path", state.PDFPath).Msg("Attached statement text")
	return nil
}

// Step 4: StoreTransactionsStep extracts, validates and persists transactions.
type StoreTransactionsStep struct {
	Store   ApplicantStore
	Records RecordExtractor
	Metrics *metrics.Metrics
}

func (s *StoreTransactionsStep) Execute(ctx context.Context, state *RunState) error {
	log := logger.FromContext(ctx)

	records := s.Records.ExtractRecords(ctx, state.Text)
	txs, err := ToTransactions(records)
	if err != nil {
		log.Warn().Err(err).Int("records", len(records)).Int("accepted", len(txs)).Msg("Rejected some extracted records")
	}
	s.Metrics.TransactionsExtracted(len(txs))

	if len(txs) == 0 {
		log.Warn().Str("applicant_id", state.ApplicantID).Msg("No transactions extracted, skipping transaction store")
	} else if err := s.Store.CreateTransactions(ctx, state.ApplicantID, txs); err != nil {
		return runError(KindStore, state.Stage, fmt.Errorf("StoreTransactionsStep: %w", err))
	}

	state.Transactions = txs
	state.Stage = StageTransactionsStored
	log.Info().Str("applicant_id", state.ApplicantID).Int("transactions", len(txs)).Msg("Stored transactions")
	return nil
}

// Step 5: StoreIndicatorsStep computes and persists the indicator vector.
type StoreIndicatorsStep struct {
	Store ApplicantStore
}

func (s *StoreIndicatorsStep) Execute(ctx context.Context, state *RunState) error {
	indicators := kfi.Calculate(state.Transactions)

	if err := s.Store.CreateIndicators(ctx, state.ApplicantID, indicators); err != nil {
		return runError(KindStore, state.Stage, fmt.Errorf("StoreIndicatorsStep: %w", err))
	}

	state.Indicators = indicators
	state.Stage = StageIndicatorsStored

	log := logger.FromContext(ctx)
	log.Info().
		Str("applicant_id", state.ApplicantID).
		Float64("monthly_income", indicators.MonthlyIncome).
		Float64("monthly_expenses", indicators.MonthlyExpenses).
		Int("overdrafts", indicators.NumberOfOverdrafts).
		Msg("Stored financial indicators")
	return nil
}
