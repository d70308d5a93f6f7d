// Package pipeline turns an uploaded bank statement into stored transactions
// and financial indicators for a new applicant.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/statement-kfi/internal/domain"
	"github.com/dvloznov/statement-kfi/internal/logger"
	"github.com/dvloznov/statement-kfi/internal/metrics"
)

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps   []Step
	metrics *metrics.Metrics
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(m *metrics.Metrics, steps ...Step) *Pipeline {
	return &Pipeline{steps: steps, metrics: m}
}

// Execute runs the steps sequentially and stops at the first failure, leaving
// state in StageFailed. The returned error is always a *RunError.
func (p *Pipeline) Execute(ctx context.Context, state *RunState) error {
	for _, step := range p.steps {
		start := time.Now()
		err := step.Execute(ctx, state)
		if err != nil {
			p.metrics.ObserveStage(string(StageFailed), time.Since(start))
			return p.fail(state, err)
		}
		p.metrics.ObserveStage(string(state.Stage), time.Since(start))
	}
	return nil
}

func (p *Pipeline) fail(state *RunState, err error) error {
	var re *RunError
	if !errors.As(err, &re) {
		re = &RunError{Kind: KindStore, Stage: state.Stage, Err: err}
	}
	state.Stage = StageFailed
	return re
}

// Result is what a successful run reports back.
type Result struct {
	RunID            string                       `json:"run_id"`
	ApplicantID      string                       `json:"applicant_id"`
	Message          string                       `json:"message"`
	TransactionCount int                          `json:"transaction_count"`
	Indicators       domain.KeyFinancialIndicator `json:"key_financial_indicators"`
}

// Deps are the collaborators of an Ingestor. Store, Text and Records are
// required; Archiver, Audit and Metrics are optional.
type Deps struct {
	Store    ApplicantStore
	Text     TextExtractor
	Records  RecordExtractor
	Archiver Archiver
	Audit    RunAuditor
	Metrics  *metrics.Metrics
}

// Ingestor runs the statement ingestion state machine. It holds only shared
// clients and is safe for concurrent use.
type Ingestor struct {
	pipeline *Pipeline
	audit    RunAuditor
	metrics  *metrics.Metrics
}

// NewIngestor wires the standard five-step ingestion pipeline.
func NewIngestor(deps Deps) *Ingestor {
	p := NewPipeline(deps.Metrics,
		&ExtractTextStep{Extractor: deps.Text},
		&CreateApplicantStep{Store: deps.Store},
		&AttachTextStep{Store: deps.Store, Archiver: deps.Archiver},
		&StoreTransactionsStep{Store: deps.Store, Records: deps.Records, Metrics: deps.Metrics},
		&StoreIndicatorsStep{Store: deps.Store},
	)
	return &Ingestor{pipeline: p, audit: deps.Audit, metrics: deps.Metrics}
}

// Ingest processes one statement. On failure the error is a *RunError whose
// Kind tells the caller whether the upload itself was at fault. Nothing is
// rolled back: writes made before the failing step stay in the store.
func (i *Ingestor) Ingest(ctx context.Context, doc Document) (*Result, error) {
	runID := uuid.NewString()
	log := logger.FromContext(ctx).With().Str("run_id", runID).Logger()
	ctx = logger.WithContext(ctx, log)

	// bookkeeping outlives a cancelled request
	auditCtx := context.WithoutCancel(ctx)

	if i.audit != nil {
		if err := i.audit.StartRun(auditCtx, runID, doc.Filename); err != nil {
			log.Warn().Err(err).Msg("Failed to record run start")
		}
	}

	log.Info().
		Str("filename", doc.Filename).
		Str("content_type", doc.ContentType).
		Int("size", len(doc.Data)).
		Msg("Starting statement ingestion")

	state := &RunState{RunID: runID, Document: doc, Stage: StageStart}

	if err := i.pipeline.Execute(ctx, state); err != nil {
		var re *RunError
		errors.As(err, &re)

		i.metrics.RunFinished(string(re.Kind))
		if i.audit != nil {
			i.audit.MarkRunFailed(auditCtx, runID, state.ApplicantID, string(re.Stage), string(re.Kind), re.Err)
		}

		event := log.Error()
		if re.Kind == KindClientInput {
			event = log.Warn()
		}
		event.Err(re.Err).
			Str("error_kind", string(re.Kind)).
			Str("stage", string(re.Stage)).
			Str("applicant_id", state.ApplicantID).
			Msg("Statement ingestion failed")
		return nil, re
	}

	state.Stage = StageDone
	i.metrics.RunFinished(metrics.OutcomeSuccess)
	if i.audit != nil {
		if err := i.audit.MarkRunSucceeded(auditCtx, runID, state.ApplicantID, len(state.Transactions)); err != nil {
			log.Warn().Err(err).Msg("Failed to record run success")
		}
	}

	log.Info().
		Str("applicant_id", state.ApplicantID).
		Int("transactions", len(state.Transactions)).
		Msg("Statement ingestion finished")

	return &Result{
		RunID:            runID,
		ApplicantID:      state.ApplicantID,
		Message:          SuccessMessage,
		TransactionCount: len(state.Transactions),
		Indicators:       state.Indicators,
	}, nil
}
