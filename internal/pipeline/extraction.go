package pipeline

import (
	"context"
	"time"

	"github.com/dvloznov/statement-kfi/internal/llm"
	"github.com/dvloznov/statement-kfi/internal/logger"
	"github.com/dvloznov/statement-kfi/internal/metrics"
)

// Extractor is the model-backed RecordExtractor: one generation call per
// statement, then sanitization and record parsing.
type Extractor struct {
	gen     llm.Generator
	timeout time.Duration
	metrics *metrics.Metrics
}

// NewExtractor creates an Extractor. A zero timeout leaves the call bounded
// only by ctx.
func NewExtractor(gen llm.Generator, timeout time.Duration, m *metrics.Metrics) *Extractor {
	return &Extractor{gen: gen, timeout: timeout, metrics: m}
}

// ExtractRecords implements RecordExtractor.
func (e *Extractor) ExtractRecords(ctx context.Context, text string) []Record {
	log := logger.FromContext(ctx)

	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := e.gen.Generate(callCtx, TransactionExtractionPrompt, text)
	if err != nil {
		e.metrics.ModelCallFailed()
		log.Warn().
			Err(err).
			Str("error_kind", string(KindModelCall)).
			Dur("elapsed", time.Since(start)).
			Msg("Model call failed, continuing with no transactions")
		return []Record{}
	}

	records, err := parseRecords(SanitizeModelOutput(raw), func(line int, err error) {
		log.Debug().Int("line", line).Err(err).Msg("Skipping malformed record line")
	})
	if err != nil {
		log.Warn().Err(err).Int("response_bytes", len(raw)).Msg("Model output is not usable CSV")
		return []Record{}
	}

	log.Debug().
		Int("records", len(records)).
		Dur("elapsed", time.Since(start)).
		Msg("Extracted candidate records")
	return records
}
