package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-kfi/internal/api/middleware"
	"github.com/dvloznov/statement-kfi/internal/logger"
	"github.com/dvloznov/statement-kfi/internal/pipeline"
)

// FileField is the multipart form field holding the statement.
const FileField = "file"

// DefaultMaxUploadBytes bounds the request body when no limit is configured.
const DefaultMaxUploadBytes = 32 << 20

const msgInvalidFormat = "Invalid file format. Please upload a PDF."

// Ingestor runs one statement through the ingestion pipeline.
type Ingestor interface {
	Ingest(ctx context.Context, doc pipeline.Document) (*pipeline.Result, error)
}

// StatementsHandler handles bank-statement uploads.
type StatementsHandler struct {
	ingestor  Ingestor
	maxUpload int64
	log       zerolog.Logger
}

// NewStatementsHandler creates a new statements handler. A non-positive
// maxUpload falls back to DefaultMaxUploadBytes.
func NewStatementsHandler(ingestor Ingestor, maxUpload int64, log zerolog.Logger) *StatementsHandler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &StatementsHandler{
		ingestor:  ingestor,
		maxUpload: maxUpload,
		log:       log,
	}
}

type processResponse struct {
	Message     string `json:"message"`
	ApplicantID string `json:"applicant_id"`
}

// ProcessBankStatement handles POST /api/v1/process-bank-statement.
func (h *StatementsHandler) ProcessBankStatement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContextOr(ctx, h.log)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	file, header, err := r.FormFile(FileField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "A statement file is required in the 'file' field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		log.Error().Err(err).Str("filename", header.Filename).Msg("Failed to read uploaded file")
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}

	result, err := h.ingestor.Ingest(ctx, pipeline.Document{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		status, message := errorResponse(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("filename", header.Filename).Msg("Failed to process bank statement")
		}
		middleware.WriteError(w, status, message)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, processResponse{
		Message:     result.Message,
		ApplicantID: result.ApplicantID,
	})
}

// errorResponse maps a failed run to a status and a client-safe message.
func errorResponse(err error) (int, string) {
	switch pipeline.KindOf(err) {
	case pipeline.KindClientInput:
		return http.StatusBadRequest, msgInvalidFormat
	case pipeline.KindExtraction:
		return http.StatusInternalServerError, "Failed to extract text from the document"
	case pipeline.KindStore:
		return http.StatusInternalServerError, "Failed to store processing results"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
