package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-kfi/internal/api/middleware"
	"github.com/dvloznov/statement-kfi/internal/logger"
	"github.com/dvloznov/statement-kfi/internal/pipeline"
)

// MockIngestor is a mock implementation of Ingestor.
type MockIngestor struct {
	IngestFunc func(ctx context.Context, doc pipeline.Document) (*pipeline.Result, error)
	Docs       []pipeline.Document
}

func (m *MockIngestor) Ingest(ctx context.Context, doc pipeline.Document) (*pipeline.Result, error) {
	m.Docs = append(m.Docs, doc)
	if m.IngestFunc != nil {
		return m.IngestFunc(ctx, doc)
	}
	return &pipeline.Result{ApplicantID: "app-1", Message: pipeline.SuccessMessage}, nil
}

func uploadRequest(t *testing.T, field, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/process-bank-statement", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newTestHandler(ing Ingestor, maxUpload int64) *StatementsHandler {
	return NewStatementsHandler(ing, maxUpload, logger.NewWithWriter(&bytes.Buffer{}))
}

func TestProcessBankStatement_Success(t *testing.T) {
	ing := &MockIngestor{}
	h := newTestHandler(ing, 0)

	rec := httptest.NewRecorder()
	h.ProcessBankStatement(rec, uploadRequest(t, FileField, "march.pdf", "application/pdf", []byte("%PDF-1.4 data")))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		fmt.Sprintf(`{"message":%q,"applicant_id":"app-1"}`, pipeline.SuccessMessage),
		rec.Body.String())

	require.Len(t, ing.Docs, 1)
	assert.Equal(t, "march.pdf", ing.Docs[0].Filename)
	assert.Equal(t, "application/pdf", ing.Docs[0].ContentType)
	assert.Equal(t, []byte("%PDF-1.4 data"), ing.Docs[0].Data)
}

func TestProcessBankStatement_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "client input",
			err:        &pipeline.RunError{Kind: pipeline.KindClientInput, Stage: pipeline.StageStart, Err: pipeline.ErrUnsupportedContentType},
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid file format. Please upload a PDF.",
		},
		{
			name:       "extraction",
			err:        &pipeline.RunError{Kind: pipeline.KindExtraction, Stage: pipeline.StageStart, Err: pipeline.ErrNoText},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Failed to extract text from the document",
		},
		{
			name:       "store",
			err:        &pipeline.RunError{Kind: pipeline.KindStore, Stage: pipeline.StageApplicantCreated, Err: errors.New("connection refused to 10.0.0.3")},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Failed to store processing results",
		},
		{
			name:       "unclassified",
			err:        errors.New("something odd"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ing := &MockIngestor{
				IngestFunc: func(ctx context.Context, doc pipeline.Document) (*pipeline.Result, error) {
					return nil, tt.err
				},
			}
			rec := httptest.NewRecorder()
			newTestHandler(ing, 0).ProcessBankStatement(rec, uploadRequest(t, FileField, "a.pdf", "application/pdf", []byte("x")))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, fmt.Sprintf(`{"error":%q}`, tt.wantError), rec.Body.String())
			assert.NotContains(t, rec.Body.String(), "10.0.0.3")
		})
	}
}

func TestProcessBankStatement_LogsWithRequestLogger(t *testing.T) {
	var requestLog, handlerLog bytes.Buffer
	ing := &MockIngestor{
		IngestFunc: func(ctx context.Context, doc pipeline.Document) (*pipeline.Result, error) {
			return nil, &pipeline.RunError{Kind: pipeline.KindStore, Stage: pipeline.StageApplicantCreated, Err: errors.New("store down")}
		},
	}
	h := NewStatementsHandler(ing, 0, logger.NewWithWriter(&handlerLog))
	wrapped := middleware.RequestID(logger.NewWithWriter(&requestLog))(http.HandlerFunc(h.ProcessBankStatement))

	req := uploadRequest(t, FileField, "a.pdf", "application/pdf", []byte("x"))
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, requestLog.String(), `"request_id":"req-42"`)
	assert.Contains(t, requestLog.String(), "Failed to process bank statement")
	assert.Empty(t, handlerLog.String())
}

func TestProcessBankStatement_PassesPartContentType(t *testing.T) {
	ing := &MockIngestor{}
	rec := httptest.NewRecorder()
	newTestHandler(ing, 0).ProcessBankStatement(rec, uploadRequest(t, FileField, "notes.txt", "text/plain", []byte("hello")))

	require.Len(t, ing.Docs, 1)
	assert.Equal(t, "text/plain", ing.Docs[0].ContentType)
}

func TestProcessBankStatement_MissingFile(t *testing.T) {
	ing := &MockIngestor{}
	rec := httptest.NewRecorder()
	newTestHandler(ing, 0).ProcessBankStatement(rec, uploadRequest(t, "document", "a.pdf", "application/pdf", []byte("x")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ing.Docs)
}

func TestProcessBankStatement_TooLarge(t *testing.T) {
	ing := &MockIngestor{}
	rec := httptest.NewRecorder()
	newTestHandler(ing, 1024).ProcessBankStatement(rec, uploadRequest(t, FileField, "big.pdf", "application/pdf", bytes.Repeat([]byte("a"), 64<<10)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, ing.Docs)
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}
