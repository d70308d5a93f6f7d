package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-kfi/internal/domain"
	"github.com/dvloznov/statement-kfi/internal/metrics"
	"github.com/dvloznov/statement-kfi/internal/pipeline"
	"github.com/dvloznov/statement-kfi/internal/store/inmemory"
)

const statementCSV = "date,description,transaction_type,amount,balance,currency\n" +
	"2024-01-05,\"Salary\",credit,1000,1000,USD\n" +
	"2024-01-20,\"Rent \"\"Flat 2\"\"\",debit,400,600,USD\n" +
	"2024-02-03,\"Groceries\",debit,50,-50,USD\n"

// MockApplicantStore wraps a real store and lets tests override single calls.
type MockApplicantStore struct {
	pipeline.ApplicantStore

	mu    sync.Mutex
	calls []string

	CreateApplicantFunc    func(ctx context.Context, name string) (string, error)
	GetApplicantFunc       func(ctx context.Context, id string) (*domain.Applicant, error)
	CreateTransactionsFunc func(ctx context.Context, applicantID string, txs []domain.Transaction) error
	CreateIndicatorsFunc   func(ctx context.Context, applicantID string, kfi domain.KeyFinancialIndicator) error
}

func (m *MockApplicantStore) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *MockApplicantStore) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockApplicantStore) CreateApplicant(ctx context.Context, name string) (string, error) {
	m.record("CreateApplicant")
	if m.CreateApplicantFunc != nil {
		return m.CreateApplicantFunc(ctx, name)
	}
	return m.ApplicantStore.CreateApplicant(ctx, name)
}

func (m *MockApplicantStore) GetApplicant(ctx context.Context, id string) (*domain.Applicant, error) {
	m.record("GetApplicant")
	if m.GetApplicantFunc != nil {
		return m.GetApplicantFunc(ctx, id)
	}
	return m.ApplicantStore.GetApplicant(ctx, id)
}

func (m *MockApplicantStore) UpdateApplicant(ctx context.Context, id string, a *domain.Applicant) error {
	m.record("UpdateApplicant")
	return m.ApplicantStore.UpdateApplicant(ctx, id, a)
}

func (m *MockApplicantStore) CreateTransactions(ctx context.Context, applicantID string, txs []domain.Transaction) error {
	m.record("CreateTransactions")
	if m.CreateTransactionsFunc != nil {
		return m.CreateTransactionsFunc(ctx, applicantID, txs)
	}
	return m.ApplicantStore.CreateTransactions(ctx, applicantID, txs)
}

func (m *MockApplicantStore) CreateIndicators(ctx context.Context, applicantID string, kfi domain.KeyFinancialIndicator) error {
	m.record("CreateIndicators")
	if m.CreateIndicatorsFunc != nil {
		return m.CreateIndicatorsFunc(ctx, applicantID, kfi)
	}
	return m.ApplicantStore.CreateIndicators(ctx, applicantID, kfi)
}

// MockRecordExtractor returns fixed records, or parses Text when set.
type MockRecordExtractor struct {
	Text    string
	Records []pipeline.Record
	Calls   int
}

func (m *MockRecordExtractor) ExtractRecords(ctx context.Context, text string) []pipeline.Record {
	m.Calls++
	if m.Text != "" {
		records, err := pipeline.ParseRecords(m.Text)
		if err != nil {
			return []pipeline.Record{}
		}
		return records
	}
	return m.Records
}

// MockArchiver is a mock implementation of pipeline.Archiver.
type MockArchiver struct {
	UploadStatementFunc func(ctx context.Context, applicantID string, data []byte) (string, error)
}

func (m *MockArchiver) UploadStatement(ctx context.Context, applicantID string, data []byte) (string, error) {
	return m.UploadStatementFunc(ctx, applicantID, data)
}

// MockRunAuditor is a mock implementation of pipeline.RunAuditor.
type MockRunAuditor struct {
	Started   []string
	Failed    []string
	FailKind  string
	Succeeded []string
	TxCount   int
}

func (m *MockRunAuditor) StartRun(ctx context.Context, runID, filename string) error {
	m.Started = append(m.Started, runID)
	return nil
}

func (m *MockRunAuditor) MarkRunFailed(ctx context.Context, runID, applicantID, stage, kind string, runErr error) {
	m.Failed = append(m.Failed, runID)
	m.FailKind = kind
}

func (m *MockRunAuditor) MarkRunSucceeded(ctx context.Context, runID, applicantID string, transactionCount int) error {
	m.Succeeded = append(m.Succeeded, runID)
	m.TxCount = transactionCount
	return errors.New("audit table unavailable")
}

func staticText(text string) pipeline.TextExtractor {
	return pipeline.TextExtractorFunc(func([]byte) (string, bool) {
		return text, text != ""
	})
}

func pdfDocument() pipeline.Document {
	return pipeline.Document{Filename: "statement.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")}
}

func TestIngest_Success(t *testing.T) {
	mem := inmemory.NewStore()
	store := &MockApplicantStore{ApplicantStore: mem}
	audit := &MockRunAuditor{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	ing := pipeline.NewIngestor(pipeline.Deps{
		Store:   store,
		Text:    staticText("Statement for January"),
		Records: &MockRecordExtractor{Text: statementCSV},
		Archiver: &MockArchiver{UploadStatementFunc: func(ctx context.Context, applicantID string, data []byte) (string, error) {
			return "gs://statements-bucket/statements/" + applicantID + ".pdf", nil
		}},
		Audit:   audit,
		Metrics: m,
	})

	res, err := ing.Ingest(context.Background(), pdfDocument())
	require.NoError(t, err, "audit failures must not fail the run")

	assert.Equal(t, pipeline.SuccessMessage, res.Message)
	assert.Equal(t, 3, res.TransactionCount)
	assert.InDelta(t, 500, res.Indicators.MonthlyIncome, 1e-9)
	assert.InDelta(t, 225, res.Indicators.MonthlyExpenses, 1e-9)
	assert.InDelta(t, 275, res.Indicators.NetMonthlyIncome, 1e-9)
	assert.Equal(t, 1, res.Indicators.NumberOfOverdrafts)
	assert.InDelta(t, 0.8, res.Indicators.OverdraftPenaltyScore, 1e-9)

	assert.Equal(t, []string{
		"CreateApplicant", "GetApplicant", "UpdateApplicant", "CreateTransactions", "CreateIndicators",
	}, store.Calls())

	a, err := mem.GetApplicant(context.Background(), res.ApplicantID)
	require.NoError(t, err)
	assert.Regexp(t, `^Applicant-[0-9a-f-]{36}$`, a.Name)
	assert.Equal(t, "Statement for January", a.RawBankStatementTxt)
	assert.Equal(t, "gs://statements-bucket/statements/"+res.ApplicantID+".pdf", a.BankStatementPDFPath)
	require.Len(t, a.Transactions, 3)
	assert.Equal(t, `Rent "Flat 2"`, a.Transactions[1].Description)
	require.NotNil(t, a.KeyFinancialIndicators)
	assert.Equal(t, res.Indicators, *a.KeyFinancialIndicators)

	assert.Equal(t, []string{res.RunID}, audit.Started)
	assert.Equal(t, []string{res.RunID}, audit.Succeeded)
	assert.Equal(t, 3, audit.TxCount)
	assert.Equal(t, 1.0, runsTotal(t, reg, metrics.OutcomeSuccess))
}

func TestIngest_RejectsNonPDFBeforeAnyStoreCall(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
	}{
		{name: "plain text", contentType: "text/plain"},
		{name: "empty", contentType: ""},
		{name: "octet stream", contentType: "application/octet-stream"},
		{name: "malformed", contentType: "application/pdf;;="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &MockApplicantStore{ApplicantStore: inmemory.NewStore()}
			records := &MockRecordExtractor{Text: statementCSV}
			ing := pipeline.NewIngestor(pipeline.Deps{Store: store, Text: staticText("text"), Records: records})

			doc := pdfDocument()
			doc.ContentType = tt.contentType
			res, err := ing.Ingest(context.Background(), doc)

			assert.Nil(t, res)
			assert.Equal(t, pipeline.KindClientInput, pipeline.KindOf(err))
			assert.ErrorIs(t, err, pipeline.ErrUnsupportedContentType)
			assert.Empty(t, store.Calls())
			assert.Zero(t, records.Calls)
		})
	}
}

func TestIngest_AcceptsContentTypeParameters(t *testing.T) {
	store := &MockApplicantStore{ApplicantStore: inmemory.NewStore()}
	ing := pipeline.NewIngestor(pipeline.Deps{Store: store, Text: staticText("text"), Records: &MockRecordExtractor{}})

	doc := pdfDocument()
	doc.ContentType = "Application/PDF; name=statement.pdf"
	_, err := ing.Ingest(context.Background(), doc)
	assert.NoError(t, err)
}

func TestIngest_NoTextCreatesNoApplicant(t *testing.T) {
	store := &MockApplicantStore{ApplicantStore: inmemory.NewStore()}
	ing := pipeline.NewIngestor(pipeline.Deps{Store: store, Text: staticText(""), Records: &MockRecordExtractor{}})

	_, err := ing.Ingest(context.Background(), pdfDocument())

	var re *pipeline.RunError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, pipeline.KindExtraction, re.Kind)
	assert.Equal(t, pipeline.StageStart, re.Stage)
	assert.ErrorIs(t, err, pipeline.ErrNoText)
	assert.Empty(t, store.Calls())
}

func TestIngest_ModelFailureYieldsDefaultIndicators(t *testing.T) {
	mem := inmemory.NewStore()
	store := &MockApplicantStore{ApplicantStore: mem}
	ing := pipeline.NewIngestor(pipeline.Deps{
		Store:   store,
		Text:    staticText("text"),
		Records: &MockRecordExtractor{Records: []pipeline.Record{}},
	})

	res, err := ing.Ingest(context.Background(), pdfDocument())
	require.NoError(t, err)

	assert.Zero(t, res.TransactionCount)
	assert.Equal(t, domain.KeyFinancialIndicator{}, res.Indicators)
	assert.NotContains(t, store.Calls(), "CreateTransactions")
	assert.Contains(t, store.Calls(), "CreateIndicators")

	a, err := mem.GetApplicant(context.Background(), res.ApplicantID)
	require.NoError(t, err)
	assert.Empty(t, a.Transactions)
	require.NotNil(t, a.KeyFinancialIndicators)
}

func TestIngest_RejectedRecordsAreDropped(t *testing.T) {
	ing := pipeline.NewIngestor(pipeline.Deps{
		Store: inmemory.NewStore(),
		Text:  staticText("text"),
		Records: &MockRecordExtractor{Records: []pipeline.Record{
			{"date": "2024-01-05", "transaction_type": "credit", "amount": "10", "balance": "10", "currency": "usd"},
			{"date": "yesterday", "transaction_type": "debit", "amount": "5", "balance": "5", "currency": "usd"},
		}},
	})

	res, err := ing.Ingest(context.Background(), pdfDocument())
	require.NoError(t, err)
	assert.Equal(t, 1, res.TransactionCount)
}

func TestIngest_ArchiveFailureIsNotFatal(t *testing.T) {
	mem := inmemory.NewStore()
	ing := pipeline.NewIngestor(pipeline.Deps{
		Store:   mem,
		Text:    staticText("text"),
		Records: &MockRecordExtractor{Text: statementCSV},
		Archiver: &MockArchiver{UploadStatementFunc: func(ctx context.Context, applicantID string, data []byte) (string, error) {
			return "", errors.New("bucket not found")
		}},
	})

	res, err := ing.Ingest(context.Background(), pdfDocument())
	require.NoError(t, err)

	a, err := mem.GetApplicant(context.Background(), res.ApplicantID)
	require.NoError(t, err)
	assert.Empty(t, a.BankStatementPDFPath)
	assert.Equal(t, "text", a.RawBankStatementTxt)
}

func TestIngest_StoreFailures(t *testing.T) {
	storeErr := errors.New("connection refused")

	tests := []struct {
		name      string
		configure func(m *MockApplicantStore)
		wantStage pipeline.Stage
		wantCalls []string
		wantIs    error
	}{
		{
			name: "create applicant",
			configure: func(m *MockApplicantStore) {
				m.CreateApplicantFunc = func(ctx context.Context, name string) (string, error) { return "", storeErr }
			},
			wantStage: pipeline.StageTextExtracted,
			wantCalls: []string{"CreateApplicant"},
			wantIs:    storeErr,
		},
		{
			name: "empty applicant id",
			configure: func(m *MockApplicantStore) {
				m.CreateApplicantFunc = func(ctx context.Context, name string) (string, error) { return "", nil }
			},
			wantStage: pipeline.StageTextExtracted,
			wantCalls: []string{"CreateApplicant"},
			wantIs:    pipeline.ErrEmptyApplicantID,
		},
		{
			name: "applicant vanished",
			configure: func(m *MockApplicantStore) {
				m.GetApplicantFunc = func(ctx context.Context, id string) (*domain.Applicant, error) {
					return nil, domain.ErrApplicantNotFound
				}
			},
			wantStage: pipeline.StageApplicantCreated,
			wantCalls: []string{"CreateApplicant", "GetApplicant"},
			wantIs:    domain.ErrApplicantNotFound,
		},
		{
			name: "transactions",
			configure: func(m *MockApplicantStore) {
				m.CreateTransactionsFunc = func(ctx context.Context, applicantID string, txs []domain.Transaction) error { return storeErr }
			},
			wantStage: pipeline.StageTextAttached,
			wantCalls: []string{"CreateApplicant", "GetApplicant", "UpdateApplicant", "CreateTransactions"},
			wantIs:    storeErr,
		},
		{
			name: "indicators",
			configure: func(m *MockApplicantStore) {
				m.CreateIndicatorsFunc = func(ctx context.Context, applicantID string, kfi domain.KeyFinancialIndicator) error { return storeErr }
			},
			wantStage: pipeline.StageTransactionsStored,
			wantCalls: []string{"CreateApplicant", "GetApplicant", "UpdateApplicant", "CreateTransactions", "CreateIndicators"},
			wantIs:    storeErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &MockApplicantStore{ApplicantStore: inmemory.NewStore()}
			tt.configure(store)
			audit := &MockRunAuditor{}
			reg := prometheus.NewRegistry()

			ing := pipeline.NewIngestor(pipeline.Deps{
				Store:   store,
				Text:    staticText("text"),
				Records: &MockRecordExtractor{Text: statementCSV},
				Audit:   audit,
				Metrics: metrics.New(reg),
			})

			res, err := ing.Ingest(context.Background(), pdfDocument())
			assert.Nil(t, res)

			var re *pipeline.RunError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, pipeline.KindStore, re.Kind)
			assert.Equal(t, tt.wantStage, re.Stage)
			assert.ErrorIs(t, err, tt.wantIs)
			assert.Equal(t, tt.wantCalls, store.Calls(), "no retries and no further steps")

			assert.Len(t, audit.Failed, 1)
			assert.Equal(t, string(pipeline.KindStore), audit.FailKind)
			assert.Empty(t, audit.Succeeded)
			assert.Equal(t, 1.0, runsTotal(t, reg, string(pipeline.KindStore)))
		})
	}
}

func TestIngest_EarlierWritesStayCommitted(t *testing.T) {
	mem := inmemory.NewStore()
	store := &MockApplicantStore{
		ApplicantStore: mem,
		CreateIndicatorsFunc: func(ctx context.Context, applicantID string, kfi domain.KeyFinancialIndicator) error {
			return errors.New("kfi endpoint down")
		},
	}
	ing := pipeline.NewIngestor(pipeline.Deps{Store: store, Text: staticText("text"), Records: &MockRecordExtractor{Text: statementCSV}})

	_, err := ing.Ingest(context.Background(), pdfDocument())
	require.Error(t, err)

	applicants := mem.ListApplicants(context.Background())
	require.Len(t, applicants, 1)
	assert.Equal(t, "text", applicants[0].RawBankStatementTxt)
	assert.Len(t, applicants[0].Transactions, 3)
	assert.Nil(t, applicants[0].KeyFinancialIndicators)
}

func TestIngest_ConcurrentRunsAreIndependent(t *testing.T) {
	mem := inmemory.NewStore()
	ing := pipeline.NewIngestor(pipeline.Deps{
		Store: mem,
		Text:  staticText("text"),
		Records: pipelineRecords(func() []pipeline.Record {
			records, _ := pipeline.ParseRecords(statementCSV)
			return records
		}),
	})

	var wg sync.WaitGroup
	ids := make([]string, 10)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := ing.Ingest(context.Background(), pdfDocument())
			if assert.NoError(t, err) {
				ids[i] = res.ApplicantID
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, id := range ids {
		assert.False(t, seen[id])
		seen[id] = true
		a, err := mem.GetApplicant(context.Background(), id)
		require.NoError(t, err)
		assert.Len(t, a.Transactions, 3)
	}
}

// pipelineRecords is a concurrency-safe RecordExtractor.
type pipelineRecords func() []pipeline.Record

func (f pipelineRecords) ExtractRecords(ctx context.Context, text string) []pipeline.Record {
	return f()
}

func runsTotal(t *testing.T, reg *prometheus.Registry, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != "statement_kfi_runs_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
