package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dvloznov/statement-kfi/internal/api/handlers"
	"github.com/dvloznov/statement-kfi/internal/api/middleware"
	"github.com/dvloznov/statement-kfi/internal/config"
	"github.com/dvloznov/statement-kfi/internal/gcsuploader"
	infraBQ "github.com/dvloznov/statement-kfi/internal/infra/bigquery"
	"github.com/dvloznov/statement-kfi/internal/llm"
	"github.com/dvloznov/statement-kfi/internal/logger"
	"github.com/dvloznov/statement-kfi/internal/metrics"
	"github.com/dvloznov/statement-kfi/internal/pdftext"
	"github.com/dvloznov/statement-kfi/internal/pipeline"
	"github.com/dvloznov/statement-kfi/internal/store/crudclient"
)

// writeSlack covers text extraction and the response on top of the
// model and store budgets.
const writeSlack = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.NewWithLevel(cfg.Log.Level)
	ctx := logger.WithContext(context.Background(), log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	gen, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create text-generation client")
	}

	deps := pipeline.Deps{
		Store:   crudclient.New(cfg.Store.URL, cfg.Store.Timeout, m),
		Text:    pipeline.TextExtractorFunc(pdftext.Extract),
		Records: pipeline.NewExtractor(gen, cfg.LLM.Timeout, m),
		Metrics: m,
	}

	if cfg.GCS.Bucket != "" {
		storageClient, err := storage.NewClient(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer storageClient.Close()
		deps.Archiver = gcsuploader.NewUploader(storageClient, cfg.GCS.Bucket)
	} else {
		log.Warn().Msg("No GCS bucket configured - statements will not be archived")
	}

	if cfg.BigQuery.Enabled() {
		bqClient, err := bigquery.NewClient(ctx, cfg.BigQuery.ProjectID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery client")
		}
		defer bqClient.Close()
		deps.Audit = infraBQ.NewRunRecorder(bqClient, cfg.BigQuery.Dataset)
	}

	statementsHandler := handlers.NewStatementsHandler(pipeline.NewIngestor(deps), 0, log)

	// Create router
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/process-bank-statement", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			statementsHandler.ProcessBankStatement(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", handlers.Health)

	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	// Apply middleware
	handler := middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.Logger(log),
		middleware.RequestID(log),
		middleware.CORS,
		middleware.Auth,
	)

	// A run makes one model call and five store calls at most.
	writeTimeout := cfg.LLM.Timeout + 5*cfg.Store.Timeout + writeSlack

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("llm_provider", cfg.LLM.Provider).
			Str("llm_model", cfg.LLM.Model).
			Dur("write_timeout", writeTimeout).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Let in-flight runs finish their current store calls
	shutdownCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
