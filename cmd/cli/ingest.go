package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-kfi/internal/gcsuploader"
	"github.com/dvloznov/statement-kfi/internal/llm"
	"github.com/dvloznov/statement-kfi/internal/metrics"
	"github.com/dvloznov/statement-kfi/internal/pdftext"
	"github.com/dvloznov/statement-kfi/internal/pipeline"
	"github.com/dvloznov/statement-kfi/internal/store/crudclient"
	"github.com/dvloznov/statement-kfi/internal/store/inmemory"
)

const (
	storeCRUD   = "crud"
	storeMemory = "memory"
)

func ingestCmd() *cobra.Command {
	var storeKind string

	cmd := &cobra.Command{
		Use:   "ingest <file.pdf | gs://bucket/object.pdf>",
		Short: "Run a statement through the full ingestion pipeline",
		Long: `Extracts the statement text, asks the configured model for transactions,
stores everything against a new applicant and prints the result.

With --store=memory nothing leaves the process except the model call.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if storeKind != storeCRUD && storeKind != storeMemory {
				return fmt.Errorf("unknown --store %q (want %s or %s)", storeKind, storeCRUD, storeMemory)
			}
			ctx := cmd.Context()

			cfg, err := loadConfig(storeKind == storeCRUD)
			if err != nil {
				return err
			}

			doc, err := readStatement(ctx, args[0])
			if err != nil {
				return err
			}

			m := metrics.New(prometheus.NewRegistry())
			gen, err := llm.New(ctx, cfg.LLM)
			if err != nil {
				return fmt.Errorf("creating text-generation client: %w", err)
			}

			deps := pipeline.Deps{
				Text:    pipeline.TextExtractorFunc(pdftext.Extract),
				Records: pipeline.NewExtractor(gen, cfg.LLM.Timeout, m),
				Metrics: m,
			}
			if storeKind == storeMemory {
				deps.Store = inmemory.NewStore()
			} else {
				deps.Store = crudclient.New(cfg.Store.URL, cfg.Store.Timeout, m)
			}

			result, err := pipeline.NewIngestor(deps).Ingest(ctx, *doc)
			if err != nil {
				return fmt.Errorf("ingestion failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&storeKind, "store", storeCRUD, "record store to write to (crud, memory)")
	return cmd
}

func extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <file.pdf | gs://bucket/object.pdf>",
		Short: "Print the text extracted from a statement PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readStatement(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			text, ok := pdftext.Extract(doc.Data)
			if !ok {
				return fmt.Errorf("%s: %w", doc.Filename, pipeline.ErrNoText)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
}

// readStatement loads a statement from a local path or a gs:// URI.
func readStatement(ctx context.Context, source string) (*pipeline.Document, error) {
	if strings.HasPrefix(source, "gs://") {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating storage client: %w", err)
		}
		defer client.Close()

		data, err := gcsuploader.FetchFromGCS(ctx, client, source)
		if err != nil {
			return nil, err
		}
		name := gcsuploader.ExtractFilenameFromGCSURI(source)
		return &pipeline.Document{Filename: name, ContentType: contentTypeFor(name), Data: data}, nil
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("opening statement: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading statement: %w", err)
	}
	name := filepath.Base(source)
	return &pipeline.Document{Filename: name, ContentType: contentTypeFor(name), Data: data}, nil
}

// contentTypeFor guesses the media type from the file extension, the way a
// browser labels a multipart upload.
func contentTypeFor(name string) string {
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		return pipeline.PDFContentType
	}
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
