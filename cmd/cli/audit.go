package main

import (
	"fmt"
	"text/tabwriter"

	"cloud.google.com/go/bigquery"
	"github.com/spf13/cobra"

	infraBQ "github.com/dvloznov/statement-kfi/internal/infra/bigquery"
)

func newRunRecorder(cmd *cobra.Command) (*infraBQ.RunRecorder, func(), error) {
	cfg, err := loadConfig(false)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.BigQuery.Enabled() {
		return nil, nil, fmt.Errorf("BIGQUERY_PROJECT_ID is not set")
	}

	client, err := bigquery.NewClient(cmd.Context(), cfg.BigQuery.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("creating BigQuery client: %w", err)
	}
	return infraBQ.NewRunRecorder(client, cfg.BigQuery.Dataset), func() { client.Close() }, nil
}

func auditInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit-init",
		Short: "Create the BigQuery ingestion_runs table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recorder, closeFn, err := newRunRecorder(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := recorder.EnsureTable(cmd.Context()); err != nil {
				return err
			}
			log.Info().Str("table", infraBQ.IngestionRunsTable).Msg("Audit table ready")
			return nil
		},
	}
}

func runsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent ingestion runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recorder, closeFn, err := newRunRecorder(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			runs, err := recorder.ListRecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintln(w, "RUN\tSTARTED\tSTATUS\tSTAGE\tAPPLICANT\tTXS\tERROR")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
					run.RunID,
					run.StartedTS.Format("2006-01-02 15:04:05"),
					run.Status,
					run.Stage.StringVal,
					run.ApplicantID.StringVal,
					run.TransactionCount.Int64,
					run.ErrorKind.StringVal,
				)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}
