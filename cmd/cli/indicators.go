package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-kfi/internal/domain"
	"github.com/dvloznov/statement-kfi/internal/kfi"
	"github.com/dvloznov/statement-kfi/internal/pipeline"
)

func indicatorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "indicators <transactions.csv>",
		Short: "Compute key financial indicators from a transactions CSV",
		Long: `Reads a CSV with the header date,description,transaction_type,amount,balance,currency
and prints the indicator vector as JSON. No model or store is involved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening transactions: %w", err)
			}
			defer f.Close()

			indicators, rejected, err := computeIndicators(f)
			if err != nil {
				return err
			}
			if rejected > 0 {
				log.Warn().Int("rejected", rejected).Msg("Some records were dropped")
			}
			return printJSON(cmd.OutOrStdout(), indicators)
		},
	}
}

// computeIndicators parses CSV transactions and returns their indicators and
// the number of records that failed validation.
func computeIndicators(r io.Reader) (domain.KeyFinancialIndicator, int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.KeyFinancialIndicator{}, 0, fmt.Errorf("reading transactions: %w", err)
	}

	records, err := pipeline.ParseRecords(string(data))
	if err != nil {
		return domain.KeyFinancialIndicator{}, 0, err
	}

	txs, err := pipeline.ToTransactions(records)
	rejected := 0
	var merr *multierror.Error
	if errors.As(err, &merr) {
		rejected = merr.Len()
		for _, e := range merr.Errors {
			log.Debug().Err(e).Msg("Rejected record")
		}
	}
	return kfi.Calculate(txs), rejected, nil
}
