package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dvloznov/statement-kfi/internal/config"
	"github.com/dvloznov/statement-kfi/internal/logger"
)

// placeholderStoreURL satisfies config validation for commands that never
// talk to the record store.
const placeholderStoreURL = "http://store.invalid"

var (
	logLevel string
	log      = zerolog.Nop()
	rootCmd  = &cobra.Command{
		Use:   "statement-kfi",
		Short: "Bank statement ingestion and key financial indicators",
		Long: `statement-kfi extracts transactions from bank statement PDFs, stores them
against a new applicant and computes the applicant's key financial indicators.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(indicatorsCmd())
	rootCmd.AddCommand(auditInitCmd())
	rootCmd.AddCommand(runsCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads .env and builds the stderr logger; stdout is kept for results.
func setup(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading .env: %w", err)
	}

	lvl, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()
	cmd.SetContext(logger.WithContext(cmd.Context(), log))
	return nil
}

// loadConfig reads configuration from the environment. Commands that do not
// use the record store pass needStore=false so STORE_URL may be unset.
func loadConfig(needStore bool) (*config.Config, error) {
	v := viper.New()
	if !needStore {
		v.Set("store.url", placeholderStoreURL)
	}
	return config.FromViper(v)
}
