// Package llm wraps the text-generation backends used for structured extraction.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/statement-kfi/internal/config"
)

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = errors.New("llm: empty response from model")

// Generator sends one system instruction plus one user message to a model and
// returns the raw text of its answer.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// New builds the generator selected by cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig) (Generator, error) {
	switch cfg.Provider {
	case config.ProviderChat, "":
		return NewChatClient(cfg), nil
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("llm.New: unknown provider %q", cfg.Provider)
	}
}
