package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nhle/newsdigest/internal/model"
)

// ErrNoArticles is returned when there is nothing to summarize.
var ErrNoArticles = errors.New("no articles to summarize")

// ErrEmptyReply is returned when the model answers with no text.
var ErrEmptyReply = errors.New("model returned an empty summary")

// Summarizer turns extracted articles into a curated markdown digest.
type Summarizer interface {
	Summarize(ctx context.Context, articles []model.Article) (string, error)
}

// New returns the Summarizer for the configured provider.
func New(cfg model.LLMConfig, digest model.DigestConfig, logger *slog.Logger) (Summarizer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	prompt := PromptOptions{
		Heading:  digest.Heading,
		Language: cfg.Language,
	}

	switch cfg.Provider {
	case model.ProviderAzureOpenAI, "":
		return NewAzure(cfg, prompt, &http.Client{Timeout: cfg.Timeout()}, logger), nil
	case model.ProviderAnthropic:
		return NewAnthropic(cfg, prompt, logger), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
}
