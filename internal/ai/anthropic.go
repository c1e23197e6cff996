package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/nhle/newsdigest/internal/model"
	"github.com/nhle/newsdigest/internal/source"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

// Anthropic summarizes through the Claude Messages API.
type Anthropic struct {
	client      *anthropic.Client
	model       string
	maxTokens   int
	temperature float64
	prompt      PromptOptions
	logger      *slog.Logger
}

// NewAnthropic creates a Claude summarizer.
func NewAnthropic(cfg model.LLMConfig, prompt PromptOptions, logger *slog.Logger) *Anthropic {
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.TimeoutSec > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout()))
	}
	client := anthropic.NewClient(opts...)

	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultAnthropicModel
	}

	return &Anthropic{
		client:      &client,
		model:       modelName,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		prompt:      prompt,
		logger:      logger,
	}
}

// Summarize sends the curation prompt and joins the text blocks of the reply.
func (s *Anthropic) Summarize(ctx context.Context, articles []model.Article) (string, error) {
	if len(articles) == 0 {
		return "", ErrNoArticles
	}

	s.logger.Info("requesting summary",
		slog.String("provider", model.ProviderAnthropic),
		slog.String("model", s.model),
		slog.Int("articles", len(articles)))

	message, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: int64(s.maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: SystemPrompt(s.prompt)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BuildPrompt(articles, s.prompt))),
		},
		Temperature: anthropic.Float(s.temperature),
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			return "", &source.AuthError{Service: source.ServiceLLM, Message: apiErr.Error()}
		}
		return "", fmt.Errorf("calling Claude API: %w", err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	content := strings.TrimSpace(sb.String())
	if content == "" {
		return "", ErrEmptyReply
	}

	s.logger.Info("summary received",
		slog.Int("input_tokens", int(message.Usage.InputTokens)),
		slog.Int("output_tokens", int(message.Usage.OutputTokens)))

	return content, nil
}
