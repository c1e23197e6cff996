package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/nhle/newsdigest/internal/model"
	"github.com/nhle/newsdigest/internal/source"
)

const defaultAzureAPIVersion = "2024-02-15-preview"

// Azure summarizes through an Azure OpenAI chat completions deployment.
type Azure struct {
	endpoint    string
	deployment  string
	apiVersion  string
	apiKey      string
	temperature float64
	maxTokens   int
	prompt      PromptOptions
	client      *http.Client
	logger      *slog.Logger
}

// NewAzure creates an Azure OpenAI summarizer. client may be nil.
func NewAzure(
	cfg model.LLMConfig,
	prompt PromptOptions,
	client *http.Client,
	logger *slog.Logger,
) *Azure {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout()}
	}
	if logger == nil {
		logger = slog.Default()
	}

	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = defaultAzureAPIVersion
	}
	deployment := cfg.Deployment
	if deployment == "" {
		deployment = cfg.Model
	}

	return &Azure{
		endpoint:    strings.TrimRight(cfg.Endpoint, "/"),
		deployment:  deployment,
		apiVersion:  apiVersion,
		apiKey:      cfg.APIKey,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		prompt:      prompt,
		client:      client,
		logger:      logger,
	}
}

// Summarize sends one chat completion request and returns the reply text.
func (a *Azure) Summarize(ctx context.Context, articles []model.Article) (string, error) {
	if len(articles) == 0 {
		return "", ErrNoArticles
	}

	a.logger.Info("requesting summary",
		slog.String("provider", model.ProviderAzureOpenAI),
		slog.String("deployment", a.deployment),
		slog.Int("articles", len(articles)))

	reqBody := chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt(a.prompt)},
			{Role: "user", Content: BuildPrompt(articles, a.prompt)},
		},
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, a.url(), bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Azure OpenAI: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(respBody, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(respBody))
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return "", &source.AuthError{Service: source.ServiceLLM, Message: msg}
		}
		return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, msg)
	}

	if !gjson.ValidBytes(respBody) {
		return "", fmt.Errorf("decoding response: invalid JSON")
	}

	content := strings.TrimSpace(gjson.GetBytes(respBody, "choices.0.message.content").String())
	if content == "" {
		return "", ErrEmptyReply
	}

	a.logger.Info("summary received",
		slog.Int64("prompt_tokens", gjson.GetBytes(respBody, "usage.prompt_tokens").Int()),
		slog.Int64("completion_tokens", gjson.GetBytes(respBody, "usage.completion_tokens").Int()))

	return content, nil
}

func (a *Azure) url() string {
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		a.endpoint, url.PathEscape(a.deployment), url.QueryEscape(a.apiVersion))
}

// --- chat completions wire types ---

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
