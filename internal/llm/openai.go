package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOpenAIChatModel = "gpt-3.5-turbo"
	openAIChatEndpoint     = "https://api.openai.com/v1/chat/completions"
)

// OpenAIChat is the secondary chat completion backend.
type OpenAIChat struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

type OpenAIChatConfig struct {
	APIKey   string
	Model    string
	Endpoint string // overridable for tests
}

func NewOpenAIChat(cfg OpenAIChatConfig) *OpenAIChat {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultOpenAIChatModel
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = openAIChatEndpoint
	}
	return &OpenAIChat{
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		model:    model,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

func (o *OpenAIChat) Name() string { return "openai" }

func (o *OpenAIChat) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if o.apiKey == "" {
		return "", fmt.Errorf("openai api key missing")
	}
	return completeChat(ctx, o.client, o.endpoint, o.apiKey, o.model, systemPrompt, userPrompt)
}
