package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultGroqModel = "llama-3.1-8b-instant"
	groqEndpoint     = "https://api.groq.com/openai/v1/chat/completions"

	// Answers are JSON payloads, not prose; a tight token cap keeps latency down.
	completionMaxTokens   = 800
	completionTemperature = 0.1
)

// Groq talks to Groq's OpenAI-compatible chat completion API.
type Groq struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

type GroqConfig struct {
	APIKey   string
	Model    string
	Endpoint string // overridable for tests
}

func NewGroq(cfg GroqConfig) *Groq {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGroqModel
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = groqEndpoint
	}
	return &Groq{
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		model:    model,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

func (g *Groq) Name() string { return "groq" }

func (g *Groq) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("groq api key missing")
	}
	return completeChat(ctx, g.client, g.endpoint, g.apiKey, g.model, systemPrompt, userPrompt)
}

// completeChat posts an OpenAI-style chat completion request and returns the
// first choice's content. Groq and OpenAI share this wire format.
func completeChat(ctx context.Context, client *http.Client, endpoint, apiKey, model, systemPrompt, userPrompt string) (string, error) {
	payload, _ := json.Marshal(map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"temperature": completionTemperature,
		"max_tokens":  completionMaxTokens,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("completion error %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion returned empty choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
