package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	openAIDimension = 1536
	openAIBatchSize = 100
)

// OpenAI embeds text through the hosted embeddings API. Requests are sent
// in batches of at most 100 inputs, paced by a rate limiter so back-to-back
// batches respect the provider's rate limits.
type OpenAI struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	limiter *rate.Limiter
}

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-ada-002"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &OpenAI{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Dimension() int { return openAIDimension }

func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if o.apiKey == "" {
		return nil, &ProviderError{Provider: o.Name(), Err: fmt.Errorf("api key not configured")}
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += openAIBatchSize {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, &ProviderError{Provider: o.Name(), Err: err}
		}
		end := start + openAIBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := o.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	if len(out) != len(texts) {
		return nil, &ProviderError{Provider: o.Name(), Err: fmt.Errorf("got %d vectors for %d inputs", len(out), len(texts))}
	}
	return out, nil
}

func (o *OpenAI) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	payload, _ := json.Marshal(map[string]any{"model": o.model, "input": batch})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, &ProviderError{Provider: o.Name(), Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: o.Name(), Err: fmt.Errorf("embedding request failed: %w", err)}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, &ProviderError{Provider: o.Name(), Err: fmt.Errorf("embedding error %d: %s", resp.StatusCode, string(body))}
	}
	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ProviderError{Provider: o.Name(), Err: fmt.Errorf("decode embedding response: %w", err)}
	}
	if len(parsed.Data) != len(batch) {
		return nil, &ProviderError{Provider: o.Name(), Err: fmt.Errorf("provider returned %d embeddings for %d inputs", len(parsed.Data), len(batch))}
	}
	vectors := make([][]float32, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		if len(d.Embedding) == 0 {
			return nil, &ProviderError{Provider: o.Name(), Err: fmt.Errorf("provider returned an empty embedding")}
		}
		vectors = append(vectors, d.Embedding)
	}
	return vectors, nil
}
