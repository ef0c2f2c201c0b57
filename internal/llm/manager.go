package llm

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"docquery/internal/metrics"

	"github.com/rs/zerolog"
)

// fallbackPayload is returned when no provider can answer. It is shaped
// like the JSON the generation prompts ask for, so downstream parsing
// degrades gracefully instead of erroring.
const fallbackPayload = `{
  "answer": "The system is currently unable to process this query due to LLM service unavailability. Please check your API configuration and try again.",
  "conditions": [],
  "clause": "No clause information available",
  "confidence": 0.0,
  "rationale": "The system is currently unable to access LLM services for detailed analysis."
}`

// Manager runs completions against a primary provider, falls back to a
// secondary, and finally degrades to a canned payload when both are out.
// Once a provider hits a quota error it is skipped for the rest of the
// process lifetime.
type Manager struct {
	primary   ChatCompleter
	secondary ChatCompleter
	log       zerolog.Logger
	metrics   *metrics.Metrics

	// One manager is shared by concurrent pipelines; the exhaustion flags
	// must be safe without a lock around the whole completion call.
	primaryExhausted   atomic.Bool
	secondaryExhausted atomic.Bool
}

func NewManager(primary, secondary ChatCompleter, log zerolog.Logger, m *metrics.Metrics) *Manager {
	if m == nil {
		m = metrics.NewNop()
	}
	return &Manager{primary: primary, secondary: secondary, log: log, metrics: m}
}

// Complete tries each available provider under the given timeout. It never
// returns an error: when every provider fails the fallback payload comes
// back instead, so answer generation always has something to parse.
func (m *Manager) Complete(ctx context.Context, systemPrompt, userPrompt string, timeout time.Duration) string {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	if m.primary != nil && !m.primaryExhausted.Load() {
		text, err := m.completeOne(ctx, m.primary, systemPrompt, userPrompt, timeout)
		if err == nil {
			return text
		}
		kind := ClassifyError(err)
		m.log.Error().Err(err).Str("provider", m.primary.Name()).Str("error_type", string(kind)).Msg("primary completion failed")
		if kind == ErrorQuota {
			m.primaryExhausted.Store(true)
		}
		m.metrics.LLMFallbacksTotal.Inc()
	}

	if m.secondary != nil && !m.secondaryExhausted.Load() {
		text, err := m.completeOne(ctx, m.secondary, systemPrompt, userPrompt, timeout)
		if err == nil {
			return text
		}
		kind := ClassifyError(err)
		m.log.Error().Err(err).Str("provider", m.secondary.Name()).Str("error_type", string(kind)).Msg("secondary completion failed")
		if kind == ErrorQuota {
			m.secondaryExhausted.Store(true)
		}
		m.metrics.LLMFallbacksTotal.Inc()
	}

	m.log.Warn().Msg("all completion providers unavailable, using fallback payload")
	return fallbackPayload
}

func (m *Manager) completeOne(ctx context.Context, provider ChatCompleter, systemPrompt, userPrompt string, timeout time.Duration) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	text, err := provider.Complete(callCtx, systemPrompt, userPrompt)
	elapsed := time.Since(start)
	if elapsed > 5*time.Second {
		m.log.Warn().Dur("elapsed", elapsed).Str("provider", provider.Name()).Msg("slow completion call")
	}
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", provider.Name(), err)
	}
	return text, nil
}
