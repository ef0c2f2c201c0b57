package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"docquery/internal/logger"
	"docquery/internal/metrics"

	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	name  string
	reply string
	err   error
	calls atomic.Int32
}

func (s *stubCompleter) Complete(context.Context, string, string) (string, error) {
	s.calls.Add(1)
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func (s *stubCompleter) Name() string { return s.name }

func TestManagerPrefersPrimary(t *testing.T) {
	primary := &stubCompleter{name: "groq", reply: "primary answer"}
	secondary := &stubCompleter{name: "openai", reply: "secondary answer"}
	m := NewManager(primary, secondary, logger.Nop(), metrics.NewNop())

	got := m.Complete(context.Background(), "sys", "user", time.Second)
	require.Equal(t, "primary answer", got)
	require.Zero(t, secondary.calls.Load())
}

func TestManagerFallsBackToSecondary(t *testing.T) {
	primary := &stubCompleter{name: "groq", err: errors.New("service unavailable")}
	secondary := &stubCompleter{name: "openai", reply: "secondary answer"}
	m := NewManager(primary, secondary, logger.Nop(), metrics.NewNop())

	got := m.Complete(context.Background(), "sys", "user", time.Second)
	require.Equal(t, "secondary answer", got)
}

func TestManagerReturnsFallbackPayloadWhenAllFail(t *testing.T) {
	primary := &stubCompleter{name: "groq", err: errors.New("boom")}
	secondary := &stubCompleter{name: "openai", err: errors.New("boom")}
	m := NewManager(primary, secondary, logger.Nop(), metrics.NewNop())

	got := m.Complete(context.Background(), "sys", "user", time.Second)
	var obj map[string]any
	require.NoError(t, json.Unmarshal([]byte(got), &obj))
	require.Equal(t, 0.0, obj["confidence"])
}

func TestManagerSkipsQuotaExhaustedProvider(t *testing.T) {
	primary := &stubCompleter{name: "groq", err: errors.New("insufficient_quota: billing limit reached")}
	secondary := &stubCompleter{name: "openai", reply: "ok"}
	m := NewManager(primary, secondary, logger.Nop(), metrics.NewNop())

	require.Equal(t, "ok", m.Complete(context.Background(), "sys", "user", time.Second))
	require.Equal(t, "ok", m.Complete(context.Background(), "sys", "user", time.Second))
	require.Equal(t, int32(1), primary.calls.Load())
}

func TestManagerConcurrentComplete(t *testing.T) {
	primary := &stubCompleter{name: "groq", err: errors.New("insufficient_quota: billing limit reached")}
	secondary := &stubCompleter{name: "openai", reply: "ok"}
	m := NewManager(primary, secondary, logger.Nop(), metrics.NewNop())

	var wrong atomic.Int32
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				if m.Complete(context.Background(), "sys", "user", time.Second) != "ok" {
					wrong.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	require.Zero(t, wrong.Load())
	// Quota exhaustion sticks, so the primary saw at most the first wave of
	// concurrent calls rather than one per completion.
	require.LessOrEqual(t, primary.calls.Load(), int32(8))
	require.Equal(t, int32(200), secondary.calls.Load())
}

func TestManagerWithNoProviders(t *testing.T) {
	m := NewManager(nil, nil, logger.Nop(), metrics.NewNop())
	got := m.Complete(context.Background(), "sys", "user", time.Second)
	var obj map[string]any
	require.NoError(t, json.Unmarshal([]byte(got), &obj))
	require.Contains(t, obj["answer"], "unable to process")
}

func TestGroqCompleteWireFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "llama-3.1-8b-instant", req.Model)
		require.Len(t, req.Messages, 2)
		require.Equal(t, "system", req.Messages[0].Role)

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "  reply text  "}},
			},
		})
	}))
	defer srv.Close()

	g := NewGroq(GroqConfig{APIKey: "test-key", Endpoint: srv.URL})
	got, err := g.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	require.Equal(t, "reply text", got)
}

func TestGroqCompleteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": "rate limit exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := NewGroq(GroqConfig{APIKey: "test-key", Endpoint: srv.URL})
	_, err := g.Complete(context.Background(), "sys", "user")
	require.Error(t, err)
	require.Equal(t, ErrorRate, ClassifyError(err))
}

func TestCompleteMissingKey(t *testing.T) {
	g := NewGroq(GroqConfig{})
	_, err := g.Complete(context.Background(), "sys", "user")
	require.Error(t, err)

	o := NewOpenAIChat(OpenAIChatConfig{})
	_, err = o.Complete(context.Background(), "sys", "user")
	require.Error(t, err)
}
