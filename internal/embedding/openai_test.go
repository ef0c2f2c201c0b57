package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpenAIEmbedPreservesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		type item struct {
			Embedding []float32 `json:"embedding"`
		}
		data := make([]item, len(req.Input))
		for i := range req.Input {
			data[i] = item{Embedding: []float32{float32(i), 1}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{BaseURL: srv.URL, APIKey: "test", Timeout: 5 * time.Second})
	vecs, err := o.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	require.Equal(t, []float32{2, 1}, vecs[2])
}

func TestOpenAIEmbedSurfacesProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limit"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{BaseURL: srv.URL, APIKey: "test", Timeout: 5 * time.Second})
	_, err := o.Embed(context.Background(), []string{"a"})
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	require.Equal(t, "openai", provErr.Provider)
}

func TestOpenAIEmbedMissingKey(t *testing.T) {
	o := NewOpenAI(OpenAIConfig{})
	_, err := o.Embed(context.Background(), []string{"a"})
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
}
