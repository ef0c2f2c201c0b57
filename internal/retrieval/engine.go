// Package retrieval composes an embedding provider and a vector index
// behind one add/search interface.
package retrieval

import (
	"context"
	"fmt"

	"docquery/internal/embedding"
	"docquery/internal/models"
	"docquery/internal/vectorindex"

	"github.com/rs/zerolog"
)

type Engine struct {
	embedder embedding.Provider
	index    vectorindex.Index
	log      zerolog.Logger
}

func NewEngine(embedder embedding.Provider, index vectorindex.Index, log zerolog.Logger) *Engine {
	return &Engine{embedder: embedder, index: index, log: log}
}

// AddDocumentChunks embeds chunk contents and stores them in the index.
// Failures propagate so the caller can mark the document as failed.
func (e *Engine) AddDocumentChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Content)
	}
	vectors, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %d chunks: %w", len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return &embedding.ProviderError{
			Provider: e.embedder.Name(),
			Err:      fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks)),
		}
	}
	if err := e.index.Add(ctx, vectors, chunks); err != nil {
		return fmt.Errorf("index %d chunks: %w", len(chunks), err)
	}
	e.log.Info().Int("chunks", len(chunks)).Str("index", e.index.Name()).Msg("added chunks to vector index")
	return nil
}

// SearchSimilarChunks embeds the query text and searches the index.
// Retrieval failures degrade to an empty result set; they never abort the
// surrounding pipeline.
func (e *Engine) SearchSimilarChunks(ctx context.Context, query string, k int) []models.SearchResult {
	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil || len(vectors) == 0 {
		e.log.Error().Err(err).Msg("query embedding failed, returning no results")
		return []models.SearchResult{}
	}
	results, err := e.index.Search(ctx, vectors[0], k)
	if err != nil {
		e.log.Error().Err(err).Msg("vector search failed, returning no results")
		return []models.SearchResult{}
	}
	return results
}

func (e *Engine) Stats(ctx context.Context) (vectorindex.Stats, error) {
	return e.index.Stats(ctx)
}

func (e *Engine) EmbedderName() string { return e.embedder.Name() }

func (e *Engine) IndexName() string { return e.index.Name() }
