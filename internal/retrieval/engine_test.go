package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"docquery/internal/embedding"
	"docquery/internal/logger"
	"docquery/internal/models"
	"docquery/internal/vectorindex"

	"github.com/stretchr/testify/require"
)

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, &embedding.ProviderError{Provider: "failing", Err: errors.New("boom")}
}
func (failingEmbedder) Dimension() int { return 3 }
func (failingEmbedder) Name() string   { return "failing" }

func sampleChunks(n int) []models.Chunk {
	chunks := make([]models.Chunk, 0, n)
	for i := 0; i < n; i++ {
		chunks = append(chunks, models.Chunk{
			ChunkID:    fmt.Sprintf("doc1_chunk_%d", i),
			Content:    fmt.Sprintf("Clause number %d covers a distinct topic about item %d.", i, i),
			PageNumber: i/4 + 1,
			ChunkIndex: i,
			DocumentID: "doc1",
		})
	}
	return chunks
}

func newLocalEngine() *Engine {
	embedder := embedding.NewLocal()
	index := vectorindex.NewMemory(embedder.Dimension(), "")
	return NewEngine(embedder, index, logger.Nop())
}

func TestAddThenSearchReturnsOwnChunkFirst(t *testing.T) {
	ctx := context.Background()
	engine := newLocalEngine()
	chunks := sampleChunks(40)
	require.NoError(t, engine.AddDocumentChunks(ctx, chunks))

	for _, probe := range []int{0, 17, 39} {
		results := engine.SearchSimilarChunks(ctx, chunks[probe].Content, 5)
		require.NotEmpty(t, results)
		require.Equal(t, chunks[probe].ChunkID, results[0].Chunk.ChunkID)
		for _, r := range results[1:] {
			require.LessOrEqual(t, r.Score, results[0].Score)
		}
	}
}

func TestSearchFailureDegradesToEmpty(t *testing.T) {
	index := vectorindex.NewMemory(3, "")
	engine := NewEngine(failingEmbedder{}, index, logger.Nop())
	results := engine.SearchSimilarChunks(context.Background(), "anything", 5)
	require.Empty(t, results)
}

func TestAddFailurePropagates(t *testing.T) {
	index := vectorindex.NewMemory(3, "")
	engine := NewEngine(failingEmbedder{}, index, logger.Nop())
	err := engine.AddDocumentChunks(context.Background(), sampleChunks(2))
	var provErr *embedding.ProviderError
	require.ErrorAs(t, err, &provErr)
}

func TestStatsReflectAddedChunks(t *testing.T) {
	ctx := context.Background()
	engine := newLocalEngine()
	require.NoError(t, engine.AddDocumentChunks(ctx, sampleChunks(7)))
	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 7, stats.Count)
}
