package vectorindex

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"docquery/internal/embedding"
	"docquery/internal/models"
	"docquery/internal/util"
)

// Memory is an exact in-process index. Vectors are normalized to unit
// length on add and at query time and scored by inner product, which equals
// cosine similarity for unit vectors. Mutations hold a writer lock around
// add+persist; searches may run concurrently with each other.
type Memory struct {
	mu        sync.RWMutex
	dimension int
	path      string // snapshot base path; empty disables persistence
	vectors   [][]float32
	chunks    []models.Chunk
}

func NewMemory(dimension int, snapshotPath string) *Memory {
	return &Memory{dimension: dimension, path: snapshotPath}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Add(ctx context.Context, vectors [][]float32, chunks []models.Chunk) error {
	_ = ctx
	if len(vectors) != len(chunks) {
		return fmt.Errorf("vectors/chunks length mismatch: %d != %d", len(vectors), len(chunks))
	}
	normalized := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != m.dimension {
			return fmt.Errorf("%w: got %d, index dimension %d", util.ErrDimensionMismatch, len(v), m.dimension)
		}
		c := make([]float32, len(v))
		copy(c, v)
		normalized[i] = embedding.Normalize(c)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors = append(m.vectors, normalized...)
	m.chunks = append(m.chunks, chunks...)
	if err := m.persistLocked(); err != nil {
		// Roll back so the call stays all-or-nothing.
		m.vectors = m.vectors[:len(m.vectors)-len(normalized)]
		m.chunks = m.chunks[:len(m.chunks)-len(chunks)]
		return fmt.Errorf("persist index snapshot: %w", err)
	}
	return nil
}

func (m *Memory) Search(ctx context.Context, vector []float32, k int) ([]models.SearchResult, error) {
	_ = ctx
	if k <= 0 {
		k = 5
	}
	query := make([]float32, len(vector))
	copy(query, vector)
	embedding.Normalize(query)

	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.vectors) == 0 {
		return []models.SearchResult{}, nil
	}
	if len(query) != m.dimension {
		return nil, fmt.Errorf("%w: query has %d, index dimension %d", util.ErrDimensionMismatch, len(query), m.dimension)
	}

	scores := make([]float64, len(m.vectors))
	for i, v := range m.vectors {
		scores[i] = dot(v, query)
	}
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	// Stable sort keeps insertion order for equal scores, so results are
	// deterministic for a fixed index state.
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	if k > len(order) {
		k = len(order)
	}
	results := make([]models.SearchResult, 0, k)
	for _, idx := range order[:k] {
		results = append(results, models.SearchResult{
			Chunk:               m.chunks[idx],
			Score:               scores[idx],
			EmbeddingSimilarity: scores[idx],
		})
	}
	return results, nil
}

func (m *Memory) Stats(ctx context.Context) (Stats, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{Count: len(m.vectors), Dimension: m.dimension}, nil
}

type vectorBlob struct {
	Dimension int
	Vectors   [][]float32
}

// persistLocked writes the vector blob and the parallel chunk metadata list
// together. Callers must hold the writer lock.
func (m *Memory) persistLocked() error {
	if m.path == "" {
		return nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(vectorBlob{Dimension: m.dimension, Vectors: m.vectors}); err != nil {
		return fmt.Errorf("encode vectors: %w", err)
	}
	if err := util.WriteBytesAtomic(m.path+".vec", buf.Bytes()); err != nil {
		return err
	}
	return util.WriteJSONAtomic(m.path+".meta.json", m.chunks)
}

// Load restores a previously saved snapshot. A missing snapshot is not an
// error; the index just starts empty.
func (m *Memory) Load() error {
	if m.path == "" {
		return nil
	}
	vecData, err := os.ReadFile(m.path + ".vec")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read vector blob: %w", err)
	}
	metaData, err := os.ReadFile(m.path + ".meta.json")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read index metadata: %w", err)
	}

	var blob vectorBlob
	if err := gob.NewDecoder(bytes.NewReader(vecData)).Decode(&blob); err != nil {
		return fmt.Errorf("decode vector blob: %w", err)
	}
	var chunks []models.Chunk
	if err := json.Unmarshal(metaData, &chunks); err != nil {
		return fmt.Errorf("decode index metadata: %w", err)
	}
	if len(blob.Vectors) != len(chunks) {
		return fmt.Errorf("snapshot corrupt: %d vectors, %d metadata entries", len(blob.Vectors), len(chunks))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.dimension = blob.Dimension
	m.vectors = blob.Vectors
	m.chunks = chunks
	return nil
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
