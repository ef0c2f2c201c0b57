package vectorindex

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"docquery/internal/models"
	"docquery/internal/util"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUpsertBatchSize = 100

// PGVector delegates storage and top-k queries to a Postgres instance with
// the pgvector extension. The remote table only holds chunk_id and the
// vector; full chunk content is rehydrated from a local id lookup map.
type PGVector struct {
	pool      *pgxpool.Pool
	dimension int

	mu         sync.RWMutex
	chunksByID map[string]models.Chunk
}

func NewPGVector(ctx context.Context, dsn string, dimension int) (*PGVector, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	p := &PGVector{pool: pool, dimension: dimension, chunksByID: make(map[string]models.Chunk)}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *PGVector) Name() string { return "pgvector" }

func (p *PGVector) Close() {
	if p != nil && p.pool != nil {
		p.pool.Close()
	}
}

func (p *PGVector) ensureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("ensure vector extension: %w", err)
	}
	stmt := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS chunk_vectors (
    chunk_id    TEXT PRIMARY KEY,
    document_id TEXT NOT NULL,
    embedding   vector(%d) NOT NULL
)`, p.dimension)
	if _, err := p.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("ensure chunk_vectors table: %w", err)
	}
	return nil
}

func (p *PGVector) Add(ctx context.Context, vectors [][]float32, chunks []models.Chunk) error {
	if len(vectors) != len(chunks) {
		return fmt.Errorf("vectors/chunks length mismatch: %d != %d", len(vectors), len(chunks))
	}
	for _, v := range vectors {
		if len(v) != p.dimension {
			return fmt.Errorf("%w: got %d, index dimension %d", util.ErrDimensionMismatch, len(v), p.dimension)
		}
	}

	// One transaction keeps the call all-or-nothing even across batches.
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	for start := 0; start < len(chunks); start += pgUpsertBatchSize {
		end := start + pgUpsertBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := &pgx.Batch{}
		for i := start; i < end; i++ {
			batch.Queue(`
INSERT INTO chunk_vectors (chunk_id, document_id, embedding)
VALUES ($1, $2, $3::vector)
ON CONFLICT (chunk_id) DO UPDATE SET document_id = EXCLUDED.document_id, embedding = EXCLUDED.embedding`,
				chunks[i].ChunkID, chunks[i].DocumentID, ToLiteral(vectors[i]))
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upsert vectors: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}

	p.mu.Lock()
	for _, c := range chunks {
		p.chunksByID[c.ChunkID] = c
	}
	p.mu.Unlock()
	return nil
}

func (p *PGVector) Search(ctx context.Context, vector []float32, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		k = 5
	}
	rows, err := p.pool.Query(ctx, `
SELECT chunk_id,
       1 - (embedding <=> $1::vector) AS score
FROM chunk_vectors
ORDER BY embedding <=> $1::vector
LIMIT $2`, ToLiteral(vector), k)
	if err != nil {
		return nil, fmt.Errorf("query vector search: %w", err)
	}
	defer rows.Close()

	results := make([]models.SearchResult, 0, k)
	p.mu.RLock()
	defer p.mu.RUnlock()
	for rows.Next() {
		var chunkID string
		var score float64
		if err := rows.Scan(&chunkID, &score); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		chunk, ok := p.chunksByID[chunkID]
		if !ok {
			// Row from a previous process; without local metadata the hit
			// cannot be rehydrated.
			continue
		}
		results = append(results, models.SearchResult{Chunk: chunk, Score: score, EmbeddingSimilarity: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, nil
}

func (p *PGVector) Stats(ctx context.Context) (Stats, error) {
	var count int
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM chunk_vectors`).Scan(&count); err != nil {
		return Stats{}, fmt.Errorf("count vectors: %w", err)
	}
	return Stats{Count: count, Dimension: p.dimension}, nil
}

// ToLiteral renders a vector as a pgvector text literal.
func ToLiteral(v []float32) string {
	parts := make([]string, 0, len(v))
	for _, x := range v {
		parts = append(parts, fmt.Sprintf("%f", x))
	}
	return "[" + strings.Join(parts, ",") + "]"
}
