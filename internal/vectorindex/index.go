// Package vectorindex stores chunk vectors and serves similarity search.
// Two backends implement the same interface: an in-process exact index with
// a disk snapshot, and a remote Postgres/pgvector store.
package vectorindex

import (
	"context"

	"docquery/internal/models"
)

type Stats struct {
	Count     int `json:"count"`
	Dimension int `json:"dimension"`
}

type Index interface {
	// Add stores vectors with their parallel chunk metadata. The call is
	// all-or-nothing: on error the index is unchanged.
	Add(ctx context.Context, vectors [][]float32, chunks []models.Chunk) error
	// Search returns up to k results ordered by descending score. An empty
	// index yields an empty slice, not an error.
	Search(ctx context.Context, vector []float32, k int) ([]models.SearchResult, error)
	Stats(ctx context.Context) (Stats, error)
	Name() string
}
