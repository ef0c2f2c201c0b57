// Package embedding maps text to fixed-dimension vectors. Two providers
// exist: a deterministic local model and a hosted API. The choice is made
// once at startup; mixing vectors from different providers in one index is
// rejected at add time by the index's dimension check.
package embedding

import (
	"context"
	"fmt"
	"math"
)

type Provider interface {
	// Embed returns one vector per input text, preserving order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Name() string
}

// ProviderError wraps an embedding backend failure. It is fatal to an
// add-chunks call and degrades a search call to empty results.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Normalize scales v to unit length in place and returns it. Zero vectors
// are returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
