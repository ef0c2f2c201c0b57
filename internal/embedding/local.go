package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
)

const localDimension = 384

// Local is a deterministic, in-process embedding provider: the same input
// always yields the same unit-length vector and no network call is made.
type Local struct {
	dim int
}

func NewLocal() *Local {
	return &Local{dim: localDimension}
}

func (l *Local) Name() string { return "local" }

func (l *Local) Dimension() int { return l.dim }

func (l *Local) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	_ = ctx
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, deterministicVector(text, l.dim))
	}
	return out, nil
}

func deterministicVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	seed := []byte(input)
	if len(seed) == 0 {
		seed = []byte("empty")
	}
	for i := 0; i < dim; i++ {
		h := sha256.Sum256(append(seed, byte(i%251)))
		u := binary.BigEndian.Uint32(h[:4])
		vec[i] = float32(u%2000)/1000.0 - 1.0
	}
	return Normalize(vec)
}
