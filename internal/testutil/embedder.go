package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
)

// StaticEmbedder is a deterministic fake for the knowledge.Embedder
// interface. Texts registered with Register return their fixed vector;
// anything else gets a unit vector derived from an FNV hash of the text,
// so equal texts always embed identically and distinct texts almost
// never collide.
type StaticEmbedder struct {
	dim int

	mu      sync.Mutex
	vectors map[string][]float32
	calls   []string
}

// NewStaticEmbedder creates a fake embedder producing dim-length vectors.
func NewStaticEmbedder(dim int) *StaticEmbedder {
	return &StaticEmbedder{
		dim:     dim,
		vectors: make(map[string][]float32),
	}
}

// Register pins the vector returned for an exact text.
func (e *StaticEmbedder) Register(text string, vector []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[text] = vector
}

// Calls returns the texts embedded so far, in order.
func (e *StaticEmbedder) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

// Embed implements knowledge.Embedder.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, text)

	if v, ok := e.vectors[text]; ok {
		return append([]float32(nil), v...), nil
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	v := make([]float32, e.dim)
	var norm float64
	for i := range v {
		// xorshift64 over the seed gives stable pseudo-random components.
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		v[i] = float32(int64(seed%2000)-1000) / 1000
		norm += float64(v[i]) * float64(v[i])
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range v {
			v[i] = float32(float64(v[i]) / norm)
		}
	}
	return v, nil
}
