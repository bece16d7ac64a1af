// Package vectorindex holds an in-memory nearest-neighbour index over the
// chunks of a single document.
package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/ternarybob/docchat/internal/interfaces"
	"github.com/ternarybob/docchat/internal/models"
)

// DefaultK is the number of results returned when Search is called with k <= 0
const DefaultK = 4

// Index pairs every chunk of one document with its L2-normalised embedding.
// It is immutable after Build and safe for concurrent Search.
type Index struct {
	chunks  []models.Chunk
	vectors [][]float32
	dim     int
}

// Build embeds every chunk in one EmbedBatch call sequence and returns the
// complete index. Every embedding must share one non-zero dimension. Any
// failure returns ErrIndexBuild and no index.
func Build(ctx context.Context, chunks []models.Chunk, embedder interfaces.Embedder) (*Index, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks to index", interfaces.ErrIndexBuild)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", interfaces.ErrIndexBuild, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", interfaces.ErrIndexBuild, len(chunks), len(vectors))
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return nil, fmt.Errorf("%w: embedding %d has %d dimensions, expected %d", interfaces.ErrIndexBuild, i, len(v), dim)
		}
	}

	idx := &Index{
		chunks:  make([]models.Chunk, len(chunks)),
		vectors: make([][]float32, len(vectors)),
		dim:     dim,
	}
	copy(idx.chunks, chunks)
	for i, v := range vectors {
		idx.vectors[i] = normalize(v)
	}

	return idx, nil
}

// Len returns the number of indexed chunks
func (idx *Index) Len() int {
	return len(idx.chunks)
}

// Search returns up to k chunks ranked by cosine similarity to query, highest
// first. Equal scores keep the lower chunk index first.
func (idx *Index) Search(ctx context.Context, query string, k int, embedder interfaces.Embedder) ([]models.ScoredChunk, error) {
	if k <= 0 {
		k = DefaultK
	}

	queryVector, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(queryVector) != idx.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", interfaces.ErrEmbeddingService, len(queryVector), idx.dim)
	}
	queryVector = normalize(queryVector)

	results := make([]models.ScoredChunk, len(idx.chunks))
	for i, c := range idx.chunks {
		results[i] = models.ScoredChunk{Chunk: c, Score: dot(idx.vectors[i], queryVector)}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Index < results[j].Index
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// normalize returns a unit-length copy of v. A zero vector stays zero so it
// scores 0 against everything.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}

	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// dot assumes len(a) == len(b); Build and Search enforce it
func dot(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}
