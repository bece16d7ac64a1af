package interfaces

import (
	"context"

	"github.com/ternarybob/docchat/internal/models"
)

// Embedder turns text into embedding vectors via an external provider.
type Embedder interface {
	// Embed returns the vector for a single query string.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input, in input order.
	// Either every vector is returned or an error is.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator wraps a chat/completion call to an external model.
//
// A blocked or empty provider result is returned as a Generation with
// Blocked set and a nil error. Hard failures wrap ErrGeneration.
type Generator interface {
	Generate(ctx context.Context, req models.GenerateRequest) (*models.Generation, error)
}
