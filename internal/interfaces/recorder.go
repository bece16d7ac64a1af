package interfaces

import (
	"context"

	"github.com/ternarybob/docchat/internal/models"
)

// Recorder receives record-worthy facts emitted by the pipelines.
// The pipelines never read from it and never fail because of it.
type Recorder interface {
	RecordDocument(ctx context.Context, doc *models.DocumentRecord) error
	RecordChunks(ctx context.Context, documentID string, chunks []models.Chunk) error
	RecordQuery(ctx context.Context, query *models.QueryRecord) error
}

// MetadataStorage is the read side of the metadata store used by the HTTP layer
type MetadataStorage interface {
	Recorder
	GetDocument(ctx context.Context, id string) (*models.DocumentRecord, error)
	ListDocuments(ctx context.Context, sessionID string) ([]models.DocumentRecord, error)
	ListQueries(ctx context.Context, documentID string) ([]models.QueryRecord, error)
	ListChunks(ctx context.Context, documentID string) ([]models.ChunkRecord, error)
	DeleteSession(ctx context.Context, sessionID string) (int, error)
}
