package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/docchat/internal/interfaces"
	"github.com/ternarybob/docchat/internal/models"
)

// MetadataStorage persists document, chunk and query records
type MetadataStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

var _ interfaces.MetadataStorage = (*MetadataStorage)(nil)

// NewMetadataStorage creates a new MetadataStorage instance
func NewMetadataStorage(db *BadgerDB, logger arbor.ILogger) *MetadataStorage {
	return &MetadataStorage{
		db:     db,
		logger: logger,
	}
}

// RecordDocument upserts a document record by ID
func (s *MetadataStorage) RecordDocument(ctx context.Context, doc *models.DocumentRecord) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	if err := s.db.Store().Upsert(doc.ID, doc); err != nil {
		return fmt.Errorf("failed to save document record: %w", err)
	}
	return nil
}

// RecordChunks replaces the chunk records of a document
func (s *MetadataStorage) RecordChunks(ctx context.Context, documentID string, chunks []models.Chunk) error {
	if documentID == "" {
		return fmt.Errorf("document ID is required")
	}

	if err := s.db.Store().DeleteMatching(&models.ChunkRecord{}, badgerhold.Where("DocumentID").Eq(documentID).Index("DocumentID")); err != nil {
		return fmt.Errorf("failed to clear chunk records: %w", err)
	}

	for _, c := range chunks {
		record := &models.ChunkRecord{
			ID:         chunkRecordID(documentID, c.Index),
			DocumentID: documentID,
			Index:      c.Index,
			Text:       c.Text,
			Size:       c.Size,
			Locator:    c.Locator,
		}
		if err := s.db.Store().Upsert(record.ID, record); err != nil {
			return fmt.Errorf("failed to save chunk %d: %w", c.Index, err)
		}
	}
	return nil
}

// RecordQuery stores one query record
func (s *MetadataStorage) RecordQuery(ctx context.Context, query *models.QueryRecord) error {
	if query.ID == "" {
		return fmt.Errorf("query ID is required")
	}
	if query.CreatedAt.IsZero() {
		query.CreatedAt = time.Now()
	}

	if err := s.db.Store().Upsert(query.ID, query); err != nil {
		return fmt.Errorf("failed to save query record: %w", err)
	}
	return nil
}

// GetDocument returns a document record or ErrRecordNotFound
func (s *MetadataStorage) GetDocument(ctx context.Context, id string) (*models.DocumentRecord, error) {
	var doc models.DocumentRecord
	if err := s.db.Store().Get(id, &doc); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("document %s: %w", id, interfaces.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("failed to get document record: %w", err)
	}
	return &doc, nil
}

// ListDocuments returns a session's documents, oldest first
func (s *MetadataStorage) ListDocuments(ctx context.Context, sessionID string) ([]models.DocumentRecord, error) {
	var docs []models.DocumentRecord
	err := s.db.Store().Find(&docs, badgerhold.Where("SessionID").Eq(sessionID).Index("SessionID").SortBy("CreatedAt"))
	if err != nil {
		return nil, fmt.Errorf("failed to list document records: %w", err)
	}
	return docs, nil
}

// ListQueries returns the queries asked against a document, oldest first
func (s *MetadataStorage) ListQueries(ctx context.Context, documentID string) ([]models.QueryRecord, error) {
	var queries []models.QueryRecord
	err := s.db.Store().Find(&queries, badgerhold.Where("DocumentID").Eq(documentID).Index("DocumentID").SortBy("CreatedAt"))
	if err != nil {
		return nil, fmt.Errorf("failed to list query records: %w", err)
	}
	return queries, nil
}

// ListChunks returns a document's chunks in chunk order
func (s *MetadataStorage) ListChunks(ctx context.Context, documentID string) ([]models.ChunkRecord, error) {
	var chunks []models.ChunkRecord
	err := s.db.Store().Find(&chunks, badgerhold.Where("DocumentID").Eq(documentID).Index("DocumentID").SortBy("Index"))
	if err != nil {
		return nil, fmt.Errorf("failed to list chunk records: %w", err)
	}
	return chunks, nil
}

// DeleteSession removes every record of a session and returns the number
// of documents deleted.
func (s *MetadataStorage) DeleteSession(ctx context.Context, sessionID string) (int, error) {
	docs, err := s.ListDocuments(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	store := s.db.Store()
	for _, doc := range docs {
		if err := store.DeleteMatching(&models.ChunkRecord{}, badgerhold.Where("DocumentID").Eq(doc.ID).Index("DocumentID")); err != nil {
			return 0, fmt.Errorf("failed to delete chunks of %s: %w", doc.ID, err)
		}
		if err := store.Delete(doc.ID, &models.DocumentRecord{}); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
			return 0, fmt.Errorf("failed to delete document %s: %w", doc.ID, err)
		}
	}

	if err := store.DeleteMatching(&models.QueryRecord{}, badgerhold.Where("SessionID").Eq(sessionID).Index("SessionID")); err != nil {
		return 0, fmt.Errorf("failed to delete queries: %w", err)
	}

	s.logger.Debug().Str("session_id", sessionID).Int("documents", len(docs)).Msg("Deleted session records")
	return len(docs), nil
}

func chunkRecordID(documentID string, index int) string {
	return fmt.Sprintf("%s_%05d", documentID, index)
}
