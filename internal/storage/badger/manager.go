package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docchat/internal/common"
	"github.com/ternarybob/docchat/internal/interfaces"
)

// Manager owns the Badger connection and the stores built on it
type Manager struct {
	db       *BadgerDB
	kv       *KVStorage
	metadata *MetadataStorage
	logger   arbor.ILogger
}

// NewManager opens the database and creates the KV and metadata stores
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:       db,
		kv:       NewKVStorage(db, logger),
		metadata: NewMetadataStorage(db, logger),
		logger:   logger,
	}

	logger.Info().Str("path", config.Path).Msg("Badger storage manager initialized")

	return manager, nil
}

// KeyValueStorage returns the KV store
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

// MetadataStorage returns the document and query record store
func (m *Manager) MetadataStorage() interfaces.MetadataStorage {
	return m.metadata
}

// Close closes the database
func (m *Manager) Close() error {
	return m.db.Close()
}
