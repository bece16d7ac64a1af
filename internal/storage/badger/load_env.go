package badger

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnvFile copies the variables of a .env file into the KV store so that
// API keys resolve without being exported to the process environment.
// A missing or unreadable file is not an error.
func (m *Manager) LoadEnvFile(ctx context.Context, filePath string) error {
	if _, err := os.Stat(filePath); errors.Is(err, fs.ErrNotExist) {
		m.logger.Debug().Str("file", filePath).Msg(".env file does not exist, skipping")
		return nil
	}

	values, err := godotenv.Read(filePath)
	if err != nil {
		m.logger.Warn().Err(err).Str("file", filePath).Msg("Failed to parse .env file")
		return nil
	}

	loaded, skipped, failed := 0, 0, 0
	for key, value := range values {
		if strings.TrimSpace(key) == "" || value == "" {
			skipped++
			continue
		}

		isNew, err := m.kv.Upsert(ctx, key, value, "Loaded from .env file")
		if err != nil {
			m.logger.Error().Err(err).Str("key", key).Msg("Failed to store variable from .env")
			failed++
			continue
		}

		if isNew {
			m.logger.Debug().Str("key", key).Msg("Loaded new variable from .env")
		} else {
			m.logger.Debug().Str("key", key).Msg("Updated existing variable from .env")
		}
		loaded++
	}

	m.logger.Debug().
		Str("file", filePath).
		Int("loaded", loaded).
		Int("skipped", skipped).
		Int("errors", failed).
		Msg("Finished loading variables from .env file")

	return nil
}
