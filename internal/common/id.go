package common

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewRecordID generates a unique metadata record ID with the given prefix.
// Format: <prefix>_<uuid>
func NewRecordID(prefix string) string {
	return prefix + "_" + uuid.New().String()
}

// NewRequestID generates an ID for correlating a request across log lines
func NewRequestID() string {
	return uuid.New().String()
}

// HashBytes returns the hex-encoded SHA-256 of data
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
