package interfaces

import (
	"github.com/ternarybob/docchat/internal/models"
)

// SessionStore is the process-wide keyed conversation store.
//
// Callers must hold Lock(id) across a read-generate-append cycle so that
// concurrent requests for the same session are serialised. Different
// session ids never block each other.
type SessionStore interface {
	Lock(sessionID string) (unlock func())
	History(sessionID string) []models.Turn
	Append(sessionID string, turns ...models.Turn)
	Delete(sessionID string) bool
}
