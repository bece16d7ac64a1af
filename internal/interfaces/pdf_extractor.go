package interfaces

import (
	"context"

	"github.com/ternarybob/docchat/internal/models"
)

// PDFExtractor converts PDF bytes into page-ordered linear text.
// A readable PDF with no text layer yields empty Text and a nil error;
// a corrupt file wraps ErrUnreadablePDF.
type PDFExtractor interface {
	Extract(ctx context.Context, data []byte) (*models.ExtractedPDF, error)
}
