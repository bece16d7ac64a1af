// -----------------------------------------------------------------------
// PDF Extractor Service - Extract page-ordered text from PDF uploads
// pdfcpu validates structure and encryption, ledongthuc/pdf reads the text layer
// -----------------------------------------------------------------------

package pdf

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docchat/internal/common"
	"github.com/ternarybob/docchat/internal/interfaces"
	"github.com/ternarybob/docchat/internal/models"
)

// pageSeparator joins the text of consecutive non-empty pages
const pageSeparator = "\n\n"

// Extractor implements the PDFExtractor interface
type Extractor struct {
	logger arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.PDFExtractor = (*Extractor)(nil)

// NewExtractor creates a new PDF extractor service
func NewExtractor(logger arbor.ILogger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract returns the text of every page in page order. Pages without a
// text layer contribute nothing. A readable PDF with no text at all yields
// empty Text and a nil error; a corrupt or encrypted file wraps ErrUnreadablePDF.
func (e *Extractor) Extract(ctx context.Context, data []byte) (*models.ExtractedPDF, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty upload: %w", interfaces.ErrUnreadablePDF)
	}

	var result *models.ExtractedPDF
	err := common.WithTempFile("docchat-*.pdf", data, func(path string) error {
		pageCount, err := e.inspect(path)
		if err != nil {
			return err
		}

		result, err = e.readText(ctx, path, pageCount)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debug().
		Int("page_count", result.PageCount).
		Int("text_pages", len(result.Pages)).
		Int("text_length", len(result.Text)).
		Msg("Extracted PDF text")

	return result, nil
}

// inspect validates the file with pdfcpu and returns its page count.
// A pdfcpu failure alone is not fatal: some files that fail strict
// validation still have a usable text layer. Encryption is.
func (e *Extractor) inspect(path string) (int, error) {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		e.logger.Warn().Err(err).Msg("pdfcpu could not validate PDF, falling back to text reader")
		return 0, nil
	}

	if pdfCtx.Encrypt != nil {
		return 0, fmt.Errorf("encrypted PDF: %w", interfaces.ErrUnreadablePDF)
	}

	return pdfCtx.PageCount, nil
}

func (e *Extractor) readText(ctx context.Context, path string, pageCount int) (result *models.ExtractedPDF, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%v: %w", r, interfaces.ErrUnreadablePDF)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", interfaces.ErrUnreadablePDF, err)
	}
	defer f.Close()

	total := reader.NumPage()
	if pageCount == 0 {
		pageCount = total
	}

	result = &models.ExtractedPDF{PageCount: pageCount}
	var text strings.Builder
	offset := 0

	for pageIndex := 1; pageIndex <= total; pageIndex++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Warn().Err(err).Int("page_number", pageIndex).Msg("Failed to extract text from page")
			continue
		}

		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}

		if text.Len() > 0 {
			text.WriteString(pageSeparator)
			offset += utf8.RuneCountInString(pageSeparator)
		}

		length := utf8.RuneCountInString(pageText)
		result.Pages = append(result.Pages, models.PageSpan{
			Number: pageIndex,
			Start:  offset,
			End:    offset + length,
		})
		text.WriteString(pageText)
		offset += length
	}

	result.Text = text.String()
	return result, nil
}
