package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/ternarybob/docchat/internal/models"
)

// TranscriptRenderer renders a session's conversation history as a PDF.
// Model answers are Markdown and are rendered with basic formatting.
type TranscriptRenderer struct {
	logger arbor.ILogger
	md     goldmark.Markdown
}

// NewTranscriptRenderer creates a transcript renderer
func NewTranscriptRenderer(logger arbor.ILogger) *TranscriptRenderer {
	return &TranscriptRenderer{
		logger: logger,
		md:     goldmark.New(goldmark.WithExtensions(extension.Strikethrough)),
	}
}

// Render returns PDF bytes for the given history. An empty history still
// produces a one-page document with the header.
func (t *TranscriptRenderer) Render(sessionID string, history []models.Turn, generatedAt time.Time) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(15, 15, 15)
	doc.SetAutoPageBreak(true, 15)
	doc.SetTitle("docchat transcript "+sessionID, true)
	doc.AddPage()

	tr := doc.UnicodeTranslatorFromDescriptor("")

	doc.SetFont("Arial", "B", 14)
	doc.MultiCell(0, 7, tr("Session "+sessionID), "", "L", false)
	doc.SetFont("Arial", "", 8)
	doc.MultiCell(0, 5, generatedAt.UTC().Format(time.RFC3339), "", "L", false)
	doc.Ln(4)

	for i, turn := range history {
		label := "You"
		if turn.Role == models.RoleModel {
			label = "Assistant"
		}

		doc.SetFont("Arial", "B", 10)
		doc.MultiCell(0, 6, fmt.Sprintf("%d. %s", i+1, label), "", "L", false)
		doc.SetFont("Arial", "", 9)

		if turn.Role == models.RoleModel {
			source := []byte(turn.Text)
			r := &markdownWriter{pdf: doc, source: source, tr: tr}
			if err := ast.Walk(t.md.Parser().Parse(text.NewReader(source)), r.walk); err != nil {
				return nil, fmt.Errorf("failed to render answer %d: %w", i+1, err)
			}
		} else {
			doc.MultiCell(0, 5, tr(turn.Text), "", "L", false)
		}
		doc.Ln(3)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to render transcript")
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}

	t.logger.Debug().
		Str("session_id", sessionID).
		Int("turns", len(history)).
		Int("pdf_size", buf.Len()).
		Msg("Transcript rendered")

	return buf.Bytes(), nil
}

// markdownWriter walks a goldmark AST and writes it to the PDF
type markdownWriter struct {
	pdf    *fpdf.Fpdf
	source []byte
	tr     func(string) string
	bold   bool
	italic bool
	depth  int
}

func (w *markdownWriter) style() {
	s := ""
	if w.bold {
		s += "B"
	}
	if w.italic {
		s += "I"
	}
	w.pdf.SetFont("Arial", s, 9)
}

func (w *markdownWriter) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		if entering {
			w.pdf.Ln(2)
			w.pdf.SetFont("Arial", "B", 12-float64(min(node.Level, 3)))
		} else {
			w.pdf.Ln(6)
			w.style()
		}
	case *ast.Paragraph:
		if !entering {
			w.pdf.Ln(6)
		}
	case *ast.Text:
		if entering {
			w.pdf.Write(5, w.tr(string(node.Segment.Value(w.source))))
			if node.SoftLineBreak() {
				w.pdf.Write(5, " ")
			}
			if node.HardLineBreak() {
				w.pdf.Ln(5)
			}
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			w.bold = entering
		} else {
			w.italic = entering
		}
		w.style()
	case *ast.CodeSpan:
		if entering {
			w.pdf.SetFont("Courier", "", 9)
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					w.pdf.Write(5, w.tr(string(t.Segment.Value(w.source))))
				}
			}
			w.style()
		}
		return ast.WalkSkipChildren, nil
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		if entering {
			w.codeBlock(n.Lines())
		}
		return ast.WalkSkipChildren, nil
	case *ast.List:
		if entering {
			w.depth++
		} else {
			w.depth--
			w.pdf.Ln(2)
		}
	case *ast.ListItem:
		if entering {
			w.pdf.Ln(5)
			w.pdf.SetX(15 + float64(w.depth)*5)
			w.pdf.Write(5, "- ")
		}
	case *ast.ThematicBreak:
		if entering {
			w.pdf.Ln(2)
			w.pdf.Line(15, w.pdf.GetY(), 195, w.pdf.GetY())
			w.pdf.Ln(2)
		}
	}
	return ast.WalkContinue, nil
}

func (w *markdownWriter) codeBlock(lines *text.Segments) {
	w.pdf.Ln(2)
	w.pdf.SetFont("Courier", "", 8)
	w.pdf.SetFillColor(245, 245, 245)
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		w.pdf.MultiCell(0, 4, w.tr(string(segment.Value(w.source))), "", "L", true)
	}
	w.pdf.SetFillColor(255, 255, 255)
	w.style()
	w.pdf.Ln(2)
}
