package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/ternarybob/docchat/internal/common"
	"github.com/ternarybob/docchat/internal/interfaces"
	"github.com/ternarybob/docchat/internal/models"
)

// providerFormats are image types every supported provider accepts as-is
var providerFormats = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

// ImageRequest is a single stateless question about an uploaded image
type ImageRequest struct {
	SessionID    string
	SystemPrompt string
	Prompt       string
	FileName     string
	Data         []byte
}

// Image answers a question about an image. No history is read or written.
func (s *Service) Image(ctx context.Context, req ImageRequest) models.Outcome {
	started := s.now()

	if strings.TrimSpace(req.SessionID) == "" {
		return s.fail(fmt.Errorf("%w: session_id", interfaces.ErrMissingField), models.DocumentImage, req.SessionID)
	}
	if len(req.Data) == 0 {
		return s.fail(fmt.Errorf("%w: image", interfaces.ErrMissingField), models.DocumentImage, req.SessionID)
	}

	img, format, err := decodeImage(req.Data)
	if err != nil {
		return s.fail(err, models.DocumentImage, req.SessionID)
	}

	doc := &models.DocumentRecord{
		ID:        common.NewRecordID("doc"),
		SessionID: req.SessionID,
		Kind:      models.DocumentImage,
		FileName:  req.FileName,
		FileSize:  int64(len(req.Data)),
		FileHash:  common.HashBytes(req.Data),
		MIMEType:  img.MIMEType,
		Width:     img.Width,
		Height:    img.Height,
		Format:    format,
		CreatedAt: s.now(),
	}
	s.recordDocument(ctx, doc, nil)

	parts := make([]models.Part, 0, 3)
	if strings.TrimSpace(req.SystemPrompt) != "" {
		parts = append(parts, models.SystemPart(req.SystemPrompt))
	}
	if strings.TrimSpace(req.Prompt) != "" {
		parts = append(parts, models.TextPart(req.Prompt))
	}
	parts = append(parts, models.ImagePart(img))

	gen, err := s.generator.Generate(ctx, models.GenerateRequest{Parts: parts, Vision: true})

	var outcome models.Outcome
	if err != nil {
		outcome = s.fail(err, models.DocumentImage, req.SessionID)
	} else {
		if gen.Blocked {
			s.logger.Warn().
				Str("session_id", req.SessionID).
				Str("block_reason", gen.BlockReason).
				Msg("Image response blocked")
		}
		outcome = answer(gen)
	}

	s.recordQuery(ctx, &models.QueryRecord{
		DocumentID: doc.ID,
		SessionID:  req.SessionID,
		Kind:       models.DocumentImage,
		QueryText:  req.Prompt,
	}, started, outcome)

	s.logger.Info().
		Str("session_id", req.SessionID).
		Str("format", format).
		Int("width", img.Width).
		Int("height", img.Height).
		Str("status", string(outcome.Status)).
		Msg("Image request completed")

	return outcome
}

// decodeImage validates the upload and returns it in a provider-accepted
// encoding. Formats outside providerFormats are re-encoded as PNG.
func decodeImage(data []byte) (*models.Image, string, error) {
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, "", fmt.Errorf("%w: detected %s", interfaces.ErrUnsupportedImage, mtype.String())
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", interfaces.ErrUnsupportedImage, err)
	}

	img := &models.Image{
		Data:     data,
		MIMEType: mtype.String(),
		Width:    cfg.Width,
		Height:   cfg.Height,
	}
	if providerFormats[img.MIMEType] {
		return img, format, nil
	}

	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", interfaces.ErrUnsupportedImage, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, decoded); err != nil {
		return nil, "", fmt.Errorf("%w: re-encode failed: %w", interfaces.ErrUnsupportedImage, err)
	}
	img.Data = buf.Bytes()
	img.MIMEType = "image/png"

	return img, format, nil
}
