package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ternarybob/docchat/internal/app"
	"github.com/ternarybob/docchat/internal/models"
	"github.com/ternarybob/docchat/internal/services/pipeline"
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask a single question without starting the server",
	Long: `Runs one question through the text, image or PDF pipeline and prints the
outcome as JSON. Use --session to continue a text conversation within one run.`,
	Example: `  docchat ask --prompt "Summarise this" --pdf report.pdf
  docchat ask --prompt "What is in the picture?" --image photo.png
  docchat ask --prompt "Hello" --system "Answer briefly"`,
	RunE: runAsk,
}

var (
	askPrompt  string
	askSystem  string
	askSession string
	askPDF     string
	askImage   string
)

func init() {
	askCmd.Flags().StringVar(&askPrompt, "prompt", "", "Question or instruction")
	askCmd.Flags().StringVar(&askSystem, "system", "", "Optional system prompt (text and image only)")
	askCmd.Flags().StringVar(&askSession, "session", "cli", "Session identifier")
	askCmd.Flags().StringVar(&askPDF, "pdf", "", "Path to a PDF to ask about")
	askCmd.Flags().StringVar(&askImage, "image", "", "Path to an image to ask about")
	askCmd.MarkFlagsMutuallyExclusive("pdf", "image")
}

func runAsk(cmd *cobra.Command, args []string) error {
	application, err := app.New(config, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	outcome, err := ask(cmd.Context(), application.Pipelines)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(outcome); err != nil {
		return err
	}

	if !outcome.OK() {
		return errors.New(string(outcome.Status))
	}
	return nil
}

func ask(ctx context.Context, pipelines *pipeline.Service) (models.Outcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case askPDF != "":
		data, err := os.ReadFile(askPDF)
		if err != nil {
			return models.Outcome{}, fmt.Errorf("failed to read PDF: %w", err)
		}
		return pipelines.PDF(ctx, pipeline.PDFRequest{
			SessionID: askSession,
			Prompt:    askPrompt,
			FileName:  filepath.Base(askPDF),
			Data:      data,
		}), nil

	case askImage != "":
		data, err := os.ReadFile(askImage)
		if err != nil {
			return models.Outcome{}, fmt.Errorf("failed to read image: %w", err)
		}
		return pipelines.Image(ctx, pipeline.ImageRequest{
			SessionID:    askSession,
			SystemPrompt: askSystem,
			Prompt:       askPrompt,
			FileName:     filepath.Base(askImage),
			Data:         data,
		}), nil

	default:
		return pipelines.Text(ctx, pipeline.TextRequest{
			SessionID:    askSession,
			SystemPrompt: askSystem,
			Prompt:       askPrompt,
		}), nil
	}
}
