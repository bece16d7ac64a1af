package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and logs the effective settings
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.Print("docchat", GetVersion())

	logger.Info().
		Str("version", GetFullVersion()).
		Str("environment", config.Environment).
		Str("provider", string(config.LLM.DefaultProvider)).
		Str("text_model", config.Gemini.TextModel).
		Str("vision_model", config.Gemini.VisionModel).
		Str("embed_model", config.Gemini.EmbedModel).
		Int("chunk_size", config.Chunking.Size).
		Int("chunk_overlap", config.Chunking.Overlap).
		Int("top_k", config.Retrieval.TopK).
		Bool("metadata_storage", config.Storage.Enabled).
		Msg("docchat starting")
}
