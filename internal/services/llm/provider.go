package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docchat/internal/common"
	"github.com/ternarybob/docchat/internal/interfaces"
	"github.com/ternarybob/docchat/internal/models"
)

// Providers bundles the embedder and generator the pipelines use
type Providers struct {
	Embedder  interfaces.Embedder
	Generator interfaces.Generator
	Provider  common.LLMProvider
}

// NewProviders builds the embedder (always Gemini) and the generator for the
// configured default provider. A provider that is not configured is replaced
// by Unconfigured so the service can start and report config_error per request.
func NewProviders(ctx context.Context, config *common.Config, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) (*Providers, error) {
	providers := &Providers{Provider: config.LLM.DefaultProvider}

	gemini, geminiErr := NewGeminiService(ctx, &config.Gemini, kvStorage, logger)
	switch {
	case geminiErr == nil:
		providers.Embedder = gemini
	case errors.Is(geminiErr, interfaces.ErrProviderNotConfigured):
		logger.Warn().Err(geminiErr).Msg("Gemini not configured, embedding and Gemini generation disabled")
		providers.Embedder = Unconfigured{Err: geminiErr}
	default:
		return nil, geminiErr
	}

	switch config.LLM.DefaultProvider {
	case common.LLMProviderClaude:
		claude, err := NewClaudeService(ctx, &config.Claude, kvStorage, logger)
		switch {
		case err == nil:
			providers.Generator = claude
		case errors.Is(err, interfaces.ErrProviderNotConfigured):
			logger.Warn().Err(err).Msg("Claude not configured, generation disabled")
			providers.Generator = Unconfigured{Err: err}
		default:
			return nil, err
		}
	case common.LLMProviderGemini, "":
		if geminiErr == nil {
			providers.Generator = gemini
		} else {
			providers.Generator = Unconfigured{Err: geminiErr}
		}
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", config.LLM.DefaultProvider)
	}

	return providers, nil
}

// Unconfigured stands in for a provider whose key or model is missing.
// Every call fails with Err, which wraps interfaces.ErrProviderNotConfigured.
type Unconfigured struct {
	Err error
}

var (
	_ interfaces.Embedder  = Unconfigured{}
	_ interfaces.Generator = Unconfigured{}
)

func (u Unconfigured) err() error {
	if u.Err != nil {
		return u.Err
	}
	return interfaces.ErrProviderNotConfigured
}

func (u Unconfigured) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, u.err()
}

func (u Unconfigured) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, u.err()
}

func (u Unconfigured) Generate(ctx context.Context, req models.GenerateRequest) (*models.Generation, error) {
	return nil, u.err()
}
