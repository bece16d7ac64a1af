package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docchat/internal/common"
	"github.com/ternarybob/docchat/internal/interfaces"
	"github.com/ternarybob/docchat/internal/models"
)

func clearKeys(t *testing.T) {
	for _, name := range []string{
		"DOCCHAT_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY",
		"DOCCHAT_CLAUDE_API_KEY", "ANTHROPIC_API_KEY",
	} {
		t.Setenv(name, "")
	}
}

func TestNewProviders_Unconfigured(t *testing.T) {
	clearKeys(t)
	config := common.NewDefaultConfig()
	ctx := context.Background()

	providers, err := NewProviders(ctx, config, nil, arbor.NewLogger())
	require.NoError(t, err)

	_, err = providers.Embedder.Embed(ctx, "hello")
	assert.ErrorIs(t, err, interfaces.ErrProviderNotConfigured)

	_, err = providers.Generator.Generate(ctx, models.GenerateRequest{Parts: []models.Part{models.TextPart("hi")}})
	assert.ErrorIs(t, err, interfaces.ErrProviderNotConfigured)
}

func TestNewProviders_ClaudeUnconfiguredGeminiConfigured(t *testing.T) {
	clearKeys(t)
	t.Setenv("GEMINI_API_KEY", "test-key")

	config := common.NewDefaultConfig()
	config.LLM.DefaultProvider = common.LLMProviderClaude

	providers, err := NewProviders(context.Background(), config, nil, arbor.NewLogger())
	require.NoError(t, err)

	assert.IsType(t, &GeminiService{}, providers.Embedder)
	assert.IsType(t, Unconfigured{}, providers.Generator)
}

func TestNewProviders_EmptyModelIsConfigError(t *testing.T) {
	clearKeys(t)
	t.Setenv("GEMINI_API_KEY", "test-key")

	config := common.NewDefaultConfig()
	config.Gemini.EmbedModel = ""

	providers, err := NewProviders(context.Background(), config, nil, arbor.NewLogger())
	require.NoError(t, err)

	_, err = providers.Embedder.EmbedBatch(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, interfaces.ErrProviderNotConfigured)
}

func TestNewProviders_UnknownProvider(t *testing.T) {
	clearKeys(t)
	config := common.NewDefaultConfig()
	config.LLM.DefaultProvider = "mystery"

	_, err := NewProviders(context.Background(), config, nil, arbor.NewLogger())
	assert.Error(t, err)
}

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem([]models.Part{
		models.SystemPart("a"),
		models.SystemPart(" "),
		models.SystemPart("b"),
		models.TextPart("question"),
	})
	assert.Equal(t, "a\n\nb", system)
	require.Len(t, rest, 1)
	assert.Equal(t, "question", rest[0].Text)
}
