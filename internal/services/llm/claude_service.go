package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/docchat/internal/common"
	"github.com/ternarybob/docchat/internal/interfaces"
	"github.com/ternarybob/docchat/internal/models"
)

// ClaudeService implements Generator using the Anthropic Claude API.
// Claude has no embedding endpoint, so retrieval still embeds with Gemini.
type ClaudeService struct {
	config    *common.ClaudeConfig
	logger    arbor.ILogger
	client    anthropic.Client
	timeout   time.Duration
	maxTokens int
	limiter   *rate.Limiter
}

// Compile-time interface assertion
var _ interfaces.Generator = (*ClaudeService)(nil)

// NewClaudeService creates a new Claude generator.
//
// The API key is resolved from ANTHROPIC_API_KEY / DOCCHAT_CLAUDE_API_KEY,
// the KV store, then claude.api_key. A missing key or model wraps
// interfaces.ErrProviderNotConfigured.
func NewClaudeService(ctx context.Context, config *common.ClaudeConfig, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) (*ClaudeService, error) {
	apiKey, err := common.ResolveAPIKey(ctx, kvStorage, "anthropic_api_key", config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not configured (set ANTHROPIC_API_KEY, DOCCHAT_CLAUDE_API_KEY or claude.api_key): %w", err)
	}

	if strings.TrimSpace(config.Model) == "" {
		return nil, fmt.Errorf("claude.model is empty: %w", interfaces.ErrProviderNotConfigured)
	}

	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	service := &ClaudeService{
		config:    config,
		logger:    logger,
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		timeout:   common.ParseDuration(config.Timeout, 2*time.Minute),
		maxTokens: maxTokens,
		limiter:   newLimiter(common.ParseDuration(config.RateLimit, 0)),
	}

	logger.Info().
		Str("model", config.Model).
		Int("max_tokens", maxTokens).
		Dur("timeout", service.timeout).
		Msg("Claude service initialized")

	return service, nil
}

// Generate produces a response for the ordered prompt parts, continuing the
// supplied history. A refusal or an empty reply is a blocked outcome.
func (s *ClaudeService) Generate(ctx context.Context, req models.GenerateRequest) (*models.Generation, error) {
	messages, systemText, err := buildClaudeMessages(req)
	if err != nil {
		return nil, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(s.maxTokens),
		Messages:  messages,
	}

	if req.Temperature != nil {
		params.Temperature = anthropic.Float(float64(*req.Temperature))
	} else if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.config.Temperature))
	}

	if systemText != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemText},
		}
	}

	if err := wait(ctx, s.limiter); err != nil {
		return nil, fmt.Errorf("%w: %w", interfaces.ErrGeneration, err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	startTime := time.Now()
	resp, err := s.client.Messages.New(timeoutCtx, params)
	if err != nil {
		s.logger.Error().
			Err(err).
			Bool("rate_limited", IsRateLimitError(err)).
			Msg("Claude generation failed")
		return nil, fmt.Errorf("%w: %w", interfaces.ErrGeneration, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	generation := &models.Generation{Text: text.String(), Model: s.config.Model}
	switch {
	case resp.StopReason == "refusal":
		generation = &models.Generation{Blocked: true, BlockReason: "refusal", Model: s.config.Model}
	case strings.TrimSpace(generation.Text) == "":
		generation = &models.Generation{Blocked: true, BlockReason: "empty response", Model: s.config.Model}
	}

	s.logger.Debug().
		Str("model", s.config.Model).
		Int("history", len(req.History)).
		Int("response_length", len(generation.Text)).
		Bool("blocked", generation.Blocked).
		Dur("duration", time.Since(startTime)).
		Msg("Claude generation completed")

	return generation, nil
}

// buildClaudeMessages converts history plus the new parts into Claude messages.
// Leading system parts are returned separately for the System parameter.
func buildClaudeMessages(req models.GenerateRequest) ([]anthropic.MessageParam, string, error) {
	systemText, rest := splitSystem(req.Parts)
	if !hasContent(rest) {
		return nil, "", fmt.Errorf("prompt has no user content: %w", interfaces.ErrMissingField)
	}

	messages := make([]anthropic.MessageParam, 0, len(req.History)+1)
	for _, turn := range req.History {
		if turn.Role == models.RoleModel {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Text)))
		} else {
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Text)))
		}
	}

	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(rest))
	for _, p := range rest {
		switch p.Kind {
		case models.PartImage:
			if p.Image == nil || len(p.Image.Data) == 0 {
				continue
			}
			blocks = append(blocks, anthropic.NewImageBlockBase64(p.Image.MIMEType, base64.StdEncoding.EncodeToString(p.Image.Data)))
		default:
			if strings.TrimSpace(p.Text) == "" {
				continue
			}
			blocks = append(blocks, anthropic.NewTextBlock(p.Text))
		}
	}

	messages = append(messages, anthropic.NewUserMessage(blocks...))
	return messages, systemText, nil
}
