package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/ternarybob/docchat/internal/common"
	"github.com/ternarybob/docchat/internal/interfaces"
	"github.com/ternarybob/docchat/internal/models"
)

// Embedding task types understood by the Gemini embedding models
const (
	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	taskRetrievalQuery    = "RETRIEVAL_QUERY"
)

// maxEmbedBatch is the largest number of contents sent in one EmbedContent call
const maxEmbedBatch = 100

// GeminiService implements both Embedder and Generator using Google Gemini.
type GeminiService struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	client  *genai.Client
	timeout time.Duration
	limiter *rate.Limiter
}

// Compile-time interface assertions
var (
	_ interfaces.Embedder  = (*GeminiService)(nil)
	_ interfaces.Generator = (*GeminiService)(nil)
)

// NewGeminiService creates a new Gemini service instance.
//
// The service initialization includes:
//  1. Resolving the API key (env -> KV store -> config)
//  2. Checking that the text, vision and embedding model names are set
//  3. Parsing timeout and rate limit durations
//  4. Creating the genai client
//
// Errors wrap interfaces.ErrProviderNotConfigured when the key or a model
// name is missing, so callers can keep running with an unconfigured provider.
func NewGeminiService(ctx context.Context, config *common.GeminiConfig, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) (*GeminiService, error) {
	apiKey, err := common.ResolveAPIKey(ctx, kvStorage, "gemini_api_key", config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("GEMINI_API_KEY not configured (set DOCCHAT_GEMINI_API_KEY, GEMINI_API_KEY or gemini.api_key): %w", err)
	}

	for name, value := range map[string]string{
		"gemini.text_model":   config.TextModel,
		"gemini.vision_model": config.VisionModel,
		"gemini.embed_model":  config.EmbedModel,
	} {
		if strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("%s is empty: %w", name, interfaces.ErrProviderNotConfigured)
		}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	service := &GeminiService{
		config:  config,
		logger:  logger,
		client:  client,
		timeout: common.ParseDuration(config.Timeout, 2*time.Minute),
		limiter: newLimiter(common.ParseDuration(config.RateLimit, 0)),
	}

	logger.Info().
		Str("text_model", config.TextModel).
		Str("vision_model", config.VisionModel).
		Str("embed_model", config.EmbedModel).
		Dur("timeout", service.timeout).
		Msg("Gemini service initialized")

	return service, nil
}

// Embed generates an embedding vector for a query string.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - text: Query text, must not be blank
//
// Returns:
//   - []float32: embedding vector
//   - error: wraps interfaces.ErrEmbeddingService on provider failure
func (s *GeminiService) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty for embedding generation: %w", interfaces.ErrEmptyInput)
	}

	vectors, err := s.embedContents(ctx, []string{text}, taskRetrievalQuery)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates one embedding per text, preserving input order.
// Texts are sent in batches of at most 100. Any failed batch fails the
// whole call; no partial result is returned.
func (s *GeminiService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	startTime := time.Now()

	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := min(start+maxEmbedBatch, len(texts))
		batch, err := s.embedContents(ctx, texts[start:end], taskRetrievalDocument)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}

	s.logger.Debug().
		Int("texts", len(texts)).
		Dur("duration", time.Since(startTime)).
		Msg("Batch embedding completed")

	return vectors, nil
}

func (s *GeminiService) embedContents(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if err := wait(ctx, s.limiter); err != nil {
		return nil, fmt.Errorf("%w: %w", interfaces.ErrEmbeddingService, err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	embedConfig := &genai.EmbedContentConfig{TaskType: taskType}
	if s.config.EmbedDimension > 0 {
		outputDim := int32(s.config.EmbedDimension)
		embedConfig.OutputDimensionality = &outputDim
	}

	result, err := s.client.Models.EmbedContent(timeoutCtx, s.config.EmbedModel, contents, embedConfig)
	if err != nil {
		s.logProviderError(err, "Embedding generation failed")
		return nil, fmt.Errorf("%w: %w", interfaces.ErrEmbeddingService, err)
	}

	if result == nil || len(result.Embeddings) != len(texts) {
		got := 0
		if result != nil {
			got = len(result.Embeddings)
		}
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", interfaces.ErrEmbeddingService, len(texts), got)
	}

	vectors := make([][]float32, len(texts))
	for i, embedding := range result.Embeddings {
		if embedding == nil || len(embedding.Values) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at position %d", interfaces.ErrEmbeddingService, i)
		}
		vectors[i] = embedding.Values
	}

	return vectors, nil
}

// Generate produces a response for the ordered prompt parts, continuing the
// supplied history. Blocked or empty results come back as a Generation with
// Blocked set and a nil error.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - req: prompt parts in caller order, read-only history, optional temperature
//
// Returns:
//   - *models.Generation: generated text or a blocked outcome
//   - error: wraps interfaces.ErrGeneration on provider failure
func (s *GeminiService) Generate(ctx context.Context, req models.GenerateRequest) (*models.Generation, error) {
	model := s.config.TextModel
	if req.Vision {
		model = s.config.VisionModel
	}

	contents, systemText, err := buildGeminiContents(req)
	if err != nil {
		return nil, err
	}

	genConfig := &genai.GenerateContentConfig{}
	if systemText != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}
	if req.Temperature != nil {
		genConfig.Temperature = genai.Ptr(*req.Temperature)
	} else if s.config.Temperature > 0 {
		genConfig.Temperature = genai.Ptr(s.config.Temperature)
	}

	if err := wait(ctx, s.limiter); err != nil {
		return nil, fmt.Errorf("%w: %w", interfaces.ErrGeneration, err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	startTime := time.Now()
	resp, err := s.client.Models.GenerateContent(timeoutCtx, model, contents, genConfig)
	if err != nil {
		s.logProviderError(err, "Gemini generation failed")
		return nil, fmt.Errorf("%w: %w", interfaces.ErrGeneration, err)
	}

	generation := geminiGeneration(resp)
	generation.Model = model

	s.logger.Debug().
		Str("model", model).
		Int("history", len(req.History)).
		Int("response_length", len(generation.Text)).
		Bool("blocked", generation.Blocked).
		Dur("duration", time.Since(startTime)).
		Msg("Gemini generation completed")

	return generation, nil
}

func (s *GeminiService) logProviderError(err error, msg string) {
	event := s.logger.Error().Err(err).Bool("rate_limited", IsRateLimitError(err))
	if delay := ExtractRetryDelay(err); delay > 0 {
		event = event.Dur("retry_after", delay)
	}
	event.Msg(msg)
}

// Close releases the client reference. genai.Client needs no explicit cleanup.
func (s *GeminiService) Close() error {
	s.client = nil
	return nil
}

// buildGeminiContents converts history plus the new parts into Gemini contents.
// Leading system parts are returned separately for SystemInstruction.
func buildGeminiContents(req models.GenerateRequest) ([]*genai.Content, string, error) {
	systemText, rest := splitSystem(req.Parts)
	if !hasContent(rest) {
		return nil, "", fmt.Errorf("prompt has no user content: %w", interfaces.ErrMissingField)
	}

	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, turn := range req.History {
		content := &genai.Content{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{genai.NewPartFromText(turn.Text)},
		}
		if turn.Role == models.RoleModel {
			content.Role = genai.RoleModel
		}
		contents = append(contents, content)
	}

	userParts := make([]*genai.Part, 0, len(rest))
	for _, p := range rest {
		switch p.Kind {
		case models.PartImage:
			if p.Image == nil || len(p.Image.Data) == 0 {
				continue
			}
			userParts = append(userParts, genai.NewPartFromBytes(p.Image.Data, p.Image.MIMEType))
		default:
			if strings.TrimSpace(p.Text) == "" {
				continue
			}
			userParts = append(userParts, genai.NewPartFromText(p.Text))
		}
	}

	contents = append(contents, &genai.Content{
		Role:  genai.RoleUser,
		Parts: userParts,
	})

	return contents, systemText, nil
}

// geminiGeneration maps a response to a Generation. A prompt-level block,
// no candidates, or a first candidate with no text parts is a blocked outcome.
func geminiGeneration(resp *genai.GenerateContentResponse) *models.Generation {
	if resp == nil {
		return &models.Generation{Blocked: true, BlockReason: "empty response"}
	}

	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified {
		return &models.Generation{Blocked: true, BlockReason: string(fb.BlockReason)}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return &models.Generation{Blocked: true, BlockReason: "no candidates"}
	}

	candidate := resp.Candidates[0]
	var text strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			text.WriteString(part.Text)
		}
	}

	if strings.TrimSpace(text.String()) == "" {
		reason := string(candidate.FinishReason)
		if reason == "" {
			reason = "empty response"
		}
		return &models.Generation{Blocked: true, BlockReason: reason}
	}

	return &models.Generation{Text: text.String()}
}
