package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/ternarybob/docchat/internal/interfaces"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
	Chunking    ChunkingConfig  `toml:"chunking"`
	Retrieval   RetrievalConfig `toml:"retrieval"`
	PDF         PDFConfig       `toml:"pdf"`
	Sessions    SessionsConfig  `toml:"sessions"`
	Uploads     UploadsConfig   `toml:"uploads"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gte=0,lte=65535"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Enabled bool         `toml:"enabled"` // Record document/query metadata in Badger
	Badger  BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Output []string `toml:"output"` // "stdout", "file"
}

// GeminiConfig contains Google Gemini configuration for generation and embeddings
type GeminiConfig struct {
	APIKey         string  `toml:"api_key"`         // Resolved env -> KV -> this value
	TextModel      string  `toml:"text_model"`      // Model for text and PDF answers
	VisionModel    string  `toml:"vision_model"`    // Model for image questions
	EmbedModel     string  `toml:"embed_model"`     // Model for chunk and query embeddings
	EmbedDimension int     `toml:"embed_dimension"` // 0 keeps the model's native size
	Timeout        string  `toml:"timeout"`         // Per-call timeout as duration string
	RateLimit      string  `toml:"rate_limit"`      // Minimum interval between calls, "0s" disables
	Temperature    float32 `toml:"temperature"`     // 0 keeps the model default
}

// ClaudeConfig contains Anthropic Claude configuration, used as an alternative generator
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens" validate:"gte=0"`
	Timeout     string  `toml:"timeout"`
	RateLimit   string  `toml:"rate_limit"`
	Temperature float32 `toml:"temperature"`
}

// LLMProvider represents the generation provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig selects the generation provider. Embeddings always use Gemini.
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider" validate:"omitempty,oneof=gemini claude"`
}

// ChunkingConfig controls how extracted PDF text is split
type ChunkingConfig struct {
	Size    int `toml:"size" validate:"gt=0"`
	Overlap int `toml:"overlap" validate:"gte=0,ltfield=Size"`
}

type RetrievalConfig struct {
	TopK int `toml:"top_k" validate:"gt=0"`
}

type PDFConfig struct {
	Temperature float32 `toml:"temperature" validate:"gte=0,lte=2"`
	CacheIndex  bool    `toml:"cache_index"` // Reuse a session's index while the same PDF is asked about
}

// SessionsConfig bounds the in-memory conversation store
type SessionsConfig struct {
	TTL           string `toml:"ttl"` // Idle time before a session is evicted
	MaxSessions   int    `toml:"max_sessions" validate:"gte=0"`
	SweepInterval string `toml:"sweep_interval"` // How often expired sessions are swept
}

type UploadsConfig struct {
	MaxBytes int64 `toml:"max_bytes" validate:"gt=0"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8000,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Enabled: true,
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Gemini: GeminiConfig{
			TextModel:   "models/gemini-flash-latest",
			VisionModel: "models/gemini-2.5-flash",
			EmbedModel:  "models/text-embedding-004",
			Timeout:     "2m",
			RateLimit:   "0s",
		},
		Claude: ClaudeConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 4096,
			Timeout:   "2m",
			RateLimit: "0s",
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
		},
		Chunking: ChunkingConfig{
			Size:    10000,
			Overlap: 1000,
		},
		Retrieval: RetrievalConfig{
			TopK: 4,
		},
		PDF: PDFConfig{
			Temperature: 0.5,
			CacheIndex:  true,
		},
		Sessions: SessionsConfig{
			TTL:           "1h",
			MaxSessions:   1000,
			SweepInterval: "5m",
		},
		Uploads: UploadsConfig{
			MaxBytes: 32 << 20,
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files. CLI flags are applied afterwards with ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadDotEnv loads KEY=value pairs from .env files into the process environment.
// Variables already set in the environment win. Missing files are skipped.
func LoadDotEnv(paths ...string) (int, error) {
	loaded := 0
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return loaded, fmt.Errorf("failed to load %s: %w", path, err)
		}
		loaded++
	}
	return loaded, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("DOCCHAT_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("DOCCHAT_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("DOCCHAT_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if level := os.Getenv("DOCCHAT_LOG_LEVEL"); level != "" {
		config.Logging.Level = strings.ToLower(level)
	}

	if path := os.Getenv("DOCCHAT_STORAGE_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}

	// Model names: DOCCHAT_* first, then the bare names used by older deployments
	config.Gemini.TextModel = firstEnv(config.Gemini.TextModel, "DOCCHAT_GEMINI_TEXT_MODEL", "GEMINI_TEXT_MODEL")
	config.Gemini.VisionModel = firstEnv(config.Gemini.VisionModel, "DOCCHAT_GEMINI_VISION_MODEL", "GEMINI_VISION_MODEL")
	config.Gemini.EmbedModel = firstEnv(config.Gemini.EmbedModel, "DOCCHAT_GEMINI_EMBED_MODEL", "GEMINI_EMBED_MODEL")

	if provider := os.Getenv("DOCCHAT_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(provider))
	}
}

func firstEnv(current string, names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return current
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks value ranges and duration strings
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	durations := map[string]string{
		"gemini.timeout":          c.Gemini.Timeout,
		"gemini.rate_limit":       c.Gemini.RateLimit,
		"claude.timeout":          c.Claude.Timeout,
		"claude.rate_limit":       c.Claude.RateLimit,
		"sessions.ttl":            c.Sessions.TTL,
		"sessions.sweep_interval": c.Sessions.SweepInterval,
	}
	for name, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid configuration: %s %q: %w", name, value, err)
		}
	}

	return nil
}

// IsProduction reports whether the environment is production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// ParseDuration parses a duration string, returning fallback when empty or invalid
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// keyToEnvMapping maps KV key names to environment variables, most specific first
var keyToEnvMapping = map[string][]string{
	"gemini_api_key":    {"DOCCHAT_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"anthropic_api_key": {"DOCCHAT_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
}

// ResolveAPIKey resolves an API key by name.
// Resolution order: environment variables -> KV store -> config fallback -> ErrProviderNotConfigured
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	for _, envVarName := range keyToEnvMapping[name] {
		if envValue := os.Getenv(envVarName); envValue != "" {
			return envValue, nil
		}
	}

	if kvStorage != nil {
		apiKey, err := kvStorage.Get(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment, KV store, or config: %w", name, interfaces.ErrProviderNotConfigured)
}
