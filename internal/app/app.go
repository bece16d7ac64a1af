package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docchat/internal/common"
	"github.com/ternarybob/docchat/internal/handlers"
	"github.com/ternarybob/docchat/internal/interfaces"
	"github.com/ternarybob/docchat/internal/services/llm"
	"github.com/ternarybob/docchat/internal/services/pdf"
	"github.com/ternarybob/docchat/internal/services/pipeline"
	"github.com/ternarybob/docchat/internal/services/sessions"
	"github.com/ternarybob/docchat/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage is nil when metadata recording is disabled
	Storage *badger.Manager

	// Services
	Providers   *llm.Providers
	Sessions    *sessions.Store
	Sweeper     *sessions.Sweeper
	Extractor   *pdf.Extractor
	Transcripts *pdf.TranscriptRenderer
	Pipelines   *pipeline.Service

	// HTTP handlers
	QueryHandler    *handlers.QueryHandler
	SessionHandler  *handlers.SessionHandler
	DocumentHandler *handlers.DocumentHandler
	SystemHandler   *handlers.SystemHandler
}

// New initializes the application with all dependencies
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: config,
		Logger: logger,
	}

	ctx := context.Background()

	if err := app.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Str("provider", string(app.Providers.Provider)).
		Bool("metadata_storage", app.Storage != nil).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase opens Badger when metadata recording is enabled and seeds the
// KV store from .env so API keys can live there.
func (a *App) initDatabase(ctx context.Context) error {
	if !a.Config.Storage.Enabled {
		a.Logger.Info().Msg("Metadata storage disabled")
		return nil
	}

	manager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return err
	}
	a.Storage = manager

	if err := manager.LoadEnvFile(ctx, ".env"); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to load .env into KV store")
	}

	return nil
}

// kvStorage returns the KV store or nil when storage is disabled
func (a *App) kvStorage() interfaces.KeyValueStorage {
	if a.Storage == nil {
		return nil
	}
	return a.Storage.KeyValueStorage()
}

// metadataStorage returns the metadata store or nil when storage is disabled
func (a *App) metadataStorage() interfaces.MetadataStorage {
	if a.Storage == nil {
		return nil
	}
	return a.Storage.MetadataStorage()
}

// initServices initializes providers, sessions and the pipelines
func (a *App) initServices(ctx context.Context) error {
	providers, err := llm.NewProviders(ctx, a.Config, a.kvStorage(), a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM providers: %w", err)
	}
	a.Providers = providers

	a.Sessions = sessions.NewStore(
		common.ParseDuration(a.Config.Sessions.TTL, time.Hour),
		a.Config.Sessions.MaxSessions,
		a.Logger,
	)

	a.Sweeper = sessions.NewSweeper(a.Sessions, common.ParseDuration(a.Config.Sessions.SweepInterval, 0), a.Logger)
	if err := a.Sweeper.Start(); err != nil {
		return fmt.Errorf("failed to start session sweeper: %w", err)
	}

	a.Extractor = pdf.NewExtractor(a.Logger)
	a.Transcripts = pdf.NewTranscriptRenderer(a.Logger)

	deps := pipeline.Dependencies{
		Embedder:  providers.Embedder,
		Generator: providers.Generator,
		Extractor: a.Extractor,
		Sessions:  a.Sessions,
		Indexes:   a.Sessions,
	}
	if metadata := a.metadataStorage(); metadata != nil {
		deps.Recorder = metadata
	}

	a.Pipelines = pipeline.NewService(deps, pipeline.OptionsFromConfig(a.Config), a.Logger)

	return nil
}

// initHandlers initializes all HTTP handlers
func (a *App) initHandlers() {
	metadata := a.metadataStorage()

	a.QueryHandler = handlers.NewQueryHandler(a.Pipelines, a.Config.Uploads.MaxBytes, a.Logger)
	a.SessionHandler = handlers.NewSessionHandler(a.Sessions, metadata, a.Transcripts, a.Logger)
	a.DocumentHandler = handlers.NewDocumentHandler(metadata, a.Logger)
	a.SystemHandler = handlers.NewSystemHandler(a.Sessions, string(a.Providers.Provider), a.Storage != nil)
}

// Close closes all application resources
func (a *App) Close() error {
	if a.Sweeper != nil {
		a.Sweeper.Stop()
	}

	if a.Providers != nil {
		if closer, ok := a.Providers.Embedder.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				a.Logger.Warn().Err(err).Msg("Failed to close LLM provider")
			}
		}
	}

	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
