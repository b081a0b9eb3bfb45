package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mavrika/mavrika/internal/atlas"
	"github.com/mavrika/mavrika/internal/config"
	"github.com/mavrika/mavrika/internal/database"
	"github.com/mavrika/mavrika/internal/eve"
	"github.com/mavrika/mavrika/internal/knowledge"
	"github.com/mavrika/mavrika/internal/log"
	"github.com/mavrika/mavrika/internal/observability"
	"github.com/mavrika/mavrika/internal/provider"
	"github.com/mavrika/mavrika/internal/task"
)

// Setup builds the application. On any error, components already
// initialized are released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = log.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing first: Genkit's TracerProvider must have the span processor
	// registered before genkit.Init creates spans.
	a.traceCleanup = provideTracing(ctx, cfg, logger)

	pool, err := provideDBPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	a.Knowledge = provideKnowledgeBase(pool, embedder, logger)
	a.Eves = eve.NewService(logger)
	a.Tasks = task.NewService(logger)

	orch, err := provideAtlas(g, cfg, a.Knowledge, a.Eves, a.Tasks, logger)
	if err != nil {
		return nil, err
	}
	a.Atlas = orch

	return a, nil
}

// provideTracing sets up OTLP trace export when enabled. Returns a cleanup
// that flushes pending spans.
func provideTracing(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	if !cfg.Tracing.Enabled {
		return func() {}
	}

	shutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
	}, logger)
	if err != nil {
		logger.Warn("tracing setup failed, continuing without tracing", "error", err)
		return func() {}
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations and creates the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, error) {
	if err := database.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.Connect(ctx, cfg.PostgresConnectionString(), logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return pool, nil
}

// provideGenkit initializes Genkit with the configured AI provider plugin.
// Supports gemini (default), ollama, and openai.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama has no auto-discovery; models and embedders are registered
		// explicitly.
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized genkit with openai provider", "model", cfg.ModelName)

	default: // gemini
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the provider plugin.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideKnowledgeBase assembles the retrieval stack over the pool.
func provideKnowledgeBase(pool *pgxpool.Pool, embedder ai.Embedder, logger log.Logger) *knowledge.KnowledgeBase {
	embedding := provider.NewEmbeddingClient(embedder, provider.RetryConfig{}, logger)
	store := knowledge.NewPostgresStore(pool, logger)
	vectors := knowledge.NewVectorStore(store, embedding, logger)
	return knowledge.New(vectors, logger)
}

// provideAtlas assembles the orchestrator over the completion client.
func provideAtlas(g *genkit.Genkit, cfg *config.Config, kb *knowledge.KnowledgeBase, eves *eve.Service, tasks *task.Service, logger log.Logger) (*atlas.Orchestrator, error) {
	completer, err := provider.NewCompletionClient(provider.CompletionConfig{
		Genkit:      g,
		ModelName:   cfg.FullModelName(),
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating completion client: %w", err)
	}

	return atlas.New(completer, kb, eves, tasks, atlas.Config{
		CompanyID:         cfg.CompanyID,
		ContextWindow:     cfg.ContextWindow,
		KnowledgeTopK:     cfg.KnowledgeTopK,
		SystemPrompt:      cfg.AtlasSystemMsg,
		KeepCommandTokens: !cfg.StripCommands,
		Logger:            logger,
	}), nil
}
