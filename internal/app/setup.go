package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"golang.org/x/time/rate"

	"github.com/mkrause/deskd/internal/agent"
	"github.com/mkrause/deskd/internal/config"
	"github.com/mkrause/deskd/internal/database"
	"github.com/mkrause/deskd/internal/index"
	"github.com/mkrause/deskd/internal/knowledge"
	"github.com/mkrause/deskd/internal/pdf"
	"github.com/mkrause/deskd/internal/tools"
)

// Setup initializes the full application from configuration.
// On failure everything already opened is released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q",
			cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	a.DB = db
	if err := database.Migrate(db); err != nil {
		return nil, err
	}

	store, err := knowledge.Open(cfg.VectorPath, knowledge.NewEmbeddingFunc(embedder), logger)
	if err != nil {
		return nil, err
	}
	a.Knowledge = store

	indexer, err := index.New(index.Config{
		Store:       store,
		Extractor:   pdf.New(),
		Ledger:      index.LoadLedger(cfg.LedgerPath, logger),
		PoliciesDir: cfg.PoliciesDir,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	a.Indexer = indexer

	if err := provideTools(g, a); err != nil {
		return nil, err
	}

	loop, err := provideLoop(ctx, g, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Loop = loop

	logger.Debug("application ready",
		"provider", cfg.Provider, "model", cfg.ModelName,
		"database", cfg.DatabasePath, "policies", cfg.PoliciesDir)
	return a, nil
}

// provideGenkit initializes Genkit with the configured AI provider plugin.
func provideGenkit(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
	default: // gemini
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
	}

	logger.Debug("initialized genkit", "provider", cfg.Provider, "model", cfg.ModelName)
	return g, nil
}

// provideEmbedder looks up the embedder registered by the provider plugin.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default: // gemini
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideTools builds the tool handlers and registers them with Genkit.
func provideTools(g *genkit.Genkit, a *App) error {
	db, err := tools.NewDatabase(a.DB, a.Logger)
	if err != nil {
		return err
	}
	profile, err := tools.NewProfile(a.DB, a.Logger)
	if err != nil {
		return err
	}
	policy, err := tools.NewPolicy(a.Knowledge, a.Config.TopK, a.Logger)
	if err != nil {
		return err
	}

	if _, err := tools.Register(g, db, profile, policy); err != nil {
		return fmt.Errorf("registering tools: %w", err)
	}
	return nil
}

// provideLoop assembles the agent control loop around the registered tools.
func provideLoop(ctx context.Context, g *genkit.Genkit, cfg *config.Config, logger *slog.Logger) (*agent.Loop, error) {
	caller, err := agent.NewGenkitCaller(g, qualifiedModelName(cfg))
	if err != nil {
		return nil, err
	}
	dispatcher, err := agent.NewGenkitDispatcher(g)
	if err != nil {
		return nil, err
	}

	return agent.New(agent.Config{
		Caller:        caller,
		Dispatcher:    dispatcher,
		Tools:         tools.Refs(ctx, g),
		SystemPrompt:  systemPrompt,
		MaxIterations: cfg.MaxIterations,
		Logger:        logger,
		// Two model calls per second sustained, short bursts allowed.
		RateLimiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 4),
	})
}

// qualifiedModelName maps the configured provider to the plugin's model
// namespace, e.g. gemini -> "googleai/gemini-2.5-flash".
func qualifiedModelName(cfg *config.Config) string {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return "openai/" + cfg.ModelName
	default:
		return "googleai/" + cfg.ModelName
	}
}
