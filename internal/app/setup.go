package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/kiosk/db"
	"github.com/koopa0/kiosk/internal/assistant"
	"github.com/koopa0/kiosk/internal/config"
	"github.com/koopa0/kiosk/internal/execute"
	"github.com/koopa0/kiosk/internal/knowledge"
	"github.com/koopa0/kiosk/internal/log"
	"github.com/koopa0/kiosk/internal/observability"
	"github.com/koopa0/kiosk/internal/route"
	"github.com/koopa0/kiosk/internal/session"
	"github.com/koopa0/kiosk/internal/storefront"
	"github.com/koopa0/kiosk/internal/strategy"
)

// Setup builds the full pipeline from configuration. On error, everything
// already initialized is released before returning.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	a := &App{Config: cfg}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				slog.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.Logger = log.New(log.Config{
		Level: log.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})

	// Tracing registers with Genkit's TracerProvider, so it must come
	// before genkit.Init.
	otelShutdown, err := observability.Setup(ctx, observability.Config{
		Enabled:     cfg.Observability.Enabled,
		Endpoint:    cfg.Observability.Endpoint,
		Environment: cfg.Observability.Environment,
		ServiceName: cfg.Observability.ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}
	a.onClose(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			a.Logger.Warn("shutting down tracer provider", "error", err)
		}
	})

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool
	a.onClose(pool.Close)

	g, embedder, err := provideEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = g
	a.Embedder = embedder

	store, err := knowledge.New(pool, embedder, knowledge.Config{
		TopK:           cfg.Knowledge.TopK,
		ScoreThreshold: cfg.Knowledge.ScoreThreshold,
	}, a.Logger.With("component", "knowledge"))
	if err != nil {
		return nil, fmt.Errorf("creating knowledge store: %w", err)
	}
	a.Knowledge = store

	sessionStore, err := session.NewPostgresStore(pool, a.Logger.With("component", "sessions"))
	if err != nil {
		return nil, fmt.Errorf("creating session store: %w", err)
	}
	sessions, err := session.NewManager(sessionStore, session.ManagerConfig{
		IdleTTL: cfg.Assistant.SessionTTL(),
	}, a.Logger.With("component", "sessions"))
	if err != nil {
		return nil, fmt.Errorf("creating session manager: %w", err)
	}
	a.Sessions = sessions
	a.onClose(sessions.Close)

	gateway, err := storefront.New(storefront.Config{
		BaseURL:    cfg.Storefront.BaseURL,
		APIToken:   cfg.Storefront.APIToken,
		Timeout:    cfg.Storefront.Timeout(),
		RatePerSec: cfg.Storefront.RatePerSec,
		Burst:      cfg.Storefront.Burst,
		MaxRetries: cfg.Storefront.MaxRetries,
	}, a.Logger.With("component", "storefront"))
	if err != nil {
		return nil, fmt.Errorf("creating storefront gateway: %w", err)
	}
	a.Gateway = gateway

	engine, err := strategy.NewEngine(cfg.StrategiesPath, gateway.Tools(),
		a.Logger.With("component", "strategy"))
	if err != nil {
		return nil, fmt.Errorf("loading strategies: %w", err)
	}
	a.Strategies = engine

	planner, err := route.NewPlanner(store, engine, gateway, route.Config{
		RouteConfidence: cfg.Knowledge.RouteConfidence,
		TopK:            cfg.Knowledge.TopK,
	}, a.Logger.With("component", "planner"))
	if err != nil {
		return nil, fmt.Errorf("creating planner: %w", err)
	}
	a.Planner = planner

	coordinator, err := execute.NewCoordinator(gateway, execute.Config{
		MaxConcurrent: cfg.Assistant.MaxConcurrentCalls,
		CallTimeout:   cfg.Assistant.ToolTimeout(),
	}, a.Logger.With("component", "coordinator"))
	if err != nil {
		return nil, fmt.Errorf("creating coordinator: %w", err)
	}
	a.Coordinator = coordinator

	asst, err := assistant.New(sessions, planner, coordinator,
		a.Logger.With("component", "assistant"))
	if err != nil {
		return nil, fmt.Errorf("creating assistant: %w", err)
	}
	a.Assistant = asst

	return a, nil
}

// provideDBPool runs migrations, then opens and pings the pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideEmbedder initializes Genkit with the configured provider plugin
// and looks up the embedding model the knowledge store uses.
func provideEmbedder(ctx context.Context, cfg *config.Config) (*genkit.Genkit, ai.Embedder, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderVertexAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.VertexAI{}))
		if g == nil {
			return nil, nil, errors.New("initializing genkit with vertexai provider")
		}
	default: // googleai
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, nil, errors.New("initializing genkit with googleai provider")
		}
	}

	var embedder ai.Embedder
	if cfg.Provider == config.ProviderVertexAI {
		embedder = googlegenai.VertexAIEmbedder(g, cfg.EmbedderModel)
	} else {
		embedder = googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
	if embedder == nil {
		return nil, nil, fmt.Errorf("embedder %q not found for provider %q",
			cfg.EmbedderModel, cfg.Provider)
	}

	return g, embedder, nil
}
